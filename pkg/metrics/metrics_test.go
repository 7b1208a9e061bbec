package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureRequires(t testing.TB, m *exampleMetrics) {
	require.NotNil(t, m.Telemetry.TestCount)
	require.NotNil(t, m.Volumetry.Metadata.BlockCount)
	require.NotNil(t, m.Network.Requests.Count)
}

func exerciseAPI(m *exampleMetrics) {
	Inc(m.Telemetry.TestCount)
	Inc(m.Volumetry.Metadata.BlockCount)
	Int64(m.Network.Requests.Count, 10)
	Inc(nil)
	Int64(nil, 1)
	Float64(nil, 1)
}

func TestMetrics(t *testing.T) {
	testMetrics := &exampleMetrics{}
	Init(WithExporter(newCaptureExporter()))
	_ = EnsureMetrics("example", testMetrics)

	fixtureRequires(t, testMetrics)
	exerciseAPI(testMetrics)
	Flush()
}

func TestRegister(t *testing.T) {
	testMetrics := &exampleMetrics{}
	Init()

	// lazy registration
	x := EnsureMetrics("registerExample", testMetrics)
	fixtureRequires(t, testMetrics)
	exerciseAPI(testMetrics)

	// retry registration
	y := EnsureMetrics("registerExample", &exampleMetrics{})
	require.Equal(t, x, y)

	assert.Panics(t, func() {
		_ = EnsureMetrics("registerExample", &BlockMetrics{})
	})
}

func TestEnable(t *testing.T) {
	var e Enable
	assert.False(t, e.MetricsEnabled())

	e.EnableMetrics(true)
	require.True(t, e.MetricsEnabled())

	m, ok := e.EnsureMetrics("enableExample", &UsageMetrics{}).(*UsageMetrics)
	require.True(t, ok)
	require.NotNil(t, m.Count)
	m.Used(time.Now(), "TestEnable")
}

func TestModules(t *testing.T) {
	exporter := newCaptureExporter()
	s := newSettings(
		WithBasePath("root"),
		WithExporter(exporter),
	)
	testMetrics := &exampleMetrics{}
	_ = s.EnsureMetrics("moduleTesting", testMetrics)

	require.Len(t, s.modules, 1)
	assert.Len(t, s.measures, 8)
	assert.Len(t, s.views, 11)

	fixtureRequires(t, testMetrics)
	assert.Equal(t, "root/moduleTesting/telemetry/testCount", testMetrics.Telemetry.TestCount.Name())

	// helper object level API
	t0 := time.Now()

	testMetrics.IncTest()

	testMetrics.Network.Requests.IORecord(time.Now(), "read")(0, nil)
	testMetrics.Network.Requests.Size(100, "write")
	testMetrics.Network.Requests.Failed("delete")
	testMetrics.Network.Requests.Throughput(t0, time.Now(), 100, "read")
	testMetrics.Network.Requests.Throughput(t0, t0, 100, "nop")
	testMetrics.Network.Requests.Throughput(t0, t0, 0, "nop")

	testMetrics.Network.Requests.IORecord(t0, "nop")(0, nil)
	testMetrics.Network.Requests.IORecord(t0, "read")(100, nil)
	testMetrics.Network.Requests.IORecord(t0, "error")(0, fmt.Errorf("failure"))
	testMetrics.Network.Requests.IORecord(t0, "write")(100, nil)

	testMetrics.Volumetry.Metadata.Inc("read")
	testMetrics.Volumetry.Metadata.Size(100, "write")

	s.Flush()
	assert.True(t, exporter.seen("root/moduleTesting/volumetry/metadata/blockCount"))
	assert.True(t, exporter.seen("root/moduleTesting/volumetry/metadata/blockSize/sum"))
}

func TestUsage(t *testing.T) {
	m := EnsureMetrics("usageExample", &UsageMetrics{}).(*UsageMetrics)
	t0 := time.Now()

	m.Used(t0, "Get")
	m.UsedAll(t0, "Put")(nil)
	m.UsedAll(t0, "Put")(fmt.Errorf("failure"))
	m.Failed("Get")
}
