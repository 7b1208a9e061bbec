package instrumented

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/localfs"
	"github.com/oneconcern/privfs/pkg/storage/storagetest"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.opencensus.io/stats/view"
	"go.uber.org/zap/zaptest/observer"
)

func TestInstrumentedSpans(t *testing.T) {
	tracer := mocktracer.New()
	core, logs := observer.New(zap.DebugLevel)
	store := New(tracer, zap.New(core), localfs.New(afero.NewMemMapFs()))

	parent := tracer.StartSpan("parent")
	ctx := opentracing.ContextWithSpan(context.Background(), parent)

	require.NoError(t, store.Put(ctx, "k", bytes.NewBufferString("v"), storage.NoOverWrite))
	require.Error(t, store.Put(ctx, "k", bytes.NewBufferString("v"), storage.NoOverWrite))
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)
	parent.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 4)

	assert.Equal(t, "storage.localfs.Put", spans[0].OperationName)
	assert.Equal(t, "k", spans[0].Tag("key"))
	assert.Equal(t, spans[3].SpanContext.SpanID, spans[0].ParentID)
	assert.Nil(t, spans[0].Tag("error"))

	assert.Equal(t, true, spans[1].Tag("error"))
	assert.Equal(t, "storage.localfs.Get", spans[2].OperationName)

	assert.Equal(t, 3, logs.FilterMessage("storage put").Len()+logs.FilterMessage("storage get").Len())
}

func TestInstrumentedConformance(t *testing.T) {
	storagetest.Run(t, New(nil, nil, localfs.New(afero.NewMemMapFs())))
}

func TestInstrumentedMetrics(t *testing.T) {
	ctx := context.Background()
	store := New(nil, zap.NewNop(), localfs.New(afero.NewMemMapFs()), WithMetrics(true))

	require.NoError(t, store.Put(ctx, "blob", bytes.NewBufferString("some content"), storage.NoOverWrite))
	rdr, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	data, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	require.NoError(t, rdr.Close())
	assert.Equal(t, "some content", string(data))

	_, err = store.Get(ctx, "missing")
	require.Error(t, err)

	for _, name := range []string{"storage/backend/io/ioCount", "storage/backend/io/ioSize/sum", "storage/backend/io/ioFailures"} {
		rows, err := view.RetrieveData(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, rows, name)
	}
}
