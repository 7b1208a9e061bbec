// Copyright © 2018 One Concern

// Package instrumented decorates a storage.Store with tracing spans, debug logs and IO metrics.
package instrumented

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oneconcern/privfs/pkg/metrics"
	"github.com/oneconcern/privfs/pkg/storage"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// M describes the metrics of instrumented stores
type M struct {
	Backend struct {
		IO metrics.IOMetrics `group:"io" description:"reads and writes on the storage backend"`
	} `group:"backend"`
}

// Option for an instrumented store
type Option func(*instrumentedStore)

// WithMetrics records IO metrics on Get and Put
func WithMetrics(enabled bool) Option {
	return func(i *instrumentedStore) {
		i.EnableMetrics(enabled)
	}
}

// New wraps a store. A nil tracer falls back to the global tracer, a nil logger to a no-op logger.
func New(tr opentracing.Tracer, l *zap.Logger, store storage.Store, opts ...Option) storage.Store {
	if tr == nil {
		tr = opentracing.GlobalTracer()
	}
	if l == nil {
		l = zap.NewNop()
	}
	i := &instrumentedStore{
		tr:    tr,
		store: store,
		l:     l.With(zap.String("store", store.String())),
	}
	for _, apply := range opts {
		apply(i)
	}
	if i.MetricsEnabled() {
		i.m = i.EnsureMetrics("storage", &M{}).(*M)
	}
	return i
}

type instrumentedStore struct {
	metrics.Enable
	store storage.Store
	tr    opentracing.Tracer
	l     *zap.Logger
	m     *M
}

func (i *instrumentedStore) opName(name string) string {
	return strings.Join([]string{"storage", i.String(), name}, ".")
}

func (i *instrumentedStore) spanFromContext(ctx context.Context, name string) opentracing.Span {
	parent := opentracing.SpanFromContext(ctx)
	var span opentracing.Span
	if parent != nil {
		span = i.tr.StartSpan(name, opentracing.ChildOf(parent.Context()))
	} else {
		span = i.tr.StartSpan(name)
	}
	return span
}

func finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
	}
	span.Finish()
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (has bool, err error) {
	span := i.spanFromContext(ctx, i.opName("Has"))
	defer func() { finish(span, err) }()
	span.SetTag("key", key)
	i.l.Debug("storage has", zap.String("key", key))

	return i.store.Has(opentracing.ContextWithSpan(ctx, span), key)
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (rdr io.ReadCloser, err error) {
	span := i.spanFromContext(ctx, i.opName("Get"))
	defer func() { finish(span, err) }()
	span.SetTag("key", key)
	i.l.Debug("storage get", zap.String("key", key))

	start := time.Now()
	rdr, err = i.store.Get(opentracing.ContextWithSpan(ctx, span), key)
	if !i.MetricsEnabled() {
		return rdr, err
	}
	if err != nil {
		i.m.Backend.IO.IORecord(start, "get")(0, err)
		return nil, err
	}
	return &countingReadCloser{
		ReadCloser: rdr,
		done:       i.m.Backend.IO.IORecord(start, "get"),
	}, nil
}

func (i *instrumentedStore) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) (err error) {
	span := i.spanFromContext(ctx, i.opName("Put"))
	defer func() { finish(span, err) }()
	span.SetTag("key", key)
	span.SetTag("exclusive", exclusive)
	i.l.Debug("storage put", zap.String("key", key), zap.Bool("exclusive", exclusive))

	if !i.MetricsEnabled() {
		return i.store.Put(opentracing.ContextWithSpan(ctx, span), key, rdr, exclusive)
	}
	counter := &countingReader{Reader: rdr}
	defer func(start time.Time) {
		i.m.Backend.IO.IORecord(start, "put")(counter.n, err)
	}(time.Now())
	return i.store.Put(opentracing.ContextWithSpan(ctx, span), key, counter, exclusive)
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) (err error) {
	span := i.spanFromContext(ctx, i.opName("Delete"))
	defer func() { finish(span, err) }()
	span.SetTag("key", key)
	i.l.Debug("storage delete", zap.String("key", key))

	return i.store.Delete(opentracing.ContextWithSpan(ctx, span), key)
}

func (i *instrumentedStore) Keys(ctx context.Context) (keys []string, err error) {
	span := i.spanFromContext(ctx, i.opName("Keys"))
	defer func() { finish(span, err) }()
	i.l.Debug("storage keys")

	return i.store.Keys(opentracing.ContextWithSpan(ctx, span))
}

func (i *instrumentedStore) Clear(ctx context.Context) (err error) {
	span := i.spanFromContext(ctx, i.opName("Clear"))
	defer func() { finish(span, err) }()
	i.l.Info("storage clear")

	return i.store.Clear(opentracing.ContextWithSpan(ctx, span))
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

type countingReader struct {
	io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.n += int64(n)
	return n, err
}

// countingReadCloser records the IO of a Get once the reader is closed
type countingReadCloser struct {
	io.ReadCloser
	n      int64
	closed int32
	done   func(int64, error)
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReadCloser) Close() error {
	err := c.ReadCloser.Close()
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.done(c.n, err)
	}
	return err
}
