package privfs

import (
	"context"
	"crypto/rand"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/accumulator"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/metrics"
	"github.com/oneconcern/privfs/pkg/private"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/badgerdb"
	"github.com/oneconcern/privfs/pkg/storage/boltdb"
	"github.com/oneconcern/privfs/pkg/storage/instrumented"
	"github.com/oneconcern/privfs/pkg/storage/localfs"
	"github.com/oneconcern/privfs/pkg/storage/pebbledb"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Runtime for privfs: the block stores and the settings used to build forests.
//
// With a cold tier, file content is written to the cold store while nodes and tries are
// written to the hot one. Forest blocks are read from the hot tier, then the cold one.
type Runtime struct {
	cfg     Config
	l       *zap.Logger
	bs      blockstore.BlockStore
	content blockstore.BlockStore
	closers []io.Closer
}

// New initializes a runtime from a configuration
func New(cfg *Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := dlogger.GetLogger(cfg.Log.Level)
	if err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	r := &Runtime{cfg: *cfg, l: l}
	if cfg.Metrics.Enabled {
		metrics.Init(
			metrics.WithBasePath(cfg.Metrics.BasePath),
			metrics.WithExporter(metrics.NewLogExporter(l)),
			metrics.WithReportingPeriod(cfg.Metrics.ReportingPeriod),
		)
	}

	store, err := r.openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	var cold storage.Store
	if cfg.Storage.Cold != nil {
		if cold, err = r.openStore(*cfg.Storage.Cold); err != nil {
			_ = r.Close()
			return nil, err
		}
		store = storage.NewTiered(store, cold)
	}
	if cfg.Tracing.Enabled || cfg.Metrics.Enabled {
		store = instrumented.New(opentracing.GlobalTracer(), l, store, instrumented.WithMetrics(cfg.Metrics.Enabled))
		if cold != nil {
			cold = instrumented.New(opentracing.GlobalTracer(), l, cold, instrumented.WithMetrics(cfg.Metrics.Enabled))
		}
	}

	r.bs = blockstore.New(store, blockstore.Logger(l), blockstore.WithMetrics(cfg.Metrics.Enabled))
	if cold != nil {
		r.content = blockstore.New(cold, blockstore.Logger(l), blockstore.WithMetrics(cfg.Metrics.Enabled))
	}
	if cfg.Cache.Entries > 0 {
		maxBlockSize, _ := cfg.CacheBlockSize()
		cached, err := blockstore.NewCached(r.bs, cfg.Cache.Entries, maxBlockSize)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.bs = cached
	}
	if r.content == nil {
		r.content = r.bs
	}

	l.Info("privfs runtime ready", zap.Stringer("storage", store))
	return r, nil
}

func (r *Runtime) openStore(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return localfs.New(afero.NewMemMapFs()), nil
	case BackendLocalFS:
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, err
		}
		return localfs.NewAtomic(afero.NewBasePathFs(afero.NewOsFs(), cfg.Path))
	case BackendBadger:
		s, err := badgerdb.New(cfg.Path, badgerdb.SyncWrites(cfg.SyncWrites))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s)
		return s, nil
	case BackendBolt:
		s, err := boltdb.New(cfg.Path, boltdb.Options{})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s)
		return s, nil
	case BackendPebble:
		s, err := pebbledb.New(cfg.Path, pebbledb.SyncWrites(cfg.SyncWrites))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s)
		return s, nil
	default:
		return nil, ErrInvalidConfig.WrapMessage("unknown storage backend %q", cfg.Backend)
	}
}

// Config of the runtime
func (r *Runtime) Config() Config {
	return r.cfg
}

// Logger of the runtime
func (r *Runtime) Logger() *zap.Logger {
	return r.l
}

// BlockStore shared by all forests of the runtime
func (r *Runtime) BlockStore() blockstore.BlockStore {
	return r.bs
}

// ContentStore receives the chunks of large files: the cold tier when configured, the block store otherwise
func (r *Runtime) ContentStore() blockstore.BlockStore {
	return r.content
}

func (r *Runtime) forestOptions() []private.Option {
	inlineLimit, chunkSize, _ := r.cfg.ContentSizes()
	return []private.Option{
		private.Logger(r.l),
		private.ContentStore(r.content),
		private.Chunking(inlineLimit, chunkSize),
		private.SearchBudget(r.cfg.Ratchet.SearchBudget),
		private.WithMetrics(r.cfg.Metrics.Enabled),
		private.HamtOptions(hamt.BitWidth(r.cfg.Hamt.BitWidth), hamt.BucketSize(r.cfg.Hamt.BucketSize)),
	}
}

// NewForest creates an empty forest with a fresh accumulator setup
func (r *Runtime) NewForest(ctx context.Context) (*private.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	setup, err := accumulator.NewSetup(rand.Reader, r.cfg.Accumulator.ModulusBits)
	if err != nil {
		return nil, err
	}
	return r.NewForestWithSetup(setup)
}

// NewForestWithSetup creates an empty forest sharing an existing accumulator setup, so that it can be merged
// with forests built on the same setup
func (r *Runtime) NewForestWithSetup(setup *accumulator.Setup) (*private.Forest, error) {
	return private.NewForest(r.bs, setup, r.forestOptions()...)
}

// LoadForest loads a forest from the CID of its root block
func (r *Runtime) LoadForest(ctx context.Context, root cid.Cid) (*private.Forest, error) {
	return private.LoadForest(ctx, r.bs, root, r.forestOptions()...)
}

// Close the storage backends
func (r *Runtime) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	r.closers = nil
	if r.cfg.Metrics.Enabled {
		metrics.Flush()
	}
	return err
}
