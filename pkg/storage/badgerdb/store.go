// Package badgerdb implements a storage.Store on top of an embedded badger database.
package badgerdb

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/status"
)

// Option configures the badger store
type Option func(*badger.Options)

// InMemory runs badger without any disk persistence
func InMemory() Option {
	return func(o *badger.Options) {
		*o = o.WithInMemory(true).WithDir("").WithValueDir("")
	}
}

// SyncWrites toggles fsync on every write
func SyncWrites(enabled bool) Option {
	return func(o *badger.Options) {
		*o = o.WithSyncWrites(enabled)
	}
}

// conflictRetry is the pause between attempts of a write transaction that hit a conflict
const conflictRetry = 10 * time.Millisecond

// Store is a badger-backed object store. It must be closed after use.
type Store struct {
	path string
	db   *badger.DB
}

var _ storage.Store = &Store{}

// New opens (or creates) a badger database at path
func New(path string, opts ...Option) (*Store, error) {
	o := badger.DefaultOptions(path).WithLogger(nil)
	for _, apply := range opts {
		apply(&o)
	}

	db, err := badger.Open(o)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	return &Store{path: path, db: db}, nil
}

// Close the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) String() string {
	if s.path == "" {
		return "badger"
	}
	return "badger@" + s.path
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch err {
		case nil:
			found = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, status.ErrStorageAPI.Wrap(err)
	}
	return found, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch err {
	case nil:
		return io.NopCloser(bytes.NewReader(value)), nil
	case badger.ErrKeyNotFound:
		return nil, status.ErrNotFound.WrapMessage("%q", key)
	default:
		return nil, status.ErrStorageAPI.Wrap(err)
	}
}

// update runs a write transaction, retried while it conflicts with concurrent ones
func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	return backoff.Retry(func() error {
		err := s.db.Update(fn)
		if err == nil || errors.Is(err, badger.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.NewConstantBackOff(conflictRetry), ctx))
}

func (s *Store) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		if exclusive {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return status.ErrExists.WrapMessage("%q", key)
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		if errors.Is(err, status.ErrExists) {
			return err
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return keys, nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}
