// Package pebbledb implements a storage.Store on top of an embedded pebble database.
package pebbledb

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/status"
)

// Option configures the pebble store
type Option func(*settings)

type settings struct {
	inMemory   bool
	syncWrites bool
}

// InMemory keeps the database in memory
func InMemory() Option {
	return func(s *settings) {
		s.inMemory = true
	}
}

// SyncWrites toggles fsync on every write
func SyncWrites(enabled bool) Option {
	return func(s *settings) {
		s.syncWrites = enabled
	}
}

// Store is a pebble-backed object store. It must be closed after use.
//
// Writes are serialized, so that exclusive puts are atomic.
type Store struct {
	path string
	db   *pebble.DB
	wo   *pebble.WriteOptions
	mx   sync.Mutex
}

var _ storage.Store = &Store{}

// New opens (or creates) a pebble database in the directory at path
func New(path string, opts ...Option) (*Store, error) {
	var s settings
	for _, apply := range opts {
		apply(&s)
	}

	options := (&pebble.Options{}).EnsureDefaults()
	if s.inMemory {
		options.FS = vfs.NewMem()
	} else if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	db, err := pebble.Open(path, options)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	wo := pebble.NoSync
	if s.syncWrites {
		wo = pebble.Sync
	}
	return &Store{path: path, db: db, wo: wo}, nil
}

// Close the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) String() string {
	if s.path == "" {
		return "pebble"
	}
	return "pebble@" + s.path
}

func (s *Store) get(key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = closer.Close()
	}()

	// values returned by pebble are only valid until the closer is called
	return append([]byte{}, value...), nil
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	_, err := s.get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pebble.ErrNotFound):
		return false, nil
	default:
		return false, status.ErrStorageAPI.Wrap(err)
	}
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	value, err := s.get(key)
	switch {
	case err == nil:
		return io.NopCloser(bytes.NewReader(value)), nil
	case errors.Is(err, pebble.ErrNotFound):
		return nil, status.ErrNotFound.WrapMessage("%q", key)
	default:
		return nil, status.ErrStorageAPI.Wrap(err)
	}
}

func (s *Store) Put(_ context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if exclusive {
		_, err := s.get(key)
		if err == nil {
			return status.ErrExists.WrapMessage("%q", key)
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	if err := s.db.Set([]byte(key), value, s.wo); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if err := s.db.Delete([]byte(key), s.wo); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

// keys in ascending order
func (s *Store) keys() ([][]byte, error) {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}

	var keys [][]byte
	for valid := it.First(); valid; valid = it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return nil, err
	}
	return keys, it.Close()
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	raw, err := s.keys()
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, string(k))
	}
	return keys, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	keys, err := s.keys()
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	batch := s.db.NewBatch()
	defer func() {
		_ = batch.Close()
	}()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	if err := batch.Commit(s.wo); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}
