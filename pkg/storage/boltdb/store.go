// Package boltdb implements a storage.Store on top of an embedded bolt database.
//
// All objects live in a single bucket.
package boltdb

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/status"
	"go.etcd.io/bbolt"
)

var defaultBucket = []byte("blocks")

// Options for the bolt store
type Options struct {
	// Bucket name, defaults to "blocks"
	Bucket string
	// IsTesting trades durability for speed
	IsTesting bool
	// Timeout to acquire the file lock
	Timeout time.Duration
}

// Store is a bolt-backed object store. It must be closed after use.
type Store struct {
	path   string
	bucket []byte
	db     *bbolt.DB
}

var _ storage.Store = &Store{}

// New opens (or creates) a bolt database file at path
func New(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout > 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(path, 0600, bopt)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	bucket := defaultBucket
	if opt.Bucket != "" {
		bucket = []byte(opt.Bucket)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	})
	if err != nil {
		_ = bdb.Close()
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	return &Store{path: path, bucket: bucket, db: bdb}, nil
}

// Close the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) String() string {
	return "bolt@" + s.path
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(s.bucket).Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, status.ErrStorageAPI.Wrap(err)
	}
	return found, nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// values returned by bolt are only valid during the transaction
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			value = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	if value == nil {
		return nil, status.ErrNotFound.WrapMessage("%q", key)
	}
	return io.NopCloser(bytes.NewReader(value)), nil
}

func (s *Store) Put(_ context.Context, key string, source io.Reader, exclusive bool) error {
	value, err := io.ReadAll(source)
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if exclusive && b.Get([]byte(key)) != nil {
			return status.ErrExists.WrapMessage("%q", key)
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		if errors.Is(err, status.ErrExists) {
			return err
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return keys, nil
}

func (s *Store) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}
