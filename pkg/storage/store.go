// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/oneconcern/privfs/pkg/storage/status"
)

const (
	// NoOverWrite makes Put fail with status.ErrExists when the key is already present
	NoOverWrite = true
	// OverWrite lets Put replace any existing object
	OverWrite = false
)

// Store implementations know how to write entries to a K/V model.
//
// Typically this is something file system-like, or an embedded key/value database.
// Implementations of this interface are assumed to be fairly simple, and safe for concurrent use.
//
// Get returns an error matching status.ErrNotFound when the key does not exist.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, source io.Reader, exclusive bool) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// ReadAll retrieves an object from a store into memory
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err = buf.ReadFrom(reader); err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return buf.Bytes(), nil
}
