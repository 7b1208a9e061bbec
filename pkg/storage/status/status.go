// Copyright © 2018 One Concern

// Package status holds the sentinel errors of storage.Store implementations.
//
// It is kept apart from pkg/storage so that backends and decorators may import it
// without importing each other.
package status

import "github.com/oneconcern/privfs/pkg/errors"

var (
	// ErrNotFound is returned when no object is stored under a key
	ErrNotFound = errors.New("not found")

	// ErrExists is returned by an exclusive Put on an existing key
	ErrExists = errors.New("exists already")

	// ErrInvalidKey is returned for keys a backend cannot store
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrStorageAPI wraps any other failure of the backend
	ErrStorageAPI = errors.New("storage API error")
)
