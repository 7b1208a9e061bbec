// Copyright © 2018 One Concern

// Package storage provides interface to handle backend storage objects.
//
// This package supports the following backends:
//   - local file system, or in-memory file system (afero)
//   - badger embedded key/value store
//   - bolt embedded key/value store
//
// Stores may be decorated: see Tiered, and the instrumented package for tracing.
package storage
