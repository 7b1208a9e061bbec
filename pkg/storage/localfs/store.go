// Copyright © 2018 One Concern

// Package localfs implements a storage.Store on top of an afero file system.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/privfs/pkg/storage"
	"github.com/oneconcern/privfs/pkg/storage/status"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// DefaultPath is the location of objects when no file system is provided
var DefaultPath = filepath.Join(".privfs", "blocks")

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), DefaultPath)
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotFound.WrapMessage("%q", key)
	}
	t, err := l.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.WrapMessage("%q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return t, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	dir := filepath.Dir(key)
	if dir != "" {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %v", key, err))
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if exclusive {
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists.WrapMessage("%q", key)
		}
		return status.ErrStorageAPI.Wrap(fmt.Errorf("create record for %q: %v", key, err))
	}

	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.Wrap(fmt.Errorf("write record for %q: %v", key, err))
	}

	if err = target.Close(); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("removing %q: %v", key, err))
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	const root = "."
	var res []string
	e := afero.Walk(l.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root || info.IsDir() {
			return nil
		}
		res = append(res, path)
		return nil
	})
	if e != nil {
		return nil, status.ErrStorageAPI.Wrap(e)
	}
	return res, nil
}

func (l *localFS) Clear(ctx context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	for _, entry := range entries {
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	return nil
}

func (l *localFS) String() string {
	return describe("localfs", l.fs)
}

func describe(name string, fs afero.Fs) string {
	switch f := fs.(type) {
	case *afero.BasePathFs:
		pp, err := f.RealPath("")
		if err != nil {
			return name
		}
		return name + "@" + pp
	default:
		return name
	}
}

// Thread-safe local storage implementation.
//
// Puts are made atomic by writing to a staging area first, then renaming into place.
// This holds for file systems where Rename is atomic.
const nestedPutStageName = ".put-stage"

func maybeInvalidKey(key string) error {
	const pathSepString = string(os.PathSeparator)
	pathComponents := strings.Split(strings.TrimLeft(key, pathSepString), pathSepString)
	if len(pathComponents) == 0 {
		return nil
	}
	if pathComponents[0] == nestedPutStageName {
		return status.ErrInvalidKey.WrapMessage("key %q conflicts with put staging area name %q", key, nestedPutStageName)
	}
	return nil
}

func filterInvalidKeys(ks []string) []string {
	ksFiltered := ks[:0]
	for _, key := range ks {
		if err := maybeInvalidKey(key); err == nil {
			ksFiltered = append(ksFiltered, key)
		}
	}
	for i := len(ksFiltered); i < len(ks); i++ {
		ks[i] = ""
	}
	return ksFiltered
}

// NewAtomic creates a local file system store with atomic puts
func NewAtomic(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), DefaultPath)
	}
	// the staging area exists within the afero.Fs itself
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring put staging directory for %q: %v", nestedPutStageName, err))
	}
	return &localFSAtomic{
		storeImpl: localFS{fs: fs},
	}, nil
}

type localFSAtomic struct {
	storeImpl localFS
}

func (l *localFSAtomic) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	return l.storeImpl.Has(ctx, key)
}

func (l *localFSAtomic) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := maybeInvalidKey(key); err != nil {
		return nil, err
	}
	return l.storeImpl.Get(ctx, key)
}

func (l *localFSAtomic) Delete(ctx context.Context, key string) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	return l.storeImpl.Delete(ctx, key)
}

func (l *localFSAtomic) Keys(ctx context.Context) ([]string, error) {
	ks, err := l.storeImpl.Keys(ctx)
	if err != nil {
		return ks, err
	}
	return filterInvalidKeys(ks), nil
}

func (l *localFSAtomic) Clear(ctx context.Context) error {
	if err := l.storeImpl.Clear(ctx); err != nil {
		return err
	}
	if err := l.storeImpl.fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFSAtomic) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.storeImpl.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("%q", key)
		}
	}
	fs := l.storeImpl.fs
	// each put stages its own file, so concurrent puts of a key never write the same file
	stage, err := afero.TempFile(fs, nestedPutStageName, "put-")
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	stageName := stage.Name()
	_, err = io.Copy(stage, source)
	err = multierr.Append(err, stage.Close())
	if err != nil {
		_ = fs.Remove(stageName)
		return status.ErrStorageAPI.Wrap(err)
	}
	// Rename doesn't create directories automatically
	dir := filepath.Dir(key)
	if dir != "" {
		if err := fs.MkdirAll(dir, 0700); err != nil {
			_ = fs.Remove(stageName)
			return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %v", key, err))
		}
	}
	if err := fs.Rename(stageName, key); err != nil {
		_ = fs.Remove(stageName)
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFSAtomic) String() string {
	return describe("localfs-atomic", l.storeImpl.fs)
}
