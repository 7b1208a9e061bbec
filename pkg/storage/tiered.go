// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"sort"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/storage/status"
	"go.uber.org/multierr"
)

// Tiered combines a hot store with a cold store.
//
// Writes go to the hot store. Reads are served by the hot store, then by the cold one
// when the key is not found there. Deletes and clears apply to both tiers.
type Tiered struct {
	Hot  Store
	Cold Store
}

var _ Store = &Tiered{}

// NewTiered builds a hot/cold store
func NewTiered(hot, cold Store) *Tiered {
	return &Tiered{Hot: hot, Cold: cold}
}

func (t *Tiered) String() string {
	return "tiered(" + t.Hot.String() + "," + t.Cold.String() + ")"
}

func (t *Tiered) Has(ctx context.Context, key string) (bool, error) {
	has, err := t.Hot.Has(ctx, key)
	if err != nil || has {
		return has, err
	}
	return t.Cold.Has(ctx, key)
}

func (t *Tiered) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := t.Hot.Get(ctx, key)
	if err == nil {
		return rdr, nil
	}
	if !errors.Is(err, status.ErrNotFound) {
		return nil, err
	}
	return t.Cold.Get(ctx, key)
}

// Put writes to the hot tier. An exclusive put fails if the key exists in either tier.
func (t *Tiered) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if exclusive {
		has, err := t.Cold.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("%q", key)
		}
	}
	return t.Hot.Put(ctx, key, source, exclusive)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	return multierr.Append(t.Hot.Delete(ctx, key), t.Cold.Delete(ctx, key))
}

// Keys lists the union of keys from both tiers, sorted
func (t *Tiered) Keys(ctx context.Context) ([]string, error) {
	hot, err := t.Hot.Keys(ctx)
	if err != nil {
		return nil, err
	}
	cold, err := t.Cold.Keys(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(hot)+len(cold))
	keys := make([]string, 0, len(hot)+len(cold))
	for _, list := range [][]string{hot, cold} {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *Tiered) Clear(ctx context.Context) error {
	return multierr.Append(t.Hot.Clear(ctx), t.Cold.Clear(ctx))
}
