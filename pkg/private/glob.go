package private

import (
	"context"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar"
	"github.com/oneconcern/privfs/pkg/private/status"
)

// WalkFunc is called for every entry found by Walk, with its slash-separated path relative to the root
type WalkFunc func(p string, entry Entry, node Node) error

// Walk visits every entry below the directory at root, depth first in name order
func (f *Forest) Walk(ctx context.Context, root Ref, fn WalkFunc) error {
	return f.walk(ctx, root, "", fn)
}

func (f *Forest) walk(ctx context.Context, ref Ref, prefix string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := f.loadDirectory(ctx, ref)
	if err != nil {
		return err
	}
	for _, name := range dir.Names() {
		entry := Entry{Name: name, Ref: dir.Entries[name]}
		node, err := f.Load(ctx, entry.Ref)
		if err != nil {
			return err
		}
		p := path.Join(prefix, name)
		if err := fn(p, entry, node); err != nil {
			return err
		}
		if _, ok := node.(*Directory); ok {
			if err := f.walk(ctx, entry.Ref, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Glob returns the sorted paths below the directory at root matching pattern.
//
// "*" matches within a path segment, "**" matches any number of segments.
func (f *Forest) Glob(ctx context.Context, root Ref, pattern string) ([]string, error) {
	var matches []string
	err := f.Walk(ctx, root, func(p string, _ Entry, _ Node) error {
		ok, err := doublestar.Match(pattern, p)
		if err != nil {
			return status.ErrInvalidPath.WrapMessage("pattern %q: %v", pattern, err)
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
