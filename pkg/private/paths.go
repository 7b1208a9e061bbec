package private

import (
	"context"
	"strings"
	"time"

	"github.com/oneconcern/privfs/pkg/private/status"
)

// Entry of a directory listing
type Entry struct {
	Name string
	Ref  Ref
}

func validatePath(path []string) error {
	for _, segment := range path {
		if segment == "" || segment == "." || segment == ".." || strings.ContainsRune(segment, '/') {
			return status.ErrInvalidPath.WrapMessage("%q", strings.Join(path, "/"))
		}
	}
	return nil
}

// SplitPath splits a slash-separated path, ignoring leading and trailing slashes
func SplitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (f *Forest) loadDirectory(ctx context.Context, ref Ref) (*Directory, error) {
	node, err := f.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *Directory:
		return n, nil
	case *File:
		return nil, status.ErrNotADirectory.WrapMessage("%v", ref)
	default:
		return nil, status.ErrInvalidNode.WrapMessage("unsupported node %T", node)
	}
}

// resolvePath walks from the directory at root down to the node at path
func (f *Forest) resolvePath(ctx context.Context, root Ref, path []string) (Node, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	ref := root
	for i, name := range path {
		dir, err := f.loadDirectory(ctx, ref)
		if err != nil {
			return nil, err
		}
		child, ok := dir.Entries[name]
		if !ok {
			return nil, status.ErrNotFound.WrapMessage("%q", strings.Join(path[:i+1], "/"))
		}
		ref = child
	}
	return f.Load(ctx, ref)
}

// editFunc updates the entry name of dir, and tells if anything changed
type editFunc func(f *Forest, dir *Directory, name string) (*Forest, bool, error)

// edit applies fn to the parent directory of the last path segment, then stores every
// directory from there up to root. Missing intermediate directories are created when create is set.
//
// When fn changes nothing, the forest and root are returned unchanged.
func (f *Forest) edit(ctx context.Context, root Ref, path []string, now time.Time, create bool, fn editFunc) (*Forest, Ref, error) {
	if len(path) == 0 {
		return nil, Ref{}, status.ErrInvalidPath.WrapMessage("empty path")
	}
	if err := validatePath(path); err != nil {
		return nil, Ref{}, err
	}
	dir, err := f.loadDirectory(ctx, root)
	if err != nil {
		return nil, Ref{}, err
	}
	dir = dir.clone().(*Directory)

	out := f
	changed := false
	if len(path) == 1 {
		if out, changed, err = fn(f, dir, path[0]); err != nil {
			return nil, Ref{}, err
		}
	} else {
		name := path[0]
		child, ok := dir.Entries[name]
		if !ok {
			if !create {
				return nil, Ref{}, status.ErrNotFound.WrapMessage("%q", name)
			}
			sub, err := NewDirectory(dir.Header.Name, now, f.rng)
			if err != nil {
				return nil, Ref{}, err
			}
			if out, _, child, err = out.Put(ctx, sub); err != nil {
				return nil, Ref{}, err
			}
		}
		var updated Ref
		if out, updated, err = out.edit(ctx, child, path[1:], now, create, fn); err != nil {
			return nil, Ref{}, err
		}
		if !updated.Equal(dir.Entries[name]) {
			dir.Entries[name] = updated
			changed = true
		}
	}

	if !changed {
		return f, root, nil
	}
	dir.Metadata.Touch(now)
	out, _, ref, err := out.Put(ctx, dir)
	if err != nil {
		return nil, Ref{}, err
	}
	return out, ref, nil
}

// Mkdir creates a directory and its missing parents under the directory at root.
// An existing directory is left untouched.
func (f *Forest) Mkdir(ctx context.Context, root Ref, path []string, now time.Time) (*Forest, Ref, error) {
	return f.edit(ctx, root, path, now, true, func(f *Forest, dir *Directory, name string) (*Forest, bool, error) {
		if existing, ok := dir.Entries[name]; ok {
			if _, err := f.loadDirectory(ctx, existing); err != nil {
				return nil, false, err
			}
			return f, false, nil
		}
		sub, err := NewDirectory(dir.Header.Name, now, f.rng)
		if err != nil {
			return nil, false, err
		}
		out, _, ref, err := f.Put(ctx, sub)
		if err != nil {
			return nil, false, err
		}
		dir.Entries[name] = ref
		return out, true, nil
	})
}

// Write the content of a file, creating it and its missing parents as needed
func (f *Forest) Write(ctx context.Context, root Ref, path []string, content []byte, now time.Time) (*Forest, Ref, error) {
	return f.edit(ctx, root, path, now, true, func(f *Forest, dir *Directory, name string) (*Forest, bool, error) {
		var file *File
		if existing, ok := dir.Entries[name]; ok {
			node, err := f.Load(ctx, existing)
			if err != nil {
				return nil, false, err
			}
			switch n := node.(type) {
			case *File:
				file = n.clone().(*File)
				file.Content = append([]byte(nil), content...)
				file.External = nil
				file.Metadata.Touch(now)
			case *Directory:
				return nil, false, status.ErrNotAFile.WrapMessage("%q", name)
			default:
				return nil, false, status.ErrInvalidNode.WrapMessage("unsupported node %T", node)
			}
		} else {
			var err error
			if file, err = NewFile(dir.Header.Name, now, content, f.rng); err != nil {
				return nil, false, err
			}
		}

		out, _, ref, err := f.Put(ctx, file)
		if err != nil {
			return nil, false, err
		}
		dir.Entries[name] = ref
		return out, true, nil
	})
}

// Rm unlinks an entry from its parent directory. Revisions of the entry remain in the forest.
func (f *Forest) Rm(ctx context.Context, root Ref, path []string, now time.Time) (*Forest, Ref, error) {
	return f.edit(ctx, root, path, now, false, func(f *Forest, dir *Directory, name string) (*Forest, bool, error) {
		if _, ok := dir.Entries[name]; !ok {
			return nil, false, status.ErrNotFound.WrapMessage("%q", name)
		}
		delete(dir.Entries, name)
		return f, true, nil
	})
}

// Read the content of the file at path
func (f *Forest) Read(ctx context.Context, root Ref, path []string) ([]byte, error) {
	node, err := f.resolvePath(ctx, root, path)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *File:
		return f.Content(ctx, n)
	case *Directory:
		return nil, status.ErrNotAFile.WrapMessage("%q", strings.Join(path, "/"))
	default:
		return nil, status.ErrInvalidNode.WrapMessage("unsupported node %T", node)
	}
}

// Ls lists the entries of the directory at path, sorted by name
func (f *Forest) Ls(ctx context.Context, root Ref, path []string) ([]Entry, error) {
	node, err := f.resolvePath(ctx, root, path)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *Directory:
		entries := make([]Entry, 0, len(n.Entries))
		for _, name := range n.Names() {
			entries = append(entries, Entry{Name: name, Ref: n.Entries[name]})
		}
		return entries, nil
	case *File:
		return nil, status.ErrNotADirectory.WrapMessage("%q", strings.Join(path, "/"))
	default:
		return nil, status.ErrInvalidNode.WrapMessage("unsupported node %T", node)
	}
}

// NewRoot stores a new, empty root directory
func (f *Forest) NewRoot(ctx context.Context, now time.Time) (*Forest, Ref, error) {
	root, err := NewDirectory(f.EmptyName(), now, f.rng)
	if err != nil {
		return nil, Ref{}, err
	}
	out, _, ref, err := f.Put(ctx, root)
	return out, ref, err
}
