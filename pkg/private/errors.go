package private

import (
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/hamt"
)

// LookupError reports a failed read at a label, with the candidate CIDs found there
type LookupError struct {
	Label hamt.Digest
	CIDs  []cid.Cid
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("label %v (%d candidates): %v", e.Label, len(e.CIDs), e.Err)
}

// Unwrap the cause
func (e *LookupError) Unwrap() error {
	return e.Err
}

// MergeConflict exposes diverging revisions written at the same label.
//
// It is returned as data by Resolve: reconciling file content is left to the caller.
// CIDs and Nodes are aligned, ordered by CID bytes. When the revisions are directories,
// Entries lists the names bound to file revisions that cannot be ordered.
type MergeConflict struct {
	Label   hamt.Digest
	CIDs    []cid.Cid
	Nodes   []Node
	Entries []EntryConflict
}

// EntryConflict is a path, relative to the conflicting directory, bound to revisions
// that cannot be ordered. Refs are ordered by CID bytes.
type EntryConflict struct {
	Path string
	Refs []Ref
}

func (c *MergeConflict) Error() string {
	parts := make([]string, len(c.CIDs))
	for i, k := range c.CIDs {
		parts[i] = k.String()
	}
	msg := fmt.Sprintf("merge conflict at label %v: %s", c.Label, strings.Join(parts, ", "))
	if len(c.Entries) == 0 {
		return msg
	}
	paths := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		paths[i] = fmt.Sprintf("%s (%d revisions)", e.Path, len(e.Refs))
	}
	return msg + ", entries: " + strings.Join(paths, ", ")
}

// Divergence is a label left with several revisions by a merge
type Divergence struct {
	Label hamt.Digest
	CIDs  []cid.Cid
}
