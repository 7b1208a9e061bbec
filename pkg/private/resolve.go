package private

import (
	"bytes"
	"context"
	"encoding/hex"
	"path"
	"sort"

	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/private/status"
	"github.com/oneconcern/privfs/pkg/ratchet"
	"go.uber.org/zap"
)

// Resolution of the revisions found at a label.
//
// When Conflict is set, the forest is unchanged and Ref and Node are zero.
type Resolution struct {
	Ref      Ref
	Node     Node
	Merged   bool
	Conflict *MergeConflict
}

// Resolved tells if the label converged to a single revision
func (r Resolution) Resolved() bool {
	return r.Conflict == nil
}

// Resolve reconciles the revisions written by concurrent writers at the label of ref.
//
// Identical revisions collapse to the one with the smallest CID. Diverging directories are
// merged into a new revision: entries are united, and for a name bound to different refs
// the later generation wins. Subdirectories whose generations cannot be ordered are merged
// the same way. Any file among two or more diverging revisions, or bound to a name next to
// a revision it cannot be ordered with, is a MergeConflict, returned as data.
func (f *Forest) Resolve(ctx context.Context, ref Ref) (*Forest, Resolution, error) {
	revisions, err := f.Candidates(ctx, ref)
	if err != nil {
		return nil, Resolution{}, err
	}

	distinct, duplicates, err := dedupe(revisions)
	if err != nil {
		return nil, Resolution{}, err
	}

	if len(distinct) == 1 {
		out := f
		for _, dup := range duplicates {
			if out, err = out.Remove(ctx, Ref{Label: ref.Label, TemporalKey: ref.TemporalKey, ContentCID: dup.CID}); err != nil {
				return nil, Resolution{}, err
			}
		}
		keep := distinct[0]
		return out, Resolution{
			Ref:  Ref{Label: ref.Label, TemporalKey: ref.TemporalKey, ContentCID: keep.CID},
			Node: keep.Node,
		}, nil
	}

	dirs := make([]*Directory, 0, len(distinct))
	for _, rev := range distinct {
		switch node := rev.Node.(type) {
		case *Directory:
			dirs = append(dirs, node)
		case *File:
			conflict := &MergeConflict{Label: ref.Label}
			for _, r := range distinct {
				conflict.CIDs = append(conflict.CIDs, r.CID)
				conflict.Nodes = append(conflict.Nodes, r.Node)
			}
			f.l.Info("merge conflict", zap.String("label", hex.EncodeToString(ref.Label[:])), zap.Int("revisions", len(distinct)))
			return f, Resolution{Conflict: conflict}, nil
		default:
			return nil, Resolution{}, status.ErrInvalidNode.WrapMessage("unsupported node %T", rev.Node)
		}
	}

	m := &directoryMerger{f: f, conflicts: make(map[string][]Ref)}
	merged, err := m.merge(ctx, "", dirs)
	if err != nil {
		return nil, Resolution{}, err
	}
	if len(m.conflicts) > 0 {
		conflict := &MergeConflict{Label: ref.Label, Entries: m.entryConflicts()}
		for _, r := range distinct {
			conflict.CIDs = append(conflict.CIDs, r.CID)
			conflict.Nodes = append(conflict.Nodes, r.Node)
		}
		f.l.Info("merge conflict", zap.String("label", hex.EncodeToString(ref.Label[:])), zap.Int("entries", len(conflict.Entries)))
		return f, Resolution{Conflict: conflict}, nil
	}

	out, node, newRef, err := m.f.Put(ctx, merged)
	if err != nil {
		return nil, Resolution{}, err
	}
	f.l.Debug("directories merged", zap.Int("revisions", len(dirs)), zap.Stringer("ref", newRef))
	return out, Resolution{Ref: newRef, Node: node, Merged: true}, nil
}

// dedupe groups revisions by plaintext, keeping the first of each group
func dedupe(revisions []Revision) (distinct, duplicates []Revision, err error) {
	seen := make([][]byte, 0, len(revisions))
	for _, rev := range revisions {
		pt, err := encodePlaintext(rev.Node)
		if err != nil {
			return nil, nil, err
		}
		dup := false
		for _, s := range seen {
			if bytes.Equal(s, pt) {
				dup = true
				break
			}
		}
		if dup {
			duplicates = append(duplicates, rev)
			continue
		}
		seen = append(seen, pt)
		distinct = append(distinct, rev)
	}
	return distinct, duplicates, nil
}

// directoryMerger unites diverging directories, storing merged subdirectories in f.
// Names bound to file revisions that cannot be ordered are collected in conflicts, by path.
type directoryMerger struct {
	f         *Forest
	conflicts map[string][]Ref
}

func (m *directoryMerger) merge(ctx context.Context, prefix string, dirs []*Directory) (*Directory, error) {
	out := dirs[0].clone().(*Directory)
	for _, d := range dirs[1:] {
		out.Metadata = out.Metadata.merge(d.Metadata)
		for _, name := range d.Names() {
			theirs := d.Entries[name]
			ours, ok := out.Entries[name]
			if !ok {
				out.Entries[name] = theirs
				continue
			}
			if ours.Equal(theirs) {
				continue
			}
			picked, err := m.pick(ctx, path.Join(prefix, name), ours, theirs)
			if err != nil {
				return nil, err
			}
			out.Entries[name] = picked
		}
	}
	return out, nil
}

// pick the entry with the later generation. Entries that cannot be ordered are merged when
// both are directories, and recorded as a conflict otherwise.
func (m *directoryMerger) pick(ctx context.Context, p string, a, b Ref) (Ref, error) {
	if bytes.Compare(b.ContentCID.Bytes(), a.ContentCID.Bytes()) < 0 {
		a, b = b, a
	}
	na, err := m.f.Load(ctx, a)
	if err != nil {
		return Ref{}, err
	}
	nb, err := m.f.Load(ctx, b)
	if err != nil {
		return Ref{}, err
	}

	steps, err := na.header().Ratchet.Compare(nb.header().Ratchet, m.f.searchBudget)
	switch {
	case err == nil && steps > 0:
		return b, nil
	case err == nil && steps < 0:
		return a, nil
	case err != nil:
		m.f.l.Debug("generations cannot be ordered", zap.String("path", p), zap.Error(err))
	}

	da, aDir := na.(*Directory)
	db, bDir := nb.(*Directory)
	if aDir && bDir {
		merged, err := m.merge(ctx, p, []*Directory{da, db})
		if err != nil {
			return Ref{}, err
		}
		var ref Ref
		if m.f, _, ref, err = m.f.Put(ctx, merged); err != nil {
			return Ref{}, err
		}
		return ref, nil
	}

	m.conflicts[p] = appendRef(appendRef(m.conflicts[p], a), b)
	return a, nil
}

func appendRef(refs []Ref, ref Ref) []Ref {
	for _, r := range refs {
		if r.Equal(ref) {
			return refs
		}
	}
	return append(refs, ref)
}

// entryConflicts sorted by path, with refs ordered by CID bytes
func (m *directoryMerger) entryConflicts() []EntryConflict {
	paths := make([]string, 0, len(m.conflicts))
	for p := range m.conflicts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]EntryConflict, 0, len(paths))
	for _, p := range paths {
		refs := m.conflicts[p]
		sort.Slice(refs, func(i, j int) bool {
			return bytes.Compare(refs[i].ContentCID.Bytes(), refs[j].ContentCID.Bytes()) < 0
		})
		out = append(out, EntryConflict{Path: p, Refs: refs})
	}
	return out
}

// Latest follows the generations of the node at ref, up to limit steps, and returns the last one
// written in this forest. When several revisions share that generation, the greatest CID is picked.
func (f *Forest) Latest(ctx context.Context, ref Ref, limit int) (Ref, error) {
	node, err := f.Load(ctx, ref)
	if err != nil {
		return Ref{}, err
	}
	h := node.header().Clone()
	latest := ref
	for i := 0; i < limit; i++ {
		h = h.at(h.Ratchet.Advance())
		label := h.Label(f.setup)
		cids, err := f.trie.Get(ctx, label)
		if errors.Is(err, hamt.ErrNotFound) {
			break
		}
		if err != nil {
			return Ref{}, err
		}
		latest = Ref{Label: label, TemporalKey: h.TemporalKey(), ContentCID: cids[len(cids)-1]}
	}
	return latest, nil
}

// Revisions lists the refs of every revision written after the one at ref, up to the generation of newer.
//
// At most limit generations are explored.
func (f *Forest) Revisions(ctx context.Context, ref Ref, newer *ratchet.Ratchet, limit int) ([]Ref, error) {
	node, err := f.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	h := node.header()
	generations, err := ratchet.Between(h.Ratchet, newer, limit)
	if err != nil {
		return nil, err
	}

	var refs []Ref
	for _, r := range generations {
		g := h.at(r)
		label := g.Label(f.setup)
		cids, err := f.trie.Get(ctx, label)
		if errors.Is(err, hamt.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		key := g.TemporalKey()
		for _, c := range cids {
			refs = append(refs, Ref{Label: label, TemporalKey: key, ContentCID: c})
		}
	}
	return refs, nil
}
