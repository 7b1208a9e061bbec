package private

import (
	"bytes"
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/blang/semver"
	"github.com/ipfs/go-cid"
	"github.com/oneconcern/privfs/pkg/accumulator"
	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/dlogger"
	"github.com/oneconcern/privfs/pkg/encoding"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/metrics"
	"github.com/oneconcern/privfs/pkg/private/status"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ForestVersion is the format of forest root blocks written by this package.
// Roots with the same major version can be loaded.
var ForestVersion = semver.MustParse("1.1.0")

const (
	forestStructure = "privfs/forest"

	// maxParallelReads bounds the candidate blocks fetched at once for a label
	maxParallelReads = 8
)

// Forest maps labels to the set of encrypted blocks written at that label.
//
// A Forest is a persistent value: writes return a new forest and leave the receiver unchanged.
type Forest struct {
	metrics.Enable
	settings
	bs    blockstore.BlockStore
	setup *accumulator.Setup
	trie  *hamt.Hamt
	m     *M
}

// Revision is one decrypted candidate at a label
type Revision struct {
	CID  cid.Cid
	Node Node
}

type forestRoot struct {
	_msgpack struct{} `msgpack:",as_array"`

	Structure string
	Version   string
	Setup     []byte
	Hamt      []byte
}

func newForest(bs blockstore.BlockStore, setup *accumulator.Setup, opts []Option) (*Forest, settings) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(&s)
	}
	if s.l == nil {
		s.l = dlogger.MustGetLogger("info")
	}
	if s.content == nil {
		s.content = bs
	}
	f := &Forest{settings: s, bs: bs, setup: setup}
	f.EnableMetrics(s.metrics)
	if f.MetricsEnabled() {
		f.m = f.EnsureMetrics("private", &M{}).(*M)
	}
	return f, s
}

// NewForest creates an empty forest
func NewForest(bs blockstore.BlockStore, setup *accumulator.Setup, opts ...Option) (*Forest, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}
	f, s := newForest(bs, setup, opts)
	trie, err := hamt.New(bs, append([]hamt.Option{hamt.Logger(s.l)}, s.hamtOpts...)...)
	if err != nil {
		return nil, err
	}
	f.trie = trie
	return f, nil
}

// LoadForest loads a forest from its root block
func LoadForest(ctx context.Context, bs blockstore.BlockStore, root cid.Cid, opts ...Option) (*Forest, error) {
	data, err := bs.GetBlock(ctx, root)
	if err != nil {
		return nil, err
	}
	var r forestRoot
	if err = encoding.Unmarshal(data, &r); err != nil {
		return nil, status.ErrInvalidForest.Wrap(err)
	}
	if r.Structure != forestStructure {
		return nil, status.ErrInvalidForest.WrapMessage("unsupported structure %q", r.Structure)
	}
	version, err := semver.ParseTolerant(r.Version)
	if err != nil {
		return nil, status.ErrInvalidForest.Wrap(err)
	}
	if version.Major != ForestVersion.Major {
		return nil, status.ErrInvalidForest.WrapMessage("unsupported version %v, expected %d.x", version, ForestVersion.Major)
	}
	setup, err := accumulator.SetupFromBytes(r.Setup)
	if err != nil {
		return nil, status.ErrInvalidForest.Wrap(err)
	}
	hamtRoot, err := cid.Cast(r.Hamt)
	if err != nil {
		return nil, status.ErrInvalidForest.Wrap(err)
	}

	f, s := newForest(bs, setup, opts)
	if f.trie, err = hamt.Load(ctx, bs, hamtRoot, hamt.Logger(s.l)); err != nil {
		return nil, err
	}
	s.l.Debug("forest loaded", zap.Stringer("root", root))
	return f, nil
}

// Store the forest, returning the CID of its root block
func (f *Forest) Store(ctx context.Context) (cid.Cid, error) {
	hamtRoot, err := f.trie.Store(ctx)
	if err != nil {
		return cid.Undef, err
	}
	data, err := encoding.Marshal(&forestRoot{
		Structure: forestStructure,
		Version:   ForestVersion.String(),
		Setup:     f.setup.Bytes(),
		Hamt:      hamtRoot.Bytes(),
	})
	if err != nil {
		return cid.Undef, err
	}
	return f.bs.PutBlock(ctx, data, blockstore.MsgPack)
}

// Setup of the name accumulator shared by all labels of this forest
func (f *Forest) Setup() *accumulator.Setup {
	return f.setup
}

// EmptyName is the parent name of root directories
func (f *Forest) EmptyName() accumulator.Name {
	return accumulator.NewName()
}

// BlockStore holding the forest
func (f *Forest) BlockStore() blockstore.BlockStore {
	return f.bs
}

// Labels lists all labels with their CIDs, in label order
func (f *Forest) Labels(ctx context.Context) ([]hamt.Pair, error) {
	return f.trie.Entries(ctx)
}

func (f *Forest) with(trie *hamt.Hamt) *Forest {
	c := *f
	c.trie = trie
	return &c
}

// Put stores the next revision of a node.
//
// The node's ratchet is advanced one generation on a copy, which is returned with the ref of the new revision.
// File content larger than the inline limit is sealed in chunks written to the content store: the returned
// file locates it with External. A file with empty inline content keeps its external content unchanged.
func (f *Forest) Put(ctx context.Context, node Node) (_ *Forest, _ Node, _ Ref, err error) {
	if f.MetricsEnabled() {
		defer func(start time.Time) {
			f.m.Usage.UsedAll(start, "Put")(err)
		}(time.Now())
	}

	next := node.clone()
	h := next.header()
	h.Ratchet = h.Ratchet.Advance()
	key := h.TemporalKey()
	label := h.Label(f.setup)

	if file, ok := next.(*File); ok && len(file.Content) > 0 {
		file.External = nil
		if len(file.Content) > f.inlineLimit {
			if file.External, err = f.externalize(ctx, key, file.Content); err != nil {
				return nil, nil, Ref{}, err
			}
			file.Content = nil
		}
	}

	block, err := seal(key, next, f.rng)
	if err != nil {
		return nil, nil, Ref{}, err
	}
	c, err := f.bs.PutBlock(ctx, block, blockstore.Raw)
	if err != nil {
		return nil, nil, Ref{}, err
	}
	trie, err := f.trie.Set(ctx, label, c)
	if err != nil {
		return nil, nil, Ref{}, err
	}

	f.l.Debug("node stored", zap.Stringer("kind", next.Kind()), zap.String("label", hex.EncodeToString(label[:])), zap.Stringer("cid", c))
	if f.MetricsEnabled() {
		f.m.Volume.Nodes.Inc("put")
		f.m.Volume.Nodes.Size(int64(len(block)), "put")
	}
	return f.with(trie), next, Ref{Label: label, TemporalKey: key, ContentCID: c}, nil
}

// Get all revisions at the label of ref that decrypt with its key, ordered by CID bytes.
//
// Several nodes are returned when concurrent writers raced at this label.
func (f *Forest) Get(ctx context.Context, ref Ref) ([]Node, error) {
	revisions, err := f.Candidates(ctx, ref)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, len(revisions))
	for i, rev := range revisions {
		nodes[i] = rev.Node
	}
	return nodes, nil
}

// Candidates are the revisions at the label of ref that decrypt with its key, ordered by CID bytes.
//
// It fails with status.ErrNotFound when the label is absent, and with status.ErrDecryptionFailure
// when no candidate decrypts. Both come as a *LookupError.
func (f *Forest) Candidates(ctx context.Context, ref Ref) (_ []Revision, err error) {
	if f.MetricsEnabled() {
		defer func(start time.Time) {
			f.m.Usage.UsedAll(start, "Get")(err)
		}(time.Now())
	}

	cids, err := f.trie.Get(ctx, ref.Label)
	if err != nil {
		if errors.Is(err, hamt.ErrNotFound) {
			return nil, &LookupError{Label: ref.Label, Err: status.ErrNotFound}
		}
		return nil, err
	}

	type outcome struct {
		node Node
		err  error
	}
	outcomes := make([]outcome, len(cids))
	var g errgroup.Group
	g.SetLimit(maxParallelReads)
	for i, c := range cids {
		g.Go(func() error {
			data, err := f.bs.GetBlock(ctx, c)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].node, outcomes[i].err = open(ref.TemporalKey, data)
			return nil
		})
	}
	_ = g.Wait()

	var (
		revisions  []Revision
		failures   error
		sealedOnly = true
	)
	for i, o := range outcomes {
		if o.err != nil {
			failures = multierr.Append(failures, o.err)
			if !errors.Is(o.err, status.ErrDecryptionFailure) {
				sealedOnly = false
			} else if f.MetricsEnabled() {
				f.m.Volume.Conflicts.Failed("get")
			}
			continue
		}
		revisions = append(revisions, Revision{CID: cids[i], Node: o.node})
	}

	if len(revisions) == 0 {
		cause := failures
		if sealedOnly {
			cause = status.ErrDecryptionFailure.Wrap(failures)
		}
		return nil, &LookupError{Label: ref.Label, CIDs: cids, Err: cause}
	}
	if failures != nil {
		f.l.Warn("some candidates could not be read",
			zap.String("label", hex.EncodeToString(ref.Label[:])),
			zap.Int("candidates", len(cids)),
			zap.Error(failures),
		)
	}
	return revisions, nil
}

// Load the exact revision designated by ref
func (f *Forest) Load(ctx context.Context, ref Ref) (Node, error) {
	data, err := f.bs.GetBlock(ctx, ref.ContentCID)
	if err != nil {
		if errors.Is(err, blockstore.ErrBlockNotFound) {
			return nil, &LookupError{Label: ref.Label, CIDs: []cid.Cid{ref.ContentCID}, Err: status.ErrNotFound.Wrap(err)}
		}
		return nil, err
	}
	node, err := open(ref.TemporalKey, data)
	if err != nil {
		return nil, &LookupError{Label: ref.Label, CIDs: []cid.Cid{ref.ContentCID}, Err: err}
	}
	return node, nil
}

// Remove unlinks the revision designated by ref. Its block is left in the block store.
func (f *Forest) Remove(ctx context.Context, ref Ref) (*Forest, error) {
	trie, err := f.trie.Remove(ctx, ref.Label, ref.ContentCID)
	if err != nil {
		return nil, err
	}
	return f.with(trie), nil
}

// Merge two forests: every label keeps the union of the CIDs written on both sides.
//
// Labels changed on either side and left with several CIDs are reported as divergences, in label
// order, to be reconciled with Resolve by a holder of the keys. The report does not depend on
// which forest receives the merge. Both forests must share the same block store and accumulator setup.
func (f *Forest) Merge(ctx context.Context, other *Forest) (_ *Forest, _ []Divergence, err error) {
	if f.MetricsEnabled() {
		defer func(start time.Time) {
			f.m.Usage.UsedAll(start, "Merge")(err)
		}(time.Now())
	}

	if !f.setup.Equal(other.setup) {
		return nil, nil, status.ErrSetupMismatch
	}
	merged, err := f.trie.Merge(ctx, other.trie)
	if err != nil {
		return nil, nil, err
	}

	divergences, err := divergedLabels(ctx, merged, f.trie, other.trie)
	if err != nil {
		return nil, nil, err
	}

	if len(divergences) > 0 {
		f.l.Info("forests diverged", zap.Int("labels", len(divergences)))
		if f.MetricsEnabled() {
			f.m.Volume.Conflicts.Diverged(len(divergences), "merge")
		}
	}
	return f.with(merged), divergences, nil
}

// divergedLabels lists the labels that hold several CIDs in merged and differ from at least one side
func divergedLabels(ctx context.Context, merged *hamt.Hamt, sides ...*hamt.Hamt) ([]Divergence, error) {
	found := make(map[hamt.Digest][]cid.Cid)
	for _, side := range sides {
		changes, err := hamt.Diff(ctx, side, merged)
		if err != nil {
			return nil, err
		}
		for _, change := range changes {
			if len(change.New) > 1 {
				found[change.Key] = change.New
			}
		}
	}
	divergences := make([]Divergence, 0, len(found))
	for label, cids := range found {
		divergences = append(divergences, Divergence{Label: label, CIDs: cids})
	}
	sort.Slice(divergences, func(i, j int) bool {
		return bytes.Compare(divergences[i].Label[:], divergences[j].Label[:]) < 0
	})
	return divergences, nil
}
