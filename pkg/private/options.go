package private

import (
	"crypto/rand"
	"io"

	"github.com/oneconcern/privfs/pkg/blockstore"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/ratchet"
	"go.uber.org/zap"
)

type settings struct {
	l            *zap.Logger
	rng          io.Reader
	hamtOpts     []hamt.Option
	searchBudget int
	metrics      bool
	content      blockstore.BlockStore
	inlineLimit  int
	chunkSize    int
}

// Option to configure a forest
type Option func(*settings)

// Logger sets a logger for the forest
func Logger(l *zap.Logger) Option {
	return func(s *settings) {
		s.l = l
	}
}

// Rand sets the source of randomness used for nonces and new node secrets.
// It defaults to crypto/rand.
func Rand(rng io.Reader) Option {
	return func(s *settings) {
		s.rng = rng
	}
}

// HamtOptions configures the HAMT of a new forest. Loaded forests use the parameters of their root.
func HamtOptions(opts ...hamt.Option) Option {
	return func(s *settings) {
		s.hamtOpts = append(s.hamtOpts, opts...)
	}
}

// SearchBudget sets the number of large ratchet steps explored when comparing revisions
func SearchBudget(budget int) Option {
	return func(s *settings) {
		s.searchBudget = budget
	}
}

// WithMetrics toggles metrics collection
func WithMetrics(enabled bool) Option {
	return func(s *settings) {
		s.metrics = enabled
	}
}

// ContentStore sets the block store receiving the chunks of large files.
// It defaults to the block store of the forest.
func ContentStore(bs blockstore.BlockStore) Option {
	return func(s *settings) {
		s.content = bs
	}
}

// Chunking sets the largest content kept inline in a file node, and the size of the chunks
// of larger content. Non-positive values keep the defaults.
func Chunking(inlineLimit, chunkSize int) Option {
	return func(s *settings) {
		if inlineLimit > 0 {
			s.inlineLimit = inlineLimit
		}
		if chunkSize > 0 {
			s.chunkSize = chunkSize
		}
	}
}

func defaultSettings() settings {
	return settings{
		rng:          rand.Reader,
		searchBudget: ratchet.DefaultSearchBudget,
		inlineLimit:  DefaultInlineLimit,
		chunkSize:    DefaultChunkSize,
	}
}
