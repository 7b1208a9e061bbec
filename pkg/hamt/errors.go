package hamt

import (
	"encoding/hex"
	"fmt"

	"github.com/oneconcern/privfs/pkg/errors"
)

var (
	// ErrNotFound is returned when a key is absent from the trie
	ErrNotFound = errors.New("key not found")

	// ErrHashDepthExhausted is returned when colliding digests cannot be split any further
	ErrHashDepthExhausted = errors.New("hash depth exhausted")

	// ErrInvalidNode is returned when decoding a malformed node or root block
	ErrInvalidNode = errors.New("invalid hamt node")

	// ErrInvalidOption is returned when configuring a trie with out of range parameters
	ErrInvalidOption = errors.New("invalid hamt option")

	// ErrIncompatible is returned when merging or comparing tries with different parameters
	ErrIncompatible = errors.New("incompatible hamt parameters")
)

// DepthError reports digests colliding down to the maximum depth of the trie
type DepthError struct {
	Key   Digest
	Depth int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("%v: key %s at depth %d", ErrHashDepthExhausted, hex.EncodeToString(e.Key[:]), e.Depth)
}

// Unwrap to ErrHashDepthExhausted
func (e *DepthError) Unwrap() error {
	return ErrHashDepthExhausted
}
