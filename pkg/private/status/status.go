// Package status declares the errors returned by the private file system tree.
package status

import "github.com/oneconcern/privfs/pkg/errors"

var (
	// ErrNotFound is returned when a label, a revision or a path entry is absent
	ErrNotFound = errors.New("not found")

	// ErrDecryptionFailure is returned when a block does not decrypt: wrong key or corrupted block
	ErrDecryptionFailure = errors.New("decryption failure: wrong key or corrupted block")

	// ErrInvalidNode is returned when an authenticated plaintext does not decode into a node
	ErrInvalidNode = errors.New("invalid private node")

	// ErrNotADirectory is returned when a path walks through a file
	ErrNotADirectory = errors.New("not a directory")

	// ErrNotAFile is returned when file content is expected from a directory
	ErrNotAFile = errors.New("not a file")

	// ErrSetupMismatch is returned when combining forests built over different accumulator setups
	ErrSetupMismatch = errors.New("accumulator setups differ")

	// ErrInvalidPath is returned for empty paths or malformed path segments
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidForest is returned when decoding a malformed forest root block
	ErrInvalidForest = errors.New("invalid forest root")
)
