package hamt

import "go.uber.org/zap"

const (
	// DefaultBitWidth is the number of digest bits consumed per level: a fan-out of 16
	DefaultBitWidth = 4
	// DefaultBucketSize is the maximum number of keys held inline by a pointer
	DefaultBucketSize = 3

	maxBitWidth = 8
)

type settings struct {
	bitWidth   int
	bucketSize int
	l          *zap.Logger
}

// Option to configure a trie
type Option func(*settings)

// BitWidth sets the number of digest bits consumed per level, between 1 and 8
func BitWidth(n int) Option {
	return func(s *settings) {
		s.bitWidth = n
	}
}

// BucketSize sets the maximum number of keys held inline by a pointer
func BucketSize(n int) Option {
	return func(s *settings) {
		s.bucketSize = n
	}
}

// Logger sets a logger for this trie
func Logger(l *zap.Logger) Option {
	return func(s *settings) {
		s.l = l
	}
}

func defaultSettings() settings {
	return settings{
		bitWidth:   DefaultBitWidth,
		bucketSize: DefaultBucketSize,
	}
}

func (s settings) validate() error {
	if s.bitWidth < 1 || s.bitWidth > maxBitWidth {
		return ErrInvalidOption.WrapMessage("bit width must be within [1, %d], got %d", maxBitWidth, s.bitWidth)
	}
	if s.bucketSize < 1 {
		return ErrInvalidOption.WrapMessage("bucket size must be positive, got %d", s.bucketSize)
	}
	return nil
}
