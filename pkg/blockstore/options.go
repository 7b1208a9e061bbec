package blockstore

import "go.uber.org/zap"

// Option to configure a block store
type Option func(*Store)

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

// VerifyHash enables hash verification of blocks on reads. It is enabled by default.
func VerifyHash(enabled bool) Option {
	return func(s *Store) {
		s.verifyHash = enabled
	}
}

// WithMetrics toggles metrics collection
func WithMetrics(enabled bool) Option {
	return func(s *Store) {
		s.EnableMetrics(enabled)
	}
}
