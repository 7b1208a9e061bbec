package privfs

import (
	"io"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/oneconcern/privfs/pkg/accumulator"
	"github.com/oneconcern/privfs/pkg/errors"
	"github.com/oneconcern/privfs/pkg/hamt"
	"github.com/oneconcern/privfs/pkg/ratchet"
	"github.com/oneconcern/privfs/pkg/storage/localfs"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Storage backends
const (
	BackendLocalFS = "localfs"
	BackendMemory  = "memory"
	BackendBadger  = "badger"
	BackendBolt    = "bolt"
	BackendPebble  = "pebble"

	// EnvPrefix of environment variables overriding the configuration, e.g. PRIVFS_STORAGE_BACKEND
	EnvPrefix = "PRIVFS"
)

// ErrInvalidConfig is returned when a configuration cannot be loaded or used
var ErrInvalidConfig = errors.New("invalid configuration")

// StorageConfig describes where blocks are kept
type StorageConfig struct {
	Backend    string         `mapstructure:"backend" json:"backend,omitempty" yaml:"backend,omitempty"`
	Path       string         `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	SyncWrites bool           `mapstructure:"syncWrites" json:"syncWrites,omitempty" yaml:"syncWrites,omitempty"`
	Cold       *StorageConfig `mapstructure:"cold" json:"cold,omitempty" yaml:"cold,omitempty"`
}

// CacheConfig describes the block read cache
type CacheConfig struct {
	Entries int `mapstructure:"entries" json:"entries,omitempty" yaml:"entries,omitempty"`
	// Size is the largest block kept in cache, in human units (e.g. 1MiB)
	Size string `mapstructure:"size" json:"size,omitempty" yaml:"size,omitempty"`
}

// ContentConfig describes how file content is split from file nodes, in human units (e.g. 64KiB)
type ContentConfig struct {
	// InlineLimit is the largest content kept inside a file node
	InlineLimit string `mapstructure:"inlineLimit" json:"inlineLimit,omitempty" yaml:"inlineLimit,omitempty"`
	ChunkSize   string `mapstructure:"chunkSize" json:"chunkSize,omitempty" yaml:"chunkSize,omitempty"`
}

// HamtConfig describes the shape of new forests
type HamtConfig struct {
	BitWidth   int `mapstructure:"bitWidth" json:"bitWidth,omitempty" yaml:"bitWidth,omitempty"`
	BucketSize int `mapstructure:"bucketSize" json:"bucketSize,omitempty" yaml:"bucketSize,omitempty"`
}

// AccumulatorConfig describes the security parameter of new forests
type AccumulatorConfig struct {
	ModulusBits int `mapstructure:"modulusBits" json:"modulusBits,omitempty" yaml:"modulusBits,omitempty"`
}

// RatchetConfig bounds ratchet comparisons
type RatchetConfig struct {
	SearchBudget int `mapstructure:"searchBudget" json:"searchBudget,omitempty" yaml:"searchBudget,omitempty"`
}

// LogConfig sets the log level
type LogConfig struct {
	Level string `mapstructure:"level" json:"level,omitempty" yaml:"level,omitempty"`
}

// SwitchConfig toggles a feature
type SwitchConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// MetricsConfig enables opencensus metrics, exported to the debug log
type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	BasePath        string        `mapstructure:"basePath" json:"basePath,omitempty" yaml:"basePath,omitempty"`
	ReportingPeriod time.Duration `mapstructure:"reportingPeriod" json:"reportingPeriod,omitempty" yaml:"reportingPeriod,omitempty"`
}

// Config of a privfs runtime
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage" json:"storage,omitempty" yaml:"storage,omitempty"`
	Cache       CacheConfig       `mapstructure:"cache" json:"cache,omitempty" yaml:"cache,omitempty"`
	Content     ContentConfig     `mapstructure:"content" json:"content,omitempty" yaml:"content,omitempty"`
	Hamt        HamtConfig        `mapstructure:"hamt" json:"hamt,omitempty" yaml:"hamt,omitempty"`
	Accumulator AccumulatorConfig `mapstructure:"accumulator" json:"accumulator,omitempty" yaml:"accumulator,omitempty"`
	Ratchet     RatchetConfig     `mapstructure:"ratchet" json:"ratchet,omitempty" yaml:"ratchet,omitempty"`
	Log         LogConfig         `mapstructure:"log" json:"log,omitempty" yaml:"log,omitempty"`
	Metrics     MetricsConfig     `mapstructure:"metrics" json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing     SwitchConfig      `mapstructure:"tracing" json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

var defaults = map[string]interface{}{
	"storage.backend":         BackendLocalFS,
	"storage.path":            localfs.DefaultPath,
	"storage.syncWrites":      false,
	"cache.entries":           1024,
	"cache.size":              "1MiB",
	"content.inlineLimit":     "64KiB",
	"content.chunkSize":       "256KiB",
	"hamt.bitWidth":           hamt.DefaultBitWidth,
	"hamt.bucketSize":         hamt.DefaultBucketSize,
	"accumulator.modulusBits": accumulator.DefaultModulusBits,
	"ratchet.searchBudget":    ratchet.DefaultSearchBudget,
	"log.level":               "info",
	"metrics.enabled":         false,
	"metrics.basePath":        "privfs",
	"metrics.reportingPeriod": time.Minute,
	"tracing.enabled":         false,
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, value := range defaults {
		v.SetDefault(k, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfig is the configuration used when no file is given
func DefaultConfig() *Config {
	var cfg Config
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

// LoadConfig reads a configuration file, with defaults and PRIVFS_* environment overrides.
// An empty path only applies defaults and environment.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, ErrInvalidConfig.Wrap(err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendLocalFS, BackendBadger, BackendBolt, BackendPebble:
		if s.Path == "" {
			return ErrInvalidConfig.WrapMessage("storage backend %q requires a path", s.Backend)
		}
	default:
		return ErrInvalidConfig.WrapMessage("unknown storage backend %q", s.Backend)
	}
	if s.Cold != nil {
		if s.Cold.Cold != nil {
			return ErrInvalidConfig.WrapMessage("cold storage cannot be tiered")
		}
		return s.Cold.validate()
	}
	return nil
}

// Validate the configuration
func (c *Config) Validate() error {
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.Cache.Entries < 0 {
		return ErrInvalidConfig.WrapMessage("negative cache entries")
	}
	if _, err := c.CacheBlockSize(); err != nil {
		return err
	}
	if _, _, err := c.ContentSizes(); err != nil {
		return err
	}
	if c.Hamt.BitWidth < 1 || c.Hamt.BitWidth > 8 || c.Hamt.BucketSize < 1 {
		return ErrInvalidConfig.WrapMessage("hamt bit width %d, bucket size %d", c.Hamt.BitWidth, c.Hamt.BucketSize)
	}
	if c.Accumulator.ModulusBits < accumulator.MinModulusBits {
		return accumulator.ErrInsufficientSecurity.WrapMessage("modulus of %d bits, expected at least %d", c.Accumulator.ModulusBits, accumulator.MinModulusBits)
	}
	if c.Ratchet.SearchBudget < 1 {
		return ErrInvalidConfig.WrapMessage("ratchet search budget must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "none":
	default:
		return ErrInvalidConfig.WrapMessage("unknown log level %q", c.Log.Level)
	}
	return nil
}

// CacheBlockSize is the largest block kept in the read cache, in bytes
func (c *Config) CacheBlockSize() (int, error) {
	size, err := units.RAMInBytes(c.Cache.Size)
	if err != nil {
		return 0, ErrInvalidConfig.Wrap(err)
	}
	return int(size), nil
}

// ContentSizes are the inline limit and the chunk size of file content, in bytes
func (c *Config) ContentSizes() (inlineLimit, chunkSize int, err error) {
	inline, err := units.RAMInBytes(c.Content.InlineLimit)
	if err != nil {
		return 0, 0, ErrInvalidConfig.Wrap(err)
	}
	chunk, err := units.RAMInBytes(c.Content.ChunkSize)
	if err != nil {
		return 0, 0, ErrInvalidConfig.Wrap(err)
	}
	if inline < 1 || chunk < 1 {
		return 0, 0, ErrInvalidConfig.WrapMessage("content inline limit and chunk size must be positive")
	}
	return int(inline), int(chunk), nil
}

// Dump the configuration as YAML
func (c *Config) Dump(w io.Writer) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
