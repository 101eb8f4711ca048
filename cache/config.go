package cache

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingRequiredValue = errors.New("missing required value")
	ErrInvalidValue         = errors.New("invalid value")
)

// StoreKind selects the persistence backend.
type StoreKind string

const (
	// StoreFile keeps one file per key under Config.Dir.
	StoreFile StoreKind = "file"
	// StoreMemory keeps records in process memory; meant for tests and mocks.
	StoreMemory StoreKind = "memory"
)

// Environment variables read by ApplyEnv.
const (
	EnvStore       = "DATASET_CACHE_STORE"
	EnvDir         = "DATASET_CACHE_DIR"
	EnvRestore     = "DATASET_CACHE_RESTORE"
	EnvStrictStore = "DATASET_CACHE_STRICT_STORE"
)

// Config exposes the cache configuration options.
type Config struct {
	Store StoreKind `yaml:"store"`
	// Dir is the cache directory, required for the file store.
	Dir string `yaml:"dir"`
	// RestoreOnStart reuses records persisted by a previous process. When
	// false, persisted records are purged when the provider starts.
	RestoreOnStart bool `yaml:"restore_on_start"`
	// StrictStore returns persistence failures to the caller that triggered a
	// computation instead of only logging them.
	StrictStore bool         `yaml:"strict_store"`
	Memory      MemoryConfig `yaml:"memory"`
}

// MemoryConfig sizes the in-memory store. The TTL only bounds how long the
// store keeps a record; entries are never expired by the provider itself.
type MemoryConfig struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	EvictionInterval   time.Duration `yaml:"eviction_interval"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: StoreMemory,
		Memory: MemoryConfig{
			Capacity:           10000,
			NumShards:          64,
			TTL:                24 * time.Hour,
			EvictionPercentage: 10,
		},
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.Required, validation.In(StoreFile, StoreMemory)),
		validation.Field(&c.Dir, validation.When(c.Store == StoreFile, validation.Required)),
		validation.Field(&c.Memory),
	)
}

// Validate checks the in-memory store sizing.
func (m MemoryConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&m.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&m.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&m.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&m.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if
// path is not empty), then the environment, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read cache config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse cache config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}

	if cfg.Store == StoreFile && cfg.Dir == "" {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, EnvDir)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return cfg, nil
}

// ApplyEnv overlays values set in the environment.
func (c *Config) ApplyEnv() error {
	if raw, ok := os.LookupEnv(EnvStore); ok {
		switch StoreKind(raw) {
		case StoreFile, StoreMemory:
			c.Store = StoreKind(raw)
		default:
			return fmt.Errorf("%w: %s (%s)", ErrInvalidValue, EnvStore, raw)
		}
	}

	if raw, ok := os.LookupEnv(EnvDir); ok {
		c.Dir = raw
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{EnvRestore, &c.RestoreOnStart},
		{EnvStrictStore, &c.StrictStore},
	} {
		raw, ok := os.LookupEnv(b.name)
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s (%s)", ErrInvalidValue, b.name, raw)
		}
		*b.dst = v
	}

	return nil
}
