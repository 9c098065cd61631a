// Package config loads the bleu command's YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// Defaults mirror the library defaults.
const (
	defaultK              = 32
	defaultHashes         = 8
	defaultMemoryBits     = 1 << 27
	defaultIDMax          = 65534
	defaultPartitionWidth = 1000
	defaultBatchSize      = 256
	defaultLogFormat      = "text"
	defaultLogLevel       = "info"

	maxHashes = 255
	maxIDMax  = 65534
)

// Config captures every option of a clustering run.
type Config struct {
	K              int      `yaml:"k"`
	Hasher         string   `yaml:"hasher"`
	Hashes         int      `yaml:"hashes"`
	MemoryBits     uint64   `yaml:"memory_bits"`
	TableSizes     []uint64 `yaml:"table_sizes"`
	IDMax          int      `yaml:"id_max"`
	PartitionWidth uint64   `yaml:"partition_width"`
	Workers        int      `yaml:"workers"`
	BatchSize      int      `yaml:"batch_size"`
	KeepInvalid    bool     `yaml:"keep_invalid"`
	Logging        Logging  `yaml:"logging"`
}

// Logging selects the log handler.
type Logging struct {
	Format string `yaml:"format"` // text or json
	Level  string `yaml:"level"`  // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		K:              defaultK,
		Hashes:         defaultHashes,
		MemoryBits:     defaultMemoryBits,
		IDMax:          defaultIDMax,
		PartitionWidth: defaultPartitionWidth,
		BatchSize:      defaultBatchSize,
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// Load reads configuration from a YAML file. Missing keys keep their
// defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.TableSizes) > 0 {
		cfg.Hashes = len(cfg.TableSizes)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the ranges the engine and pipeline accept.
func (c Config) Validate() error {
	if c.K < 1 {
		return fmt.Errorf("%w: k=%d", bleuerrors.ErrInvalidK, c.K)
	}
	if c.Hashes < 2 || c.Hashes > maxHashes {
		return fmt.Errorf("%w: hashes=%d", bleuerrors.ErrInvalidHashCount, c.Hashes)
	}
	if c.IDMax < 1 || c.IDMax > maxIDMax {
		return fmt.Errorf("%w: id_max=%d", bleuerrors.ErrInvalidIDMax, c.IDMax)
	}
	if c.PartitionWidth == 0 {
		return bleuerrors.ErrInvalidPartitionWidth
	}
	if len(c.TableSizes) == 0 && c.MemoryBits == 0 {
		return fmt.Errorf("%w: memory_bits=0", bleuerrors.ErrInvalidTableSize)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
