package bleu

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
	"github.com/tamirms/bleu/internal/prime"
)

const (
	// DefaultHashes is the default number of independent hash tables.
	DefaultHashes = 8

	// MaxIDCeiling is the largest identifier ceiling a 16-bit cell can
	// encode while reserving 0 for "no cluster" and 0xFFFF.
	MaxIDCeiling = 65534

	// DefaultPartitionWidth is the default number of sketch bits summarized
	// by each prefix-sum entry. Rank lookups count at most this many bits.
	DefaultPartitionWidth = 1000

	// DefaultMemoryBudget is the default total sketch size in bits, split
	// across all hash tables.
	DefaultMemoryBudget = 1 << 27

	maxHashes = 255
)

// Option is a functional option for configuring an Engine.
type Option func(*config)

type config struct {
	hashes         int
	idMax          int
	partitionWidth uint64
	tableSizes     []uint64 // explicit sizes; nil means derive from memoryBudget
	memoryBudget   uint64
	logger         *Logger
}

func defaultConfig() *config {
	return &config{
		hashes:         DefaultHashes,
		idMax:          MaxIDCeiling,
		partitionWidth: DefaultPartitionWidth,
		memoryBudget:   DefaultMemoryBudget,
	}
}

// WithHashes sets the number of independent hash tables (at least 2).
// More tables lower the false-merge rate at a linear per-window cost.
func WithHashes(n int) Option {
	return func(c *config) {
		c.hashes = n
	}
}

// WithIDMax sets the maximum number of simultaneously live clusters.
func WithIDMax(n int) Option {
	return func(c *config) {
		c.idMax = n
	}
}

// WithPartitionWidth sets the prefix-sum partition width used for rank
// lookups.
func WithPartitionWidth(p uint64) Option {
	return func(c *config) {
		c.partitionWidth = p
	}
}

// WithMemoryBudget sets the total number of sketch bits per generation.
// Each table gets a distinct prime size, the first being the largest prime
// below budget/hashes. Ignored when WithTableSizes is used.
func WithMemoryBudget(bits uint64) Option {
	return func(c *config) {
		c.memoryBudget = bits
	}
}

// WithTableSizes sets explicit table sizes, one per hash table. The number
// of hash tables becomes len(sizes). Sizes must be strictly decreasing.
// The sizes are copied.
func WithTableSizes(sizes ...uint64) Option {
	return func(c *config) {
		c.tableSizes = append([]uint64(nil), sizes...)
		c.hashes = len(sizes)
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// resolve validates the configuration and fills in derived table sizes.
func (c *config) resolve() error {
	if c.hashes < 2 || c.hashes > maxHashes {
		return bleuerrors.ErrInvalidHashCount
	}
	if c.idMax < 1 || c.idMax > MaxIDCeiling {
		return bleuerrors.ErrInvalidIDMax
	}
	if c.partitionWidth == 0 {
		return bleuerrors.ErrInvalidPartitionWidth
	}
	if c.logger == nil {
		c.logger = NoopLogger()
	}

	if c.tableSizes == nil {
		sizes := prime.DecreasingBelow(c.memoryBudget/uint64(c.hashes), c.hashes)
		if sizes == nil {
			return fmt.Errorf("%w: memory budget %d too small for %d tables",
				bleuerrors.ErrInvalidTableSize, c.memoryBudget, c.hashes)
		}
		c.tableSizes = sizes
		return nil
	}

	for i, size := range c.tableSizes {
		if size == 0 {
			return fmt.Errorf("%w: table %d has size 0", bleuerrors.ErrInvalidTableSize, i)
		}
		if i > 0 && size >= c.tableSizes[i-1] {
			return fmt.Errorf("%w: table %d size %d >= table %d size %d",
				bleuerrors.ErrInvalidTableSize, i, size, i-1, c.tableSizes[i-1])
		}
	}
	return nil
}
