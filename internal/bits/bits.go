// Package bits provides low-level bit manipulation primitives.
package bits

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// Sketch is a fixed-size bit vector addressed by hash bin.
// The size is fixed at construction; positions at or beyond it are rejected
// rather than growing the vector.
type Sketch struct {
	set  *bitset.BitSet
	size uint64
}

// NewSketch returns a cleared sketch of size bits.
func NewSketch(size uint64) *Sketch {
	return &Sketch{
		set:  bitset.New(uint(size)),
		size: size,
	}
}

// Size returns the number of addressable bits.
func (s *Sketch) Size() uint64 {
	return s.size
}

// Set sets the bit at pos.
func (s *Sketch) Set(pos uint64) error {
	if pos >= s.size {
		return bleuerrors.ErrIndexOutOfRange
	}
	s.set.Set(uint(pos))
	return nil
}

// Get reports whether the bit at pos is set.
func (s *Sketch) Get(pos uint64) (bool, error) {
	if pos >= s.size {
		return false, bleuerrors.ErrIndexOutOfRange
	}
	return s.set.Test(uint(pos)), nil
}

// Count returns the total number of set bits.
func (s *Sketch) Count() uint64 {
	return uint64(s.set.Count())
}

// CountOnes returns the number of set bits in the inclusive range [lo, hi].
// Counts whole words at a time; the first and last word are masked.
func (s *Sketch) CountOnes(lo, hi uint64) (uint64, error) {
	if hi >= s.size || lo > hi {
		return 0, bleuerrors.ErrIndexOutOfRange
	}
	words := s.set.Words()
	loW, hiW := lo>>6, hi>>6
	if loW == hiW {
		return uint64(bits.OnesCount64(words[loW] & rangeMask(lo&63, hi&63))), nil
	}

	n := bits.OnesCount64(words[loW] >> (lo & 63))
	for w := loW + 1; w < hiW; w++ {
		n += bits.OnesCount64(words[w])
	}
	n += bits.OnesCount64(words[hiW] << (63 - hi&63))
	return uint64(n), nil
}

// rangeMask returns a word with bits a..b (inclusive, a <= b <= 63) set.
func rangeMask(a, b uint64) uint64 {
	return (^uint64(0) >> (63 - b)) & (^uint64(0) << a)
}
