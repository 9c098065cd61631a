package kmer

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// TwoBit is a rolling hasher for windows of up to 32 bases. The forward
// and reverse-complement 2-bit codes are updated one base at a time and the
// smaller of the two is the canonical hash.
type TwoBit struct {
	k     int
	mask  uint64
	shift uint // position of the newest base in the reverse code
}

// NewTwoBit returns a TwoBit hasher for window size k (1..32).
func NewTwoBit(k int) (*TwoBit, error) {
	if k < 1 || k > MaxTwoBitK {
		return nil, fmt.Errorf("%w: twobit k=%d, want 1..%d", bleuerrors.ErrInvalidK, k, MaxTwoBitK)
	}
	mask := ^uint64(0)
	if k < MaxTwoBitK {
		mask = uint64(1)<<(2*k) - 1
	}
	return &TwoBit{k: k, mask: mask, shift: uint(2*k - 2)}, nil
}

// K returns the window size.
func (h *TwoBit) K() int { return h.k }

// AppendHashes appends the canonical hash of every window of seq to dst.
func (h *TwoBit) AppendHashes(dst []uint64, seq []byte) []uint64 {
	if len(seq) < h.k {
		return dst
	}
	var fwd, rev uint64
	for i, c := range seq {
		b, _ := twoBitCode(c)
		fwd = (fwd<<2 | b) & h.mask
		rev = rev>>2 | (b^1)<<h.shift
		if i >= h.k-1 {
			dst = append(dst, min(fwd, rev))
		}
	}
	return dst
}
