package kmer

import (
	"bytes"
	"fmt"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// stringHasher hashes the lexicographically smaller of each window and its
// reverse complement with a byte-string hash. It handles any window size at
// O(k) cost per window.
type stringHasher struct {
	k   int
	sum func([]byte) uint64
	fwd []byte
	rc  []byte
}

// NewXXH3 returns a canonical hasher backed by xxHash3-64.
func NewXXH3(k int) (Hasher, error) {
	return newStringHasher(NameXXH3, k, xxh3.Hash)
}

// NewMurmur3 returns a canonical hasher backed by MurmurHash3 with seed.
func NewMurmur3(k int, seed uint32) (Hasher, error) {
	return newStringHasher(NameMurmur3, k, func(b []byte) uint64 {
		return murmur3.Sum64WithSeed(b, seed)
	})
}

func newStringHasher(name string, k int, sum func([]byte) uint64) (*stringHasher, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: %s k=%d", bleuerrors.ErrInvalidK, name, k)
	}
	return &stringHasher{
		k:   k,
		sum: sum,
		fwd: make([]byte, 0, k),
		rc:  make([]byte, 0, k),
	}, nil
}

func (h *stringHasher) K() int { return h.k }

// AppendHashes appends the canonical hash of every window of seq to dst.
// Not safe for concurrent use: window buffers are reused.
func (h *stringHasher) AppendHashes(dst []uint64, seq []byte) []uint64 {
	for i := 0; i+h.k <= len(seq); i++ {
		w := seq[i : i+h.k]
		h.fwd = h.fwd[:0]
		for _, c := range w {
			h.fwd = append(h.fwd, upper(c))
		}
		h.rc = ReverseComplement(h.rc[:0], w)

		canon := h.fwd
		if bytes.Compare(h.rc, h.fwd) < 0 {
			canon = h.rc
		}
		dst = append(dst, h.sum(canon))
	}
	return dst
}
