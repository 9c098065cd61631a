// Package kmer extracts canonical k-mer hashes from nucleotide sequences.
//
// A window and its reverse complement hash to the same value, so reads from
// either strand of the same region share hashes.
package kmer

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// Hasher names accepted by New.
const (
	NameTwoBit  = "twobit"
	NameXXH3    = "xxh3"
	NameMurmur3 = "murmur3"
)

// MaxTwoBitK is the largest window that packs into a 64-bit 2-bit code.
const MaxTwoBitK = 32

// Hasher produces one canonical hash per window of a sequence.
type Hasher interface {
	// K returns the window size.
	K() int

	// AppendHashes appends the hash of every length-K window of seq, in
	// order, to dst and returns the extended slice. seq must satisfy Valid.
	AppendHashes(dst []uint64, seq []byte) []uint64
}

// New returns the named hasher for window size k. An empty name selects
// twobit when k fits in 64 bits and xxh3 otherwise.
func New(name string, k int) (Hasher, error) {
	if name == "" {
		name = NameTwoBit
		if k > MaxTwoBitK {
			name = NameXXH3
		}
	}
	switch name {
	case NameTwoBit:
		h, err := NewTwoBit(k)
		if err != nil {
			return nil, err
		}
		return h, nil
	case NameXXH3:
		return NewXXH3(k)
	case NameMurmur3:
		return NewMurmur3(k, 0)
	}
	return nil, fmt.Errorf("%w: %q", bleuerrors.ErrUnknownHasher, name)
}

// Valid reports whether seq yields at least one window of size k and
// contains only A, C, G, T in either case.
func Valid(seq []byte, k int) bool {
	if k <= 0 || len(seq) < k {
		return false
	}
	for _, c := range seq {
		if _, ok := twoBitCode(c); !ok {
			return false
		}
	}
	return true
}

// Windows returns the number of windows of size k in a sequence of length n.
func Windows(n, k int) int {
	if k <= 0 || n < k {
		return 0
	}
	return n - k + 1
}

// twoBitCode encodes A=0, T=1, C=2, G=3, so complement is code^1.
func twoBitCode(c byte) (uint64, bool) {
	switch c {
	case 'A', 'a':
		return 0, true
	case 'T', 't':
		return 1, true
	case 'C', 'c':
		return 2, true
	case 'G', 'g':
		return 3, true
	}
	return 0, false
}

// complement returns the upper-case complement base of c.
func complement(c byte) byte {
	switch c {
	case 'A', 'a':
		return 'T'
	case 'T', 't':
		return 'A'
	case 'C', 'c':
		return 'G'
	case 'G', 'g':
		return 'C'
	}
	return 'N'
}

// upper returns the upper-case form of an ASCII letter.
func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// ReverseComplement appends the upper-case reverse complement of seq to dst.
func ReverseComplement(dst, seq []byte) []byte {
	for i := len(seq) - 1; i >= 0; i-- {
		dst = append(dst, complement(seq[i]))
	}
	return dst
}
