package bleu

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
	intbits "github.com/tamirms/bleu/internal/bits"
)

// membershipIndex decides whether a window hash has been seen at least twice
// and, once finalized, maps each confirmed bin to a dense rank.
//
// Each table i has two sketch generations of size sizes[i]. The first
// observation of a bin sets provisional; any later observation sets
// confirmed. Single-occurrence windows (typically sequencing errors) never
// reach the confirmed generation.
//
// After finalize, prefix[i][j] holds the number of confirmed bits in
// partitions 0..j of table i, so rank needs to count at most one partition.
type membershipIndex struct {
	sizes       []uint64
	width       uint64
	provisional []*intbits.Sketch // nil after finalize
	confirmed   []*intbits.Sketch
	prefix      [][]uint64
	totals      []uint64
	observed    uint64
	finalized   bool
}

func newMembershipIndex(sizes []uint64, width uint64) *membershipIndex {
	m := &membershipIndex{
		sizes:       sizes,
		width:       width,
		provisional: make([]*intbits.Sketch, len(sizes)),
		confirmed:   make([]*intbits.Sketch, len(sizes)),
	}
	for i, size := range sizes {
		m.provisional[i] = intbits.NewSketch(size)
		m.confirmed[i] = intbits.NewSketch(size)
	}
	return m
}

// bin reduces a hash to table i's position.
func (m *membershipIndex) bin(hash uint64, i int) uint64 {
	return hash % m.sizes[i]
}

// observe records one occurrence of hash in every table.
func (m *membershipIndex) observe(hash uint64) error {
	if m.finalized {
		return bleuerrors.ErrAlreadyFinalized
	}
	for i := range m.sizes {
		b := m.bin(hash, i)
		seen, err := m.provisional[i].Get(b)
		if err != nil {
			return err
		}
		if seen {
			err = m.confirmed[i].Set(b)
		} else {
			err = m.provisional[i].Set(b)
		}
		if err != nil {
			return err
		}
	}
	m.observed++
	return nil
}

// finalize builds the prefix-sum tables and drops the provisional sketches.
func (m *membershipIndex) finalize() error {
	if m.finalized {
		return bleuerrors.ErrAlreadyFinalized
	}
	if m.observed == 0 {
		return bleuerrors.ErrNoObservations
	}

	m.prefix = make([][]uint64, len(m.sizes))
	m.totals = make([]uint64, len(m.sizes))
	for i, size := range m.sizes {
		parts := size/m.width + 1
		prefix := make([]uint64, parts)
		var running uint64
		for j := uint64(0); j < parts; j++ {
			lo := j * m.width
			if lo < size {
				hi := min(lo+m.width-1, size-1)
				n, err := m.confirmed[i].CountOnes(lo, hi)
				if err != nil {
					return fmt.Errorf("table %d partition %d: %w", i, j, err)
				}
				running += n
			}
			prefix[j] = running
		}
		m.prefix[i] = prefix
		m.totals[i] = running
	}

	m.provisional = nil
	m.finalized = true
	return nil
}

// present reports whether hash's bin in table i is confirmed.
func (m *membershipIndex) present(hash uint64, i int) bool {
	ok, _ := m.confirmed[i].Get(m.bin(hash, i)) // bin < size by construction
	return ok
}

// rank returns the dense 0-based index of hash's confirmed bin among all
// confirmed bins of table i.
func (m *membershipIndex) rank(hash uint64, i int) (uint64, error) {
	if !m.finalized {
		return 0, bleuerrors.ErrNotFinalized
	}
	b := m.bin(hash, i)
	if !m.present(hash, i) {
		return 0, bleuerrors.ErrNotConfirmed
	}

	part := b / m.width
	n, err := m.confirmed[i].CountOnes(part*m.width, b)
	if err != nil {
		return 0, err
	}
	if part > 0 {
		n += m.prefix[i][part-1]
	}
	// n >= 1 because bin b itself is confirmed.
	return n - 1, nil
}
