package bleu

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// offsetTable holds, per hash table, one cluster identifier cell for every
// confirmed bin, indexed by the bin's rank. Zero means no cluster.
type offsetTable struct {
	cells [][]ClusterID
}

func newOffsetTable(totals []uint64) *offsetTable {
	t := &offsetTable{cells: make([][]ClusterID, len(totals))}
	for i, n := range totals {
		t.cells[i] = make([]ClusterID, n)
	}
	return t
}

func (t *offsetTable) get(i int, rank uint64) (ClusterID, error) {
	if rank >= uint64(len(t.cells[i])) {
		return NoCluster, fmt.Errorf("%w: table %d rank %d, %d cells",
			bleuerrors.ErrRankOutOfRange, i, rank, len(t.cells[i]))
	}
	return t.cells[i][rank], nil
}

func (t *offsetTable) set(i int, rank uint64, id ClusterID) error {
	if rank >= uint64(len(t.cells[i])) {
		return fmt.Errorf("%w: table %d rank %d, %d cells",
			bleuerrors.ErrRankOutOfRange, i, rank, len(t.cells[i]))
	}
	t.cells[i][rank] = id
	return nil
}

// occupied returns the number of non-empty cells in table i.
func (t *offsetTable) occupied(i int) uint64 {
	var n uint64
	for _, id := range t.cells[i] {
		if id != NoCluster {
			n++
		}
	}
	return n
}
