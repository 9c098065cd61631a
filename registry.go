package bleu

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ClusterID identifies a live cluster. Identifiers are small so that an
// offset table cell fits in 16 bits.
type ClusterID uint16

// NoCluster is the zero ClusterID: no cluster was determined.
const NoCluster ClusterID = 0

// Slot keys pack a hash table index into the top byte and a rank into the
// low 56 bits.
const slotRankBits = 56

func slotKey(table int, rank uint64) uint64 {
	return uint64(table)<<slotRankBits | rank
}

func splitSlot(key uint64) (int, uint64) {
	return int(key >> slotRankBits), key & (1<<slotRankBits - 1)
}

// cluster is a union-find node. slots holds every offset table cell that
// currently names this cluster; its cardinality is the merge weight.
type cluster struct {
	id    ClusterID
	count uint64
	slots *roaring64.Bitmap
}

func (c *cluster) weight() uint64 {
	return c.slots.GetCardinality()
}

// registry owns all live clusters and the identifier space.
//
// Identifiers are handed out from a counter until it reaches idMax; after
// that, identifiers of merged-away clusters are recycled in the order they
// were freed. When idMax clusters are live, allocate returns the
// least-populated live cluster instead of creating one.
type registry struct {
	clusters  []*cluster // indexed by ClusterID; nil when not live
	idMax     ClusterID
	next      ClusterID // last identifier issued from the counter
	free      []ClusterID
	live      int
	watermark uint64 // no live cluster had a count below this at the last full scan
	evicting  bool
	offsets   *offsetTable
	log       *Logger
}

func newRegistry(idMax int, offsets *offsetTable, log *Logger) *registry {
	return &registry{
		clusters: make([]*cluster, idMax+1),
		idMax:    ClusterID(idMax),
		offsets:  offsets,
		log:      log,
	}
}

// get returns the live cluster with the given identifier, or nil.
func (r *registry) get(id ClusterID) *cluster {
	if id == NoCluster || id > r.idMax {
		return nil
	}
	return r.clusters[id]
}

// allocate returns a new cluster, or the least-populated live cluster once
// the identifier ceiling is reached. It never fails.
func (r *registry) allocate() *cluster {
	if r.live < int(r.idMax) {
		var id ClusterID
		if r.next < r.idMax {
			r.next++
			id = r.next
		} else {
			id = r.free[0]
			r.free = r.free[1:]
		}
		c := &cluster{id: id, slots: roaring64.New()}
		r.clusters[id] = c
		r.live++
		return c
	}

	if !r.evicting {
		r.evicting = true
		r.log.Info("identifier ceiling reached, folding new clusters into smallest",
			"id_max", int(r.idMax))
	}
	return r.smallest()
}

// smallest returns a live cluster with the lowest member count. Clusters at
// or below the watermark are returned without a full scan.
func (r *registry) smallest() *cluster {
	var best *cluster
	for _, c := range r.clusters[1:] {
		if c == nil {
			continue
		}
		if c.count <= r.watermark {
			return c
		}
		if best == nil || c.count < best.count {
			best = c
		}
	}
	if best != nil {
		r.watermark = best.count
	}
	return best
}

// attach writes c's identifier into an empty cell and records the cell as
// one of c's slots.
func (r *registry) attach(c *cluster, table int, rank uint64) error {
	if err := r.offsets.set(table, rank, c.id); err != nil {
		return err
	}
	c.slots.Add(slotKey(table, rank))
	return nil
}

// bridge merges two distinct clusters known to be connected and returns the
// survivor. The cluster with more slots survives; on a tie, encountered
// survives.
func (r *registry) bridge(encountered, originating *cluster) (*cluster, error) {
	if encountered == originating {
		return encountered, nil
	}
	if originating.weight() > encountered.weight() {
		return originating, r.consume(originating, encountered)
	}
	return encountered, r.consume(encountered, originating)
}

// consume folds src into dst: src's cells are rewritten to dst's identifier,
// its slots and count move to dst, and src is released.
func (r *registry) consume(dst, src *cluster) error {
	it := src.slots.Iterator()
	for it.HasNext() {
		table, rank := splitSlot(it.Next())
		if err := r.offsets.set(table, rank, dst.id); err != nil {
			return fmt.Errorf("rewrite slot of cluster %d: %w", src.id, err)
		}
	}
	dst.slots.Or(src.slots)
	dst.count += src.count

	r.clusters[src.id] = nil
	r.free = append(r.free, src.id)
	r.live--
	if r.evicting {
		r.evicting = false
		r.log.Debug("identifier freed, leaving eviction mode", "freed", int(src.id))
	}
	return nil
}

// credit adds n windows to a live cluster's member count.
func (r *registry) credit(id ClusterID, n uint64) {
	if c := r.get(id); c != nil {
		c.count += n
	}
}
