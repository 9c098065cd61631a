package bleu

import (
	"fmt"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// tallyEntry counts how many of a window's slots name one cluster.
type tallyEntry struct {
	id    ClusterID
	votes int
}

// consensus reports whether all tables agree on the presence of hash, and
// if so whether it is present. Disagreement means at least one table
// collided spuriously.
func (e *Engine) consensus(hash uint64) (present, agreed bool) {
	for i := range e.index.sizes {
		p := e.index.present(hash, i)
		if i == 0 {
			present = p
		} else if p != present {
			return false, false
		}
	}
	return present, true
}

// prospects fills e.ranks and e.ids with hash's rank and current cell
// value in every table. hash must be present in all tables.
func (e *Engine) prospects(hash uint64) error {
	for i := range e.index.sizes {
		r, err := e.index.rank(hash, i)
		if err != nil {
			return err
		}
		id, err := e.offsets.get(i, r)
		if err != nil {
			return err
		}
		e.ranks[i] = r
		e.ids[i] = id
	}
	return nil
}

// vote tallies the non-empty identifiers in e.ids, plus extra with one vote
// if it is not NoCluster, and returns the identifier with the most votes.
// Ties go to the lowest identifier.
func (e *Engine) vote(extra ClusterID) ClusterID {
	e.tally = e.tally[:0]
	add := func(id ClusterID) {
		if id == NoCluster {
			return
		}
		for k := range e.tally {
			if e.tally[k].id == id {
				e.tally[k].votes++
				return
			}
		}
		e.tally = append(e.tally, tallyEntry{id: id, votes: 1})
	}
	add(extra)
	for _, id := range e.ids {
		add(id)
	}

	best := tallyEntry{}
	for _, t := range e.tally {
		if t.votes > best.votes || (t.votes == best.votes && t.id < best.id) {
			best = t
		}
	}
	return best.id
}

// assignWindow runs the per-window decision for hash given the working
// cluster w (nil if the read has none yet). It returns the cluster this
// window belongs to, or nil if no cluster can be determined.
func (e *Engine) assignWindow(hash uint64, w *cluster) (*cluster, error) {
	present, agreed := e.consensus(hash)
	if !agreed || !present {
		return nil, nil
	}
	if err := e.prospects(hash); err != nil {
		return nil, err
	}

	// Any empty slot: claim every empty slot for the working cluster,
	// allocating one if the read has none.
	var target *cluster
	for i, id := range e.ids {
		if id != NoCluster {
			continue
		}
		if target == nil {
			target = w
			if target == nil {
				target = e.registry.allocate()
			}
		}
		if err := e.registry.attach(target, i, e.ranks[i]); err != nil {
			return nil, err
		}
	}
	if target != nil {
		return target, nil
	}

	// All slots occupied: majority wins, bridging with the working cluster
	// when they differ.
	var wid ClusterID
	if w != nil {
		wid = w.id
	}
	top := e.vote(wid)
	winner := e.registry.get(top)
	if winner == nil {
		return nil, fmt.Errorf("%w: offset cell names cluster %d", bleuerrors.ErrUnknownCluster, top)
	}
	if w == nil || winner == w {
		return winner, nil
	}
	return e.registry.bridge(winner, w)
}

// Assign processes one pass-2 window. working is the cluster carried from
// the previous window of the same read (NoCluster at the start of a read).
//
// It returns the cluster the window joined (NoCluster if the window is
// absent or the tables disagree) and the working cluster to pass with the
// next window of the read. When the window joins no cluster, the working
// cluster is carried forward unchanged. The returned working cluster's
// member count is incremented by one.
func (e *Engine) Assign(hash uint64, working ClusterID) (ClusterID, ClusterID, error) {
	if !e.index.finalized {
		return NoCluster, NoCluster, bleuerrors.ErrNotFinalized
	}
	var w *cluster
	if working != NoCluster {
		if w = e.registry.get(working); w == nil {
			return NoCluster, NoCluster, fmt.Errorf("%w: %d", bleuerrors.ErrUnknownCluster, working)
		}
	}

	c, err := e.assignWindow(hash, w)
	if err != nil {
		return NoCluster, NoCluster, err
	}

	next := w
	window := NoCluster
	if c != nil {
		next = c
		window = c.id
	}
	if next == nil {
		return NoCluster, NoCluster, nil
	}
	next.count++
	return window, next.id, nil
}

// AssignRead runs Assign over every window of one read, threading the
// working cluster. Windows before the first determinable cluster are
// credited to that cluster once it is found. It returns the read's final
// working cluster.
func (e *Engine) AssignRead(hashes []uint64) (ClusterID, error) {
	working := NoCluster
	var pending uint64
	for _, h := range hashes {
		_, next, err := e.Assign(h, working)
		if err != nil {
			return NoCluster, err
		}
		if next == NoCluster {
			pending++
			continue
		}
		if working == NoCluster && pending > 0 {
			e.registry.credit(next, pending)
			pending = 0
		}
		working = next
	}
	return working, nil
}

// Lookup returns the cluster a window currently resolves to without
// modifying any state: the majority identifier among its slots, ties to
// the lowest identifier. Returns NoCluster before Finalize, for absent
// windows, and when the tables disagree.
func (e *Engine) Lookup(hash uint64) ClusterID {
	if !e.index.finalized {
		return NoCluster
	}
	present, agreed := e.consensus(hash)
	if !agreed || !present {
		return NoCluster
	}
	if err := e.prospects(hash); err != nil {
		return NoCluster
	}
	return e.vote(NoCluster)
}

// ResolveRead returns the cluster of the first window of a read that
// resolves through Lookup, or NoCluster.
func (e *Engine) ResolveRead(hashes []uint64) ClusterID {
	for _, h := range hashes {
		if id := e.Lookup(h); id != NoCluster {
			return id
		}
	}
	return NoCluster
}
