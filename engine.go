package bleu

import (
	"slices"
)

// Engine assigns k-mer window hashes to clusters in two passes.
//
// Usage:
//
//	eng, err := bleu.NewEngine(bleu.WithMemoryBudget(1 << 30))
//	if err != nil { return err }
//
//	for _, h := range pass1Hashes {
//	    if err := eng.Observe(h); err != nil { return err }
//	}
//	if err := eng.Finalize(); err != nil { return err }
//
//	for _, read := range reads {
//	    id, err := eng.AssignRead(read.hashes)
//	    if err != nil { return err }
//	    ...
//	}
//
// An Engine is NOT safe for concurrent use. Callers that parallelise must
// serialise every Engine call, for example by partitioning work by read and
// feeding a single goroutine.
type Engine struct {
	cfg      *config
	index    *membershipIndex
	offsets  *offsetTable // nil until Finalize
	registry *registry    // nil until Finalize
	log      *Logger

	// Per-window scratch, reused across Assign and Lookup calls.
	ranks []uint64
	ids   []ClusterID
	tally []tallyEntry
}

// Stats describes an Engine's tables and clusters.
type Stats struct {
	Hashes     int
	TableSizes []uint64
	Confirmed  []uint64 // confirmed bins per table; nil before Finalize
	Occupied   []uint64 // non-empty offset cells per table; nil before Finalize
	Observed   uint64
	Clusters   int
	IDMax      int
	Evicting   bool
}

// NewEngine creates an Engine ready for pass-1 observation.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return newEngine(cfg), nil
}

// newEngine builds an Engine from a resolved config. cfg is not modified.
func newEngine(cfg *config) *Engine {
	return &Engine{
		cfg:   cfg,
		index: newMembershipIndex(cfg.tableSizes, cfg.partitionWidth),
		log:   cfg.logger,
		ranks: make([]uint64, cfg.hashes),
		ids:   make([]ClusterID, cfg.hashes),
		tally: make([]tallyEntry, 0, cfg.hashes+1),
	}
}

// Observe records one pass-1 window hash.
func (e *Engine) Observe(hash uint64) error {
	return e.index.observe(hash)
}

// Finalize ends pass 1: it builds the rank tables and allocates the cluster
// offset tables. It must be called exactly once, after at least one Observe.
func (e *Engine) Finalize() error {
	if err := e.index.finalize(); err != nil {
		return err
	}
	e.offsets = newOffsetTable(e.index.totals)
	e.registry = newRegistry(e.cfg.idMax, e.offsets, e.log)

	for i, size := range e.index.sizes {
		confirmed := e.index.totals[i]
		e.log.Info("table finalized",
			"table", i,
			"size", size,
			"confirmed", confirmed,
			"occupancy_pct", float64(confirmed)/float64(size)*100)
	}
	return nil
}

// Finalized reports whether Finalize has completed.
func (e *Engine) Finalized() bool {
	return e.index.finalized
}

// Hashes returns the number of hash tables.
func (e *Engine) Hashes() int {
	return e.cfg.hashes
}

// ClusterCount returns the number of live clusters.
func (e *Engine) ClusterCount() int {
	if e.registry == nil {
		return 0
	}
	return e.registry.live
}

// ClusterMemberCount returns the number of windows credited to a live
// cluster, or 0 if id is not live.
func (e *Engine) ClusterMemberCount(id ClusterID) uint64 {
	if e.registry == nil {
		return 0
	}
	if c := e.registry.get(id); c != nil {
		return c.count
	}
	return 0
}

// Clusters returns the identifiers of all live clusters in ascending order.
func (e *Engine) Clusters() []ClusterID {
	if e.registry == nil {
		return nil
	}
	ids := make([]ClusterID, 0, e.registry.live)
	for _, c := range e.registry.clusters {
		if c != nil {
			ids = append(ids, c.id)
		}
	}
	return ids
}

// Stats returns a snapshot of the Engine's tables and clusters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Hashes:     e.cfg.hashes,
		TableSizes: slices.Clone(e.index.sizes),
		Observed:   e.index.observed,
		IDMax:      e.cfg.idMax,
	}
	if e.registry != nil {
		s.Confirmed = slices.Clone(e.index.totals)
		s.Occupied = make([]uint64, e.cfg.hashes)
		for i := range s.Occupied {
			s.Occupied[i] = e.offsets.occupied(i)
		}
		s.Clusters = e.registry.live
		s.Evicting = e.registry.evicting
	}
	return s
}
