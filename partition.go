package bleu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	bleuerrors "github.com/tamirms/bleu/errors"
	"github.com/tamirms/bleu/internal/kmer"
	"github.com/tamirms/bleu/internal/seqio"
)

const (
	// DefaultK is the default window size.
	DefaultK = 32

	// DefaultBatchSize is the default number of reads hashed per worker task.
	DefaultBatchSize = 256

	batchChanMultiplier  = 2
	progressEveryBatches = 64
	progressInterval     = time.Second
)

// Pass identifies one of the three streaming passes over the input.
type Pass int

const (
	// PassObserve feeds every window into the membership sketches.
	PassObserve Pass = iota + 1
	// PassAssign assigns windows to clusters, merging as reads bridge them.
	PassAssign
	// PassResolve resolves each read's final cluster and writes the output.
	PassResolve
)

// String returns the pass name used in logs.
func (p Pass) String() string {
	switch p {
	case PassObserve:
		return "observe"
	case PassAssign:
		return "assign"
	case PassResolve:
		return "resolve"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// Progress is a snapshot of one pass. Done is set on the final callback of
// each pass.
type Progress struct {
	Pass    Pass
	Reads   uint64
	Windows uint64
	Done    bool
}

// Report summarises a completed run.
type Report struct {
	RunID      string
	Reads      uint64 // records read
	ValidReads uint64 // records long enough and free of ambiguous bases
	Windows    uint64 // windows observed in the first pass
	Clusters   int    // live clusters after the assign pass

	// ReadsPerCluster counts valid reads by their resolved cluster.
	// Reads with no resolvable window are counted under NoCluster.
	ReadsPerCluster map[ClusterID]uint64

	Written      uint64 // records written
	OutputDigest uint64 // xxhash64 of the uncompressed output
	Elapsed      time.Duration
}

// PartitionOption is a functional option for configuring a Partitioner.
type PartitionOption func(*partitionConfig)

type partitionConfig struct {
	k           int
	hasher      string
	workers     int
	batchSize   int
	progress    func(Progress)
	keepInvalid bool
	engineOpts  []Option
}

func defaultPartitionConfig() *partitionConfig {
	return &partitionConfig{
		k:         DefaultK,
		batchSize: DefaultBatchSize,
	}
}

// WithK sets the window size.
func WithK(k int) PartitionOption {
	return func(c *partitionConfig) {
		c.k = k
	}
}

// WithHasher selects the window hasher by name ("twobit", "xxh3",
// "murmur3"). The default is twobit for k <= 32 and xxh3 otherwise.
func WithHasher(name string) PartitionOption {
	return func(c *partitionConfig) {
		c.hasher = name
	}
}

// WithWorkers sets the number of hashing goroutines. Values below 1 use
// GOMAXPROCS.
func WithWorkers(n int) PartitionOption {
	return func(c *partitionConfig) {
		c.workers = n
	}
}

// WithBatchSize sets how many reads each worker task hashes.
func WithBatchSize(n int) PartitionOption {
	return func(c *partitionConfig) {
		c.batchSize = n
	}
}

// WithProgress registers a callback invoked from the consuming goroutine
// every few batches, at most about once a second, and at the end of
// every pass.
func WithProgress(fn func(Progress)) PartitionOption {
	return func(c *partitionConfig) {
		c.progress = fn
	}
}

// KeepInvalid writes reads that yield no windows to the output with cluster
// identifier 0 instead of dropping them.
func KeepInvalid() PartitionOption {
	return func(c *partitionConfig) {
		c.keepInvalid = true
	}
}

// WithEngineOptions sets the options used to build the Engine for each run.
func WithEngineOptions(opts ...Option) PartitionOption {
	return func(c *partitionConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// Partitioner clusters the reads of one or more FASTA/FASTQ files and
// writes every read annotated with its cluster identifier.
//
// Each Run streams the input three times: once to build the membership
// sketches, once to assign and merge clusters, and once to resolve each
// read's final cluster and write it out. Parsing and hashing fan out over
// worker goroutines; a single goroutine applies results to the Engine in
// input order, so output is deterministic for a given input and
// configuration regardless of the worker count.
type Partitioner struct {
	cfg    *partitionConfig
	engine *config
	log    *Logger
}

// NewPartitioner validates opts and returns a Partitioner.
func NewPartitioner(opts ...PartitionOption) (*Partitioner, error) {
	cfg := defaultPartitionConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.k < 1 {
		return nil, fmt.Errorf("%w: k=%d", bleuerrors.ErrInvalidK, cfg.k)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	if cfg.batchSize < 1 {
		cfg.batchSize = DefaultBatchSize
	}
	if _, err := kmer.New(cfg.hasher, cfg.k); err != nil {
		return nil, err
	}

	ecfg := defaultConfig()
	for _, opt := range cfg.engineOpts {
		opt(ecfg)
	}
	if err := ecfg.resolve(); err != nil {
		return nil, err
	}

	return &Partitioner{cfg: cfg, engine: ecfg, log: ecfg.logger}, nil
}

// Run clusters the reads in inputs and writes them to output, compressed
// according to its extension. Output "-" writes to standard output.
//
// Every output record has the same format: the one named by the output
// extension (.fa, .fq, ...), else FASTQ when every non-empty input is FASTQ
// and FASTA otherwise. FASTA output drops quality strings. FASTQ output from FASTA
// input fails with ErrFormatMismatch before any pass runs.
//
// The output is written to a temporary file beside it and renamed into
// place only after the last pass succeeds.
func (p *Partitioner) Run(ctx context.Context, inputs []string, output string) (_ *Report, err error) {
	if len(inputs) == 0 {
		return nil, bleuerrors.ErrNoInputs
	}
	start := time.Now()
	runID := uuid.NewString()
	log := p.log.WithRun(runID)

	ecfg := *p.engine
	ecfg.logger = log
	eng := newEngine(&ecfg)

	format, err := outputFormat(inputs, output)
	if err != nil {
		return nil, err
	}
	w, err := seqio.Create(output, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("discard output: %w", cerr))
		}
	}()

	log.Info("run started", "inputs", len(inputs), "output", output, "format", format,
		"k", p.cfg.k, "hashes", ecfg.hashes, "id_max", ecfg.idMax, "workers", p.cfg.workers)

	rep := &Report{RunID: runID, ReadsPerCluster: make(map[ClusterID]uint64)}

	err = p.stream(ctx, PassObserve, inputs, log, func(b *batch) error {
		for i := range b.recs {
			rep.Reads++
			if !b.valid[i] {
				continue
			}
			rep.ValidReads++
			for _, h := range b.hashes[i] {
				if err := eng.Observe(h); err != nil {
					return err
				}
			}
			rep.Windows += uint64(len(b.hashes[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rep.Windows > 0 {
		if err := eng.Finalize(); err != nil {
			return nil, err
		}
		err = p.stream(ctx, PassAssign, inputs, log, func(b *batch) error {
			for i := range b.recs {
				if !b.valid[i] {
					continue
				}
				if _, err := eng.AssignRead(b.hashes[i]); err != nil {
					return fmt.Errorf("read %q: %w", b.recs[i].Name, err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("no valid windows in input; every read is unclustered")
	}

	err = p.stream(ctx, PassResolve, inputs, log, func(b *batch) error {
		for i, rec := range b.recs {
			id := NoCluster
			if b.valid[i] {
				id = eng.ResolveRead(b.hashes[i])
				rep.ReadsPerCluster[id]++
			} else if !p.cfg.keepInvalid {
				continue
			}
			if err := w.Write(rec, uint64(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := w.Finish(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	rep.Clusters = eng.ClusterCount()
	rep.Written = w.Records()
	rep.OutputDigest = w.Sum64()
	rep.Elapsed = time.Since(start)

	log.Info("run complete",
		"reads", rep.Reads,
		"valid_reads", rep.ValidReads,
		"windows", rep.Windows,
		"clusters", rep.Clusters,
		"written", rep.Written,
		"elapsed", rep.Elapsed)
	return rep, nil
}

// outputFormat picks the record format for output. Inputs that cannot be
// opened are skipped here; the observe pass reports them.
func outputFormat(inputs []string, output string) (seqio.Format, error) {
	named, ok := seqio.FormatForPath(output)
	if ok && named == seqio.FASTA {
		return seqio.FASTA, nil
	}

	var sawFASTA, sawFASTQ bool
	for _, path := range inputs {
		in, err := inputFormat(path)
		if err != nil {
			continue
		}
		switch in {
		case seqio.FASTA:
			if ok {
				return 0, fmt.Errorf("%w: %s is FASTA, output %s is FASTQ",
					bleuerrors.ErrFormatMismatch, path, output)
			}
			sawFASTA = true
		case seqio.FASTQ:
			sawFASTQ = true
		}
	}
	if ok || (sawFASTQ && !sawFASTA) {
		return seqio.FASTQ, nil
	}
	return seqio.FASTA, nil
}

func inputFormat(path string) (_ seqio.Format, err error) {
	r, err := seqio.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	return r.Format(), nil
}

// batch is a unit of work: a run of consecutive records plus, once hashed,
// their validity and window hashes.
type batch struct {
	seq     uint64
	recs    []seqio.Record
	valid   []bool
	hashes  [][]uint64
	windows uint64
}

// stream runs one pass: a reader goroutine batches records, workers hash
// them, and apply sees every batch exactly once in input order.
func (p *Partitioner) stream(ctx context.Context, pass Pass, inputs []string, log *Logger, apply func(*batch) error) error {
	log = log.WithPass(pass)
	log.Info("pass started")

	// Hashers reuse internal buffers, so each worker gets its own.
	hashers := make([]kmer.Hasher, p.cfg.workers)
	for i := range hashers {
		h, err := kmer.New(p.cfg.hasher, p.cfg.k)
		if err != nil {
			return err
		}
		hashers[i] = h
	}

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan *batch, p.cfg.workers*batchChanMultiplier)
	done := make(chan *batch, p.cfg.workers*batchChanMultiplier)

	g.Go(func() error {
		defer close(work)
		return p.readBatches(gctx, inputs, work)
	})

	var workers sync.WaitGroup
	for _, h := range hashers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for b := range work {
				p.hashBatch(h, b)
				select {
				case done <- b:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		close(done)
		return nil
	})

	g.Go(func() error {
		return p.consume(gctx, pass, done, apply, log)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s pass: %w", pass, err)
	}
	return nil
}

// consume reorders hashed batches by sequence number and applies them.
func (p *Partitioner) consume(ctx context.Context, pass Pass, done <-chan *batch, apply func(*batch) error, log *Logger) error {
	pending := make(map[uint64]*batch)
	var next uint64
	prog := Progress{Pass: pass}
	sometimes := rate.Sometimes{Every: progressEveryBatches, Interval: progressInterval}

	for b := range done {
		pending[b.seq] = b
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if err := ctx.Err(); err != nil {
				return err
			}
			if err := apply(ready); err != nil {
				return err
			}
			prog.Reads += uint64(len(ready.recs))
			prog.Windows += ready.windows
			if p.cfg.progress != nil {
				sometimes.Do(func() { p.cfg.progress(prog) })
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d batches never applied", len(pending))
	}

	prog.Done = true
	if p.cfg.progress != nil {
		p.cfg.progress(prog)
	}
	log.Info("pass complete", "reads", prog.Reads, "windows", prog.Windows)
	return nil
}

// readBatches reads every input in order and sends numbered batches.
func (p *Partitioner) readBatches(ctx context.Context, inputs []string, work chan<- *batch) error {
	var seq uint64
	b := &batch{recs: make([]seqio.Record, 0, p.cfg.batchSize)}
	flush := func() error {
		select {
		case work <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
		seq++
		b = &batch{seq: seq, recs: make([]seqio.Record, 0, p.cfg.batchSize)}
		return nil
	}

	for _, path := range inputs {
		err := readInput(path, func(rec seqio.Record) error {
			b.recs = append(b.recs, rec)
			if len(b.recs) == p.cfg.batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if len(b.recs) > 0 {
		return flush()
	}
	return nil
}

func readInput(path string, emit func(seqio.Record) error) (err error) {
	r, err := seqio.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

// hashBatch marks which records are usable and computes their windows.
func (p *Partitioner) hashBatch(h kmer.Hasher, b *batch) {
	b.valid = make([]bool, len(b.recs))
	b.hashes = make([][]uint64, len(b.recs))
	for i, rec := range b.recs {
		if !kmer.Valid(rec.Seq, p.cfg.k) {
			continue
		}
		b.valid[i] = true
		b.hashes[i] = h.AppendHashes(make([]uint64, 0, kmer.Windows(len(rec.Seq), p.cfg.k)), rec.Seq)
		b.windows += uint64(len(b.hashes[i]))
	}
}
