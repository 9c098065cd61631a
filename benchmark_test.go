package bleu

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tamirms/bleu/internal/kmer"
	"github.com/tamirms/bleu/internal/seqio"
)

const (
	benchReadLen = 150
	benchK       = 32
)

// benchReads samples n reads of benchReadLen from a genome sized so each
// position is covered about ten times, and returns their window hashes.
func benchReads(b *testing.B, n int) [][]uint64 {
	b.Helper()
	rng := newTestRNG(b)
	genome := randomGenome(rng, n*benchReadLen/10+benchReadLen)
	h, err := kmer.NewTwoBit(benchK)
	if err != nil {
		b.Fatal(err)
	}
	reads := make([][]uint64, n)
	for i := range reads {
		start := rng.IntN(len(genome) - benchReadLen + 1)
		reads[i] = h.AppendHashes(nil, genome[start:start+benchReadLen])
	}
	return reads
}

func observedEngine(b *testing.B, reads [][]uint64) *Engine {
	b.Helper()
	e, err := NewEngine(WithMemoryBudget(1 << 24))
	if err != nil {
		b.Fatal(err)
	}
	for _, ws := range reads {
		for _, h := range ws {
			if err := e.Observe(h); err != nil {
				b.Fatal(err)
			}
		}
	}
	if err := e.Finalize(); err != nil {
		b.Fatal(err)
	}
	return e
}

func benchmarkObserveN(b *testing.B, n int) {
	reads := benchReads(b, n)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		observedEngine(b, reads)
	}
}

func BenchmarkObserve1K(b *testing.B)   { benchmarkObserveN(b, 1000) }
func BenchmarkObserve10K(b *testing.B)  { benchmarkObserveN(b, 10000) }
func BenchmarkObserve100K(b *testing.B) { benchmarkObserveN(b, 100000) }

func benchmarkAssignN(b *testing.B, n int) {
	reads := benchReads(b, n)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		b.StopTimer()
		e := observedEngine(b, reads)
		b.StartTimer()
		for _, ws := range reads {
			if _, err := e.AssignRead(ws); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkAssign1K(b *testing.B)   { benchmarkAssignN(b, 1000) }
func BenchmarkAssign10K(b *testing.B)  { benchmarkAssignN(b, 10000) }
func BenchmarkAssign100K(b *testing.B) { benchmarkAssignN(b, 100000) }

func BenchmarkLookup(b *testing.B) {
	reads := benchReads(b, 10000)
	e := observedEngine(b, reads)
	for _, ws := range reads {
		if _, err := e.AssignRead(ws); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := range b.N {
		ws := reads[i%len(reads)]
		_ = e.Lookup(ws[i%len(ws)])
	}
}

func BenchmarkPartitioner(b *testing.B) {
	rng := newTestRNG(b)
	genome := randomGenome(rng, 100_000)
	recs := make([]seqio.Record, 10000)
	for i := range recs {
		start := rng.IntN(len(genome) - benchReadLen + 1)
		recs[i] = seqio.Record{Name: "r", Seq: genome[start : start+benchReadLen]}
	}
	input := writeReads(b, "reads.fa", recs)
	output := filepath.Join(b.TempDir(), "out.fa")

	p, err := NewPartitioner(WithK(benchK), WithEngineOptions(WithMemoryBudget(1<<24)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if _, err := p.Run(context.Background(), []string{input}, output); err != nil {
			b.Fatal(err)
		}
	}
}
