// Package bleu clusters sequencing reads by shared k-mers in memory that
// grows with the number of distinct repeated windows, not with the input.
//
// A window that occurs only once in the whole input cannot link two reads,
// so the first pass records every window in a set of two-generation bit
// sketches, one per hash table, and keeps only windows seen at least twice.
// After Finalize each confirmed sketch bit has a dense rank, and a parallel
// table of 16-bit cluster identifiers is allocated per hash table. The
// second pass walks every read's windows in order: empty cells are claimed
// for the read's working cluster, occupied cells vote, and a read that
// touches two clusters merges them. A window is trusted only when every
// hash table agrees that it is present.
//
// # Basic Usage
//
// Clustering files end to end:
//
//	p, err := bleu.NewPartitioner(
//	    bleu.WithK(31),
//	    bleu.WithEngineOptions(bleu.WithMemoryBudget(1<<30)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep, err := p.Run(ctx, []string{"reads.fq.gz"}, "clustered.fq.zst")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d clusters\n", rep.Clusters)
//
// Driving the Engine directly with precomputed window hashes:
//
//	eng, err := bleu.NewEngine()
//	for _, h := range allWindows {
//	    _ = eng.Observe(h)
//	}
//	_ = eng.Finalize()
//	for _, read := range reads {
//	    _, _ = eng.AssignRead(read)
//	}
//	id := eng.ResolveRead(reads[0])
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: engine.go (NewEngine, Observe, Finalize, Stats), assign.go
//     (Assign, AssignRead, Lookup, ResolveRead), partition.go (Partitioner)
//   - Configuration: options.go (Option, With* functions)
//   - Sketches and ranks: membership.go, internal/bits (bit sketch, popcount)
//   - Cluster identity: offsets.go (identifier tables), registry.go (merges,
//     identifier recycling, eviction)
//   - Input and output: internal/kmer (canonical window hashes),
//     internal/seqio (FASTA/FASTQ, compression, memory mapping)
//   - Errors: errors/ (sentinel errors)
package bleu
