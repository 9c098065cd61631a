// Bench is a benchmarking tool for measuring bleu clustering throughput and
// memory usage on synthetic reads.
//
// Usage:
//
//	go run ./cmd/bench -reads 1000000 -length 150 -genome 5000000
//
// Flags:
//
//	-reads     Number of reads to sample (default: 1,000,000)
//	-length    Read length in bases (default: 150)
//	-genome    Length of the random genome reads are sampled from (default: 5,000,000)
//	-k         Window size (default: 32)
//	-hashes    Number of hash tables (default: 8)
//	-memory    Total sketch size in bits (default: 2^27)
//	-hasher    Window hasher: twobit, xxh3 or murmur3 (default: twobit)
package main

import (
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/bleu"
	"github.com/tamirms/bleu/internal/kmer"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// peakSampler polls heap and RSS every 10ms until stopped.
// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses
// that distort CPU profiles.
type peakSampler struct {
	heap atomic.Uint64
	rss  atomic.Uint64
	done chan struct{}
}

func startSampler(baseHeap, baseRSS uint64) *peakSampler {
	s := &peakSampler{done: make(chan struct{})}
	s.heap.Store(baseHeap)
	s.rss.Store(baseRSS)
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&s.heap, samples[0].Value.Uint64())
				storeMax(&s.rss, getMaxRSS())
			}
		}
	}()
	return s
}

func storeMax(v *atomic.Uint64, n uint64) {
	for {
		old := v.Load()
		if n <= old || v.CompareAndSwap(old, n) {
			return
		}
	}
}

func main() {
	readsFlag := flag.Int("reads", 1_000_000, "number of reads")
	lengthFlag := flag.Int("length", 150, "read length in bases")
	genomeFlag := flag.Int("genome", 5_000_000, "genome length in bases")
	kFlag := flag.Int("k", 32, "window size")
	hashesFlag := flag.Int("hashes", bleu.DefaultHashes, "number of hash tables")
	memoryFlag := flag.Uint64("memory", bleu.DefaultMemoryBudget, "total sketch size in bits")
	hasherFlag := flag.String("hasher", "", "window hasher: twobit, xxh3 or murmur3")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (clustering passes only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (after assignment)")
	flag.Parse()

	numReads := *readsFlag
	readLen := *lengthFlag
	if readLen < *kFlag || *genomeFlag < readLen {
		fmt.Printf("Need k <= length <= genome (k=%d, length=%d, genome=%d)\n", *kFlag, readLen, *genomeFlag)
		return
	}

	fmt.Println("Generating genome...")
	rng := mrand.New(mrand.NewPCG(0x1234, 0x5678))
	const bases = "ACGT"
	genome := make([]byte, *genomeFlag)
	for i := range genome {
		genome[i] = bases[rng.IntN(len(bases))]
	}

	fmt.Println("Sampling reads...")
	reads := make([][]byte, numReads)
	for i := range reads {
		start := rng.IntN(len(genome) - readLen + 1)
		read := genome[start : start+readLen]
		if rng.IntN(2) == 1 {
			read = kmer.ReverseComplement(nil, read)
		}
		reads[i] = read
	}

	hasher, err := kmer.New(*hasherFlag, *kFlag)
	if err != nil {
		fmt.Printf("Hasher: %v\n", err)
		return
	}

	fmt.Println("Hashing windows...")
	hashStart := time.Now()
	windows := make([][]uint64, numReads)
	var numWindows int
	for i, read := range reads {
		windows[i] = hasher.AppendHashes(nil, read)
		numWindows += len(windows[i])
	}
	hashDuration := time.Since(hashStart)

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()
	sampler := startSampler(baseline.Alloc, baselineRSS)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	eng, err := bleu.NewEngine(
		bleu.WithHashes(*hashesFlag),
		bleu.WithMemoryBudget(*memoryFlag),
	)
	if err != nil {
		fmt.Printf("NewEngine failed: %v\n", err)
		return
	}

	fmt.Println("Pass 1: observing windows...")
	observeStart := time.Now()
	for _, ws := range windows {
		for _, h := range ws {
			if err := eng.Observe(h); err != nil {
				fmt.Printf("Observe failed: %v\n", err)
				return
			}
		}
	}
	if err := eng.Finalize(); err != nil {
		fmt.Printf("Finalize failed: %v\n", err)
		return
	}
	observeDuration := time.Since(observeStart)

	fmt.Println("Pass 2: assigning clusters...")
	assignStart := time.Now()
	for _, ws := range windows {
		if _, err := eng.AssignRead(ws); err != nil {
			fmt.Printf("AssignRead failed: %v\n", err)
			return
		}
	}
	assignDuration := time.Since(assignStart)

	fmt.Println("Pass 3: resolving reads...")
	resolveStart := time.Now()
	var unresolved int
	for _, ws := range windows {
		if eng.ResolveRead(ws) == bleu.NoCluster {
			unresolved++
		}
	}
	resolveDuration := time.Since(resolveStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(sampler.done)
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	storeMax(&sampler.heap, final.Alloc)
	storeMax(&sampler.rss, getMaxRSS())
	peakHeapMem := sampler.heap.Load() - baseline.Alloc
	peakRSSMem := sampler.rss.Load() - baselineRSS

	stats := eng.Stats()
	var confirmed, size uint64
	for i := range stats.TableSizes {
		confirmed += stats.Confirmed[i]
		size += stats.TableSizes[i]
	}
	occupancy := float64(confirmed) / float64(size) * 100
	total := observeDuration + assignDuration + resolveDuration

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╦══════════════════╗\n")
	fmt.Printf("║ Reads: %-13d║ k: %-11d ║ Hashes: %-9d║\n", numReads, *kFlag, stats.Hashes)
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value          ║ Note             ║\n")
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Windows             ║ %12d   ║ -                ║\n", numWindows)
	fmt.Printf("║ Sketch occupancy    ║ %6.2f %%       ║ confirmed bins   ║\n", occupancy)
	fmt.Printf("║ Live clusters       ║ %12d   ║ -                ║\n", stats.Clusters)
	fmt.Printf("║ Unresolved reads    ║ %12d   ║ -                ║\n", unresolved)
	fmt.Printf("║ Hash time           ║ %6.2f sec     ║ -                ║\n", hashDuration.Seconds())
	fmt.Printf("║ Observe time        ║ %6.2f sec     ║ incl. finalize   ║\n", observeDuration.Seconds())
	fmt.Printf("║ Assign time         ║ %6.2f sec     ║ -                ║\n", assignDuration.Seconds())
	fmt.Printf("║ Resolve time        ║ %6.2f sec     ║ -                ║\n", resolveDuration.Seconds())
	fmt.Printf("║ Throughput          ║ %6.2f M/sec   ║ windows, 3 passes║\n", float64(numWindows)/total.Seconds()/1_000_000)
	fmt.Printf("║ Peak heap memory    ║ %6.1f MB      ║ -                ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %6.1f MB      ║ -                ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╩══════════════════╝\n")
}
