// Bleu clusters sequencing reads by shared k-mers and writes each read
// annotated with its cluster identifier.
//
// Usage:
//
//	bleu [flags] -o clustered.fa.gz reads_1.fq.gz reads_2.fq.gz
//
// Flags:
//
//	-config     YAML configuration file; flags override its values
//	-o          Output path; extension selects compression, "-" for stdout
//	-k          Window size (default: 32)
//	-hashes     Number of hash tables (default: 8)
//	-memory     Total sketch size in bits (default: 2^27)
//	-idmax      Maximum live clusters (default: 65534)
//	-partition  Sketch bits per rank partition (default: 1000)
//	-hasher     twobit, xxh3 or murmur3 (default: twobit for k <= 32)
//	-workers    Hashing goroutines (default: GOMAXPROCS)
//	-keep       Write reads with no valid windows under cluster 0
//	-log        Log format: text or json
//	-v          Debug logging and progress on stderr
//	-top        Largest clusters to list in the summary (default: 20)
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/tamirms/bleu"
	"github.com/tamirms/bleu/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "bleu: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bleu", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	output := fs.String("o", "", "output path (\"-\" for stdout)")
	kFlag := fs.Int("k", 0, "window size")
	hashesFlag := fs.Int("hashes", 0, "number of hash tables")
	memoryFlag := fs.Uint64("memory", 0, "total sketch size in bits")
	idMaxFlag := fs.Int("idmax", 0, "maximum live clusters")
	partitionFlag := fs.Uint64("partition", 0, "sketch bits per rank partition")
	hasherFlag := fs.String("hasher", "", "window hasher: twobit, xxh3 or murmur3")
	workersFlag := fs.Int("workers", 0, "hashing goroutines (0 = GOMAXPROCS)")
	keepFlag := fs.Bool("keep", false, "write reads with no valid windows under cluster 0")
	logFlag := fs.String("log", "", "log format: text or json")
	verbose := fs.Bool("v", false, "debug logging and progress on stderr")
	top := fs.Int("top", 20, "largest clusters to list in the summary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "k":
			cfg.K = *kFlag
		case "hashes":
			cfg.Hashes = *hashesFlag
			cfg.TableSizes = nil
		case "memory":
			cfg.MemoryBits = *memoryFlag
			cfg.TableSizes = nil
		case "idmax":
			cfg.IDMax = *idMaxFlag
		case "partition":
			cfg.PartitionWidth = *partitionFlag
		case "hasher":
			cfg.Hasher = *hasherFlag
		case "workers":
			cfg.Workers = *workersFlag
		case "keep":
			cfg.KeepInvalid = *keepFlag
		case "log":
			cfg.Logging.Format = *logFlag
		case "v":
			if *verbose {
				cfg.Logging.Level = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	inputs := fs.Args()
	if len(inputs) == 0 || *output == "" {
		fs.Usage()
		return errors.New("need -o and at least one input")
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	engineOpts := []bleu.Option{
		bleu.WithIDMax(cfg.IDMax),
		bleu.WithPartitionWidth(cfg.PartitionWidth),
		bleu.WithLogger(logger),
	}
	if len(cfg.TableSizes) > 0 {
		engineOpts = append(engineOpts, bleu.WithTableSizes(cfg.TableSizes...))
	} else {
		engineOpts = append(engineOpts, bleu.WithHashes(cfg.Hashes), bleu.WithMemoryBudget(cfg.MemoryBits))
	}

	opts := []bleu.PartitionOption{
		bleu.WithK(cfg.K),
		bleu.WithHasher(cfg.Hasher),
		bleu.WithWorkers(cfg.Workers),
		bleu.WithBatchSize(cfg.BatchSize),
		bleu.WithEngineOptions(engineOpts...),
	}
	if cfg.KeepInvalid {
		opts = append(opts, bleu.KeepInvalid())
	}
	if *verbose {
		opts = append(opts, bleu.WithProgress(printProgress))
	}

	p, err := bleu.NewPartitioner(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := p.Run(ctx, inputs, *output)
	if err != nil {
		return err
	}

	// Keep the summary off stdout when the records go there.
	summary := io.Writer(os.Stdout)
	if *output == "-" {
		summary = os.Stderr
	}
	printSummary(summary, rep, *top)
	return nil
}

// newLogger builds the handler named by l. Format matching ignores case,
// as Validate does.
func newLogger(l config.Logging) (*bleu.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(l.Format, "json") {
		return bleu.NewJSONLogger(level), nil
	}
	return bleu.NewTextLogger(level), nil
}

func printProgress(p bleu.Progress) {
	fmt.Fprintf(os.Stderr, "\r%-8s %12d reads %14d windows", p.Pass, p.Reads, p.Windows)
	if p.Done {
		fmt.Fprintln(os.Stderr)
	}
}

type clusterSize struct {
	id    bleu.ClusterID
	reads uint64
}

func printSummary(w io.Writer, rep *bleu.Report, top int) {
	sizes := make([]clusterSize, 0, len(rep.ReadsPerCluster))
	for id, n := range rep.ReadsPerCluster {
		if id != bleu.NoCluster {
			sizes = append(sizes, clusterSize{id: id, reads: n})
		}
	}
	slices.SortFunc(sizes, func(a, b clusterSize) int {
		if c := cmp.Compare(b.reads, a.reads); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	fmt.Fprintf(w, "run              %s\n", rep.RunID)
	fmt.Fprintf(w, "reads            %d (%d valid)\n", rep.Reads, rep.ValidReads)
	fmt.Fprintf(w, "windows          %d\n", rep.Windows)
	fmt.Fprintf(w, "unclustered      %d\n", rep.ReadsPerCluster[bleu.NoCluster])
	fmt.Fprintf(w, "unique clusters  %d\n", len(sizes))
	fmt.Fprintf(w, "output digest    %016x\n", rep.OutputDigest)
	fmt.Fprintf(w, "elapsed          %s\n", rep.Elapsed.Round(time.Millisecond))

	if len(sizes) == 0 || top <= 0 {
		return
	}
	fmt.Fprintf(w, "\n%8s %12s\n", "cluster", "reads")
	for _, s := range sizes[:min(top, len(sizes))] {
		fmt.Fprintf(w, "%8d %12d\n", s.id, s.reads)
	}
}
