package bleu

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tamirms/bleu/internal/kmer"
	"github.com/tamirms/bleu/internal/seqio"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// randomGenome returns n uniformly random bases.
func randomGenome(rng *rand.Rand, n int) []byte {
	const bases = "ACGT"
	g := make([]byte, n)
	for i := range g {
		g[i] = bases[rng.IntN(len(bases))]
	}
	return g
}

// revComp returns the reverse complement of seq.
func revComp(seq []byte) []byte {
	return kmer.ReverseComplement(nil, seq)
}

// writeReads writes recs as plain FASTA (or FASTQ when they carry quality
// strings) to a file named name in a temp directory.
func writeReads(t testing.TB, name string, recs []seqio.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	var sb strings.Builder
	for _, rec := range recs {
		if rec.Qual != nil {
			sb.WriteString("@" + rec.Name + "\n" + string(rec.Seq) + "\n+\n" + string(rec.Qual) + "\n")
		} else {
			sb.WriteString(">" + rec.Name + "\n" + string(rec.Seq) + "\n")
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

// annotated is one output record split into its name and cluster id.
type annotated struct {
	name string
	id   ClusterID
	seq  string
}

// readAnnotated parses a Partitioner output file.
func readAnnotated(t testing.TB, path string) []annotated {
	t.Helper()
	r, err := seqio.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var out []annotated
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		name, idText, ok := strings.Cut(rec.Name, "\t")
		require.True(t, ok, "record %q has no cluster id", rec.Name)
		id, err := strconv.ParseUint(idText, 10, 16)
		require.NoError(t, err)
		out = append(out, annotated{name: name, id: ClusterID(id), seq: string(rec.Seq)})
	}
}
