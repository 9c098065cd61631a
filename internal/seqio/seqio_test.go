package seqio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	bleuerrors "github.com/tamirms/bleu/errors"
)

func readAll(t *testing.T, r *Reader) []Record {
	t.Helper()
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFASTAMultiLine(t *testing.T) {
	path := writeFile(t, "reads.fa", ">r1 desc\nACGT\nTTGA\n\n>r2\nGGCC\r\n>r3\n")
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, FASTA, r.Format())
	recs := readAll(t, r)
	require.Len(t, recs, 3)
	require.Equal(t, "r1 desc", recs[0].Name)
	require.Equal(t, "ACGTTTGA", string(recs[0].Seq))
	require.Nil(t, recs[0].Qual)
	require.Equal(t, "GGCC", string(recs[1].Seq))
	require.Equal(t, "r3", recs[2].Name)
	require.Empty(t, recs[2].Seq)
}

func TestReadFASTQ(t *testing.T) {
	path := writeFile(t, "reads.fq", "@q1\nACGTA\n+\nIIIII\n@q2\nGG\n+q2\n##")
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, FASTQ, r.Format())
	recs := readAll(t, r)
	require.Len(t, recs, 2)
	require.Equal(t, "q1", recs[0].Name)
	require.Equal(t, "ACGTA", string(recs[0].Seq))
	require.Equal(t, "IIIII", string(recs[0].Qual))
	require.Equal(t, "##", string(recs[1].Qual))
}

func TestReadRecordsOutliveNext(t *testing.T) {
	r, err := NewReader(strings.NewReader(">a\nAAAA\n>b\nCCCC\n"))
	require.NoError(t, err)
	first, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "AAAA", string(first.Seq))
}

func TestReadEmptyInput(t *testing.T) {
	path := writeFile(t, "empty.fa", "")
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadErrors(t *testing.T) {
	_, err := NewReader(strings.NewReader("ACGT\n"))
	require.ErrorIs(t, err, bleuerrors.ErrUnknownFormat)

	r, err := NewReader(strings.NewReader("@q\nACGT\n+\nII\n"))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, bleuerrors.ErrMalformed)

	r, err = NewReader(strings.NewReader("@q\nACGT\n"))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, bleuerrors.ErrMalformed)

	_, err = Open(filepath.Join(t.TempDir(), "missing.fa"))
	require.Error(t, err)
}

func TestWriterFASTADropsQuality(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, FASTA)
	require.NoError(t, w.Write(Record{Name: "r1", Seq: []byte("ACGT")}, 3))
	require.NoError(t, w.Write(Record{Name: "q1", Seq: []byte("GG"), Qual: []byte("II")}, 0))
	require.NoError(t, w.Finish())

	want := ">r1\t3\nACGT\n>q1\t0\nGG\n"
	require.Equal(t, want, sb.String())
	require.Equal(t, xxhash.Sum64String(want), w.Sum64())
	require.Equal(t, uint64(2), w.Records())
}

func TestWriterFASTQRequiresQuality(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb, FASTQ)
	require.NoError(t, w.Write(Record{Name: "q1", Seq: []byte("GG"), Qual: []byte("II")}, 5))
	err := w.Write(Record{Name: "r1", Seq: []byte("ACGT")}, 3)
	require.ErrorIs(t, err, bleuerrors.ErrFormatMismatch)
	require.Contains(t, err.Error(), "r1")
	require.NoError(t, w.Finish())

	require.Equal(t, "@q1\t5\nGG\n+\nII\n", sb.String())
	require.Equal(t, uint64(1), w.Records())
}

func TestWriterOutputReadsBackAsOneFormat(t *testing.T) {
	for _, format := range []Format{FASTA, FASTQ} {
		t.Run(format.String(), func(t *testing.T) {
			var sb strings.Builder
			w := NewWriter(&sb, format)
			for i := range 3 {
				rec := Record{Name: "r", Seq: []byte("ACGTAC"), Qual: []byte("IIIIII")}
				require.NoError(t, w.Write(rec, uint64(i)))
			}
			require.NoError(t, w.Finish())

			r, err := NewReader(strings.NewReader(sb.String()))
			require.NoError(t, err)
			require.Equal(t, format, r.Format())
			require.Len(t, readAll(t, r), 3)
		})
	}
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "out.fa"), 0)
	require.ErrorIs(t, err, bleuerrors.ErrUnknownFormat)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFinishRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fa")
	w, err := Create(path, FASTA)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Name: "a", Seq: []byte("ACGT")}, 1))

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist, "target appears before Finish")

	require.NoError(t, w.Finish())
	require.NoError(t, w.Close(), "Close after Finish is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ">a\t1\nACGT\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "out.fa", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o044, "output is group/world readable")

	require.Error(t, w.Finish())
}

func TestCloseWithoutFinishDiscards(t *testing.T) {
	for _, ext := range []string{".fa", ".fa.gz", ".fq.zst", ".fa.lz4"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			format, ok := FormatForPath("out" + ext)
			require.True(t, ok)
			w, err := Create(filepath.Join(dir, "out"+ext), format)
			require.NoError(t, err)
			require.NoError(t, w.Write(Record{Name: "a", Seq: []byte("ACGT"), Qual: []byte("IIII")}, 1))
			require.NoError(t, w.Close())

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Empty(t, entries)
			require.Error(t, w.Write(Record{Name: "b", Seq: []byte("ACGT")}, 2))
		})
	}
}

func TestCloseKeepsExistingOutput(t *testing.T) {
	path := writeFile(t, "out.fa", ">old\tACGT\n")
	w, err := Create(path, FASTA)
	require.NoError(t, err)
	require.NoError(t, w.Write(Record{Name: "new", Seq: []byte("ACGT")}, 1))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ">old\tACGT\n", string(data))
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path   string
		format Format
		ok     bool
	}{
		{"out.fa", FASTA, true},
		{"out.FASTA", FASTA, true},
		{"dir/out.fna.gz", FASTA, true},
		{"out.fq", FASTQ, true},
		{"out.fastq.zst", FASTQ, true},
		{"out.fq.lz4", FASTQ, true},
		{"out.txt", 0, false},
		{"out.zst", 0, false},
		{"-", 0, false},
	}
	for _, tt := range tests {
		format, ok := FormatForPath(tt.path)
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.format, format, tt.path)
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	recs := []Record{
		{Name: "a", Seq: []byte("GATTACAGATTACA")},
		{Name: "b", Seq: []byte("TGTAATCTGTAATC")},
	}
	for _, ext := range []string{".fa", ".fa.gz", ".fa.zst", ".fa.lz4"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+ext)
			w, err := Create(path, FASTA)
			require.NoError(t, err)
			for i, rec := range recs {
				require.NoError(t, w.Write(rec, uint64(i+1)))
			}
			require.NoError(t, w.Finish())

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()
			got := readAll(t, r)
			require.Len(t, got, len(recs))
			for i, rec := range got {
				require.Equal(t, recs[i].Name+"\t"+string(rune('1'+i)), rec.Name)
				require.Equal(t, recs[i].Seq, rec.Seq)
			}
		})
	}
}

func TestDigestIndependentOfCompression(t *testing.T) {
	var digests []uint64
	for _, ext := range []string{".fq", ".fq.gz", ".fq.zst"} {
		w, err := Create(filepath.Join(t.TempDir(), "out"+ext), FASTQ)
		require.NoError(t, err)
		require.NoError(t, w.Write(Record{Name: "q", Seq: []byte("ACGT"), Qual: []byte("IIII")}, 7))
		require.NoError(t, w.Finish())
		digests = append(digests, w.Sum64())
	}
	require.Equal(t, digests[0], digests[1])
	require.Equal(t, digests[0], digests[2])
}
