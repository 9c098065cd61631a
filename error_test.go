package bleu

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// ---------------------------------------------------------------------------
// Category 1: Input errors surface through Run
// ---------------------------------------------------------------------------

func runOnContent(t *testing.T, name, content string) error {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))
	_, err := newTestPartitioner(t).Run(context.Background(), []string{input}, filepath.Join(dir, "out.fa"))
	if err != nil {
		requireNoOutput(t, dir)
	}
	return err
}

func TestRunUnknownFormat(t *testing.T) {
	err := runOnContent(t, "reads.txt", "ACGTACGTACGTACGTACGT\n")
	require.ErrorIs(t, err, bleuerrors.ErrUnknownFormat)
	require.Contains(t, err.Error(), "observe pass")
}

func TestRunMalformedFASTQ(t *testing.T) {
	err := runOnContent(t, "reads.fq", "@q\nACGTACGTACGTACGTACGT\n+\nIII\n")
	require.ErrorIs(t, err, bleuerrors.ErrMalformed)
	require.Contains(t, err.Error(), "reads.fq")
}

func TestRunCorruptCompressedInput(t *testing.T) {
	err := runOnContent(t, "reads.fa.gz", ">not really gzip\nACGT\n")
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Category 2: Output errors
// ---------------------------------------------------------------------------

func TestRunFailureKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.fa")
	require.NoError(t, os.WriteFile(output, []byte(">previous\tACGT\n"), 0o644))
	input := filepath.Join(dir, "reads.fq")
	require.NoError(t, os.WriteFile(input, []byte("@q\nACGTACGTACGTACGTACGT\n+\nIII\n"), 0o644))

	_, err := newTestPartitioner(t).Run(context.Background(), []string{input}, output)
	require.ErrorIs(t, err, bleuerrors.ErrMalformed)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, ">previous\tACGT\n", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temporary file left beside the output")
}

func TestRunOutputDirectoryMissing(t *testing.T) {
	input := writeReads(t, "reads.fa", overlappingReads(t))
	output := filepath.Join(t.TempDir(), "missing", "out.fa")
	_, err := newTestPartitioner(t).Run(context.Background(), []string{input}, output)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "create output"))
}

// ---------------------------------------------------------------------------
// Category 3: Engine state errors
// ---------------------------------------------------------------------------

func TestAssignReadBeforeFinalize(t *testing.T) {
	e := newTestEngine(t, WithTableSizes(smallTables...))
	_, err := e.AssignRead([]uint64{1, 2, 3})
	require.ErrorIs(t, err, bleuerrors.ErrNotFinalized)
	require.Equal(t, NoCluster, e.ResolveRead([]uint64{1, 2, 3}))
}

func TestEmptyReadHasNoCluster(t *testing.T) {
	e := newTestEngine(t, WithTableSizes(smallTables...))
	observeN(t, e, 2, 1)
	require.NoError(t, e.Finalize())

	id, err := e.AssignRead(nil)
	require.NoError(t, err)
	require.Equal(t, NoCluster, id)
	require.Equal(t, 0, e.ClusterCount())
}
