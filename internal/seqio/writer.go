package seqio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	bleuerrors "github.com/tamirms/bleu/errors"
)

const (
	writeBufferSize = 1 << 20
	outputFileMode  = 0o644
)

// FormatForPath returns the record format named by path's extension,
// looking past a compression suffix: "reads.fq.gz" is FASTQ. ok is false
// when the extension names no record format.
func FormatForPath(path string) (format Format, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz", ".zst", ".zstd", ".lz4":
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	switch ext {
	case ".fa", ".fasta", ".fna", ".ffn", ".frn":
		return FASTA, true
	case ".fq", ".fastq":
		return FASTQ, true
	}
	return 0, false
}

// Writer emits records annotated with their cluster ID, all in one format:
//
//	FASTA               FASTQ
//	>name<TAB>id        @name<TAB>id
//	seq                 seq
//	                    +
//	                    qual
//
// FASTA output drops quality strings; FASTQ output rejects records without
// one. Sum64 returns an xxhash64 digest of the uncompressed output.
//
// Output written by Create lands in a temporary file next to the target and
// is renamed into place by Finish. Close without Finish removes it, so a
// failed run never leaves a partial file at the target path.
type Writer struct {
	format   Format
	bw       *bufio.Writer
	digest   *xxhash.Digest
	closers  []func() error
	tmp      string // temporary file; empty for NewWriter and stdout
	path     string
	finished bool
	scratch  []byte
	records  uint64
}

// Create prepares path for writing records in format, compressing by
// extension (.gz, .zst, .lz4). The path "-" writes to standard output.
func Create(path string, format Format) (*Writer, error) {
	if format != FASTA && format != FASTQ {
		return nil, fmt.Errorf("%w: output format %d", bleuerrors.ErrUnknownFormat, int(format))
	}
	if path == "-" {
		return NewWriter(os.Stdout, format), nil
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	_ = f.Chmod(outputFileMode) // CreateTemp uses 0600; best-effort

	var (
		dst     io.Writer
		closers []func() error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zw := gzip.NewWriter(f)
		dst, closers = zw, []func() error{zw.Close, f.Close}
	case ".zst", ".zstd":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("zstd output: %w", err), f.Close(), os.Remove(f.Name()))
		}
		dst, closers = zw, []func() error{zw.Close, f.Close}
	case ".lz4":
		zw := lz4.NewWriter(f)
		dst, closers = zw, []func() error{zw.Close, f.Close}
	default:
		dst, closers = f, []func() error{f.Close}
	}

	w := NewWriter(dst, format)
	w.closers = closers
	w.tmp = f.Name()
	w.path = path
	return w, nil
}

// NewWriter returns a Writer over dst. Finish flushes but does not close dst.
func NewWriter(dst io.Writer, format Format) *Writer {
	digest := xxhash.New()
	return &Writer{
		format: format,
		bw:     bufio.NewWriterSize(io.MultiWriter(dst, digest), writeBufferSize),
		digest: digest,
	}
}

// Format returns the output record format.
func (w *Writer) Format() Format { return w.format }

// Write emits rec annotated with id.
func (w *Writer) Write(rec Record, id uint64) error {
	if w.finished {
		return errors.New("seqio: write after Finish or Close")
	}
	fastq := w.format == FASTQ
	if fastq && rec.Qual == nil {
		return fmt.Errorf("%w: record %q", bleuerrors.ErrFormatMismatch, rec.Name)
	}

	b := w.scratch[:0]
	if fastq {
		b = append(b, '@')
	} else {
		b = append(b, '>')
	}
	b = append(b, rec.Name...)
	b = append(b, '\t')
	b = strconv.AppendUint(b, id, 10)
	b = append(b, '\n')
	b = append(b, rec.Seq...)
	b = append(b, '\n')
	if fastq {
		b = append(b, "+\n"...)
		b = append(b, rec.Qual...)
		b = append(b, '\n')
	}
	w.scratch = b

	if _, err := w.bw.Write(b); err != nil {
		return fmt.Errorf("write record %q: %w", rec.Name, err)
	}
	w.records++
	return nil
}

// Records returns the number of records written.
func (w *Writer) Records() uint64 { return w.records }

// Sum64 returns the digest of everything written so far. Call after Finish
// to include buffered bytes.
func (w *Writer) Sum64() uint64 { return w.digest.Sum64() }

// Finish flushes buffered output, closes any compressor and file, and
// renames the output into place. On failure the temporary file is removed.
func (w *Writer) Finish() error {
	if w.finished {
		return errors.New("seqio: Finish called twice")
	}
	w.finished = true

	err := errors.Join(w.bw.Flush(), closeAll(w.closers))
	w.closers = nil
	if w.tmp == "" {
		return err
	}
	if err == nil {
		if err = os.Rename(w.tmp, w.path); err != nil {
			err = fmt.Errorf("commit output: %w", err)
		}
	}
	if err != nil {
		return errors.Join(err, removeIfExists(w.tmp))
	}
	return nil
}

// Close discards an unfinished output. Safe to call after Finish.
func (w *Writer) Close() error {
	if w.finished {
		return nil
	}
	w.finished = true
	err := closeAll(w.closers)
	w.closers = nil
	if w.tmp != "" {
		err = errors.Join(err, removeIfExists(w.tmp))
	}
	return err
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
