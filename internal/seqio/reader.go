// Package seqio reads FASTA/FASTQ records and writes cluster-annotated
// records, transparently handling gzip, zstd and lz4 compression.
package seqio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	bleuerrors "github.com/tamirms/bleu/errors"
)

// readBufferSize is the bufio buffer size for record parsing.
const readBufferSize = 1 << 20

// Format identifies a record format. The zero value means not yet known,
// as for an empty input.
type Format int

const (
	FASTA Format = iota + 1
	FASTQ
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FASTA:
		return "fasta"
	case FASTQ:
		return "fastq"
	default:
		return "unknown"
	}
}

// Record is one named sequence. Qual is nil for FASTA records.
type Record struct {
	Name string
	Seq  []byte
	Qual []byte
}

// Reader parses records from a FASTA or FASTQ stream.
// Returned records own their memory and remain valid after further calls.
type Reader struct {
	br      *bufio.Reader
	format  Format
	closers []func() error
	line    int
}

// Open opens path for reading. Files ending in .gz, .zst or .lz4 are
// decompressed as a stream; other files are memory-mapped.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	var (
		src     io.Reader
		closers []func() error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		adviseSequential(f)
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("gzip input: %w", err), f.Close())
		}
		src, closers = zr, []func() error{zr.Close, f.Close}
	case ".zst", ".zstd":
		adviseSequential(f)
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("zstd input: %w", err), f.Close())
		}
		src, closers = zr, []func() error{func() error { zr.Close(); return nil }, f.Close}
	case ".lz4":
		adviseSequential(f)
		src, closers = lz4.NewReader(f), []func() error{f.Close}
	default:
		src, closers, err = mapFile(f)
		if err != nil {
			return nil, errors.Join(err, f.Close())
		}
	}

	r, err := newReader(src)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", path, err), closeAll(closers))
	}
	r.closers = closers
	return r, nil
}

// mapFile memory-maps f read-only. Per POSIX mmap(2), f is closed as soon
// as the mapping exists.
func mapFile(f *os.File) (io.Reader, []func() error, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat input: %w", err)
	}
	if stat.Size() == 0 {
		return bytes.NewReader(nil), []func() error{f.Close}, nil
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, errors.Join(err, mm.Unmap())
	}
	madviseSequential(mm)
	return bytes.NewReader(mm), []func() error{mm.Unmap}, nil
}

// NewReader returns a Reader over r, detecting the format from the first
// non-blank byte.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r)
}

func newReader(r io.Reader) (*Reader, error) {
	rd := &Reader{br: bufio.NewReaderSize(r, readBufferSize)}
	if err := rd.skipBlank(); err != nil {
		if errors.Is(err, io.EOF) {
			return rd, nil // empty input reads as zero records
		}
		return nil, err
	}
	first, err := rd.br.Peek(1)
	if err != nil {
		return nil, err
	}
	switch first[0] {
	case '>':
		rd.format = FASTA
	case '@':
		rd.format = FASTQ
	default:
		return nil, fmt.Errorf("%w: leading byte %q", bleuerrors.ErrUnknownFormat, first[0])
	}
	return rd, nil
}

// Format returns the detected record format, or 0 for an empty input.
func (r *Reader) Format() Format { return r.format }

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	if err := r.skipBlank(); err != nil {
		return Record{}, err
	}
	if r.format == FASTQ {
		return r.nextFASTQ()
	}
	return r.nextFASTA()
}

func (r *Reader) nextFASTA() (Record, error) {
	header, err := r.readLine()
	if err != nil {
		return Record{}, err
	}
	if len(header) == 0 || header[0] != '>' {
		return Record{}, fmt.Errorf("%w: line %d: expected '>'", bleuerrors.ErrMalformed, r.line)
	}
	rec := Record{Name: string(header[1:])}

	for {
		next, err := r.br.Peek(1)
		if err != nil || next[0] == '>' {
			break
		}
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, err
		}
		rec.Seq = append(rec.Seq, line...)
		if err != nil {
			break
		}
	}
	if rec.Seq == nil {
		rec.Seq = []byte{}
	}
	return rec, nil
}

func (r *Reader) nextFASTQ() (Record, error) {
	var lines [4][]byte
	for i := range lines {
		line, err := r.readLine()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return Record{}, fmt.Errorf("%w: line %d: truncated FASTQ record", bleuerrors.ErrMalformed, r.line)
			}
			return Record{}, err
		}
		lines[i] = line
	}
	if len(lines[0]) == 0 || lines[0][0] != '@' || len(lines[2]) == 0 || lines[2][0] != '+' {
		return Record{}, fmt.Errorf("%w: line %d: bad FASTQ delimiters", bleuerrors.ErrMalformed, r.line)
	}
	if len(lines[1]) != len(lines[3]) {
		return Record{}, fmt.Errorf("%w: line %d: sequence and quality lengths differ", bleuerrors.ErrMalformed, r.line)
	}
	return Record{
		Name: string(lines[0][1:]),
		Seq:  lines[1],
		Qual: lines[3],
	}, nil
}

// readLine returns the next line without its terminator. The final line
// may lack a newline; io.EOF is returned only when nothing was read.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	r.line++
	return bytes.TrimRight(line, "\r\n"), nil
}

// skipBlank consumes empty lines. Returns io.EOF at end of input.
func (r *Reader) skipBlank() error {
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			return err
		}
		if b[0] != '\n' && b[0] != '\r' {
			return nil
		}
		if _, err := r.br.ReadByte(); err != nil {
			return err
		}
	}
}

// Close releases the underlying file, mapping and decompressor.
func (r *Reader) Close() error {
	err := closeAll(r.closers)
	r.closers = nil
	return err
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
