// Package errors defines all exported error sentinels for the bleu library.
//
// This is the single source of truth for error values. Both the top-level
// bleu package and internal packages import from here, ensuring errors.Is
// checks work across package boundaries.
package errors

import "errors"

// Configuration errors
var (
	ErrInvalidHashCount      = errors.New("bleu: hash function count must be between 2 and 255")
	ErrInvalidIDMax          = errors.New("bleu: identifier ceiling must be between 1 and 65534")
	ErrInvalidTableSize      = errors.New("bleu: table sizes must be positive and strictly decreasing")
	ErrInvalidPartitionWidth = errors.New("bleu: partition width must be positive")
	ErrInvalidK              = errors.New("bleu: window size out of range for hasher")
	ErrUnknownHasher         = errors.New("bleu: unknown hasher")
)

// Sequencing errors
var (
	ErrAlreadyFinalized = errors.New("bleu: index already finalized")
	ErrNotFinalized     = errors.New("bleu: index not finalized")
	ErrNoObservations   = errors.New("bleu: finalize called before any observation")
)

// Invariant errors
var (
	ErrIndexOutOfRange = errors.New("bleu: sketch position out of range")
	ErrRankOutOfRange  = errors.New("bleu: rank outside cluster offset table")
	ErrNotConfirmed    = errors.New("bleu: bin is not confirmed")
	ErrUnknownCluster  = errors.New("bleu: working cluster is not live")
)

// Input errors
var (
	ErrUnknownFormat  = errors.New("bleu: input is neither FASTA nor FASTQ")
	ErrMalformed      = errors.New("bleu: malformed sequence record")
	ErrNoInputs       = errors.New("bleu: no input files")
	ErrFormatMismatch = errors.New("bleu: FASTQ output needs quality strings on every record")
)
