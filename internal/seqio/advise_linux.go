//go:build linux

package seqio

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints that a compressed input will be streamed front
// to back. Best-effort: errors are ignored.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// madviseSequential enables aggressive readahead on a mapped input.
func madviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
