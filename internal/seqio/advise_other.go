//go:build !linux

package seqio

import "os"

// adviseSequential is a no-op on non-Linux platforms.
func adviseSequential(f *os.File) {}

// madviseSequential is a no-op on non-Linux platforms.
func madviseSequential(data []byte) {}
