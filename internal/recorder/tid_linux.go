//go:build linux

package recorder

import "golang.org/x/sys/unix"

// gettid returns the OS thread id of the calling thread.
func gettid() uint64 {
	return uint64(unix.Gettid())
}
