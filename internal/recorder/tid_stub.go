//go:build !linux

package recorder

// gettid returns a fixed thread id on platforms without a cheap thread
// identity syscall. Gating degrades to recording everything, matching
// the default policy.
func gettid() uint64 {
	return 0
}
