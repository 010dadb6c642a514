package recorder

import (
	"unsafe"

	"github.com/slicetrace/slicetrace/internal/entry"
)

// The hook methods below are the dispatch surface invoked by
// compiler-inserted instrumentation. Each validates thread gating,
// updates shadow-stack state, constructs one record, and appends it.
// They allocate nothing and never block outside of a window rotation.

// StartBlock records that the basic block id belonging to the function
// at fn has started executing. It produces no record; the pushed frame
// exists so a termination record can be synthesized if the program
// dies before the block completes.
func (r *Recorder) StartBlock(id uint32, fn uintptr) {
	if r.gated() {
		return
	}

	if err := r.tracker.EnterBlock(id, uint64(fn)); err != nil {
		r.fatalf("block %d: %v", id, err)

		return
	}

	r.metrics.BlockStackDepth.Set(float64(r.tracker.BlockDepth()))
}

// EndBlock records that the basic block id has finished executing.
// last marks a block whose terminator is a return; its termination
// record is tagged with the id of the call that invoked the function,
// recovered from the call shadow stack.
func (r *Recorder) EndBlock(id uint32, fn uintptr, last bool) {
	if r.gated() {
		return
	}

	callID, mismatch := r.tracker.ExitBlock(id, uint64(fn), last)
	if mismatch {
		r.metrics.Mismatches.Inc()
	}

	r.append(entry.BasicBlock(id, uint64(fn), callID))

	r.metrics.BlockStackDepth.Set(float64(r.tracker.BlockDepth()))
	r.metrics.CallStackDepth.Set(float64(r.tracker.CallDepth()))
}

// Load records a read of length bytes starting at addr.
func (r *Recorder) Load(id uint32, addr uintptr, length uint64) {
	if r.gated() {
		return
	}

	r.append(entry.Load(id, uint64(addr), length))
}

// Store records a write of length bytes starting at addr.
func (r *Recorder) Store(id uint32, addr uintptr, length uint64) {
	if r.gated() {
		return
	}

	r.append(entry.Store(id, uint64(addr), length))
}

// StringLoad records a read of the NUL-terminated string at p. The
// recorded length includes the terminator byte.
func (r *Recorder) StringLoad(id uint32, p unsafe.Pointer) {
	if r.gated() {
		return
	}

	r.append(entry.Load(id, uint64(uintptr(p)), strlen(p)+1))
}

// StringStore records a write of the NUL-terminated string at p. The
// recorded length includes the terminator byte.
func (r *Recorder) StringStore(id uint32, p unsafe.Pointer) {
	if r.gated() {
		return
	}

	r.append(entry.Store(id, uint64(uintptr(p)), strlen(p)+1))
}

// ConcatStore records the write performed by appending the string at
// src onto the string at dst: it starts at dst's terminator and covers
// the source string plus the new terminator.
func (r *Recorder) ConcatStore(id uint32, dst, src unsafe.Pointer) {
	if r.gated() {
		return
	}

	start := uint64(uintptr(dst)) + strlen(dst)

	r.append(entry.Store(id, start, strlen(src)+1))
}

// Call records that the call site id invoked the traced function at
// fn, and pushes a call frame so the function's last block can be
// matched back to this site.
func (r *Recorder) Call(id uint32, fn uintptr) {
	if r.gated() {
		return
	}

	r.append(entry.Call(id, uint64(fn)))

	if r.tracker.PushCall(id, uint64(fn)) {
		r.metrics.CallStackDrops.Inc()
	}

	r.metrics.CallStackDepth.Set(float64(r.tracker.CallDepth()))
}

// ExternalCall records a call into a function with no traced body. No
// call frame is pushed: no matching block exit will ever fire for it.
func (r *Recorder) ExternalCall(id uint32, fn uintptr) {
	if r.gated() {
		return
	}

	r.append(entry.Call(id, uint64(fn)))
}

// Return records, at the call site, that control returned to the
// caller. Together with the callee-side matching in EndBlock this
// bounds both views of the same call.
func (r *Recorder) Return(id uint32, fn uintptr) {
	if r.gated() {
		return
	}

	r.append(entry.Return(id, uint64(fn)))
}

// Select records which operand a conditional select chose.
func (r *Recorder) Select(id uint32, flag uint8) {
	if r.gated() {
		return
	}

	r.append(entry.Select(id, flag))
}

// InvariantFailure records an externally detected invariant violation
// at instruction id.
func (r *Recorder) InvariantFailure(id uint32) {
	if r.gated() {
		return
	}

	r.append(entry.InvariantFailure(id))
}

// strlen scans the target program's memory at p for a NUL terminator
// and returns the string length in bytes, excluding the terminator.
func strlen(p unsafe.Pointer) uint64 {
	var n uint64

	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}

	return n
}
