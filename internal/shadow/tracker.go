// Package shadow reconstructs call/return and basic-block nesting
// structure from the flat sequence of hook invocations. The hooks
// observe one event at a time; the tracker's two bounded stacks carry
// the state needed to match a function's last basic block back to the
// call that invoked it.
//
// Like the entry cache, the tracker is single-writer: no locking
// protects either stack.
package shadow

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/slicetrace/slicetrace/internal/entry"
)

// ErrBlockStackOverflow indicates block nesting beyond the configured
// bound. This invalidates the trace and the caller must abort.
var ErrBlockStackOverflow = errors.New("basic block stack overflow")

// Tracker maintains the basic-block and function-call shadow stacks.
type Tracker struct {
	log    logrus.FieldLogger
	blocks *Stack
	calls  *Stack

	callDrops  uint64
	mismatches uint64
}

// NewTracker creates a Tracker with the configured stack bounds.
func NewTracker(log logrus.FieldLogger, cfg Config) *Tracker {
	if cfg.BlockStackDepth == 0 {
		cfg.BlockStackDepth = DefaultBlockStackDepth
	}

	if cfg.CallStackDepth == 0 {
		cfg.CallStackDepth = DefaultCallStackDepth
	}

	return &Tracker{
		log:    log.WithField("component", "shadow"),
		blocks: NewStack(cfg.BlockStackDepth),
		calls:  NewStack(cfg.CallStackDepth),
	}
}

// EnterBlock pushes a block frame when a basic block starts executing.
// Overflow returns ErrBlockStackOverflow; the caller must treat it as
// fatal.
func (t *Tracker) EnterBlock(id uint32, fn uint64) error {
	if err := t.blocks.Push(Frame{ID: id, Addr: fn}); err != nil {
		return ErrBlockStackOverflow
	}

	return nil
}

// ExitBlock pops the block frame for a finished basic block and
// returns the call id to tag its termination record with. mismatch
// reports that the top call frame did not belong to the block's
// function.
//
// When last is set, the block's terminator is a return, so the top
// call frame should belong to the block's function. If the addresses
// match, the call frame is popped and its id returned. A mismatch can
// legitimately happen when the function was entered from untraced
// code; the call stack is left untouched. An empty call stack means
// the outermost frame (program main), tagged with the sentinel id.
func (t *Tracker) ExitBlock(id uint32, fn uint64, last bool) (callID uint32, mismatch bool) {
	if last {
		if top, ok := t.calls.Top(); ok {
			if top.Addr != fn {
				mismatch = true
				t.mismatches++
				t.log.WithFields(logrus.Fields{
					"block_id":   id,
					"block_fn":   fn,
					"call_id":    top.ID,
					"call_fn":    top.Addr,
					"mismatches": t.mismatches,
				}).Warn("Call stack function does not match returning block, possibly entered from untraced code")
			} else {
				frame, _ := t.calls.Pop()
				callID = frame.ID
			}
		} else {
			callID = entry.SentinelCallID
		}
	}

	if _, ok := t.blocks.Pop(); !ok {
		t.log.WithField("block_id", id).
			Warn("Block exit with empty block stack")
	}

	return callID, mismatch
}

// PushCall records a traced call on the call stack. Overflow is
// tolerated: the frame is dropped and return matching degrades for
// this subtree rather than crashing the traced program. dropped
// reports whether the frame was lost.
func (t *Tracker) PushCall(id uint32, fn uint64) (dropped bool) {
	if err := t.calls.Push(Frame{ID: id, Addr: fn}); err != nil {
		t.callDrops++
		t.log.WithFields(logrus.Fields{
			"call_id": id,
			"drops":   t.callDrops,
		}).Warn("Call stack overflow, dropping frame")

		return true
	}

	return false
}

// Drain pops every remaining block frame in LIFO order, invoking emit
// for each. It captures the blocks in flight when the process dies so
// partial traces from crashed runs stay analyzable.
func (t *Tracker) Drain(emit func(Frame)) {
	for {
		frame, ok := t.blocks.Pop()
		if !ok {
			return
		}

		emit(frame)
	}
}

// BlockDepth returns the current basic-block nesting depth.
func (t *Tracker) BlockDepth() int { return t.blocks.Len() }

// CallDepth returns the current tracked call nesting depth.
func (t *Tracker) CallDepth() int { return t.calls.Len() }

// CallTop returns the top call frame, if any. Used by tests and
// diagnostics.
func (t *Tracker) CallTop() (Frame, bool) { return t.calls.Top() }

// CallDrops returns the number of call frames dropped to overflow.
func (t *Tracker) CallDrops() uint64 { return t.callDrops }

// Mismatches returns the number of call/block address mismatches seen.
func (t *Tracker) Mismatches() uint64 { return t.mismatches }
