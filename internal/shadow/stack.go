package shadow

import "errors"

// ErrOverflow is returned by Push when a stack is at capacity.
var ErrOverflow = errors.New("shadow stack overflow")

// Frame is one shadow-stack entry: the compile-time id of the block or
// call site, and the address of the function it belongs to.
type Frame struct {
	ID   uint32
	Addr uint64
}

// Stack is a capacity-bounded LIFO of Frames backed by a preallocated
// array. Push and Pop never allocate.
type Stack struct {
	frames []Frame
	depth  int
}

// NewStack creates a Stack holding at most capacity frames.
func NewStack(capacity int) *Stack {
	return &Stack{frames: make([]Frame, capacity)}
}

// Push adds f on top of the stack, returning ErrOverflow if full.
func (s *Stack) Push(f Frame) error {
	if s.depth == len(s.frames) {
		return ErrOverflow
	}

	s.frames[s.depth] = f
	s.depth++

	return nil
}

// Pop removes and returns the top frame. ok is false on an empty stack.
func (s *Stack) Pop() (f Frame, ok bool) {
	if s.depth == 0 {
		return Frame{}, false
	}

	s.depth--

	return s.frames[s.depth], true
}

// Top returns the top frame without removing it.
func (s *Stack) Top() (f Frame, ok bool) {
	if s.depth == 0 {
		return Frame{}, false
	}

	return s.frames[s.depth-1], true
}

// Len returns the current depth.
func (s *Stack) Len() int { return s.depth }

// Cap returns the maximum depth.
func (s *Stack) Cap() int { return len(s.frames) }

// Full reports whether the stack is at capacity.
func (s *Stack) Full() bool { return s.depth == len(s.frames) }

// Empty reports whether the stack holds no frames.
func (s *Stack) Empty() bool { return s.depth == 0 }
