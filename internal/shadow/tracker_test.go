package shadow

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicetrace/slicetrace/internal/entry"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newTestTracker(t *testing.T, blockDepth, callDepth int) *Tracker {
	t.Helper()

	return NewTracker(testLog(), Config{
		BlockStackDepth: blockDepth,
		CallStackDepth:  callDepth,
	})
}

func TestMatchedCallReturn(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	tr.PushCall(5, 0x1000)
	require.NoError(t, tr.EnterBlock(1, 0x1000))

	callID, mismatch := tr.ExitBlock(1, 0x1000, true)
	assert.False(t, mismatch)
	assert.Equal(t, uint32(5), callID)
	assert.Equal(t, 0, tr.CallDepth())
	assert.Equal(t, 0, tr.BlockDepth())
}

func TestNonFinalBlockLeavesCallStack(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	tr.PushCall(5, 0x1000)
	require.NoError(t, tr.EnterBlock(1, 0x1000))

	callID, mismatch := tr.ExitBlock(1, 0x1000, false)
	assert.False(t, mismatch)
	assert.Equal(t, uint32(0), callID)
	assert.Equal(t, 1, tr.CallDepth())
}

func TestOutermostReturnUsesSentinel(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	require.NoError(t, tr.EnterBlock(1, 0x1000))

	callID, mismatch := tr.ExitBlock(1, 0x1000, true)
	assert.False(t, mismatch)
	assert.Equal(t, entry.SentinelCallID, callID)
}

func TestMismatchLeavesCallStackUntouched(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	// Call frame for function A; the returning block claims B.
	tr.PushCall(5, 0xaaaa)
	require.NoError(t, tr.EnterBlock(1, 0xbbbb))

	callID, mismatch := tr.ExitBlock(1, 0xbbbb, true)
	assert.True(t, mismatch)
	assert.Equal(t, uint32(0), callID)
	assert.Equal(t, uint64(1), tr.Mismatches())

	top, ok := tr.CallTop()
	require.True(t, ok)
	assert.Equal(t, Frame{ID: 5, Addr: 0xaaaa}, top)
}

func TestBlockStackOverflowIsFatal(t *testing.T) {
	const depth = 8

	tr := newTestTracker(t, depth, 16)

	for i := range depth {
		require.NoError(t, tr.EnterBlock(uint32(i+1), 0x1000))
	}

	assert.ErrorIs(t, tr.EnterBlock(depth+1, 0x1000), ErrBlockStackOverflow)
}

func TestCallStackOverflowDropsFrame(t *testing.T) {
	const depth = 4

	tr := newTestTracker(t, 16, depth)

	for i := range depth {
		assert.False(t, tr.PushCall(uint32(i+1), 0x1000))
	}

	assert.True(t, tr.PushCall(depth+1, 0x1000))
	assert.Equal(t, uint64(1), tr.CallDrops())
	assert.Equal(t, depth, tr.CallDepth())
}

func TestDrainPopsLIFO(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	require.NoError(t, tr.EnterBlock(1, 0x100))
	require.NoError(t, tr.EnterBlock(2, 0x200))
	require.NoError(t, tr.EnterBlock(3, 0x300))

	var drained []Frame

	tr.Drain(func(f Frame) {
		drained = append(drained, f)
	})

	assert.Equal(t, []Frame{
		{ID: 3, Addr: 0x300},
		{ID: 2, Addr: 0x200},
		{ID: 1, Addr: 0x100},
	}, drained)
	assert.Equal(t, 0, tr.BlockDepth())
}

func TestExitOnEmptyBlockStack(t *testing.T) {
	tr := newTestTracker(t, 16, 16)

	// Malformed hook sequence must not underflow.
	callID, mismatch := tr.ExitBlock(1, 0x1000, true)
	assert.False(t, mismatch)
	assert.Equal(t, entry.SentinelCallID, callID)
	assert.Equal(t, 0, tr.BlockDepth())
}
