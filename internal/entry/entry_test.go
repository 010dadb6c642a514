package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	e := Load(42, 0xdeadbeef, 8)

	var b [Size]byte

	Marshal(b[:], e)
	assert.Equal(t, e, Unmarshal(b[:]))
}

func TestMarshalLayout(t *testing.T) {
	var b [Size]byte

	Marshal(b[:], Entry{
		Kind:    KindStore,
		ID:      0x01020304,
		Address: 0x1122334455667788,
		Length:  16,
	})

	assert.Equal(t, byte(KindStore), b[0])
	// Little-endian field placement.
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[4:8])
	assert.Equal(t, byte(0x88), b[8])
	assert.Equal(t, byte(0x11), b[15])
	assert.Equal(t, byte(16), b[16])
}

func TestBasicBlockCarriesCallID(t *testing.T) {
	e := BasicBlock(7, 0x1000, 99)
	assert.Equal(t, KindBasicBlock, e.Kind)
	assert.Equal(t, uint64(99), e.Length)

	outer := BasicBlock(7, 0x1000, SentinelCallID)
	assert.Equal(t, SentinelCallID, uint32(outer.Length))
}

func TestSelectCarriesFlagInAddress(t *testing.T) {
	assert.Equal(t, uint64(1), Select(3, 1).Address)
	assert.Equal(t, uint64(0), Select(3, 0).Address)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "basic_block", KindBasicBlock.String())
	assert.Equal(t, "end_of_trace", KindEndOfTrace.String())
	assert.Equal(t, "unknown(77)", Kind(77).String())
	assert.False(t, Kind(77).Valid())
	assert.True(t, KindSelect.Valid())
}

func TestVerifyHeader(t *testing.T) {
	require.NoError(t, VerifyHeader(Header()))

	bad := Header()
	bad.Address = 0x1234
	assert.ErrorContains(t, VerifyHeader(bad), "magic")

	bad = Header()
	bad.ID = FormatVersion + 1
	assert.ErrorContains(t, VerifyHeader(bad), "version")

	bad = Header()
	bad.Length = 32
	assert.ErrorContains(t, VerifyHeader(bad), "record size")

	assert.Error(t, VerifyHeader(EndOfTrace()))
}
