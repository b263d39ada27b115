package objhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumAndStringRoundTrip(t *testing.T) {
	t.Parallel()

	h := Sum([]byte("hello world"))
	parsed, err := FromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := FromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFromHexRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := FromHex("deadbeef")
	assert.Error(t, err)
}

func TestFromHexRejectsInvalidHex(t *testing.T) {
	t.Parallel()

	_, err := FromHex("zz" + string(make([]byte, Size*2-2)))
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	t.Parallel()

	var h Hash
	assert.True(t, h.IsZero())

	h = Sum([]byte("x"))
	assert.False(t, h.IsZero())
}

func TestCompareAndLess(t *testing.T) {
	t.Parallel()

	a := Sum([]byte("a"))
	b := Sum([]byte("b"))

	if Compare(a, b) < 0 {
		assert.True(t, Less(a, b))
		assert.False(t, Less(b, a))
	} else {
		assert.True(t, Less(b, a))
		assert.False(t, Less(a, b))
	}
	assert.Equal(t, 0, Compare(a, a))
}

func TestMarshalUnmarshalText(t *testing.T) {
	t.Parallel()

	h := Sum([]byte("marshal me"))
	text, err := h.MarshalText()
	require.NoError(t, err)

	var decoded Hash
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, h, decoded)
}
