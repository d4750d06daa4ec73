package pinned

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseOnLastClose(t *testing.T) {
	released := 0
	b := New(make([]byte, 16), func() { released++ })

	c := b.Clone()
	s := b.Slice(4, 12)
	assert.Equal(t, 8, s.Len())

	b.Close()
	assert.Equal(t, 0, released)
	c.Close()
	assert.Equal(t, 0, released)
	s.Close()
	assert.Equal(t, 1, released)
}

func TestSliceSharesMemory(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	b := FromBytes(data)
	defer b.Close()

	s := b.Slice(2, 6)
	defer s.Close()
	require.Equal(t, []byte{2, 3, 4, 5}, s.Data())

	data[3] = 99
	assert.Equal(t, byte(99), s.Data()[1], "slice must alias, not copy")
}

func TestUint32Views(t *testing.T) {
	raw := []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}

	want := []uint32{1, 0xffffffff}
	assert.Equal(t, want, Uint32sCopy(raw))

	if v, ok := Uint32s(raw); ok {
		assert.Equal(t, want, v)
	}

	// Odd length can never be viewed in place.
	_, ok := Uint32s([]byte{1, 2, 3})
	assert.False(t, ok)
	assert.Empty(t, Uint32sCopy([]byte{1, 2, 3}))
}

func TestInt64AndFloat64Copies(t *testing.T) {
	raw := []byte{
		0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // -2
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f, // 1.0
	}

	i64 := Int64sCopy(raw[:8])
	require.Len(t, i64, 1)
	assert.Equal(t, int64(-2), i64[0])

	f64 := Float64sCopy(raw[8:])
	require.Len(t, f64, 1)
	assert.Equal(t, 1.0, f64[0])
}

func TestBitmapHelpers(t *testing.T) {
	bm := make([]byte, BitmapLen(10))
	require.Len(t, bm, 2)

	BitmapSet(bm, 0)
	BitmapSet(bm, 9)
	assert.True(t, BitmapGet(bm, 0))
	assert.False(t, BitmapGet(bm, 1))
	assert.True(t, BitmapGet(bm, 9))
	assert.Equal(t, byte(0x01), bm[0])
	assert.Equal(t, byte(0x02), bm[1])
}

func TestUnsafeString(t *testing.T) {
	assert.Equal(t, "", UnsafeString(nil))
	assert.Equal(t, "abc", UnsafeString([]byte("abc")))
}

func TestEmptyViewAlignment(t *testing.T) {
	b := FromBytes(nil)
	defer b.Close()
	assert.True(t, b.AlignedTo(Alignment))
	v, ok := Uint32s(nil)
	assert.True(t, ok)
	assert.Empty(t, v)
}
