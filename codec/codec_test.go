package codec

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/forest"
	"github.com/hupe1980/arbordb/pinned"
)

func sampleBatch(t *testing.T) (*batch.Batch, *forest.Forest) {
	t.Helper()
	f := forest.New()
	for i := 0; i < 8; i++ {
		f.Append(forest.Object(
			forest.F("id", forest.Int(int64(i))),
			forest.F("ok", forest.Bool(i%2 == 0)),
			forest.F("score", forest.Float(float64(i)*1.5)),
			forest.F("name", forest.String(fmt.Sprintf("n-%d", i))),
			forest.F("kind", forest.Interned("widget")),
			forest.F("born", forest.Date(int32(19000+i))),
			forest.F("seen", forest.Datetime(1700000000_000000+int64(i))),
			forest.F("ttl", forest.Duration(int64(i)*1000)),
			forest.F("raw", forest.Binary([]byte{byte(i), 0xff})),
			forest.F("gone", forest.TypedNull(forest.KindFloat)),
			forest.F("tags", forest.Array(forest.Interned("a"), forest.Null())),
		))
	}
	return batch.Slice(f, 0, f.TreeCount()), f
}

func TestDictRoundTrip(t *testing.T) {
	for _, version := range []uint16{Version1, Version2} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			in := []string{"", "alpha", "beta", "alpha-2", "日本語"}
			enc := Encoder{Version: version}
			buf, err := enc.EncodeDict(in)
			require.NoError(t, err)

			v, kind, err := Inspect(buf)
			require.NoError(t, err)
			assert.Equal(t, version, v)
			assert.Equal(t, KindDict, kind)

			out, err := DecodeDict(buf)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDictEmpty(t *testing.T) {
	buf, err := Encoder{}.EncodeDict(nil)
	require.NoError(t, err)
	out, err := DecodeDict(buf)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBatchRoundTripOwned(t *testing.T) {
	for _, version := range []uint16{Version1, Version2} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			b, f := sampleBatch(t)
			buf, err := Encoder{Version: version}.EncodeBatch(b)
			require.NoError(t, err)

			got, err := DecodeBatchOwned(buf)
			require.NoError(t, err)
			got.Dict = f.Dict

			require.Equal(t, b.TreeCount(), got.TreeCount())
			for i := 0; i < b.TreeCount(); i++ {
				assert.True(t, b.Value(i).Equal(got.Value(i)), "tree %d differs", i)
			}
		})
	}
}

func TestBatchRoundTripView(t *testing.T) {
	b, f := sampleBatch(t)
	buf, err := Encoder{}.EncodeBatch(b)
	require.NoError(t, err)

	released := false
	p := pinned.New(buf, func() { released = true })
	got, err := DecodeBatchView(p)
	require.NoError(t, err)
	got.Dict = f.Dict

	for i := 0; i < b.TreeCount(); i++ {
		assert.True(t, b.Value(i).Equal(got.Value(i)), "tree %d differs", i)
	}

	// The batch holds a clone; the range must stay pinned until both
	// the original handle and the batch are closed.
	p.Close()
	assert.False(t, released)
	got.Close()
	assert.True(t, released)
}

func TestBatchEmpty(t *testing.T) {
	buf, err := Encoder{}.EncodeBatch(&batch.Batch{})
	require.NoError(t, err)
	got, err := DecodeBatchOwned(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TreeCount())
	assert.Equal(t, 0, got.NodeCount())
}

func TestEncodeDeterministic(t *testing.T) {
	b, _ := sampleBatch(t)
	buf1, err := Encoder{}.EncodeBatch(b)
	require.NoError(t, err)
	buf2, err := Encoder{}.EncodeBatch(b)
	require.NoError(t, err)
	assert.Equal(t, buf1, buf2, "same logical batch must encode to identical bytes")
}

func TestAlignedBufferOffsets(t *testing.T) {
	b, _ := sampleBatch(t)
	buf, err := Encoder{Version: Version2}.EncodeBatch(b)
	require.NoError(t, err)

	headerLen := binary.LittleEndian.Uint32(buf[8:12])
	assert.Zero(t, headerLen%pinned.Alignment, "v2 header length must be aligned")

	// Every buffer offset in the meta block must be a multiple of the
	// alignment. Descriptor fields at odd positions are offsets.
	meta := buf[headerSize:headerLen]
	pos := 4 // skip node_count
	checkDesc := func(size int) {
		for field := 8; field < size; field += 8 {
			off := binary.LittleEndian.Uint32(meta[pos+field:])
			assert.Zero(t, off%pinned.Alignment, "unaligned buffer offset %d", off)
		}
		pos += size
	}
	for i := 0; i < 4; i++ {
		checkDesc(fixedDescSize)
	}
	pos += 4 // tree_count
	checkDesc(fixedDescSize)
	for i := 0; i < 3; i++ {
		checkDesc(fixedDescSize)
	}
	checkDesc(varDescSize)
	for i := 0; i < 3; i++ {
		checkDesc(fixedDescSize)
	}
	checkDesc(varDescSize)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	b, _ := sampleBatch(t)
	good, err := Encoder{}.EncodeBatch(b)
	require.NoError(t, err)

	mutate := func(fn func([]byte)) []byte {
		buf := append([]byte(nil), good...)
		fn(buf)
		return buf
	}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"truncated header", good[:8]},
		{"bad magic", mutate(func(b []byte) { b[0] = 'X' })},
		{"future version", mutate(func(b []byte) { binary.LittleEndian.PutUint16(b[4:6], 99) })},
		{"unknown kind", mutate(func(b []byte) { b[6] = 7 })},
		{"non-zero flags", mutate(func(b []byte) { b[7] = 1 })},
		{"total length mismatch", good[:len(good)-1]},
		{"payload length mismatch", mutate(func(b []byte) {
			binary.LittleEndian.PutUint32(b[12:16], binary.LittleEndian.Uint32(b[12:16])+8)
		})},
		{"node count mismatch", mutate(func(b []byte) {
			binary.LittleEndian.PutUint32(b[16:20], binary.LittleEndian.Uint32(b[16:20])+1)
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBatchOwned(tt.buf)
			require.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestDecodeRejectsBadOffsets(t *testing.T) {
	buf, err := Encoder{}.EncodeDict([]string{"aa", "bb"})
	require.NoError(t, err)

	headerLen := binary.LittleEndian.Uint32(buf[8:12])
	meta := buf[headerSize:headerLen]
	offsetsOff := binary.LittleEndian.Uint32(meta[16:20])

	// Break monotonicity of the string offsets.
	bad := append([]byte(nil), buf...)
	payload := bad[headerLen:]
	binary.LittleEndian.PutUint32(payload[offsetsOff+4:], 0xfffffff0)
	_, err = DecodeDict(bad)
	require.ErrorIs(t, err, ErrCorrupted)

	// Final offset no longer matches the values length.
	bad = append([]byte(nil), buf...)
	payload = bad[headerLen:]
	binary.LittleEndian.PutUint32(payload[offsetsOff+8:], 3)
	_, err = DecodeDict(bad)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestDecodeRejectsStrayOffsetOnEmptyBuffer(t *testing.T) {
	// An empty batch has zero-length buffers everywhere. A garbage
	// offset on such a buffer must still be rejected, not sliced.
	buf, err := Encoder{}.EncodeBatch(&batch.Batch{})
	require.NoError(t, err)

	// Bool pool descriptor follows node_count, four node columns,
	// tree_count, and the roots descriptor.
	boolDesc := 4 + 4*fixedDescSize + 4 + fixedDescSize
	bad := append([]byte(nil), buf...)
	binary.LittleEndian.PutUint32(bad[headerSize+boolDesc+16:], 0xfffffff0)

	_, err = DecodeBatchOwned(bad)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestDictKindMismatch(t *testing.T) {
	buf, err := Encoder{}.EncodeBatch(&batch.Batch{})
	require.NoError(t, err)
	_, err = DecodeDict(buf)
	require.ErrorIs(t, err, ErrCorrupted)

	buf, err = Encoder{}.EncodeDict([]string{"a"})
	require.NoError(t, err)
	_, err = DecodeBatchOwned(buf)
	require.ErrorIs(t, err, ErrCorrupted)
}

func FuzzDecodeBatch(f *testing.F) {
	b := &batch.Batch{}
	b.Kinds = []uint32{uint32(forest.KindObject), uint32(forest.KindInt)}
	b.Parents = []uint32{forest.NoParent, 0}
	b.Data0 = []uint32{1, 0}
	b.Data1 = []uint32{0, 0}
	b.Roots = []uint32{0}
	b.Pools.Int.Add(42, false)

	for _, version := range []uint16{Version1, Version2} {
		seed, err := Encoder{Version: version}.EncodeBatch(b)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(seed)
	}
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Decode must either succeed or fail cleanly; it must never
		// panic on arbitrary input.
		if got, err := DecodeBatchOwned(data); err == nil {
			_ = got.TreeCount()
		}
		if got, err := DecodeDict(data); err == nil {
			_ = len(got)
		}
	})
}
