package pinned

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Alignment is the buffer alignment the aligned codec revision
// guarantees, chosen to satisfy every element type and SIMD width.
const Alignment = 64

// Aligned reports whether the start of b is aligned to align bytes.
// Empty slices are trivially aligned.
func Aligned(b []byte, align int) bool {
	if len(b) == 0 {
		return true
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	return addr%uintptr(align) == 0
}

// AlignedTo reports whether the handle's range starts at an address
// aligned to align bytes.
func (b Bytes) AlignedTo(align int) bool {
	return Aligned(b.data, align)
}

// The in-place views below reinterpret raw little-endian wire bytes as
// typed slices. They require a little-endian host (the same assumption
// the mmap-backed columnar loaders make) and element-aligned data;
// callers that cannot meet the alignment requirement use the copying
// variants instead. A view is valid only while the handle the bytes
// came from remains open.

// Uint32s returns an in-place view of b as uint32 elements. ok is false
// when b is not 4-byte aligned or not a whole number of elements.
func Uint32s(b []byte) (v []uint32, ok bool) {
	if len(b)%4 != 0 || !Aligned(b, 4) {
		return nil, false
	}
	if len(b) == 0 {
		return nil, true
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4), true
}

// Int32s returns an in-place view of b as int32 elements.
func Int32s(b []byte) (v []int32, ok bool) {
	if len(b)%4 != 0 || !Aligned(b, 4) {
		return nil, false
	}
	if len(b) == 0 {
		return nil, true
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4), true
}

// Int64s returns an in-place view of b as int64 elements.
func Int64s(b []byte) (v []int64, ok bool) {
	if len(b)%8 != 0 || !Aligned(b, 8) {
		return nil, false
	}
	if len(b) == 0 {
		return nil, true
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8), true
}

// Float64s returns an in-place view of b as float64 elements.
func Float64s(b []byte) (v []float64, ok bool) {
	if len(b)%8 != 0 || !Aligned(b, 8) {
		return nil, false
	}
	if len(b) == 0 {
		return nil, true
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8), true
}

// Uint32sCopy decodes b as little-endian uint32 elements into owned
// memory.
func Uint32sCopy(b []byte) []uint32 {
	n := len(b) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// Int32sCopy decodes b as little-endian int32 elements into owned
// memory.
func Int32sCopy(b []byte) []int32 {
	n := len(b) / 4
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Int64sCopy decodes b as little-endian int64 elements into owned
// memory.
func Int64sCopy(b []byte) []int64 {
	n := len(b) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

// Float64sCopy decodes b as little-endian float64 elements into owned
// memory.
func Float64sCopy(b []byte) []float64 {
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

// UnsafeString returns a string aliasing b without copying. The string
// is valid only while the handle the bytes came from remains open.
func UnsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// BitmapGet returns bit i of an LSB-first bitmap.
func BitmapGet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<(i%8)) != 0
}

// BitmapSet sets bit i of an LSB-first bitmap.
func BitmapSet(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << (i % 8)
}

// BitmapLen returns the byte length of a bitmap holding n bits.
func BitmapLen(n int) int { return (n + 7) / 8 }
