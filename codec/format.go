// Package codec encodes and decodes dictionary and batch payloads with
// an explicit, versioned, alignment-aware binary layout.
//
// Every payload starts with a common 16-byte header followed by a meta
// block of array descriptors and a buffer section. All multi-byte
// integers are little-endian. Version 1 packs buffers back to back;
// version 2 places every buffer at a 64-byte boundary relative to the
// payload start, which lets typed views be built directly over pinned
// source bytes.
package codec

import (
	"errors"
	"fmt"
)

const (
	// Magic identifies arbordb payloads (ASCII "ARBD" on the wire).
	Magic uint32 = 0x44425241

	// Version1 packs buffers without padding; decode always copies.
	Version1 uint16 = 1
	// Version2 aligns every buffer to pinned.Alignment, enabling
	// in-place typed views when the container itself is aligned.
	Version2 uint16 = 2

	// CurrentVersion is what encoders emit by default.
	CurrentVersion = Version2

	// KindDict tags a dictionary payload, KindBatch a batch payload.
	KindDict  uint8 = 1
	KindBatch uint8 = 2

	headerSize = 16
)

// ErrCorrupted is wrapped by every decode failure caused by
// untrustworthy bytes. It always carries a human-readable cause.
var ErrCorrupted = errors.New("codec: corrupted payload")

// ErrTooLarge is returned when a payload would exceed the 32-bit
// container limits.
var ErrTooLarge = errors.New("codec: payload exceeds format limits")

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupted, fmt.Sprintf(format, args...))
}

// header is the fixed 16-byte container prefix.
type header struct {
	magic      uint32
	version    uint16
	kind       uint8
	flags      uint8
	headerLen  uint32
	payloadLen uint32
}

// arrayDesc locates one array's buffers inside the payload section.
// Offsets are relative to the start of the buffer section; a zero
// length marks an absent buffer.
type arrayDesc struct {
	count       uint32
	nullCount   uint32
	validityOff uint32
	validityLen uint32
	offsetsOff  uint32 // variable-width arrays only
	offsetsLen  uint32
	valuesOff   uint32
	valuesLen   uint32
}

const (
	fixedDescSize = 24
	varDescSize   = 32
)

// Meta block sizes. The batch meta block is: node_count, four node
// array descriptors, tree_count, the roots descriptor, then the eight
// pool descriptors in frozen order (bool, int64, float64, string,
// date, datetime, duration, binary). Adding a ninth pool requires a
// version bump: pools carry no per-pool type tag.
const (
	dictMetaSize  = varDescSize
	batchMetaSize = 4 + 4*fixedDescSize + 4 + fixedDescSize +
		6*fixedDescSize + 2*varDescSize
)

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
