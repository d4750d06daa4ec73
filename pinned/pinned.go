// Package pinned provides reference-counted handles over externally
// owned byte ranges, typically the memory-mapped pages of an open
// read transaction. A handle keeps its owner alive for as long as it
// or any slice derived from it is open; slicing is O(1) and never
// copies.
//
// All raw-pointer and alignment reasoning for the store lives in this
// package. Everything above it only ever sees plain Go slices whose
// lifetime is tied to a handle.
package pinned

import "sync/atomic"

// owner tracks the liveness of the underlying byte range. The release
// callback fires exactly once, when the last handle closes.
type owner struct {
	refs    atomic.Int64
	release func()
}

func (o *owner) retain() {
	o.refs.Add(1)
}

func (o *owner) releaseRef() {
	if o.refs.Add(-1) == 0 && o.release != nil {
		o.release()
	}
}

// Bytes is an owned, cheaply cloneable reference to a byte range.
//
// Each handle returned by New, Clone, or Slice must be closed exactly
// once. The underlying range is released when the last handle closes.
type Bytes struct {
	owner *owner
	data  []byte
}

// New wraps data in a pinned handle. release is invoked when the last
// handle over this range is closed; it may be nil for process-owned
// memory.
func New(data []byte, release func()) Bytes {
	o := &owner{release: release}
	o.refs.Store(1)
	return Bytes{owner: o, data: data}
}

// FromBytes wraps process-owned memory. Close is a no-op beyond
// reference bookkeeping.
func FromBytes(data []byte) Bytes {
	return New(data, nil)
}

// Clone returns a second handle over the same range.
func (b Bytes) Clone() Bytes {
	if b.owner != nil {
		b.owner.retain()
	}
	return b
}

// Slice returns a handle over data[lo:hi]. The new handle shares the
// owner and must be closed independently.
func (b Bytes) Slice(lo, hi int) Bytes {
	if b.owner != nil {
		b.owner.retain()
	}
	return Bytes{owner: b.owner, data: b.data[lo:hi]}
}

// Derive returns a handle over data that shares b's owner. It is used
// by transaction wrappers that pin many distinct value ranges to one
// snapshot: each value handle keeps the snapshot alive independently.
func (b Bytes) Derive(data []byte) Bytes {
	if b.owner != nil {
		b.owner.retain()
	}
	return Bytes{owner: b.owner, data: data}
}

// Close releases this handle. The underlying range stays alive until
// every handle over it has been closed.
func (b Bytes) Close() {
	if b.owner != nil {
		b.owner.releaseRef()
	}
}

// Data returns the referenced bytes. The slice is valid only while the
// handle (or a clone of it) remains open, and must not be modified.
func (b Bytes) Data() []byte { return b.data }

// Len returns the length of the referenced range.
func (b Bytes) Len() int { return len(b.data) }
