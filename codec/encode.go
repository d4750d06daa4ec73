package codec

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/pinned"
)

// Encoder produces dictionary and batch payloads. The zero value emits
// the current (aligned) version.
type Encoder struct {
	// Version selects the wire layout: Version1 (packed) or Version2
	// (aligned). Zero means CurrentVersion.
	Version uint16
}

func (e Encoder) version() uint16 {
	if e.Version == 0 {
		return CurrentVersion
	}
	return e.Version
}

func (e Encoder) bufferAlign() int {
	if e.version() >= Version2 {
		return pinned.Alignment
	}
	return 1
}

// EncodeDict encodes the ordered dictionary string table. Dictionary
// strings are never null.
func (e Encoder) EncodeDict(strings []string) ([]byte, error) {
	sec := &section{align: e.bufferAlign()}
	desc, err := encodeStringArray(sec, strings, nil)
	if err != nil {
		return nil, err
	}

	meta := make([]byte, 0, dictMetaSize)
	meta = appendVarDesc(meta, desc)
	return e.container(KindDict, meta, sec)
}

// EncodeBatch encodes one batch payload.
func (e Encoder) EncodeBatch(b *batch.Batch) ([]byte, error) {
	sec := &section{align: e.bufferAlign()}

	kinds, err := encodeU32Array(sec, b.Kinds)
	if err != nil {
		return nil, err
	}
	parents, err := encodeU32Array(sec, b.Parents)
	if err != nil {
		return nil, err
	}
	data0, err := encodeU32Array(sec, b.Data0)
	if err != nil {
		return nil, err
	}
	data1, err := encodeU32Array(sec, b.Data1)
	if err != nil {
		return nil, err
	}
	roots, err := encodeU32Array(sec, b.Roots)
	if err != nil {
		return nil, err
	}

	boolPool, err := encodeBoolArray(sec, b.Pools.Bool.Values, b.Pools.Bool.Valid)
	if err != nil {
		return nil, err
	}
	intPool, err := encodeInt64Array(sec, b.Pools.Int.Values, b.Pools.Int.Valid)
	if err != nil {
		return nil, err
	}
	floatPool, err := encodeFloat64Array(sec, b.Pools.Float.Values, b.Pools.Float.Valid)
	if err != nil {
		return nil, err
	}
	strPool, err := encodeStringArray(sec, b.Pools.Str.Values, b.Pools.Str.Valid)
	if err != nil {
		return nil, err
	}
	datePool, err := encodeInt32Array(sec, b.Pools.Date.Values, b.Pools.Date.Valid)
	if err != nil {
		return nil, err
	}
	datetimePool, err := encodeInt64Array(sec, b.Pools.Datetime.Values, b.Pools.Datetime.Valid)
	if err != nil {
		return nil, err
	}
	durationPool, err := encodeInt64Array(sec, b.Pools.Duration.Values, b.Pools.Duration.Valid)
	if err != nil {
		return nil, err
	}
	binaryPool, err := encodeBytesArray(sec, b.Pools.Binary.Values, b.Pools.Binary.Valid)
	if err != nil {
		return nil, err
	}

	meta := make([]byte, 0, batchMetaSize)
	meta = binary.LittleEndian.AppendUint32(meta, uint32(len(b.Kinds)))
	meta = appendFixedDesc(meta, kinds)
	meta = appendFixedDesc(meta, parents)
	meta = appendFixedDesc(meta, data0)
	meta = appendFixedDesc(meta, data1)
	meta = binary.LittleEndian.AppendUint32(meta, uint32(len(b.Roots)))
	meta = appendFixedDesc(meta, roots)
	meta = appendFixedDesc(meta, boolPool)
	meta = appendFixedDesc(meta, intPool)
	meta = appendFixedDesc(meta, floatPool)
	meta = appendVarDesc(meta, strPool)
	meta = appendFixedDesc(meta, datePool)
	meta = appendFixedDesc(meta, datetimePool)
	meta = appendFixedDesc(meta, durationPool)
	meta = appendVarDesc(meta, binaryPool)

	return e.container(KindBatch, meta, sec)
}

// container assembles header + meta + buffer section.
func (e Encoder) container(kind uint8, meta []byte, sec *section) ([]byte, error) {
	headerLen := headerSize + len(meta)
	if e.version() >= Version2 {
		headerLen = alignUp(headerLen, pinned.Alignment)
	}
	total := headerLen + len(sec.buf)
	if int64(total) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint16(out[4:6], e.version())
	out[6] = kind
	out[7] = 0 // flags, must be zero
	binary.LittleEndian.PutUint32(out[8:12], uint32(headerLen))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(sec.buf)))
	copy(out[headerSize:], meta)
	copy(out[headerLen:], sec.buf)
	return out, nil
}

// section accumulates the buffer area, padding each buffer start to the
// configured alignment.
type section struct {
	buf   []byte
	align int
}

func (s *section) add(b []byte) (off, length uint32) {
	if len(b) == 0 {
		return 0, 0
	}
	pos := alignUp(len(s.buf), s.align)
	for len(s.buf) < pos {
		s.buf = append(s.buf, 0)
	}
	s.buf = append(s.buf, b...)
	return uint32(pos), uint32(len(b))
}

func appendFixedDesc(meta []byte, d arrayDesc) []byte {
	meta = binary.LittleEndian.AppendUint32(meta, d.count)
	meta = binary.LittleEndian.AppendUint32(meta, d.nullCount)
	meta = binary.LittleEndian.AppendUint32(meta, d.validityOff)
	meta = binary.LittleEndian.AppendUint32(meta, d.validityLen)
	meta = binary.LittleEndian.AppendUint32(meta, d.valuesOff)
	meta = binary.LittleEndian.AppendUint32(meta, d.valuesLen)
	return meta
}

func appendVarDesc(meta []byte, d arrayDesc) []byte {
	meta = binary.LittleEndian.AppendUint32(meta, d.count)
	meta = binary.LittleEndian.AppendUint32(meta, d.nullCount)
	meta = binary.LittleEndian.AppendUint32(meta, d.validityOff)
	meta = binary.LittleEndian.AppendUint32(meta, d.validityLen)
	meta = binary.LittleEndian.AppendUint32(meta, d.offsetsOff)
	meta = binary.LittleEndian.AppendUint32(meta, d.offsetsLen)
	meta = binary.LittleEndian.AppendUint32(meta, d.valuesOff)
	meta = binary.LittleEndian.AppendUint32(meta, d.valuesLen)
	return meta
}

// encodeValidity emits the LSB-first validity bitmap for valid, or
// nothing when every entry is valid.
func encodeValidity(sec *section, valid []bool, count int) (nullCount, off, length uint32) {
	if valid == nil {
		return 0, 0, 0
	}
	bitmap := make([]byte, pinned.BitmapLen(count))
	nulls := uint32(0)
	for i := 0; i < count; i++ {
		if valid[i] {
			pinned.BitmapSet(bitmap, i)
		} else {
			nulls++
		}
	}
	if nulls == 0 {
		return 0, 0, 0
	}
	off, length = sec.add(bitmap)
	return nulls, off, length
}

func encodeU32Array(sec *section, values []uint32) (arrayDesc, error) {
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	off, length := sec.add(raw)
	return arrayDesc{count: uint32(len(values)), valuesOff: off, valuesLen: length}, nil
}

func encodeInt32Array(sec *section, values []int32, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	d.valuesOff, d.valuesLen = sec.add(raw)
	return d, nil
}

func encodeInt64Array(sec *section, values []int64, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))
	raw := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	d.valuesOff, d.valuesLen = sec.add(raw)
	return d, nil
}

func encodeFloat64Array(sec *section, values []float64, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))
	raw := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	d.valuesOff, d.valuesLen = sec.add(raw)
	return d, nil
}

func encodeBoolArray(sec *section, values []bool, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))
	bitmap := make([]byte, pinned.BitmapLen(len(values)))
	for i, v := range values {
		if v {
			pinned.BitmapSet(bitmap, i)
		}
	}
	d.valuesOff, d.valuesLen = sec.add(bitmap)
	return d, nil
}

func encodeStringArray(sec *section, values []string, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))

	total := 0
	for _, s := range values {
		total += len(s)
	}
	if int64(total) > math.MaxInt32 {
		return arrayDesc{}, ErrTooLarge
	}

	offsets := make([]byte, (len(values)+1)*4)
	raw := make([]byte, 0, total)
	pos := int32(0)
	for i, s := range values {
		binary.LittleEndian.PutUint32(offsets[i*4:], uint32(pos))
		raw = append(raw, s...)
		pos += int32(len(s))
	}
	binary.LittleEndian.PutUint32(offsets[len(values)*4:], uint32(pos))

	d.offsetsOff, d.offsetsLen = sec.add(offsets)
	d.valuesOff, d.valuesLen = sec.add(raw)
	return d, nil
}

func encodeBytesArray(sec *section, values [][]byte, valid []bool) (arrayDesc, error) {
	d := arrayDesc{count: uint32(len(values))}
	d.nullCount, d.validityOff, d.validityLen = encodeValidity(sec, valid, len(values))

	total := 0
	for _, v := range values {
		total += len(v)
	}
	if int64(total) > math.MaxInt32 {
		return arrayDesc{}, ErrTooLarge
	}

	offsets := make([]byte, (len(values)+1)*4)
	raw := make([]byte, 0, total)
	pos := int32(0)
	for i, v := range values {
		binary.LittleEndian.PutUint32(offsets[i*4:], uint32(pos))
		raw = append(raw, v...)
		pos += int32(len(v))
	}
	binary.LittleEndian.PutUint32(offsets[len(values)*4:], uint32(pos))

	d.offsetsOff, d.offsetsLen = sec.add(offsets)
	d.valuesOff, d.valuesLen = sec.add(raw)
	return d, nil
}
