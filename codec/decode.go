package codec

import (
	"encoding/binary"

	"github.com/hupe1980/arbordb/batch"
	"github.com/hupe1980/arbordb/forest"
	"github.com/hupe1980/arbordb/pinned"
)

// Inspect parses and validates the common header, returning version and
// payload kind.
func Inspect(buf []byte) (uint16, uint8, error) {
	h, _, _, err := parseContainer(buf)
	if err != nil {
		return 0, 0, err
	}
	return h.version, h.kind, nil
}

// DecodeDict decodes a dictionary payload into an owned string table.
func DecodeDict(buf []byte) ([]string, error) {
	h, meta, payload, err := parseContainer(buf)
	if err != nil {
		return nil, err
	}
	if h.kind != KindDict {
		return nil, corruptf("payload kind %d, want dictionary", h.kind)
	}
	if len(meta) < dictMetaSize {
		return nil, corruptf("dictionary meta block truncated: %d bytes", len(meta))
	}

	pos := 0
	d := readVarDesc(meta, &pos)
	if err := validateVar(d, payload, "dictionary strings"); err != nil {
		return nil, err
	}
	if d.nullCount != 0 {
		return nil, corruptf("dictionary strings must not contain nulls, null count %d", d.nullCount)
	}

	offsets := payload[d.offsetsOff : d.offsetsOff+d.offsetsLen]
	values := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	out := make([]string, d.count)
	for i := range out {
		lo := binary.LittleEndian.Uint32(offsets[i*4:])
		hi := binary.LittleEndian.Uint32(offsets[i*4+4:])
		out[i] = string(values[lo:hi])
	}
	return out, nil
}

// DecodeBatchOwned decodes a batch payload into owned buffers.
func DecodeBatchOwned(buf []byte) (*batch.Batch, error) {
	return decodeBatch(buf, false)
}

// DecodeBatchView decodes a batch payload directly over pinned bytes.
// Node columns and fixed pools become in-place typed views where the
// wire version and the runtime address alignment permit, falling back
// to copying per buffer otherwise. The returned batch retains a clone
// of p and must be closed.
func DecodeBatchView(p pinned.Bytes) (*batch.Batch, error) {
	b, err := decodeBatch(p.Data(), true)
	if err != nil {
		return nil, err
	}
	b.Pin(p.Clone())
	return b, nil
}

func decodeBatch(buf []byte, view bool) (*batch.Batch, error) {
	h, meta, payload, err := parseContainer(buf)
	if err != nil {
		return nil, err
	}
	if h.kind != KindBatch {
		return nil, corruptf("payload kind %d, want batch", h.kind)
	}
	if len(meta) < batchMetaSize {
		return nil, corruptf("batch meta block truncated: %d bytes", len(meta))
	}
	// In-place views require the aligned layout revision.
	view = view && h.version >= Version2

	pos := 0
	nodeCount := binary.LittleEndian.Uint32(meta[pos:])
	pos += 4
	kinds := readFixedDesc(meta, &pos)
	parents := readFixedDesc(meta, &pos)
	data0 := readFixedDesc(meta, &pos)
	data1 := readFixedDesc(meta, &pos)
	treeCount := binary.LittleEndian.Uint32(meta[pos:])
	pos += 4
	roots := readFixedDesc(meta, &pos)
	boolPool := readFixedDesc(meta, &pos)
	intPool := readFixedDesc(meta, &pos)
	floatPool := readFixedDesc(meta, &pos)
	strPool := readVarDesc(meta, &pos)
	datePool := readFixedDesc(meta, &pos)
	datetimePool := readFixedDesc(meta, &pos)
	durationPool := readFixedDesc(meta, &pos)
	binaryPool := readVarDesc(meta, &pos)

	for _, nd := range []struct {
		name string
		d    arrayDesc
	}{
		{"type tags", kinds}, {"parents", parents}, {"data slot 0", data0}, {"data slot 1", data1},
	} {
		if nd.d.count != nodeCount {
			return nil, corruptf("%s length %d disagrees with node count %d", nd.name, nd.d.count, nodeCount)
		}
		if nd.d.nullCount != 0 {
			return nil, corruptf("%s must not contain nulls", nd.name)
		}
	}
	if roots.count != treeCount {
		return nil, corruptf("roots length %d disagrees with tree count %d", roots.count, treeCount)
	}
	if roots.nullCount != 0 {
		return nil, corruptf("roots must not contain nulls")
	}

	b := &batch.Batch{}
	if b.Kinds, err = decodeU32(payload, kinds, view, "type tags"); err != nil {
		return nil, err
	}
	if b.Parents, err = decodeU32(payload, parents, view, "parents"); err != nil {
		return nil, err
	}
	if b.Data0, err = decodeU32(payload, data0, view, "data slot 0"); err != nil {
		return nil, err
	}
	if b.Data1, err = decodeU32(payload, data1, view, "data slot 1"); err != nil {
		return nil, err
	}
	if b.Roots, err = decodeU32(payload, roots, view, "roots"); err != nil {
		return nil, err
	}
	for i, r := range b.Roots {
		if r >= nodeCount {
			return nil, corruptf("root %d references node %d of %d", i, r, nodeCount)
		}
	}

	if b.Pools.Bool, err = decodeBoolPool(payload, boolPool); err != nil {
		return nil, err
	}
	if b.Pools.Int, err = decodeInt64Pool(payload, intPool, view, "int64 pool"); err != nil {
		return nil, err
	}
	if b.Pools.Float, err = decodeFloat64Pool(payload, floatPool, view); err != nil {
		return nil, err
	}
	if b.Pools.Str, err = decodeStringPool(payload, strPool, view); err != nil {
		return nil, err
	}
	if b.Pools.Date, err = decodeInt32Pool(payload, datePool, view); err != nil {
		return nil, err
	}
	if b.Pools.Datetime, err = decodeInt64Pool(payload, datetimePool, view, "datetime pool"); err != nil {
		return nil, err
	}
	if b.Pools.Duration, err = decodeInt64Pool(payload, durationPool, view, "duration pool"); err != nil {
		return nil, err
	}
	if b.Pools.Binary, err = decodeBytesPool(payload, binaryPool, view); err != nil {
		return nil, err
	}
	return b, nil
}

func parseContainer(buf []byte) (header, []byte, []byte, error) {
	var h header
	if len(buf) < headerSize {
		return h, nil, nil, corruptf("container shorter than header: %d bytes", len(buf))
	}
	h.magic = binary.LittleEndian.Uint32(buf[0:4])
	h.version = binary.LittleEndian.Uint16(buf[4:6])
	h.kind = buf[6]
	h.flags = buf[7]
	h.headerLen = binary.LittleEndian.Uint32(buf[8:12])
	h.payloadLen = binary.LittleEndian.Uint32(buf[12:16])

	if h.magic != Magic {
		return h, nil, nil, corruptf("bad magic 0x%08x", h.magic)
	}
	if h.version < Version1 || h.version > Version2 {
		return h, nil, nil, corruptf("unsupported codec version %d", h.version)
	}
	if h.kind != KindDict && h.kind != KindBatch {
		return h, nil, nil, corruptf("unknown payload kind %d", h.kind)
	}
	if h.flags != 0 {
		return h, nil, nil, corruptf("non-zero flags 0x%02x", h.flags)
	}
	if h.headerLen < headerSize || int(h.headerLen) > len(buf) {
		return h, nil, nil, corruptf("header length %d out of range", h.headerLen)
	}
	if int(h.headerLen)+int(h.payloadLen) != len(buf) {
		return h, nil, nil, corruptf("declared total %d disagrees with container size %d",
			int(h.headerLen)+int(h.payloadLen), len(buf))
	}
	return h, buf[headerSize:h.headerLen], buf[h.headerLen:], nil
}

func readFixedDesc(meta []byte, pos *int) arrayDesc {
	var d arrayDesc
	d.count = binary.LittleEndian.Uint32(meta[*pos:])
	d.nullCount = binary.LittleEndian.Uint32(meta[*pos+4:])
	d.validityOff = binary.LittleEndian.Uint32(meta[*pos+8:])
	d.validityLen = binary.LittleEndian.Uint32(meta[*pos+12:])
	d.valuesOff = binary.LittleEndian.Uint32(meta[*pos+16:])
	d.valuesLen = binary.LittleEndian.Uint32(meta[*pos+20:])
	*pos += fixedDescSize
	return d
}

func readVarDesc(meta []byte, pos *int) arrayDesc {
	var d arrayDesc
	d.count = binary.LittleEndian.Uint32(meta[*pos:])
	d.nullCount = binary.LittleEndian.Uint32(meta[*pos+4:])
	d.validityOff = binary.LittleEndian.Uint32(meta[*pos+8:])
	d.validityLen = binary.LittleEndian.Uint32(meta[*pos+12:])
	d.offsetsOff = binary.LittleEndian.Uint32(meta[*pos+16:])
	d.offsetsLen = binary.LittleEndian.Uint32(meta[*pos+20:])
	d.valuesOff = binary.LittleEndian.Uint32(meta[*pos+24:])
	d.valuesLen = binary.LittleEndian.Uint32(meta[*pos+28:])
	*pos += varDescSize
	return d
}

// checkRange bounds both ends of a buffer descriptor. The offset is
// validated even for empty buffers, since decode slices
// payload[off:off+len] unconditionally.
func checkRange(payload []byte, off, length uint32, name string) error {
	end := uint64(off) + uint64(length)
	if end > uint64(len(payload)) {
		return corruptf("%s buffer [%d, %d) exceeds payload size %d", name, off, end, len(payload))
	}
	return nil
}

func validateCommon(d arrayDesc, payload []byte, name string) error {
	if err := checkRange(payload, d.validityOff, d.validityLen, name+" validity"); err != nil {
		return err
	}
	if err := checkRange(payload, d.valuesOff, d.valuesLen, name+" values"); err != nil {
		return err
	}
	if d.nullCount > d.count {
		return corruptf("%s null count %d exceeds element count %d", name, d.nullCount, d.count)
	}
	if d.validityLen == 0 {
		if d.nullCount != 0 {
			return corruptf("%s declares %d nulls without a validity bitmap", name, d.nullCount)
		}
	} else if int(d.validityLen) != pinned.BitmapLen(int(d.count)) {
		return corruptf("%s validity bitmap length %d, want %d", name, d.validityLen, pinned.BitmapLen(int(d.count)))
	}
	return nil
}

func validateFixed(d arrayDesc, payload []byte, elemSize int, name string) error {
	if err := validateCommon(d, payload, name); err != nil {
		return err
	}
	if uint64(d.valuesLen) != uint64(d.count)*uint64(elemSize) {
		return corruptf("%s values length %d disagrees with count %d (element size %d)",
			name, d.valuesLen, d.count, elemSize)
	}
	return nil
}

func validateBool(d arrayDesc, payload []byte, name string) error {
	if err := validateCommon(d, payload, name); err != nil {
		return err
	}
	if int(d.valuesLen) != pinned.BitmapLen(int(d.count)) {
		return corruptf("%s bitmap length %d disagrees with count %d", name, d.valuesLen, d.count)
	}
	return nil
}

func validateVar(d arrayDesc, payload []byte, name string) error {
	if err := validateCommon(d, payload, name); err != nil {
		return err
	}
	if err := checkRange(payload, d.offsetsOff, d.offsetsLen, name+" offsets"); err != nil {
		return err
	}
	if uint64(d.offsetsLen) != (uint64(d.count)+1)*4 {
		return corruptf("%s offsets length %d disagrees with count %d", name, d.offsetsLen, d.count)
	}
	offsets := payload[d.offsetsOff : d.offsetsOff+d.offsetsLen]
	prev := int32(binary.LittleEndian.Uint32(offsets))
	if prev != 0 {
		return corruptf("%s offsets must start at 0, got %d", name, prev)
	}
	for i := uint32(1); i <= d.count; i++ {
		cur := int32(binary.LittleEndian.Uint32(offsets[i*4:]))
		if cur < prev {
			return corruptf("%s offsets not monotonic at element %d", name, i)
		}
		if cur < 0 || uint32(cur) > d.valuesLen {
			return corruptf("%s offset %d out of values range %d", name, cur, d.valuesLen)
		}
		prev = cur
	}
	if uint32(prev) != d.valuesLen {
		return corruptf("%s final offset %d disagrees with values length %d", name, prev, d.valuesLen)
	}
	return nil
}

func decodeValidity(payload []byte, d arrayDesc) []bool {
	if d.validityLen == 0 {
		return nil
	}
	bitmap := payload[d.validityOff : d.validityOff+d.validityLen]
	valid := make([]bool, d.count)
	for i := range valid {
		valid[i] = pinned.BitmapGet(bitmap, i)
	}
	return valid
}

func decodeU32(payload []byte, d arrayDesc, view bool, name string) ([]uint32, error) {
	if err := validateFixed(d, payload, 4, name); err != nil {
		return nil, err
	}
	raw := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	if view {
		if v, ok := pinned.Uint32s(raw); ok {
			return v, nil
		}
	}
	return pinned.Uint32sCopy(raw), nil
}

func decodeBoolPool(payload []byte, d arrayDesc) (forest.BoolPool, error) {
	if err := validateBool(d, payload, "bool pool"); err != nil {
		return forest.BoolPool{}, err
	}
	bitmap := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	values := make([]bool, d.count)
	for i := range values {
		values[i] = pinned.BitmapGet(bitmap, i)
	}
	return forest.BoolPool{Values: values, Valid: decodeValidity(payload, d)}, nil
}

func decodeInt64Pool(payload []byte, d arrayDesc, view bool, name string) (forest.Int64Pool, error) {
	if err := validateFixed(d, payload, 8, name); err != nil {
		return forest.Int64Pool{}, err
	}
	raw := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	p := forest.Int64Pool{Valid: decodeValidity(payload, d)}
	if view {
		if v, ok := pinned.Int64s(raw); ok {
			p.Values = v
			return p, nil
		}
	}
	p.Values = pinned.Int64sCopy(raw)
	return p, nil
}

func decodeFloat64Pool(payload []byte, d arrayDesc, view bool) (forest.Float64Pool, error) {
	if err := validateFixed(d, payload, 8, "float64 pool"); err != nil {
		return forest.Float64Pool{}, err
	}
	raw := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	p := forest.Float64Pool{Valid: decodeValidity(payload, d)}
	if view {
		if v, ok := pinned.Float64s(raw); ok {
			p.Values = v
			return p, nil
		}
	}
	p.Values = pinned.Float64sCopy(raw)
	return p, nil
}

func decodeInt32Pool(payload []byte, d arrayDesc, view bool) (forest.Int32Pool, error) {
	if err := validateFixed(d, payload, 4, "date pool"); err != nil {
		return forest.Int32Pool{}, err
	}
	raw := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	p := forest.Int32Pool{Valid: decodeValidity(payload, d)}
	if view {
		if v, ok := pinned.Int32s(raw); ok {
			p.Values = v
			return p, nil
		}
	}
	p.Values = pinned.Int32sCopy(raw)
	return p, nil
}

func decodeStringPool(payload []byte, d arrayDesc, view bool) (forest.StringPool, error) {
	if err := validateVar(d, payload, "string pool"); err != nil {
		return forest.StringPool{}, err
	}
	offsets := payload[d.offsetsOff : d.offsetsOff+d.offsetsLen]
	values := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	p := forest.StringPool{Valid: decodeValidity(payload, d), Values: make([]string, d.count)}
	for i := range p.Values {
		lo := binary.LittleEndian.Uint32(offsets[i*4:])
		hi := binary.LittleEndian.Uint32(offsets[i*4+4:])
		if view {
			p.Values[i] = pinned.UnsafeString(values[lo:hi])
		} else {
			p.Values[i] = string(values[lo:hi])
		}
	}
	return p, nil
}

func decodeBytesPool(payload []byte, d arrayDesc, view bool) (forest.BytesPool, error) {
	if err := validateVar(d, payload, "binary pool"); err != nil {
		return forest.BytesPool{}, err
	}
	offsets := payload[d.offsetsOff : d.offsetsOff+d.offsetsLen]
	values := payload[d.valuesOff : d.valuesOff+d.valuesLen]
	p := forest.BytesPool{Valid: decodeValidity(payload, d), Values: make([][]byte, d.count)}
	for i := range p.Values {
		lo := binary.LittleEndian.Uint32(offsets[i*4:])
		hi := binary.LittleEndian.Uint32(offsets[i*4+4:])
		if view {
			p.Values[i] = values[lo:hi:hi]
		} else {
			p.Values[i] = append([]byte(nil), values[lo:hi]...)
		}
	}
	return p, nil
}
