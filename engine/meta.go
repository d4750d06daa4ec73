package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/arbordb/batch"
)

// ErrCorruptMeta is wrapped when a stored metadata record cannot be
// parsed. It indicates the stored bytes are untrustworthy.
var ErrCorruptMeta = errors.New("engine: corrupted metadata record")

func corruptMetaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptMeta, fmt.Sprintf(format, args...))
}

// DigestSize is the width of the content digests stored per dataset.
const DigestSize = 32

// Digest is a content hash of an encoded dictionary or batch payload.
type Digest = [DigestSize]byte

// Meta is the per-dataset metadata record.
type Meta struct {
	// Generation increases on every committed mutation of the dataset.
	Generation uint64
	// TreeCount is the total number of trees across all batches.
	TreeCount uint64
	// BatchCount is the number of stored batches.
	BatchCount uint32
	// TreesPerBatch is the resolved batch size the current layout was
	// produced with.
	TreesPerBatch uint32
	// Policy is the sizing policy that produced the current layout.
	Policy batch.Policy
	// DictDigest is the digest of the encoded dictionary payload.
	DictDigest Digest
	// BatchDigests holds one digest per stored batch.
	BatchDigests []Digest
}

const metaVersion = 1

// fixed part: version(1) gen(8) trees(8) batches(4) perBatch(4)
// target(8) min(4) max(4) hasOverride(1) override(4) dictDigest(32)
const metaFixedSize = 1 + 8 + 8 + 4 + 4 + 8 + 4 + 4 + 1 + 4 + DigestSize

// EncodeMeta serializes m.
func EncodeMeta(m *Meta) []byte {
	out := make([]byte, 0, metaFixedSize+len(m.BatchDigests)*DigestSize)
	out = append(out, metaVersion)
	out = binary.LittleEndian.AppendUint64(out, m.Generation)
	out = binary.LittleEndian.AppendUint64(out, m.TreeCount)
	out = binary.LittleEndian.AppendUint32(out, m.BatchCount)
	out = binary.LittleEndian.AppendUint32(out, m.TreesPerBatch)
	out = binary.LittleEndian.AppendUint64(out, uint64(m.Policy.TargetBytes))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.Policy.MinTrees))
	out = binary.LittleEndian.AppendUint32(out, uint32(m.Policy.MaxTrees))
	if m.Policy.TreesPerBatch != nil {
		out = append(out, 1)
		out = binary.LittleEndian.AppendUint32(out, uint32(*m.Policy.TreesPerBatch))
	} else {
		out = append(out, 0)
		out = binary.LittleEndian.AppendUint32(out, 0)
	}
	out = append(out, m.DictDigest[:]...)
	for _, d := range m.BatchDigests {
		out = append(out, d[:]...)
	}
	return out
}

// DecodeMeta parses a metadata record.
func DecodeMeta(buf []byte) (*Meta, error) {
	if len(buf) < metaFixedSize {
		return nil, corruptMetaf("record truncated: %d bytes", len(buf))
	}
	if buf[0] != metaVersion {
		return nil, corruptMetaf("unknown record version %d", buf[0])
	}
	m := &Meta{}
	pos := 1
	m.Generation = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	m.TreeCount = binary.LittleEndian.Uint64(buf[pos:])
	pos += 8
	m.BatchCount = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	m.TreesPerBatch = binary.LittleEndian.Uint32(buf[pos:])
	pos += 4
	m.Policy.TargetBytes = int64(binary.LittleEndian.Uint64(buf[pos:]))
	pos += 8
	m.Policy.MinTrees = int(binary.LittleEndian.Uint32(buf[pos:]))
	pos += 4
	m.Policy.MaxTrees = int(binary.LittleEndian.Uint32(buf[pos:]))
	pos += 4
	hasOverride := buf[pos] != 0
	pos++
	override := int(binary.LittleEndian.Uint32(buf[pos:]))
	pos += 4
	if hasOverride {
		m.Policy.TreesPerBatch = &override
	}
	copy(m.DictDigest[:], buf[pos:])
	pos += DigestSize

	rest := buf[pos:]
	if len(rest) != int(m.BatchCount)*DigestSize {
		return nil, corruptMetaf("digest area %d bytes, want %d for %d batches",
			len(rest), int(m.BatchCount)*DigestSize, m.BatchCount)
	}
	m.BatchDigests = make([]Digest, m.BatchCount)
	for i := range m.BatchDigests {
		copy(m.BatchDigests[i][:], rest[i*DigestSize:])
	}
	return m, nil
}
