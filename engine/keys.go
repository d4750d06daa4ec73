package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidName is wrapped by every dataset name validation failure.
var ErrInvalidName = errors.New("engine: invalid dataset name")

// ValidateName rejects empty names and names containing the NUL key
// separator.
func ValidateName(name []byte) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if bytes.IndexByte(name, 0x00) >= 0 {
		return fmt.Errorf("%w: name contains NUL byte", ErrInvalidName)
	}
	return nil
}

// BatchKey builds the composite key name || 0x00 || big-endian index.
// Big-endian indices keep batch keys lexicographically ordered by
// index.
func BatchKey(name []byte, index uint32) []byte {
	k := make([]byte, 0, len(name)+5)
	k = append(k, name...)
	k = append(k, 0x00)
	return binary.BigEndian.AppendUint32(k, index)
}

// BatchPrefix returns the key prefix shared by all batches of name.
func BatchPrefix(name []byte) []byte {
	k := make([]byte, 0, len(name)+1)
	k = append(k, name...)
	return append(k, 0x00)
}

func encodeU32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func decodeU32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
