package calibration

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/robotalks/feeder.go/pkg/fixed"
)

// Record layout (schema 1):
//
//	"FC" | schema | N | N x int32 (big-endian, field order) | CRC-32 IEEE (big-endian)
//
// Fields beyond the known set are ignored, missing fields take defaults.
const (
	recordMagic0 = 'F'
	recordMagic1 = 'C'

	// SchemaVersion is the record schema written by EncodeRecord.
	SchemaVersion = 1

	recordHeaderLen = 4
	recordCRCLen    = 4
)

// ErrCorrupt indicates the persisted record can't be trusted.
var ErrCorrupt = errors.New("corrupt calibration record")

// EncodeRecord serializes a profile.
func EncodeRecord(p Profile) []byte {
	vals := p.Values()
	b := make([]byte, recordHeaderLen+len(vals)*4+recordCRCLen)
	b[0], b[1], b[2], b[3] = recordMagic0, recordMagic1, SchemaVersion, byte(len(vals))
	off := recordHeaderLen
	for _, v := range vals {
		binary.BigEndian.PutUint32(b[off:], uint32(v))
		off += 4
	}
	binary.BigEndian.PutUint32(b[off:], crc32.ChecksumIEEE(b[:off]))
	return b
}

// DecodeRecord parses a record. Any error wraps ErrCorrupt.
func DecodeRecord(b []byte) (Profile, error) {
	if len(b) < recordHeaderLen+recordCRCLen {
		return Defaults(), fmt.Errorf("%w: short record (%d bytes)", ErrCorrupt, len(b))
	}
	if b[0] != recordMagic0 || b[1] != recordMagic1 {
		return Defaults(), fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if b[2] == 0 || b[2] > SchemaVersion {
		return Defaults(), fmt.Errorf("%w: unsupported schema %d", ErrCorrupt, b[2])
	}
	count := int(b[3])
	end := recordHeaderLen + count*4
	if len(b) < end+recordCRCLen {
		return Defaults(), fmt.Errorf("%w: truncated, %d fields declared", ErrCorrupt, count)
	}
	if crc := binary.BigEndian.Uint32(b[end:]); crc != crc32.ChecksumIEEE(b[:end]) {
		return Defaults(), fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	p := Defaults()
	for n := 0; n < count && n < NumFields; n++ {
		f := Field(n)
		v := fixed.Value(int32(binary.BigEndian.Uint32(b[recordHeaderLen+n*4:])))
		if !f.InBounds(v) {
			return Defaults(), fmt.Errorf("%w: %s=%s out of range", ErrCorrupt, f, v)
		}
		p, _ = p.With(f, v)
	}
	if err := p.Validate(); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, nil
}
