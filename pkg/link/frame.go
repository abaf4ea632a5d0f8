package link

import (
	"io"
	"time"
)

// Seq is a frame sequence number, valid from 1 to 0xef.
type Seq byte

// NewSeq creates a random sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next calculates the next sequence number.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= 0xf0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	n := byte(s)
	return n > 0 && n < 0xf0
}

// Frame codes are limited to bit 7 and the low nibble.
const (
	CodeMask byte = 0x8f
	// CodeData carries a packet of the layer above.
	CodeData byte = 0x01
)

const (
	lenShift    = 4
	lenMask     = 0x70
	lenExtended = 7
	// MaxDataLen is the largest payload of a frame.
	MaxDataLen = 0x7f
)

// Frame is a parsed or outgoing frame.
type Frame struct {
	Seq  Seq
	Code byte
	Data []byte
}

// Bytes returns encoded bytes for sending. Data beyond MaxDataLen is
// truncated.
func (f *Frame) Bytes() []byte {
	data := f.Data
	if len(data) > MaxDataLen {
		data = data[:MaxDataLen]
	}
	b := make([]byte, 0, len(data)+4)
	b = append(b, byte(f.Seq), f.Code&CodeMask)
	if l := byte(len(data)); l >= lenExtended {
		b[1] |= lenMask
		b = append(b, l)
	} else {
		b[1] |= (l << lenShift) & lenMask
	}
	b = append(b, data...)
	return append(b, CRC8(b))
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// CRC8 computes CRC-8 with polynomial 0x07 and zero init.
func CRC8(b []byte) byte {
	var crc byte
	for _, v := range b {
		crc = crc8Table[crc^v]
	}
	return crc
}

var crc8Table = func() (t [256]byte) {
	for n := range t {
		crc := byte(n)
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
		t[n] = crc
	}
	return
}()
