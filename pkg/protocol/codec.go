package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
)

// Version is the frame version written by this package:
// major in the high nibble, minor in the low nibble.
const Version byte = 0x10

const (
	versionMajor     = Version >> 4
	responseFlag     = 0x80
	responseFixedLen = 11
)

// DecodeErrorKind classifies a DecodeError.
type DecodeErrorKind int

// Decode error kinds.
const (
	Truncated DecodeErrorKind = iota
	Malformed
	UnknownOpcode
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case UnknownOpcode:
		return "unknown opcode"
	}
	return "unknown"
}

// DecodeError is returned for frames that can't be decoded.
// Op and Feeder carry whatever could be read, for the Nack.
type DecodeError struct {
	Kind   DecodeErrorKind
	Op     Opcode
	Feeder uint8
	Detail string
}

// Error implements error.
func (e *DecodeError) Error() string {
	msg := "decode: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Nack builds the response rejecting the undecodable frame.
func (e *DecodeError) Nack() *Response {
	return &Response{Op: e.Op, Feeder: e.Feeder, Status: Nack, Code: CodeInvalidCommand}
}

func operandLen(op Opcode) int {
	switch op {
	case OpAdvance, OpRetract:
		return 4
	case OpSetCalibration:
		return 5
	}
	return 0
}

// Decode parses a command frame. It never panics: any input either yields
// a Command or a *DecodeError.
func Decode(b []byte) (Command, error) {
	if len(b) < 1 {
		return nil, &DecodeError{Kind: Truncated, Feeder: BroadcastFeeder, Detail: "empty frame"}
	}
	op := Opcode(b[0])
	if !op.IsKnown() {
		feeder := BroadcastFeeder
		if len(b) > 1 {
			feeder = b[1]
		}
		return nil, &DecodeError{Kind: UnknownOpcode, Op: op, Feeder: feeder, Detail: op.String()}
	}
	if len(b) < 2 {
		return nil, &DecodeError{Kind: Truncated, Op: op, Feeder: BroadcastFeeder, Detail: "missing feeder id"}
	}
	h := Header{Feeder: b[1]}
	n := operandLen(op)
	if len(b) < 2+n+1 {
		return nil, &DecodeError{Kind: Truncated, Op: op, Feeder: h.Feeder,
			Detail: fmt.Sprintf("%s needs %d bytes, got %d", op, 2+n+1, len(b))}
	}
	if ver := b[2+n]; ver == 0 || ver>>4 != versionMajor {
		return nil, &DecodeError{Kind: Malformed, Op: op, Feeder: h.Feeder,
			Detail: fmt.Sprintf("unsupported version 0x%02x", ver)}
	}
	operands := b[2 : 2+n]
	switch op {
	case OpAdvance:
		return Advance{Header: h, Distance: readValue(operands)}, nil
	case OpRetract:
		return Retract{Header: h, Distance: readValue(operands)}, nil
	case OpHome:
		return Home{h}, nil
	case OpSetCalibration:
		return SetCalibration{Header: h, Field: calibration.Field(operands[0]), Value: readValue(operands[1:])}, nil
	case OpGetStatus:
		return GetStatus{h}, nil
	case OpStop:
		return Stop{h}, nil
	case OpFeed:
		return Feed{h}, nil
	case OpGetCalibration:
		return GetCalibration{h}, nil
	case OpIdentify:
		return Identify{h}, nil
	case OpReset:
		return Reset{h}, nil
	}
	return nil, &DecodeError{Kind: UnknownOpcode, Op: op, Feeder: h.Feeder}
}

// EncodeCommand serializes a command frame.
func EncodeCommand(cmd Command) []byte {
	op := cmd.Opcode()
	b := make([]byte, 2, 3+operandLen(op))
	b[0], b[1] = byte(op), cmd.FeederID()
	switch c := cmd.(type) {
	case Advance:
		b = appendValue(b, c.Distance)
	case Retract:
		b = appendValue(b, c.Distance)
	case SetCalibration:
		b = append(b, byte(c.Field))
		b = appendValue(b, c.Value)
	}
	return append(b, Version)
}

// EncodeResponse serializes a response frame.
func EncodeResponse(r *Response) []byte {
	b := make([]byte, 0, responseFixedLen+1+calibration.NumFields*4)
	b = append(b, byte(r.Op)|responseFlag, r.Feeder, byte(r.Status), byte(r.Code), byte(r.State), byte(r.Fault))
	b = appendValue(b, r.Position)
	b = append(b, Version)
	switch r.Op {
	case OpGetStatus:
		b = appendValue(b, r.Remaining)
	case OpGetCalibration:
		if r.Profile != nil {
			vals := r.Profile.Values()
			b = append(b, byte(len(vals)))
			for _, v := range vals {
				b = appendValue(b, v)
			}
		}
	case OpIdentify:
		ver := r.Version
		if len(ver) > 0xff {
			ver = ver[:0xff]
		}
		b = append(b, byte(len(ver)))
		b = append(b, ver...)
	}
	return b
}

// DecodeResponse parses a response frame. Missing extensions are left zero.
func DecodeResponse(b []byte) (*Response, error) {
	if len(b) < responseFixedLen {
		return nil, &DecodeError{Kind: Truncated, Feeder: BroadcastFeeder,
			Detail: fmt.Sprintf("response needs %d bytes, got %d", responseFixedLen, len(b))}
	}
	if b[0]&responseFlag == 0 {
		return nil, &DecodeError{Kind: Malformed, Op: Opcode(b[0]), Feeder: b[1], Detail: "not a response"}
	}
	if ver := b[10]; ver == 0 || ver>>4 != versionMajor {
		return nil, &DecodeError{Kind: Malformed, Op: Opcode(b[0] &^ responseFlag), Feeder: b[1],
			Detail: fmt.Sprintf("unsupported version 0x%02x", ver)}
	}
	r := &Response{
		Op:       Opcode(b[0] &^ responseFlag),
		Feeder:   b[1],
		Status:   Status(b[2]),
		Code:     ErrorCode(b[3]),
		State:    StateTag(b[4]),
		Fault:    FaultReason(b[5]),
		Position: readValue(b[6:10]),
	}
	ext := b[responseFixedLen:]
	switch r.Op {
	case OpGetStatus:
		if len(ext) >= 4 {
			r.Remaining = readValue(ext)
		}
	case OpGetCalibration:
		if len(ext) == 0 {
			break
		}
		count := int(ext[0])
		if len(ext) < 1+count*4 {
			return nil, &DecodeError{Kind: Truncated, Op: r.Op, Feeder: r.Feeder, Detail: "calibration payload"}
		}
		p := calibration.Defaults()
		for n := 0; n < count && n < calibration.NumFields; n++ {
			p, _ = p.With(calibration.Field(n), readValue(ext[1+n*4:]))
		}
		r.Profile = &p
	case OpIdentify:
		if len(ext) == 0 {
			break
		}
		size := int(ext[0])
		if len(ext) < 1+size {
			return nil, &DecodeError{Kind: Truncated, Op: r.Op, Feeder: r.Feeder, Detail: "version payload"}
		}
		r.Version = string(ext[1 : 1+size])
	}
	return r, nil
}

func readValue(b []byte) fixed.Value {
	return fixed.Value(int32(binary.BigEndian.Uint32(b)))
}

func appendValue(b []byte, v fixed.Value) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(v))
}
