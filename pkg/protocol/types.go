package protocol

import (
	"fmt"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
)

// Opcode identifies a command.
type Opcode byte

// Opcodes.
const (
	OpAdvance        Opcode = 0x01
	OpRetract        Opcode = 0x02
	OpHome           Opcode = 0x03
	OpSetCalibration Opcode = 0x04
	OpGetStatus      Opcode = 0x05
	OpStop           Opcode = 0x06
	OpFeed           Opcode = 0x07
	OpGetCalibration Opcode = 0x08
	OpIdentify       Opcode = 0x09
	OpReset          Opcode = 0x0a
)

var opNames = map[Opcode]string{
	OpAdvance:        "advance",
	OpRetract:        "retract",
	OpHome:           "home",
	OpSetCalibration: "set-calibration",
	OpGetStatus:      "get-status",
	OpStop:           "stop",
	OpFeed:           "feed",
	OpGetCalibration: "get-calibration",
	OpIdentify:       "identify",
	OpReset:          "reset",
}

// IsKnown indicates the opcode is defined.
func (o Opcode) IsKnown() bool {
	_, ok := opNames[o]
	return ok
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", byte(o))
}

// IsMotion indicates the command moves the feed axis.
func (o Opcode) IsMotion() bool {
	switch o {
	case OpAdvance, OpRetract, OpFeed, OpHome:
		return true
	}
	return false
}

// BroadcastFeeder is used in responses when the feeder id is unknown.
const BroadcastFeeder uint8 = 0xff

// Command is a decoded command. The concrete types are values.
type Command interface {
	Opcode() Opcode
	FeederID() uint8
}

// Header carries the fields common to all commands.
type Header struct {
	Feeder uint8
}

// FeederID implements Command.
func (h Header) FeederID() uint8 { return h.Feeder }

// Advance moves the tape forward by Distance.
type Advance struct {
	Header
	Distance fixed.Value
}

// Retract moves the tape backward by Distance.
type Retract struct {
	Header
	Distance fixed.Value
}

// Home seeks the home sensor.
type Home struct{ Header }

// SetCalibration updates one calibration field.
type SetCalibration struct {
	Header
	Field calibration.Field
	Value fixed.Value
}

// GetStatus queries the state and position.
type GetStatus struct{ Header }

// Stop aborts motion and recovers from Fault.
type Stop struct{ Header }

// Feed advances by the calibrated feed pitch.
type Feed struct{ Header }

// GetCalibration queries the calibration profile.
type GetCalibration struct{ Header }

// Identify queries the firmware version.
type Identify struct{ Header }

// Reset clears a Fault.
type Reset struct{ Header }

// Opcode implementations.
func (Advance) Opcode() Opcode        { return OpAdvance }
func (Retract) Opcode() Opcode        { return OpRetract }
func (Home) Opcode() Opcode           { return OpHome }
func (SetCalibration) Opcode() Opcode { return OpSetCalibration }
func (GetStatus) Opcode() Opcode      { return OpGetStatus }
func (Stop) Opcode() Opcode           { return OpStop }
func (Feed) Opcode() Opcode           { return OpFeed }
func (GetCalibration) Opcode() Opcode { return OpGetCalibration }
func (Identify) Opcode() Opcode       { return OpIdentify }
func (Reset) Opcode() Opcode          { return OpReset }

// Status is Ack or Nack.
type Status byte

// Statuses.
const (
	Ack  Status = 0
	Nack Status = 1
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == Ack {
		return "ack"
	}
	return "nack"
}

// ErrorCode tells why a command was rejected.
type ErrorCode byte

// Error codes.
const (
	CodeOk             ErrorCode = 0
	CodeInvalidCommand ErrorCode = 1
	CodeOutOfRange     ErrorCode = 2
	CodeNotReady       ErrorCode = 3
	CodeStoreFailure   ErrorCode = 4
	CodeTimeout        ErrorCode = 5
	// CodeAborted is reported for motion cut short by Stop.
	CodeAborted ErrorCode = 6
)

var codeNames = [...]string{"ok", "invalid-command", "out-of-range", "not-ready", "store-failure", "timeout", "aborted"}

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", byte(c))
}

// StateTag is the wire form of the feeder state.
type StateTag byte

// States.
const (
	StateIdle        StateTag = 0
	StateHoming      StateTag = 1
	StateFeeding     StateTag = 2
	StateRetracting  StateTag = 3
	StateCalibrating StateTag = 4
	StateFault       StateTag = 5
)

var stateNames = [...]string{"idle", "homing", "feeding", "retracting", "calibrating", "fault"}

// String implements fmt.Stringer.
func (s StateTag) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", byte(s))
}

// FaultReason tells why a feeder is in Fault.
type FaultReason byte

// Fault reasons.
const (
	FaultNone          FaultReason = 0
	FaultStall         FaultReason = 1
	FaultHomingTimeout FaultReason = 2
)

// String implements fmt.Stringer.
func (r FaultReason) String() string {
	switch r {
	case FaultNone:
		return "none"
	case FaultStall:
		return "stall"
	case FaultHomingTimeout:
		return "homing-timeout"
	}
	return fmt.Sprintf("fault(%d)", byte(r))
}

// Response is the reply to exactly one command.
type Response struct {
	Op       Opcode
	Feeder   uint8
	Status   Status
	Code     ErrorCode
	State    StateTag
	Fault    FaultReason
	Position fixed.Value

	// Extensions, present depending on Op.
	Remaining fixed.Value          // OpGetStatus
	Profile   *calibration.Profile // OpGetCalibration
	Version   string               // OpIdentify
}

// IsAck indicates the command was accepted.
func (r *Response) IsAck() bool {
	return r.Status == Ack
}

// String implements fmt.Stringer.
func (r *Response) String() string {
	s := fmt.Sprintf("%s[%d] %s", r.Op, r.Feeder, r.Status)
	if r.Status == Nack {
		s += "(" + r.Code.String() + ")"
	}
	s += " " + r.State.String()
	if r.State == StateFault {
		s += "(" + r.Fault.String() + ")"
	}
	return s + " pos=" + r.Position.String()
}
