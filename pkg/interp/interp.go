// Package interp validates decoded commands against a calibration profile.
package interp

import (
	"fmt"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

// Command is a validated and normalized command. Feed is turned into
// Advance by the feed pitch.
type Command struct {
	Op       protocol.Opcode
	Feeder   uint8
	Distance fixed.Value
	Field    calibration.Field
	Value    fixed.Value
}

// Kind classifies a ValidationError.
type Kind int

// Validation error kinds.
const (
	OutOfRange Kind = iota
	UnknownField
)

// ValidationError rejects a command.
type ValidationError struct {
	Kind  Kind
	Op    protocol.Opcode
	Field calibration.Field
	Value fixed.Value
	Limit string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Kind == UnknownField {
		return fmt.Sprintf("%s: unknown field %s", e.Op, e.Field)
	}
	if e.Op == protocol.OpSetCalibration {
		return fmt.Sprintf("%s: %s=%s out of range %s", e.Op, e.Field, e.Value, e.Limit)
	}
	return fmt.Sprintf("%s: distance %s out of range %s", e.Op, e.Value, e.Limit)
}

// Code maps the error to the wire error code.
func (e *ValidationError) Code() protocol.ErrorCode {
	if e.Kind == UnknownField {
		return protocol.CodeInvalidCommand
	}
	return protocol.CodeOutOfRange
}

// Validate checks cmd against p. It has no side effects.
func Validate(cmd protocol.Command, p calibration.Profile) (Command, error) {
	vc := Command{Op: cmd.Opcode(), Feeder: cmd.FeederID()}
	switch c := cmd.(type) {
	case protocol.Advance:
		vc.Distance = c.Distance
	case protocol.Retract:
		vc.Distance = c.Distance
	case protocol.Feed:
		vc.Op, vc.Distance = protocol.OpAdvance, p.FeedPitch
	case protocol.SetCalibration:
		vc.Field, vc.Value = c.Field, c.Value
		return vc, validateField(c.Field, c.Value, p)
	default:
		return vc, nil
	}
	if vc.Distance < 0 || vc.Distance > p.MaxTravel {
		return vc, &ValidationError{
			Kind:  OutOfRange,
			Op:    cmd.Opcode(),
			Value: vc.Distance,
			Limit: fmt.Sprintf("[0, %s]", p.MaxTravel),
		}
	}
	return vc, nil
}

func validateField(f calibration.Field, v fixed.Value, p calibration.Profile) error {
	if !f.IsKnown() {
		return &ValidationError{Kind: UnknownField, Op: protocol.OpSetCalibration, Field: f, Value: v}
	}
	min, max := f.Bounds()
	limit := fmt.Sprintf("[%s, %s]", min, max)
	switch f {
	case calibration.FieldFeedPitch:
		if p.MaxTravel < max {
			max = p.MaxTravel
			limit = fmt.Sprintf("[%s, max_travel=%s]", min, max)
		}
	case calibration.FieldMaxTravel:
		if p.FeedPitch > min {
			min = p.FeedPitch
			limit = fmt.Sprintf("[feed_pitch=%s, %s]", min, max)
		}
	case calibration.FieldRetryLimit:
		limit = fmt.Sprintf("whole number in [%s, %s]", min, max)
	}
	if v < min || v > max || !f.InBounds(v) {
		return &ValidationError{
			Kind:  OutOfRange,
			Op:    protocol.OpSetCalibration,
			Field: f,
			Value: v,
			Limit: limit,
		}
	}
	return nil
}
