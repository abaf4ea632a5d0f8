package calibration

import (
	"errors"
	"fmt"

	"github.com/robotalks/feeder.go/pkg/fixed"
)

// Field identifies a calibration parameter.
// The numeric value is the wire id and the position in the persisted record.
type Field uint8

// Known fields, in record order.
const (
	FieldStepsPerUnit Field = iota
	FieldBacklashOffset
	FieldFeedPitch
	FieldMaxTravel
	FieldRetryLimit

	numFields
)

// NumFields is the number of known fields.
const NumFields = int(numFields)

var fieldNames = [...]string{
	FieldStepsPerUnit:   "steps_per_unit",
	FieldBacklashOffset: "backlash_offset",
	FieldFeedPitch:      "feed_pitch",
	FieldMaxTravel:      "max_travel",
	FieldRetryLimit:     "retry_limit",
}

// ErrUnknownField indicates the field id is not recognized.
var ErrUnknownField = errors.New("unknown calibration field")

// IsKnown indicates the field is recognized.
func (f Field) IsKnown() bool {
	return f < numFields
}

// String implements fmt.Stringer.
func (f Field) String() string {
	if f.IsKnown() {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// ParseField finds a field by name.
func ParseField(name string) (Field, error) {
	for n, s := range fieldNames {
		if s == name {
			return Field(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Fields lists all known fields in record order.
func Fields() []Field {
	fields := make([]Field, NumFields)
	for n := range fields {
		fields[n] = Field(n)
	}
	return fields
}

// Bounds returns the inclusive range of a field.
// StepsPerUnit, FeedPitch and MaxTravel must additionally be positive.
func (f Field) Bounds() (min, max fixed.Value) {
	switch f {
	case FieldStepsPerUnit:
		return 1, fixed.FromInt(100000)
	case FieldBacklashOffset:
		return 0, fixed.FromInt(10)
	case FieldFeedPitch:
		return 1, fixed.FromInt(1000)
	case FieldMaxTravel:
		return 1, fixed.FromInt(10000)
	case FieldRetryLimit:
		return 0, fixed.FromInt(10)
	}
	return 0, -1
}

// InBounds checks a single value against the field's own range.
func (f Field) InBounds(v fixed.Value) bool {
	min, max := f.Bounds()
	if v < min || v > max {
		return false
	}
	return f != FieldRetryLimit || v.IsWhole()
}

// Profile is the calibration of one feeder.
type Profile struct {
	StepsPerUnit   fixed.Value `json:"steps_per_unit"`
	BacklashOffset fixed.Value `json:"backlash_offset"`
	FeedPitch      fixed.Value `json:"feed_pitch"`
	MaxTravel      fixed.Value `json:"max_travel"`
	RetryLimit     uint8       `json:"retry_limit"`
}

// Defaults returns the profile used when nothing valid is persisted.
func Defaults() Profile {
	return Profile{
		StepsPerUnit:   fixed.FromInt(100),
		BacklashOffset: 0,
		FeedPitch:      fixed.FromInt(4),
		MaxTravel:      fixed.FromInt(50),
		RetryLimit:     2,
	}
}

// Get reads a field.
func (p Profile) Get(f Field) (fixed.Value, error) {
	switch f {
	case FieldStepsPerUnit:
		return p.StepsPerUnit, nil
	case FieldBacklashOffset:
		return p.BacklashOffset, nil
	case FieldFeedPitch:
		return p.FeedPitch, nil
	case FieldMaxTravel:
		return p.MaxTravel, nil
	case FieldRetryLimit:
		return fixed.FromInt(int32(p.RetryLimit)), nil
	}
	return 0, ErrUnknownField
}

// With returns a copy with one field replaced. Bounds are not checked.
func (p Profile) With(f Field, v fixed.Value) (Profile, error) {
	switch f {
	case FieldStepsPerUnit:
		p.StepsPerUnit = v
	case FieldBacklashOffset:
		p.BacklashOffset = v
	case FieldFeedPitch:
		p.FeedPitch = v
	case FieldMaxTravel:
		p.MaxTravel = v
	case FieldRetryLimit:
		p.RetryLimit = uint8(v.Int())
	default:
		return p, ErrUnknownField
	}
	return p, nil
}

// Values lists field values in record order.
func (p Profile) Values() []fixed.Value {
	vals := make([]fixed.Value, NumFields)
	for n := range vals {
		vals[n], _ = p.Get(Field(n))
	}
	return vals
}

// Validate checks every field and the cross-field constraints.
func (p Profile) Validate() error {
	for _, f := range Fields() {
		v, _ := p.Get(f)
		if !f.InBounds(v) {
			return fmt.Errorf("%s=%s out of range", f, v)
		}
	}
	if p.FeedPitch > p.MaxTravel {
		return fmt.Errorf("feed_pitch=%s exceeds max_travel=%s", p.FeedPitch, p.MaxTravel)
	}
	return nil
}
