// Package fixed provides the decimal fixed-point values used for distances
// and calibration parameters. The core never uses floating point.
package fixed

import (
	"errors"
	"strconv"
	"strings"
)

// Value is a signed decimal with three fractional digits.
type Value int32

// Scale is the raw count of one whole unit.
const Scale = 1000

// Digits is the number of fractional digits.
const Digits = 3

const scale2 = int64(Scale) * int64(Scale)

var (
	// ErrSyntax indicates the string is not a decimal number.
	ErrSyntax = errors.New("invalid decimal")
	// ErrPrecision indicates more fractional digits than supported.
	ErrPrecision = errors.New("too many fractional digits")
	// ErrRange indicates the value doesn't fit.
	ErrRange = errors.New("value out of range")
)

// FromInt creates a Value of whole units.
func FromInt(n int32) Value {
	return Value(n * Scale)
}

// FromMilli creates a Value from thousandths of a unit.
func FromMilli(n int32) Value {
	return Value(n)
}

// Parse parses a decimal string like "5", "-1.25" or "0.001".
func Parse(s string) (Value, error) {
	str := strings.TrimSpace(s)
	neg := strings.HasPrefix(str, "-")
	if neg || strings.HasPrefix(str, "+") {
		str = str[1:]
	}
	whole, frac := str, ""
	if pos := strings.IndexByte(str, '.'); pos >= 0 {
		whole, frac = str[:pos], str[pos+1:]
	}
	if whole == "" && frac == "" {
		return 0, ErrSyntax
	}
	if len(frac) > Digits {
		if strings.TrimRight(frac[Digits:], "0") != "" {
			return 0, ErrPrecision
		}
		frac = frac[:Digits]
	}
	var raw int64
	if whole != "" {
		n, err := strconv.ParseUint(whole, 10, 32)
		if err != nil {
			if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
				return 0, ErrRange
			}
			return 0, ErrSyntax
		}
		raw = int64(n) * Scale
	}
	if frac != "" {
		frac += strings.Repeat("0", Digits-len(frac))
		n, err := strconv.ParseUint(frac, 10, 16)
		if err != nil {
			return 0, ErrSyntax
		}
		raw += int64(n)
	}
	if neg {
		raw = -raw
	}
	if raw > int64(maxValue) || raw < int64(minValue) {
		return 0, ErrRange
	}
	return Value(raw), nil
}

const (
	maxValue = Value(1<<31 - 1)
	minValue = Value(-1 << 31)
)

// MustParse is Parse and panics on error, intended for constants and tests.
func MustParse(s string) Value {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical decimal form without trailing zeros.
func (v Value) String() string {
	raw := int64(v)
	var sb strings.Builder
	if raw < 0 {
		sb.WriteByte('-')
		raw = -raw
	}
	sb.WriteString(strconv.FormatInt(raw/Scale, 10))
	if frac := raw % Scale; frac != 0 {
		digits := strconv.FormatInt(frac+Scale, 10)[1:]
		sb.WriteByte('.')
		sb.WriteString(strings.TrimRight(digits, "0"))
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Int returns the whole units, truncated toward zero.
func (v Value) Int() int32 {
	return int32(v) / Scale
}

// Milli returns the raw thousandths.
func (v Value) Milli() int32 {
	return int32(v)
}

// IsWhole indicates the value has no fractional part.
func (v Value) IsWhole() bool {
	return int32(v)%Scale == 0
}

// Add returns a+b, or ErrRange when the sum doesn't fit.
func Add(a, b Value) (Value, error) {
	sum := int64(a) + int64(b)
	if sum > int64(maxValue) || sum < int64(minValue) {
		return 0, ErrRange
	}
	return Value(sum), nil
}

// Abs returns the absolute value.
func (v Value) Abs() Value {
	if v < 0 {
		return -v
	}
	return v
}

// ToSteps converts a distance into motor steps at the given resolution,
// rounding half away from zero.
func ToSteps(v, perUnit Value) int64 {
	raw := int64(v) * int64(perUnit)
	q, r := raw/scale2, raw%scale2
	if r < 0 {
		r = -r
	}
	if r*2 >= scale2 {
		if raw < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// FromSteps converts motor steps back into a distance, rounding half away
// from zero. perUnit must be positive.
func FromSteps(steps int64, perUnit Value) Value {
	if perUnit <= 0 {
		return 0
	}
	raw := steps * scale2
	div := int64(perUnit)
	q, r := raw/div, raw%div
	if r < 0 {
		r = -r
	}
	if r*2 >= div {
		if raw < 0 {
			q--
		} else {
			q++
		}
	}
	if q > int64(maxValue) {
		return maxValue
	}
	if q < int64(minValue) {
		return minValue
	}
	return Value(q)
}
