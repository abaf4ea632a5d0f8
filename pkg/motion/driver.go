// Package motion defines the actuator abstraction driven by a feeder.
package motion

import (
	"context"
	"errors"
)

// Direction of the feed axis.
type Direction int8

// Directions.
const (
	Forward Direction = 1
	Reverse Direction = -1
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	}
	return "none"
}

// Driver is a stepper actuator with a home sensor.
// Implementations must return promptly once ctx is done, reporting the
// steps actually taken.
type Driver interface {
	Step(ctx context.Context, dir Direction, count uint32) (taken uint32, err error)
	SenseHome(ctx context.Context) (bool, error)
}

// ErrTimeout is returned when an actuator doesn't complete in time.
var ErrTimeout = errors.New("motion timeout")
