package feeder

import (
	"time"

	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

// State is the state of one feeder.
type State struct {
	Tag protocol.StateTag
	// Remaining distance while Feeding or Retracting.
	Remaining fixed.Value
	// Reason while in Fault.
	Reason protocol.FaultReason
}

// Idle is the initial state.
var Idle = State{Tag: protocol.StateIdle}

// Faulted creates a Fault state.
func Faulted(reason protocol.FaultReason) State {
	return State{Tag: protocol.StateFault, Reason: reason}
}

// IsFault indicates the feeder needs an explicit recovery.
func (s State) IsFault() bool {
	return s.Tag == protocol.StateFault
}

// String implements fmt.Stringer.
func (s State) String() string {
	switch s.Tag {
	case protocol.StateFeeding, protocol.StateRetracting:
		return s.Tag.String() + "(" + s.Remaining.String() + ")"
	case protocol.StateFault:
		return s.Tag.String() + "(" + s.Reason.String() + ")"
	}
	return s.Tag.String()
}

// Timing configures motion chunking and deadlines.
type Timing struct {
	// Tick is the home sensor polling interval.
	Tick time.Duration `yaml:"tick" env:"TICK"`
	// ChunkSteps is the largest single Step request, one progress event each.
	ChunkSteps uint32 `yaml:"chunk_steps" env:"CHUNK_STEPS"`
	// StallTimeout bounds each Step request.
	StallTimeout time.Duration `yaml:"stall_timeout" env:"STALL_TIMEOUT"`
	// HomingTimeout bounds the whole homing sequence.
	HomingTimeout time.Duration `yaml:"homing_timeout" env:"HOMING_TIMEOUT"`
	// HomeChunkSteps is the step count between home sensor polls.
	HomeChunkSteps uint32 `yaml:"home_chunk_steps" env:"HOME_CHUNK_STEPS"`
}

// DefaultTiming returns the default Timing.
func DefaultTiming() Timing {
	return Timing{
		Tick:           10 * time.Millisecond,
		ChunkSteps:     1000,
		StallTimeout:   2 * time.Second,
		HomingTimeout:  10 * time.Second,
		HomeChunkSteps: 10,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	if t.ChunkSteps == 0 {
		t.ChunkSteps = d.ChunkSteps
	}
	if t.StallTimeout <= 0 {
		t.StallTimeout = d.StallTimeout
	}
	if t.HomingTimeout <= 0 {
		t.HomingTimeout = d.HomingTimeout
	}
	if t.HomeChunkSteps == 0 {
		t.HomeChunkSteps = d.HomeChunkSteps
	}
	return t
}
