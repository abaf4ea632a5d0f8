// Package feeder runs the state machine of a single tape feeder.
package feeder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/interp"
	"github.com/robotalks/feeder.go/pkg/motion"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

// Mailbox connects a command in progress with its task.
type Mailbox interface {
	// Incoming delivers commands received while motion is outstanding.
	Incoming() <-chan protocol.Command
	// Reply emits a response.
	Reply(*protocol.Response)
}

// Machine is the state machine of one feeder. Handle must only be called
// from a single goroutine, other goroutines may read snapshots.
type Machine struct {
	ID      uint8
	Driver  motion.Driver
	Store   *calibration.Store
	Timing  Timing
	Version string

	state    State
	position fixed.Value
	steps    int64
	lastDir  motion.Direction
	lock     sync.RWMutex
}

// NewMachine creates a Machine in Idle at position 0.
func NewMachine(id uint8, driver motion.Driver, store *calibration.Store, timing Timing) *Machine {
	return &Machine{
		ID:     id,
		Driver: driver,
		Store:  store,
		Timing: timing.withDefaults(),
		state:  Idle,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// Position returns the accumulated feed position.
func (m *Machine) Position() fixed.Value {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.position
}

func (m *Machine) setState(s State) {
	m.lock.Lock()
	prev := m.state
	m.state = s
	m.lock.Unlock()
	if prev.Tag != s.Tag {
		glog.V(2).Infof("feeder %d: %s -> %s", m.ID, prev, s)
	}
}

func (m *Machine) setPosition(pos fixed.Value, steps int64) {
	m.lock.Lock()
	m.position, m.steps = pos, steps
	m.lock.Unlock()
}

func (m *Machine) fault(reason protocol.FaultReason, cause error) {
	glog.Errorf("feeder %d: fault %s: %v", m.ID, reason, cause)
	m.setState(Faulted(reason))
}

// Handle processes one command and emits its responses through mb:
// exactly one for cmd, plus one for each command that arrives while
// motion is outstanding.
func (m *Machine) Handle(ctx context.Context, cmd protocol.Command, mb Mailbox) {
	glog.V(4).Infof("feeder %d: handle %s", m.ID, cmd.Opcode())
	switch cmd.Opcode() {
	case protocol.OpGetStatus:
		mb.Reply(m.status(cmd))
		return
	case protocol.OpStop:
		m.setState(Idle)
		mb.Reply(m.ack(cmd))
		return
	case protocol.OpReset:
		if m.State().IsFault() {
			glog.Infof("feeder %d: fault cleared", m.ID)
			m.setState(Idle)
		}
		mb.Reply(m.ack(cmd))
		return
	case protocol.OpIdentify:
		r := m.ack(cmd)
		r.Version = m.Version
		mb.Reply(r)
		return
	case protocol.OpGetCalibration:
		p := m.Store.Get(m.ID)
		r := m.ack(cmd)
		r.Profile = &p
		mb.Reply(r)
		return
	}

	if st := m.State(); st.IsFault() && cmd.Opcode().IsMotion() {
		mb.Reply(m.nack(cmd, protocol.CodeNotReady))
		return
	}

	profile := m.Store.Get(m.ID)
	vc, err := interp.Validate(cmd, profile)
	if err != nil {
		glog.V(2).Infof("feeder %d: %v", m.ID, err)
		code := protocol.CodeInvalidCommand
		var verr *interp.ValidationError
		if errors.As(err, &verr) {
			code = verr.Code()
		}
		mb.Reply(m.nack(cmd, code))
		return
	}

	switch vc.Op {
	case protocol.OpAdvance:
		m.move(ctx, cmd, vc.Distance, motion.Forward, profile, mb)
	case protocol.OpRetract:
		m.move(ctx, cmd, vc.Distance, motion.Reverse, profile, mb)
	case protocol.OpHome:
		m.home(ctx, cmd, profile, mb)
	case protocol.OpSetCalibration:
		mb.Reply(m.calibrate(cmd, vc))
	default:
		mb.Reply(m.nack(cmd, protocol.CodeInvalidCommand))
	}
}

func (m *Machine) move(ctx context.Context, cmd protocol.Command, d fixed.Value, dir motion.Direction, p calibration.Profile, mb Mailbox) {
	if d == 0 {
		mb.Reply(m.ack(cmd))
		return
	}
	tag := protocol.StateFeeding
	if dir == motion.Reverse {
		tag = protocol.StateRetracting
	}
	m.lock.RLock()
	start, steps := m.position, m.steps
	m.lock.RUnlock()
	target, err := fixed.Add(start, fixed.Value(dir)*d)
	if err != nil {
		glog.Warningf("feeder %d: %s %s from %s: position %v", m.ID, cmd.Opcode(), d, start, err)
		mb.Reply(m.nack(cmd, protocol.CodeOutOfRange))
		return
	}
	total := fixed.ToSteps(target, p.StepsPerUnit) - steps
	if total < 0 {
		total = -total
	}

	m.setState(State{Tag: tag, Remaining: d})
	if m.lastDir != 0 && m.lastDir != dir {
		if backlash := fixed.ToSteps(p.BacklashOffset, p.StepsPerUnit); backlash > 0 {
			glog.V(4).Infof("feeder %d: backlash %d steps %s", m.ID, backlash, dir)
			if _, err := m.runSteps(ctx, dir, uint64(backlash), p.RetryLimit, mb, nil); err != nil {
				m.endMotion(cmd, err, protocol.FaultStall, mb)
				return
			}
		}
	}
	m.lastDir = dir

	progress := func(taken uint32, remaining uint64) {
		steps += int64(dir) * int64(taken)
		m.setPosition(fixed.FromSteps(steps, p.StepsPerUnit), steps)
		m.setState(State{Tag: tag, Remaining: fixed.FromSteps(int64(remaining), p.StepsPerUnit)})
	}
	if _, err := m.runSteps(ctx, dir, uint64(total), p.RetryLimit, mb, progress); err != nil {
		m.endMotion(cmd, err, protocol.FaultStall, mb)
		return
	}
	m.setPosition(target, fixed.ToSteps(target, p.StepsPerUnit))
	m.setState(Idle)
	mb.Reply(m.ack(cmd))
}

func (m *Machine) home(ctx context.Context, cmd protocol.Command, p calibration.Profile, mb Mailbox) {
	m.setState(State{Tag: protocol.StateHoming})
	deadline := time.NewTimer(m.Timing.HomingTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.Timing.Tick)
	defer ticker.Stop()
	m.lastDir = motion.Reverse
	for {
		hit, err := m.senseHome(ctx)
		if err != nil {
			m.endMotion(cmd, err, protocol.FaultHomingTimeout, mb)
			return
		}
		if hit {
			m.setPosition(0, 0)
			m.setState(Idle)
			glog.Infof("feeder %d: homed", m.ID)
			mb.Reply(m.ack(cmd))
			return
		}
		progress := func(taken uint32, _ uint64) {
			m.lock.Lock()
			m.steps -= int64(taken)
			m.position = fixed.FromSteps(m.steps, p.StepsPerUnit)
			m.lock.Unlock()
		}
		if _, err = m.runSteps(ctx, motion.Reverse, uint64(m.Timing.HomeChunkSteps), p.RetryLimit, mb, progress); err != nil {
			m.endMotion(cmd, err, protocol.FaultStall, mb)
			return
		}
	wait:
		for {
			select {
			case <-ctx.Done():
				m.endMotion(cmd, ctx.Err(), protocol.FaultHomingTimeout, mb)
				return
			case <-deadline.C:
				m.endMotion(cmd, motion.ErrTimeout, protocol.FaultHomingTimeout, mb)
				return
			case <-ticker.C:
				break wait
			case in := <-mb.Incoming():
				if stop := m.serveBusy(in, mb); stop != nil {
					m.endMotion(cmd, stop, protocol.FaultHomingTimeout, mb)
					return
				}
			}
		}
	}
}

func (m *Machine) calibrate(cmd protocol.Command, vc interp.Command) *protocol.Response {
	prev := m.State()
	if prev.Tag != protocol.StateIdle && !prev.IsFault() {
		return m.nack(cmd, protocol.CodeNotReady)
	}
	m.setState(State{Tag: protocol.StateCalibrating})
	p, err := m.Store.Set(m.ID, vc.Field, vc.Value)
	m.setState(prev)
	if err != nil {
		glog.Errorf("feeder %d: %v", m.ID, err)
		return m.nack(cmd, protocol.CodeStoreFailure)
	}
	if vc.Field == calibration.FieldStepsPerUnit {
		m.setPosition(m.Position(), fixed.ToSteps(m.Position(), p.StepsPerUnit))
	}
	return m.ack(cmd)
}

// endMotion emits the responses of an interrupted motion command.
func (m *Machine) endMotion(cmd protocol.Command, err error, reason protocol.FaultReason, mb Mailbox) {
	var stop *stopRequest
	switch {
	case errors.As(err, &stop):
		glog.Infof("feeder %d: %s aborted by stop", m.ID, cmd.Opcode())
		m.setState(Idle)
		mb.Reply(m.nack(cmd, protocol.CodeAborted))
		mb.Reply(m.ack(stop.cmd))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.setState(Idle)
		mb.Reply(m.nack(cmd, protocol.CodeAborted))
	default:
		m.fault(reason, err)
		mb.Reply(m.nack(cmd, protocol.CodeTimeout))
	}
}

func (m *Machine) snapshot(cmd protocol.Command, status protocol.Status, code protocol.ErrorCode) *protocol.Response {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return &protocol.Response{
		Op:       cmd.Opcode(),
		Feeder:   m.ID,
		Status:   status,
		Code:     code,
		State:    m.state.Tag,
		Fault:    m.state.Reason,
		Position: m.position,
	}
}

func (m *Machine) ack(cmd protocol.Command) *protocol.Response {
	return m.snapshot(cmd, protocol.Ack, protocol.CodeOk)
}

func (m *Machine) nack(cmd protocol.Command, code protocol.ErrorCode) *protocol.Response {
	return m.snapshot(cmd, protocol.Nack, code)
}

func (m *Machine) status(cmd protocol.Command) *protocol.Response {
	r := m.ack(cmd)
	r.Remaining = m.State().Remaining
	return r
}
