// Package sim provides a simulated stepper actuator.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/feeder.go/pkg/motion"
)

// Call records one Step request.
type Call struct {
	Dir   motion.Direction
	Count uint32
}

// Driver simulates a stepper with a home switch. The home switch is
// active while Position is at or below HomeAt.
type Driver struct {
	// StepDelay is the time taken by each step.
	StepDelay time.Duration
	// HomeAt is the step position where the home switch triggers.
	HomeAt int64

	position int64
	stalled  bool
	noHome   bool
	calls    []Call
	lock     sync.Mutex
}

// New creates a Driver positioned at step 0 with the switch at HomeAt.
func New(stepDelay time.Duration, homeAt int64) *Driver {
	return &Driver{StepDelay: stepDelay, HomeAt: homeAt}
}

// Step implements motion.Driver.
func (d *Driver) Step(ctx context.Context, dir motion.Direction, count uint32) (uint32, error) {
	d.lock.Lock()
	d.calls = append(d.calls, Call{Dir: dir, Count: count})
	stalled, delay := d.stalled, d.StepDelay
	d.lock.Unlock()

	if stalled {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var taken uint32
	if delay <= 0 {
		taken = count
		d.advance(dir, count)
	} else {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for taken < count {
			select {
			case <-ctx.Done():
				return taken, ctx.Err()
			case <-ticker.C:
				taken++
				d.advance(dir, 1)
			}
		}
	}
	return taken, nil
}

func (d *Driver) advance(dir motion.Direction, n uint32) {
	d.lock.Lock()
	d.position += int64(dir) * int64(n)
	d.lock.Unlock()
}

// SenseHome implements motion.Driver.
func (d *Driver) SenseHome(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return !d.noHome && d.position <= d.HomeAt, nil
}

// Stall makes Step block until its context is done.
func (d *Driver) Stall(stalled bool) {
	d.lock.Lock()
	d.stalled = stalled
	d.lock.Unlock()
}

// DisconnectHome makes the home switch never trigger.
func (d *Driver) DisconnectHome(disconnected bool) {
	d.lock.Lock()
	d.noHome = disconnected
	d.lock.Unlock()
}

// SetPosition moves the simulated carriage without recording a call.
func (d *Driver) SetPosition(steps int64) {
	d.lock.Lock()
	d.position = steps
	d.lock.Unlock()
}

// Position returns the step position.
func (d *Driver) Position() int64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.position
}

// Calls returns the recorded Step requests.
func (d *Driver) Calls() []Call {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]Call(nil), d.calls...)
}

// ResetCalls clears the recorded Step requests.
func (d *Driver) ResetCalls() {
	d.lock.Lock()
	d.calls = nil
	d.lock.Unlock()
}
