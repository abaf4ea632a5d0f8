package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/motion"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

// stopRequest aborts outstanding motion, it carries the Stop command
// to be acknowledged after the aborted one.
type stopRequest struct {
	cmd protocol.Command
}

func (s *stopRequest) Error() string {
	return "stop requested"
}

type stepResult struct {
	taken uint32
	err   error
}

// runSteps issues Step requests of at most ChunkSteps until count steps
// are taken. progress is called after each request that made progress.
// A request without progress is retried up to retries times.
func (m *Machine) runSteps(ctx context.Context, dir motion.Direction, count uint64, retries uint8, mb Mailbox, progress func(taken uint32, remaining uint64)) (uint64, error) {
	var taken uint64
	var failures int
	for taken < count {
		n := count - taken
		if limit := uint64(m.Timing.ChunkSteps); n > limit {
			n = limit
		}
		res := m.step(ctx, dir, uint32(n), mb)
		taken += uint64(res.taken)
		if progress != nil && res.taken > 0 {
			progress(res.taken, count-taken)
		}
		if res.err == nil && res.taken > 0 {
			failures = 0
			continue
		}
		var stop *stopRequest
		if errors.As(res.err, &stop) {
			return taken, res.err
		}
		if err := ctx.Err(); err != nil {
			return taken, err
		}
		err := res.err
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			err = motion.ErrTimeout
		}
		failures++
		if failures > int(retries) {
			return taken, fmt.Errorf("%d of %d steps %s not taken after %d attempts: %w",
				count-taken, count, dir, failures, err)
		}
		glog.Warningf("feeder %d: step %s %d failed (attempt %d of %d): %v",
			m.ID, dir, n, failures, int(retries)+1, err)
	}
	return taken, nil
}

// step issues one Step request and serves the mailbox until it completes.
// Stop cancels the request.
func (m *Machine) step(ctx context.Context, dir motion.Direction, count uint32, mb Mailbox) stepResult {
	stepCtx, cancel := context.WithTimeout(ctx, m.Timing.StallTimeout)
	defer cancel()
	done := make(chan stepResult, 1)
	go func() {
		n, err := m.Driver.Step(stepCtx, dir, count)
		if n > count {
			n = count
		}
		done <- stepResult{taken: n, err: err}
	}()

	// the driver must honor its deadline, the watchdog bounds the wait anyway.
	watchdog := time.NewTimer(m.Timing.StallTimeout + m.Timing.Tick)
	defer watchdog.Stop()
	incoming := mb.Incoming()
	var stop *stopRequest
	for {
		select {
		case res := <-done:
			if stop != nil {
				res.err = stop
			}
			return res
		case <-watchdog.C:
			glog.Warningf("feeder %d: driver didn't return by its deadline", m.ID)
			if stop != nil {
				return stepResult{err: stop}
			}
			return stepResult{err: motion.ErrTimeout}
		case in := <-incoming:
			if stop = m.serveBusy(in, mb); stop != nil {
				cancel()
				incoming = nil
			}
		}
	}
}

// serveBusy answers a command received while motion is outstanding.
// Stop is returned to the caller, anything else is answered here.
func (m *Machine) serveBusy(cmd protocol.Command, mb Mailbox) *stopRequest {
	switch cmd.Opcode() {
	case protocol.OpStop:
		return &stopRequest{cmd: cmd}
	case protocol.OpGetStatus:
		mb.Reply(m.status(cmd))
	default:
		mb.Reply(m.nack(cmd, protocol.CodeNotReady))
	}
	return nil
}

func (m *Machine) senseHome(ctx context.Context) (bool, error) {
	senseCtx, cancel := context.WithTimeout(ctx, m.Timing.StallTimeout)
	defer cancel()
	hit, err := m.Driver.SenseHome(senseCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = motion.ErrTimeout
		}
		return false, fmt.Errorf("home sensor: %w", err)
	}
	return hit, nil
}
