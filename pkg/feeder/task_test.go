package feeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/motion/sim"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

type taskFixture struct {
	t      *testing.T
	task   *Task
	driver *sim.Driver
	outbox chan *protocol.Response
	cancel func()
	errCh  chan error
}

func startTask(t *testing.T, stepDelay time.Duration) *taskFixture {
	f := &taskFixture{
		t:      t,
		driver: sim.New(stepDelay, 0),
		outbox: make(chan *protocol.Response, 16),
		errCh:  make(chan error, 1),
	}
	timing := testTiming
	timing.StallTimeout = 5 * time.Second
	m := NewMachine(2, f.driver, calibration.NewStore(calibration.NewMemBackend()), timing)
	f.task = NewTask(m, f.outbox)
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.errCh <- f.task.Run(ctx) }()
	t.Cleanup(f.stop)
	return f
}

func (f *taskFixture) stop() {
	f.cancel()
	select {
	case err := <-f.errCh:
		require.ErrorIs(f.t, err, context.Canceled)
	case <-time.After(time.Second):
		f.t.Error("task didn't stop")
	}
}

func (f *taskFixture) submit(cmd protocol.Command) {
	require.True(f.t, f.task.Submit(cmd))
}

func (f *taskFixture) expect(op protocol.Opcode, status protocol.Status, code protocol.ErrorCode) *protocol.Response {
	select {
	case r := <-f.outbox:
		require.Equal(f.t, op, r.Op, "%s", r)
		require.Equal(f.t, status, r.Status, "%s", r)
		require.Equal(f.t, code, r.Code, "%s", r)
		return r
	case <-time.After(2 * time.Second):
		f.t.Fatalf("no response for %s", op)
	}
	return nil
}

func TestTaskName(t *testing.T) {
	task := NewTask(NewMachine(3, sim.New(0, 0), nil, Timing{}), nil)
	require.Equal(t, "feeder[3]", task.Name())
	require.Equal(t, uint8(3), task.ID())
}

func TestTaskRespondsInOrder(t *testing.T) {
	f := startTask(t, 0)
	h := protocol.Header{Feeder: 2}
	f.submit(protocol.Advance{Header: h, Distance: fixed.FromInt(1)})
	f.submit(protocol.Advance{Header: h, Distance: fixed.FromInt(9999)})
	f.submit(protocol.GetStatus{Header: h})
	f.expect(protocol.OpAdvance, protocol.Ack, protocol.CodeOk)
	f.expect(protocol.OpAdvance, protocol.Nack, protocol.CodeOutOfRange)
	r := f.expect(protocol.OpGetStatus, protocol.Ack, protocol.CodeOk)
	require.Equal(t, fixed.FromInt(1), r.Position)
	select {
	case r := <-f.outbox:
		t.Fatalf("unexpected response %s", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTaskStopPreemptsFeeding(t *testing.T) {
	f := startTask(t, time.Millisecond)
	h := protocol.Header{Feeder: 2}
	f.submit(protocol.Advance{Header: h, Distance: fixed.FromInt(50)})
	require.Eventually(t, func() bool {
		return f.task.Machine.State().Tag == protocol.StateFeeding && f.driver.Position() > 0
	}, time.Second, time.Millisecond)

	f.submit(protocol.GetStatus{Header: h})
	r := f.expect(protocol.OpGetStatus, protocol.Ack, protocol.CodeOk)
	require.Equal(t, protocol.StateFeeding, r.State)
	require.True(t, r.Remaining > 0 && r.Remaining <= fixed.FromInt(50), "remaining %s", r.Remaining)

	f.submit(protocol.Advance{Header: h, Distance: fixed.FromInt(1)})
	f.expect(protocol.OpAdvance, protocol.Nack, protocol.CodeNotReady)

	stopAt := time.Now()
	f.submit(protocol.Stop{Header: h})
	r = f.expect(protocol.OpAdvance, protocol.Nack, protocol.CodeAborted)
	require.Equal(t, protocol.StateIdle, r.State)
	r = f.expect(protocol.OpStop, protocol.Ack, protocol.CodeOk)
	require.Less(t, time.Since(stopAt), 500*time.Millisecond)
	require.Equal(t, protocol.StateIdle, r.State)
	require.True(t, r.Position > 0 && r.Position < fixed.FromInt(50), "position %s", r.Position)
	require.Equal(t, fixed.FromSteps(f.driver.Position(), fixed.FromInt(100)), r.Position)
	require.Equal(t, Idle, f.task.Machine.State())

	// the feeder is usable right after
	f.submit(protocol.GetStatus{Header: h})
	f.expect(protocol.OpGetStatus, protocol.Ack, protocol.CodeOk)
}

func TestTaskStopPreemptsRetracting(t *testing.T) {
	f := startTask(t, time.Millisecond)
	h := protocol.Header{Feeder: 2}
	f.submit(protocol.Retract{Header: h, Distance: fixed.FromInt(50)})
	require.Eventually(t, func() bool {
		return f.task.Machine.State().Tag == protocol.StateRetracting && f.driver.Position() < 0
	}, time.Second, time.Millisecond)

	stopAt := time.Now()
	f.submit(protocol.Stop{Header: h})
	r := f.expect(protocol.OpRetract, protocol.Nack, protocol.CodeAborted)
	require.Equal(t, protocol.StateIdle, r.State)
	r = f.expect(protocol.OpStop, protocol.Ack, protocol.CodeOk)
	require.Less(t, time.Since(stopAt), 500*time.Millisecond)
	require.True(t, r.Position < 0 && r.Position > -fixed.FromInt(50), "position %s", r.Position)
	require.Equal(t, fixed.FromSteps(f.driver.Position(), fixed.FromInt(100)), r.Position)
	require.Equal(t, Idle, f.task.Machine.State())
}

func TestTaskStopPreemptsHoming(t *testing.T) {
	f := startTask(t, time.Millisecond)
	h := protocol.Header{Feeder: 2}
	f.driver.DisconnectHome(true)
	f.task.Machine.Timing.HomingTimeout = 5 * time.Second
	f.submit(protocol.Home{Header: h})
	require.Eventually(t, func() bool {
		return f.task.Machine.State().Tag == protocol.StateHoming && f.driver.Position() < 0
	}, time.Second, time.Millisecond)

	f.submit(protocol.GetStatus{Header: h})
	r := f.expect(protocol.OpGetStatus, protocol.Ack, protocol.CodeOk)
	require.Equal(t, protocol.StateHoming, r.State)

	stopAt := time.Now()
	f.submit(protocol.Stop{Header: h})
	r = f.expect(protocol.OpHome, protocol.Nack, protocol.CodeAborted)
	require.Equal(t, protocol.StateIdle, r.State)
	r = f.expect(protocol.OpStop, protocol.Ack, protocol.CodeOk)
	require.Less(t, time.Since(stopAt), 500*time.Millisecond)
	require.Equal(t, protocol.StateIdle, r.State)
	require.Equal(t, Idle, f.task.Machine.State())

	f.submit(protocol.GetStatus{Header: h})
	r = f.expect(protocol.OpGetStatus, protocol.Ack, protocol.CodeOk)
	require.Equal(t, protocol.FaultNone, r.Fault)
}

func TestTaskSubmitFull(t *testing.T) {
	task := NewTask(NewMachine(1, sim.New(0, 0), nil, Timing{}), nil)
	for n := 0; n < InboxSize; n++ {
		require.True(t, task.Submit(protocol.GetStatus{}))
	}
	require.False(t, task.Submit(protocol.GetStatus{}))
}
