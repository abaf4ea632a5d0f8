package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/dispatch"
	"github.com/robotalks/feeder.go/pkg/feeder"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/motion/sim"
	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport"
)

func startController(ctx context.Context, t *testing.T, link transport.PacketReadWriter, ids ...uint8) {
	d := dispatch.New()
	for _, id := range ids {
		m := feeder.NewMachine(id, sim.New(0, 0), calibration.NewStore(calibration.NewMemBackend()), feeder.Timing{Tick: time.Millisecond})
		m.Version = "1.2.0"
		go d.NewTask(m).Run(ctx)
	}
	go d.Run(ctx)
	go d.Serve(ctx, link)
}

func TestConnDo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, ctrl := transport.Pipe()
	defer host.Close()
	startController(ctx, t, ctrl, 1, 2)
	conn := NewConn(host)
	go conn.Run(ctx)

	r, err := conn.Do(ctx, protocol.Advance{Header: protocol.Header{Feeder: 1}, Distance: fixed.FromInt(4)})
	require.NoError(t, err)
	require.Equal(t, fixed.FromInt(4), r.Position)

	r, err = conn.Do(ctx, protocol.GetCalibration{Header: protocol.Header{Feeder: 2}})
	require.NoError(t, err)
	require.NotNil(t, r.Profile)
	require.Equal(t, calibration.Defaults(), *r.Profile)

	_, err = conn.Do(ctx, protocol.Advance{Header: protocol.Header{Feeder: 2}, Distance: fixed.FromInt(51)})
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, protocol.CodeOutOfRange, cerr.Code())

	ver, err := conn.CheckVersion(ctx, 1, "^1.0")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", ver.String())

	_, err = conn.CheckVersion(ctx, 1, ">=2.0")
	require.Error(t, err)
}

func TestConnCorrelation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, ctrl := transport.Pipe()
	defer host.Close()
	conn := NewConn(host)
	go conn.Run(ctx)

	type result struct {
		r   *protocol.Response
		err error
	}
	statusCh, stopCh := make(chan result, 1), make(chan result, 1)
	go func() {
		r, err := conn.Do(ctx, protocol.GetStatus{Header: protocol.Header{Feeder: 3}})
		statusCh <- result{r, err}
	}()
	go func() {
		r, err := conn.Do(ctx, protocol.Stop{Header: protocol.Header{Feeder: 3}})
		stopCh <- result{r, err}
	}()
	for i := 0; i < 2; i++ {
		_, err := ctrl.ReadPacket()
		require.NoError(t, err)
	}

	// answer in reverse order
	require.NoError(t, ctrl.WritePacket(protocol.EncodeResponse(&protocol.Response{
		Op: protocol.OpStop, Feeder: 3, Status: protocol.Ack})))
	require.NoError(t, ctrl.WritePacket(protocol.EncodeResponse(&protocol.Response{
		Op: protocol.OpGetStatus, Feeder: 3, Status: protocol.Ack, Remaining: fixed.FromInt(1)})))

	stop := <-stopCh
	require.NoError(t, stop.err)
	require.Equal(t, protocol.OpStop, stop.r.Op)
	status := <-statusCh
	require.NoError(t, status.err)
	require.Equal(t, fixed.FromInt(1), status.r.Remaining)
}

func TestConnTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, _ := transport.Pipe()
	conn := NewConn(host)
	conn.Expiration = 10 * time.Millisecond
	go conn.Run(ctx)

	_, err := conn.Do(ctx, protocol.Home{Header: protocol.Header{Feeder: 1}})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var unsolicited []*protocol.Response
	conn.Unsolicited = func(r *protocol.Response) { unsolicited = append(unsolicited, r) }
	// the late response of the expired call
	conn.deliver(&protocol.Response{Op: protocol.OpHome, Feeder: 1})
	require.Empty(t, unsolicited)
	conn.deliver(&protocol.Response{Op: protocol.OpHome, Feeder: 1})
	require.Len(t, unsolicited, 1)
}

func TestConnLateResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host, ctrl := transport.Pipe()
	defer host.Close()
	conn := NewConn(host)
	conn.Expiration = 100 * time.Millisecond
	go conn.Run(ctx)

	home := protocol.Home{Header: protocol.Header{Feeder: 1}}
	_, err := conn.Do(ctx, home)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	type result struct {
		r   *protocol.Response
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		callCtx, done := context.WithTimeout(ctx, 2*time.Second)
		defer done()
		r, err := conn.Do(callCtx, home)
		resultCh <- result{r, err}
	}()
	for i := 0; i < 2; i++ {
		_, err := ctrl.ReadPacket()
		require.NoError(t, err)
	}

	require.NoError(t, ctrl.WritePacket(protocol.EncodeResponse(&protocol.Response{
		Op: protocol.OpHome, Feeder: 1, Status: protocol.Nack, Code: protocol.CodeTimeout})))
	require.NoError(t, ctrl.WritePacket(protocol.EncodeResponse(&protocol.Response{
		Op: protocol.OpHome, Feeder: 1, Status: protocol.Ack})))

	res := <-resultCh
	require.NoError(t, res.err)
	require.True(t, res.r.IsAck())
}

func TestConnStaleExpiredCall(t *testing.T) {
	host, _ := transport.Pipe()
	conn := NewConn(host)
	conn.Expiration = 10 * time.Millisecond
	go conn.Run(context.Background())
	defer host.Close()

	_, err := conn.Do(context.Background(), protocol.Home{Header: protocol.Header{Feeder: 1}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	time.Sleep(30 * time.Millisecond)

	var unsolicited []*protocol.Response
	conn.Unsolicited = func(r *protocol.Response) { unsolicited = append(unsolicited, r) }
	conn.deliver(&protocol.Response{Op: protocol.OpHome, Feeder: 1})
	require.Len(t, unsolicited, 1)
}

func TestConnClosed(t *testing.T) {
	host, _ := transport.Pipe()
	conn := NewConn(host)
	done := make(chan error, 1)
	go func() { done <- conn.Run(context.Background()) }()
	host.Close()
	require.NoError(t, <-done)
	_, err := conn.Do(context.Background(), protocol.Home{Header: protocol.Header{Feeder: 1}})
	require.Error(t, err)
}
