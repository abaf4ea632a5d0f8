package link

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// ErrNotReady indicates the link is not synchronized.
var ErrNotReady = errors.New("link not ready")

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// StateNotifier is called when the sync state changes.
type StateNotifier interface {
	StateChanged(context.Context, SyncState)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, SyncState)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state SyncState) {
	f(ctx, state)
}

// Stats counts link events.
type Stats struct {
	Received uint64
	Sent     uint64
	Dropped  uint64
	Resyncs  uint64
}

// FIFO sends and receives frames over a byte stream.
type FIFO struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler
	Notifier   StateNotifier
	Timeout    time.Duration
	// ReadTimeout is set when Read returns empty after an idle period
	// (e.g. a serial port). An idle read then acts as the sync timer.
	ReadTimeout bool

	seq   Seq
	state SyncState
	lock  sync.RWMutex
	stats Stats

	syncTimer <-chan time.Time
	parser    Parser
}

// NewFIFO creates a FIFO.
func NewFIFO(rw io.ReadWriter) *FIFO {
	return &FIFO{
		ReadWriter: rw,
		Timeout:    100 * time.Millisecond,
		seq:        NewSeq(),
	}
}

// State gets the sync state.
func (f *FIFO) State() SyncState {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.state
}

// Stats returns a copy of the counters.
func (f *FIFO) Stats() Stats {
	return Stats{
		Received: atomic.LoadUint64(&f.stats.Received),
		Sent:     atomic.LoadUint64(&f.stats.Sent),
		Dropped:  atomic.LoadUint64(&f.stats.Dropped),
		Resyncs:  atomic.LoadUint64(&f.stats.Resyncs),
	}
}

// Send sends a frame, assigning its sequence number.
func (f *FIFO) Send(frame *Frame) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.state.IsReady() {
		return ErrNotReady
	}
	frame.Seq = f.seq
	if _, err := frame.WriteTo(f.ReadWriter); err != nil {
		return err
	}
	f.seq = f.seq.Next()
	atomic.AddUint64(&f.stats.Sent, 1)
	return nil
}

// Run processes the FIFO until ctx is done or the stream fails.
func (f *FIFO) Run(ctx context.Context) error {
	if err := f.apply(ctx, f.parser.Reset()); err != nil {
		return err
	}
	if f.ReadTimeout {
		return f.runPolling(ctx)
	}

	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.readLoop(subCtx, byteCh, errCh)
	for {
		var err error
		select {
		case b := <-byteCh:
			err = f.apply(ctx, f.parser.Parse(b))
		case err = <-errCh:
		case <-ctx.Done():
			return ctx.Err()
		case <-f.syncTimer:
			err = f.apply(ctx, f.parser.Timeout())
		}
		if err != nil {
			return err
		}
	}
}

func (f *FIFO) runPolling(ctx context.Context) error {
	buf := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := f.ReadWriter.Read(buf)
		switch {
		case err != nil && !os.IsTimeout(err):
			return err
		case err != nil || n == 0:
			err = f.apply(ctx, f.parser.Timeout())
		default:
			err = f.apply(ctx, f.parser.Parse(buf[0]))
		}
		if err != nil {
			return err
		}
	}
}

func (f *FIFO) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		if _, err := f.ReadWriter.Read(buf); err != nil {
			errCh <- err
			return
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (f *FIFO) apply(ctx context.Context, pr ParseResult) (err error) {
	if pr.Dropped {
		atomic.AddUint64(&f.stats.Dropped, 1)
		glog.V(2).Info("link: frame dropped, bad crc")
	}
	if pr.Sync == syncREQ {
		atomic.AddUint64(&f.stats.Resyncs, 1)
	}

	var notifier StateNotifier
	f.lock.Lock()
	if f.state != pr.State {
		f.state = pr.State
		notifier = f.Notifier
	}
	if pr.Sync != 0 {
		_, err = f.ReadWriter.Write([]byte{pr.Sync, byte(f.seq)})
	}
	f.lock.Unlock()
	if err != nil {
		return
	}
	if !f.ReadTimeout {
		switch pr.WhatAboutTimer() {
		case TimerRestart:
			f.syncTimer = time.After(f.Timeout)
		case TimerStop:
			f.syncTimer = nil
		}
	}

	if notifier != nil {
		notifier.StateChanged(ctx, pr.State)
	}
	if pr.Frame != nil {
		atomic.AddUint64(&f.stats.Received, 1)
		if h := f.Handler; h != nil {
			h.HandleFrame(ctx, pr.Frame)
		}
	}
	return
}
