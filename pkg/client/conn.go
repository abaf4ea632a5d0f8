// Package client talks to a feeder controller from the host side.
package client

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport"
)

// DefaultExpiration bounds a command when the caller's context has no deadline.
const DefaultExpiration = 10 * time.Second

// ErrClosed is returned for commands pending when the connection stops.
var ErrClosed = errors.New("connection closed")

// CommandError is returned for a Nack response.
type CommandError struct {
	Response *protocol.Response
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s[%d]: %s", e.Response.Op, e.Response.Feeder, e.Response.Code)
}

// Code returns the error code of the response.
func (e *CommandError) Code() protocol.ErrorCode {
	return e.Response.Code
}

type pendingKey struct {
	feeder uint8
	op     protocol.Opcode
}

type pendingCall struct {
	result chan *protocol.Response
	// expired is set when the caller gave up; the call stays queued to
	// absorb its late response.
	expired time.Time
}

// Conn sends commands and matches responses by feeder and opcode.
// Responses of the same key arrive in command order. A call that expires
// keeps its place for one Expiration so a late response is dropped
// instead of answering the next call of the same key.
type Conn struct {
	ReadWriter transport.PacketReadWriter
	Expiration time.Duration
	// Unsolicited receives responses nothing waits for.
	Unsolicited func(*protocol.Response)

	pending map[pendingKey]*list.List
	err     error
	lock    sync.Mutex
}

// NewConn creates a Conn over rw. Run must be running for Do to complete.
func NewConn(rw transport.PacketReadWriter) *Conn {
	return &Conn{
		ReadWriter: rw,
		Expiration: DefaultExpiration,
		pending:    make(map[pendingKey]*list.List),
	}
}

// Run reads responses until the transport fails or ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	err := c.readLoop(ctx)
	c.lock.Lock()
	c.err = ErrClosed
	for key, calls := range c.pending {
		for e := calls.Front(); e != nil; e = e.Next() {
			close(e.Value.(*pendingCall).result)
		}
		delete(c.pending, key)
	}
	c.lock.Unlock()
	return err
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		pkt, err := c.ReadWriter.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		r, err := protocol.DecodeResponse(pkt)
		if err != nil {
			glog.Warningf("client: %v", err)
			continue
		}
		c.deliver(r)
	}
}

func (c *Conn) deliver(r *protocol.Response) {
	c.lock.Lock()
	key := pendingKey{feeder: r.Feeder, op: r.Op}
	var call *pendingCall
	if calls := c.pending[key]; calls != nil {
		now := time.Now()
		for calls.Len() > 0 {
			call = calls.Remove(calls.Front()).(*pendingCall)
			if call.expired.IsZero() || now.Sub(call.expired) <= c.tombstoneTTL() {
				break
			}
			call = nil
		}
		if calls.Len() == 0 {
			delete(c.pending, key)
		}
	}
	c.lock.Unlock()
	if call != nil {
		if !call.expired.IsZero() {
			glog.V(2).Infof("client: late %s dropped", r)
			return
		}
		call.result <- r
		return
	}
	if fn := c.Unsolicited; fn != nil {
		fn(r)
		return
	}
	glog.V(2).Infof("client: unsolicited %s", r)
}

// Do sends cmd and waits for its response. A Nack is returned together
// with a *CommandError.
func (c *Conn) Do(ctx context.Context, cmd protocol.Command) (*protocol.Response, error) {
	if _, ok := ctx.Deadline(); !ok && c.Expiration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Expiration)
		defer cancel()
	}

	key := pendingKey{feeder: cmd.FeederID(), op: cmd.Opcode()}
	call := &pendingCall{result: make(chan *protocol.Response, 1)}
	c.lock.Lock()
	if c.err != nil {
		c.lock.Unlock()
		return nil, c.err
	}
	calls := c.pending[key]
	if calls == nil {
		calls = list.New()
		c.pending[key] = calls
	}
	elem := calls.PushBack(call)
	c.lock.Unlock()

	if err := c.ReadWriter.WritePacket(protocol.EncodeCommand(cmd)); err != nil {
		c.cancel(key, elem, false)
		return nil, err
	}

	select {
	case r, ok := <-call.result:
		if !ok {
			return nil, ErrClosed
		}
		if !r.IsAck() {
			return r, &CommandError{Response: r}
		}
		return r, nil
	case <-ctx.Done():
		c.cancel(key, elem, true)
		return nil, ctx.Err()
	}
}

// cancel removes a call, or marks it expired when its command was sent.
func (c *Conn) cancel(key pendingKey, elem *list.Element, sent bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	calls := c.pending[key]
	if calls == nil {
		return
	}
	for e := calls.Front(); e != nil; e = e.Next() {
		if e != elem {
			continue
		}
		if sent {
			e.Value.(*pendingCall).expired = time.Now()
			return
		}
		calls.Remove(e)
		break
	}
	if calls.Len() == 0 {
		delete(c.pending, key)
	}
}

func (c *Conn) tombstoneTTL() time.Duration {
	if c.Expiration > 0 {
		return c.Expiration
	}
	return DefaultExpiration
}

// Version sends Identify and parses the firmware version.
func (c *Conn) Version(ctx context.Context, feeder uint8) (*semver.Version, error) {
	r, err := c.Do(ctx, protocol.Identify{Header: protocol.Header{Feeder: feeder}})
	if err != nil {
		return nil, err
	}
	ver, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("feeder %d version %q: %w", feeder, r.Version, err)
	}
	return ver, nil
}

// CheckVersion verifies the firmware version of feeder satisfies constraint,
// e.g. "^1.0".
func (c *Conn) CheckVersion(ctx context.Context, feeder uint8, constraint string) (*semver.Version, error) {
	constraints, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, err
	}
	ver, err := c.Version(ctx, feeder)
	if err != nil {
		return nil, err
	}
	if ok, errs := constraints.Validate(ver); !ok {
		var agg []string
		for _, e := range errs {
			agg = append(agg, e.Error())
		}
		return ver, fmt.Errorf("feeder %d version %s: %v", feeder, ver, agg)
	}
	return ver, nil
}
