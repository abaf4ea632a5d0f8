// Package dispatch routes decoded commands to feeder tasks and their
// responses back to the host link.
package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/feeder"
	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport"
)

// OutboundSize is the capacity of the shared response channel.
const OutboundSize = 16

// ResponseObserver is notified of every response sent to the host.
type ResponseObserver interface {
	ObserveResponse(*protocol.Response)
}

// ObserveResponseFunc is func type of ResponseObserver.
type ObserveResponseFunc func(*protocol.Response)

// ObserveResponse implements ResponseObserver.
func (f ObserveResponseFunc) ObserveResponse(r *protocol.Response) {
	f(r)
}

// Dispatcher owns the feeder tasks of one controller.
type Dispatcher struct {
	Observers []ResponseObserver

	tasks    map[uint8]*feeder.Task
	outbound chan *protocol.Response
	link     transport.PacketWriter
	lock     sync.RWMutex
}

// New creates a Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		tasks:    make(map[uint8]*feeder.Task),
		outbound: make(chan *protocol.Response, OutboundSize),
	}
}

// Outbound is the channel tasks send responses to.
func (d *Dispatcher) Outbound() chan<- *protocol.Response {
	return d.outbound
}

// NewTask creates a task for m sending to Outbound and adds it.
func (d *Dispatcher) NewTask(m *feeder.Machine) *feeder.Task {
	t := feeder.NewTask(m, d.outbound)
	d.Add(t)
	return t
}

// Add registers a task, replacing any task with the same feeder id.
func (d *Dispatcher) Add(t *feeder.Task) {
	d.lock.Lock()
	d.tasks[t.ID()] = t
	d.lock.Unlock()
}

// Tasks returns the registered tasks.
func (d *Dispatcher) Tasks() []*feeder.Task {
	d.lock.RLock()
	defer d.lock.RUnlock()
	tasks := make([]*feeder.Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// Observe adds a ResponseObserver. It must be called before Run.
func (d *Dispatcher) Observe(o ResponseObserver) *Dispatcher {
	d.Observers = append(d.Observers, o)
	return d
}

// Serve reads commands from link until it fails or ctx is done.
// Responses are written to the link that most recently delivered a command.
func (d *Dispatcher) Serve(ctx context.Context, link transport.PacketReadWriter) error {
	d.setLink(link)
	for {
		pkt, err := link.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		d.setLink(link)
		if r := d.Dispatch(pkt); r != nil {
			d.send(ctx, r)
		}
	}
}

// Dispatch decodes one packet and submits the command. A non-nil
// response is an immediate rejection.
func (d *Dispatcher) Dispatch(pkt []byte) *protocol.Response {
	cmd, err := protocol.Decode(pkt)
	if err != nil {
		glog.V(2).Infof("dispatch: %v", err)
		var derr *protocol.DecodeError
		if errors.As(err, &derr) {
			return derr.Nack()
		}
		return &protocol.Response{Status: protocol.Nack, Code: protocol.CodeInvalidCommand}
	}
	d.lock.RLock()
	t := d.tasks[cmd.FeederID()]
	d.lock.RUnlock()
	if t == nil {
		glog.V(2).Infof("dispatch: unknown feeder %d", cmd.FeederID())
		return reject(cmd, protocol.CodeInvalidCommand)
	}
	if !t.Submit(cmd) {
		glog.Warningf("dispatch: %s busy, %s rejected", t.Name(), cmd.Opcode())
		r := reject(cmd, protocol.CodeNotReady)
		st := t.Machine.State()
		r.State, r.Fault, r.Position = st.Tag, st.Reason, t.Machine.Position()
		return r
	}
	return nil
}

// Run forwards task responses to the link until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-d.outbound:
			d.write(r)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, r *protocol.Response) {
	select {
	case d.outbound <- r:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) write(r *protocol.Response) {
	for _, o := range d.Observers {
		o.ObserveResponse(r)
	}
	d.lock.RLock()
	link := d.link
	d.lock.RUnlock()
	if link == nil {
		glog.V(2).Infof("dispatch: no link, dropped %s", r)
		return
	}
	if err := link.WritePacket(protocol.EncodeResponse(r)); err != nil {
		glog.Errorf("dispatch: write %s: %v", r, err)
	}
}

func (d *Dispatcher) setLink(link transport.PacketWriter) {
	d.lock.Lock()
	d.link = link
	d.lock.Unlock()
}

func reject(cmd protocol.Command, code protocol.ErrorCode) *protocol.Response {
	return &protocol.Response{
		Op:     cmd.Opcode(),
		Feeder: cmd.FeederID(),
		Status: protocol.Nack,
		Code:   code,
	}
}
