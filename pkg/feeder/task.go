package feeder

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/protocol"
)

// InboxSize is the capacity of a task's inbound channel.
const InboxSize = 4

// Task runs a Machine: commands are taken from the inbox one at a time
// and every response goes to the outbox.
type Task struct {
	Machine *Machine

	inbox  chan protocol.Command
	outbox chan<- *protocol.Response
}

// NewTask creates a Task sending responses to outbox.
func NewTask(m *Machine, outbox chan<- *protocol.Response) *Task {
	return &Task{
		Machine: m,
		inbox:   make(chan protocol.Command, InboxSize),
		outbox:  outbox,
	}
}

// ID returns the feeder id.
func (t *Task) ID() uint8 {
	return t.Machine.ID
}

// Name implements framework.Named.
func (t *Task) Name() string {
	return fmt.Sprintf("feeder[%d]", t.Machine.ID)
}

// Submit queues a command without blocking.
// It returns false if the inbox is full.
func (t *Task) Submit(cmd protocol.Command) bool {
	select {
	case t.inbox <- cmd:
		return true
	default:
		return false
	}
}

// Run implements framework.Runnable.
func (t *Task) Run(ctx context.Context) error {
	glog.V(2).Infof("%s: running", t.Name())
	mb := &mailbox{task: t, ctx: ctx}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-t.inbox:
			t.Machine.Handle(ctx, cmd, mb)
		}
	}
}

type mailbox struct {
	task *Task
	ctx  context.Context
}

func (b *mailbox) Incoming() <-chan protocol.Command {
	return b.task.inbox
}

func (b *mailbox) Reply(r *protocol.Response) {
	select {
	case b.task.outbox <- r:
	case <-b.ctx.Done():
		glog.V(2).Infof("%s: dropped %s on shutdown", b.task.Name(), r)
	}
}
