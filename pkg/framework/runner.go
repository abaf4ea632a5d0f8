package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
)

var (
	// ErrForcedExit is returned by Wait after a second stop signal.
	ErrForcedExit = errors.New("forced exit")
	// ErrStopTimeout is returned by Wait when runners outlive StopTimeout.
	ErrStopTimeout = errors.New("runners didn't stop in time")
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner runs Runnables sharing one context. The first Runnable failing
// with an error other than cancellation stops all the others.
type Runner struct {
	Context context.Context
	Runners []Runnable
	// StopTimeout bounds Wait once stopping started, zero waits forever.
	StopTimeout time.Duration

	cancel  context.CancelFunc
	errCh   chan error
	exitCh  chan struct{}
	running map[string]int
	lock    sync.Mutex
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner stopped when ctx is done.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		cancel:  cancel,
		errCh:   make(chan error, 16),
		exitCh:  make(chan struct{}),
		running: make(map[string]int),
	}
}

// WithStopTimeout sets StopTimeout.
func (r *Runner) WithStopTimeout(d time.Duration) *Runner {
	r.StopTimeout = d
	return r
}

// HandleSignals stops on CtrlC or SIGTERM, a second signal forces Wait
// to return.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.Stop()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Stop cancels the context of all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Go spawns Runnables. Go must not be called after Wait.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := strconv.Itoa(len(r.Runners))
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.Runners = append(r.Runners, runner)
		r.lock.Lock()
		r.running[name]++
		r.lock.Unlock()
		glog.V(4).Infof("start Runner[%s]", name)
		go r.run(runner, name)
	}
	return r
}

func (r *Runner) run(runner Runnable, name string) {
	err := runner.Run(r.Context)
	r.lock.Lock()
	if r.running[name]--; r.running[name] <= 0 {
		delete(r.running, name)
	}
	r.lock.Unlock()
	if err != nil && !errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%s: %w", name, err)
		glog.Errorf("Runner[%s] stopped: %v", name, err)
		r.Stop()
	} else {
		glog.V(4).Infof("Runner[%s] stopped", name)
	}
	r.errCh <- err
}

// Pending returns the names of Runnables still running.
func (r *Runner) Pending() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, 0, len(r.running))
	for name := range r.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait waits until all Runnables stop and aggregates their errors.
func (r *Runner) Wait() error {
	var errs AggregatedError
	var timeout <-chan time.Time
	done := r.Context.Done()
	for remaining := len(r.Runners); remaining > 0; {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case <-done:
			done = nil
			if r.StopTimeout > 0 {
				timer := time.NewTimer(r.StopTimeout)
				defer timer.Stop()
				timeout = timer.C
			}
		case <-timeout:
			pending := r.Pending()
			glog.Errorf("Runners %v didn't stop in %s", pending, r.StopTimeout)
			errs.Add(fmt.Errorf("%w: %s", ErrStopTimeout, strings.Join(pending, ", ")))
			return errs.Aggregate()
		case err := <-r.errCh:
			remaining--
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func with doesn't accept a context.
// cancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser is a convinient wrapper for RunWithContextCancel and
// ensures closer.Close is either called on cancel or exit of fn.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
