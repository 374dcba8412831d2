package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// signaler delivers termination signals to a running sandbox.
type signaler interface {
	Terminate() error
	Kill() error
}

// watchdog bounds the wall-clock lifetime of one sandbox. It owns exactly one
// deadline timer; Stop must be called once the sandbox has exited.
type watchdog struct {
	proc     signaler
	timeout  time.Duration
	grace    time.Duration
	exited   chan struct{}
	finished chan struct{}
	once     sync.Once
	killed   atomic.Bool
	canceled atomic.Bool
}

func startWatchdog(ctx context.Context, proc signaler, timeout, grace time.Duration) *watchdog {
	w := &watchdog{
		proc:     proc,
		timeout:  timeout,
		grace:    grace,
		exited:   make(chan struct{}),
		finished: make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

func (w *watchdog) run(ctx context.Context) {
	defer close(w.finished)

	var deadline <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-w.exited:
		return
	case <-ctx.Done():
		w.canceled.Store(true)
		w.send(ctx, "kill", w.proc.Kill)
		return
	case <-deadline:
	}

	// The flag is set before any signal so a racing natural exit still reports TLE.
	w.killed.Store(true)
	w.send(ctx, "terminate", w.proc.Terminate)

	grace := time.NewTimer(w.grace)
	defer grace.Stop()
	select {
	case <-w.exited:
	case <-grace.C:
		w.send(ctx, "kill", w.proc.Kill)
	}
}

func (w *watchdog) send(ctx context.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Debug(ctx, "sandbox signal failed", zap.String("signal", name), zap.Error(err))
	}
}

// signalled is closed once the watchdog has sent its final signal, or after Stop.
func (w *watchdog) signalled() <-chan struct{} {
	return w.finished
}

// Stop reports the sandbox exit and waits until no further signal can be sent.
func (w *watchdog) Stop() {
	w.once.Do(func() { close(w.exited) })
	<-w.finished
}

// Killed reports whether the deadline fired.
func (w *watchdog) Killed() bool {
	return w.killed.Load()
}

// Canceled reports whether the caller's context ended the run.
func (w *watchdog) Canceled() bool {
	return w.canceled.Load()
}
