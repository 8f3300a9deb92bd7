// Package shutdown implements the process-wide cooperative cancellation
// latch described in the design notes: a single instance, shared by
// reference, with trip/wait/check/sleep primitives. It replaces ambient
// globals (the teacher's package-level os/signal.Notify call in
// cmd/root.go) with an explicit value every long-running task receives.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fanatid/telescope/internal/errs"
)

// Latch is the shared cooperative-cancellation signal. The zero value is not
// usable; construct with New.
type Latch struct {
	tripped chan struct{}
	once    chan struct{} // buffered(1): acts as a compare-and-swap gate for trip()
}

// New creates a fresh, untripped Latch.
func New() *Latch {
	l := &Latch{
		tripped: make(chan struct{}),
		once:    make(chan struct{}, 1),
	}
	l.once <- struct{}{}
	return l
}

// Trip transitions the latch to tripped. Idempotent: the second and later
// calls are no-ops.
func (l *Latch) Trip() {
	select {
	case <-l.once:
		close(l.tripped)
	default:
	}
}

// Wait suspends until Trip has been called. Calling Wait after Trip returns
// immediately, so it is cheap to select on repeatedly.
func (l *Latch) Wait() {
	<-l.tripped
}

// Done returns the channel Wait blocks on, for use in select statements
// alongside other suspension points (HTTP roundtrips, DB queries, timers).
func (l *Latch) Done() <-chan struct{} {
	return l.tripped
}

// Check returns errs.Cancelled if the latch has tripped, else nil.
func (l *Latch) Check() error {
	select {
	case <-l.tripped:
		return errs.Cancelled
	default:
		return nil
	}
}

// Sleep suspends for up to d, returning errs.Cancelled if the latch trips
// first and nil if the duration elapsed normally.
func (l *Latch) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.tripped:
		return errs.Cancelled
	case <-timer.C:
		return nil
	}
}

// Context returns a context.Context that is cancelled when the latch trips,
// for composing with APIs (pgx, net/http) that take a context rather than a
// channel.
func (l *Latch) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-l.tripped:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ListenForSignals spawns the dedicated signal-listener task: on the first
// SIGINT/SIGTERM/SIGHUP/SIGQUIT it logs and trips the latch; on the second it
// exits the process with code 1. A failure to register any one signal is
// logged, not fatal, matching the design note that registration is
// best-effort per signal source.
func ListenForSignals(l *Latch, log *logrus.Entry) {
	signals := []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
	ch := make(chan os.Signal, len(signals))

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("error", r).Warn("failed to register one or more shutdown signals")
			}
		}()
		signal.Notify(ch, signals...)
	}()

	go func() {
		first := true
		for sig := range ch {
			if first {
				first = false
				log.WithField("signal", sig.String()).Info("received shutdown signal, stopping")
				l.Trip()
				continue
			}
			log.WithField("signal", sig.String()).Warn("received second shutdown signal, exiting immediately")
			os.Exit(1)
		}
	}()
}
