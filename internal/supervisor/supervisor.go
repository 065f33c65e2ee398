// Package supervisor coordinates the lifetime of every long-running
// goroutine in one symbol engine: ingest, the core processing loop, the
// broadcaster, and the periodic cleanup ticker. Uses signal.NotifyContext
// plus an errgroup so a terminal error from any goroutine fans in and
// cancels the rest, and Wait blocks until every goroutine has actually
// drained and returned rather than just requesting cancellation.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CryptologySAC/OrderFlow-Trading-sub002/internal/telemetry"
)

// Task is one supervised goroutine body. It must return promptly once ctx
// is cancelled — the Supervisor will not force-kill a task that ignores
// ctx, and Wait blocks until it returns.
type Task func(ctx context.Context) error

// Supervisor owns an errgroup and the root context every Task shares.
type Supervisor struct {
	group *errgroup.Group
	ctx   context.Context
	stop  context.CancelFunc
	log   *telemetry.Logger
}

// New builds a Supervisor whose root context is cancelled on SIGINT/SIGTERM.
func New(log *telemetry.Logger) *Supervisor {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	group, gctx := errgroup.WithContext(ctx)
	return &Supervisor{group: group, ctx: gctx, stop: stop, log: log.With("component", "supervisor")}
}

// Context is the root context passed to every Go'd task; it is cancelled
// on shutdown signal or when any task returns a non-nil error.
func (s *Supervisor) Context() context.Context { return s.ctx }

// Go runs name under the errgroup, logging its exit.
func (s *Supervisor) Go(name string, task Task) {
	s.group.Go(func() error {
		err := task(s.ctx)
		if err != nil {
			s.log.Error().Err(err).Str("task", name).Msg("task exited with error")
		} else {
			s.log.Info().Str("task", name).Msg("task exited")
		}
		return err
	})
}

// Ticker runs fn every interval until ctx is cancelled — used for the
// cooperative book/detector cleanup sweep on a fixed cadence.
func (s *Supervisor) Ticker(name string, interval time.Duration, fn func()) {
	s.Go(name, func(ctx context.Context) error {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				fn()
			}
		}
	})
}

// Wait blocks until every Go'd task has returned, then releases the
// signal.NotifyContext hook. Returns the first non-nil task error, if any.
func (s *Supervisor) Wait() error {
	defer s.stop()
	return s.group.Wait()
}
