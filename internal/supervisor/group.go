package supervisor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Group runs two tiers of supervised goroutines, mirroring this system's
// startup/shutdown order: primary threads (one per extractor, plus the
// injector) are joined first; once every one of them has returned,
// secondary threads (the control surface) are cancelled and joined. This
// lets an extractor or the injector exiting for good (restart disabled, or
// every restart attempt exhausted) trigger a coordinated shutdown of the
// control surface, instead of leaving it listening forever with nothing
// left to report on.
type Group struct {
	log *slog.Logger

	primaryCtx context.Context
	primary    *errgroup.Group

	secondaryCtx    context.Context
	secondaryCancel context.CancelFunc
	secondary       *errgroup.Group
}

// NewGroup returns a Group whose goroutines all observe ctx's cancellation
// (e.g. from an OS signal); secondary goroutines additionally stop once
// every primary goroutine has returned, even if ctx is never cancelled.
func NewGroup(ctx context.Context, log *slog.Logger) *Group {
	if log == nil {
		log = slog.Default()
	}
	primary, primaryCtx := errgroup.WithContext(ctx)
	secondaryCtx, secondaryCancel := context.WithCancel(ctx)
	secondary, secondaryCtx := errgroup.WithContext(secondaryCtx)

	return &Group{
		log:             log,
		primaryCtx:      primaryCtx,
		primary:         primary,
		secondaryCtx:    secondaryCtx,
		secondaryCancel: secondaryCancel,
		secondary:       secondary,
	}
}

// GoPrimary supervises fn under name as a primary thread.
func (g *Group) GoPrimary(name string, restart bool, fn func(context.Context) error) {
	g.primary.Go(func() error {
		return Supervise(g.primaryCtx, g.log, name, restart, fn)
	})
}

// GoSecondary supervises fn under name as a secondary thread.
func (g *Group) GoSecondary(name string, restart bool, fn func(context.Context) error) {
	g.secondary.Go(func() error {
		return Supervise(g.secondaryCtx, g.log, name, restart, fn)
	})
}

// Wait blocks until every primary thread has returned, then signals every
// secondary thread to stop and waits for them too, mirroring main's
// join-primary / on_exit / join-secondary sequence. It returns the primary
// tier's first error if there is one, otherwise the secondary tier's.
func (g *Group) Wait() error {
	primaryErr := g.primary.Wait()

	g.log.Debug("all primary threads exited, signalling secondary threads")
	g.secondaryCancel()

	secondaryErr := g.secondary.Wait()
	if primaryErr != nil {
		return primaryErr
	}
	return secondaryErr
}
