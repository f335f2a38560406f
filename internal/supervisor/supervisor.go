// Package supervisor wraps a goroutine body so that returning from it —
// cleanly or with an error — triggers a restart rather than letting the
// goroutine simply end: this system's extractors, injector, and control
// surface are meant to run for the process's whole lifetime, and a
// returning thread is either an operator-requested restart or a bug, not a
// reason for that piece of the pipeline to go silently missing.
package supervisor

import (
	"context"
	"log/slog"
)

// Supervise runs fn repeatedly: each return is logged (info for a clean
// return, error for a non-nil one) and, unless restart is false or ctx has
// been cancelled, fn is called again. It returns fn's last result once the
// loop stops restarting.
func Supervise(ctx context.Context, log *slog.Logger, name string, restart bool, fn func(context.Context) error) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("thread", name)

	for {
		err := fn(ctx)

		if err != nil {
			log.Error("fatal error", "error", err)
		} else {
			log.Info("thread returned")
		}

		if !restart {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		if err != nil {
			log.Debug("restarting, caused by error")
		} else {
			log.Info("restarting, user-issued")
		}
	}
}
