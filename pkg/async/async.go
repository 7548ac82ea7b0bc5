// Package async runs fire-and-forget background work with panic recovery
// and a bounded lifetime, so side tasks like audit writes never take a
// request down with them.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/folioworks/folio/pkg/observability"
)

// DefaultTimeout bounds a background task when the caller passes zero.
const DefaultTimeout = 5 * time.Second

// Go runs fn on its own goroutine. The task outlives the caller's request:
// cancellation of parent does not cancel it, only the timeout does. Panics
// are recovered and logged with a stack trace; errors are logged and
// dropped.
func Go(parent context.Context, logger *observability.Logger, timeout time.Duration, task string, fn func(context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", task).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", task).WithError(err).Warn("background task failed")
		}
	}()
}
