// Package graceful separates "stop starting new work" from "kill work in
// flight". The operator's context stops new submissions at once; contexts
// derived with WithGrace give already-running work a bounded extension.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrGraceExpired is the cause attached to a grace context that outlived its
// parent by the full grace period.
var ErrGraceExpired = errors.New("grace period expired")

// WithGrace returns a context that stays alive for grace after parent is
// done, then is cancelled with a cause wrapping ErrGraceExpired. Values are
// inherited from parent; its deadline is not. A non-positive grace cancels
// together with parent.
func WithGrace(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))

	stop := context.AfterFunc(parent, func() {
		if grace <= 0 {
			cancel(context.Cause(parent))
			return
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel(fmt.Errorf("%w after %s: %w", ErrGraceExpired, grace, context.Cause(parent)))
		case <-ctx.Done():
		}
	})

	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Stopping reports, without blocking, whether ctx is done. Submission loops
// check it before handing out each new unit of work.
func Stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
