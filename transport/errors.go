package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/goliatone/go-tripline/core"
)

// classifyDoError turns a failed round trip into a connection error. Only the
// adapter's own timeout is reported with the configured duration; a deadline
// or cancellation inherited from the caller's context is reported as such.
func classifyDoError(parentCtx context.Context, requestCtx context.Context, err error, timeout time.Duration) error {
	if parentCtx != nil {
		switch parentErr := parentCtx.Err(); {
		case errors.Is(parentErr, context.DeadlineExceeded):
			return core.NewConnectionError(err, "transport: caller context deadline exceeded")
		case errors.Is(parentErr, context.Canceled):
			return core.NewConnectionError(err, "transport: request canceled")
		}
	}
	if isTimeout(requestCtx, err) {
		if timeout > 0 {
			return core.NewTimeoutError(err, timeout)
		}
		return core.NewConnectionError(err, "transport: request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return core.NewConnectionError(err, "transport: request canceled")
	}
	return core.NewConnectionError(err, "transport: execute http request")
}

func isTimeout(requestCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if requestCtx != nil && errors.Is(requestCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
