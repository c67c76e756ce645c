// Package poll implements the bounded client-side polling loop that waits
// for a publish to settle: fixed sub-second interval, hard overall timeout,
// stop on completion or on the first reported failure.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-sh/inkwell/internal/status"
)

// ErrTimeout is returned when the site has not settled within the polling
// window.
var ErrTimeout = errors.New("polling timed out")

const (
	// DefaultInterval is the fixed delay between polls.
	DefaultInterval = 500 * time.Millisecond

	// DefaultTimeout bounds the whole loop.
	DefaultTimeout = 180 * time.Second
)

// Fetcher retrieves the current aggregate status, typically over the
// status API.
type Fetcher func(ctx context.Context) (*status.Summary, error)

// Options tunes the loop. Zero values use the defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Wait polls until every item is terminal or the window closes. It returns
// the last summary on success, including runs that settled with failures:
// the caller decides how to present an error overall state. A transient
// fetch error does not abort the loop.
func Wait(ctx context.Context, fetch Fetcher, opts Options) (*status.Summary, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		summary, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, pollExit(ctx, lastErr)
			}
			lastErr = err
		} else {
			if summary.Ready() || summary.Overall == status.OverallError {
				return summary, nil
			}
			lastErr = nil
		}

		select {
		case <-ctx.Done():
			return nil, pollExit(ctx, lastErr)
		case <-ticker.C:
		}
	}
}

func pollExit(ctx context.Context, lastErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if lastErr != nil {
			return fmt.Errorf("%w: last error: %v", ErrTimeout, lastErr)
		}
		return ErrTimeout
	}
	return ctx.Err()
}
