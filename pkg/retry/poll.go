// Package retry provides fixed-interval polling helpers for waiting on remote
// state to converge.
package retry

import (
	"context"
	"time"
)

// Condition reports whether the awaited state has been reached.
type Condition func() bool

// PollUntil evaluates cond every interval until it holds or maxWait has
// elapsed since polling began. Once the deadline passes cond is evaluated one
// last time and that answer is returned. A cancelled context stops polling and
// yields false without a further evaluation.
func PollUntil(ctx context.Context, interval, maxWait time.Duration, cond Condition) bool {
	deadline := time.Now().Add(maxWait)

	for !cond() && time.Now().Before(deadline) {
		if err := sleep(ctx, interval); err != nil {
			return false
		}
	}

	if ctx.Err() != nil {
		return false
	}

	return cond()
}

// PollForever evaluates cond every interval until it holds. There is no
// deadline; the only way out without success is cancelling ctx, in which case
// the context error is returned.
func PollForever(ctx context.Context, interval time.Duration, cond Condition) error {
	for {
		if cond() {
			return nil
		}

		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
