// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"time"
)

// Clock abstracts time operations for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the specified interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed to release resources.
//
// The C channel has capacity 1, matching time.Ticker. If the consumer
// falls behind, ticks are dropped rather than queued.
type Ticker struct {
	// C delivers ticks. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks will be sent on C after
// Stop returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// WaitUntil blocks until the clock reaches deadline or ctx is done,
// whichever comes first. Returns ctx.Err() on cancellation and nil
// once the deadline has passed. A deadline at or before Now returns
// immediately without registering a waiter.
func WaitUntil(ctx context.Context, c Clock, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remaining := deadline.Sub(c.Now())
	if remaining <= 0 {
		return nil
	}
	select {
	case <-c.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep pauses for d or until ctx is done. Returns ctx.Err() on
// cancellation.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	return WaitUntil(ctx, c, c.Now().Add(d))
}
