// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"time"

	"github.com/bureau-foundation/courtbook/lib/clocksync"
)

// Plan schedules the first navigation of a run.
type Plan struct {
	Instant   time.Time
	SyncedNow time.Time
	RoundTrip time.Duration
	Latency   time.Duration

	// LoadTime is Instant minus Latency, in authority time.
	LoadTime time.Time

	// Wait is how long to sleep before navigating. Not positive when
	// the window is already open.
	Wait time.Duration
}

// NewPlan computes the schedule for a window opening at instant.
func NewPlan(instant, syncedNow time.Time, roundTrip time.Duration) (Plan, error) {
	latency, err := clocksync.OneWayLatency(roundTrip)
	if err != nil {
		return Plan{}, err
	}
	loadTime := instant.Add(-latency)
	return Plan{
		Instant:   instant,
		SyncedNow: syncedNow,
		RoundTrip: roundTrip,
		Latency:   latency,
		LoadTime:  loadTime,
		Wait:      loadTime.Sub(syncedNow),
	}, nil
}

// WindowOpen reports whether navigation should start immediately.
func (p Plan) WindowOpen() bool {
	return p.Wait <= 0
}
