// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clocksync

import (
	"errors"
	"time"
)

// ErrNegativeRoundTrip is returned when a round-trip measurement is
// negative, which only happens if the measurement is corrupt.
var ErrNegativeRoundTrip = errors.New("clocksync: negative round-trip time")

// OneWayLatency returns floor(rtt/2) at millisecond resolution.
func OneWayLatency(roundTrip time.Duration) (time.Duration, error) {
	if roundTrip < 0 {
		return 0, ErrNegativeRoundTrip
	}
	return time.Duration(roundTrip.Milliseconds()/2) * time.Millisecond, nil
}

// LoadTime returns the instant at which a navigation should be issued
// so that it reaches the authority at target: target - floor(rtt/2).
// The result is never after target.
func LoadTime(target time.Time, roundTrip time.Duration) (time.Time, error) {
	latency, err := OneWayLatency(roundTrip)
	if err != nil {
		return time.Time{}, err
	}
	return target.Add(-latency), nil
}
