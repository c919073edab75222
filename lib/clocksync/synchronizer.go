// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clocksync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultProbes            = 3
	DefaultFallbackRoundTrip = 150 * time.Millisecond
	DefaultFreshness         = 10 * time.Minute
	DefaultProbeTimeout      = 5 * time.Second
)

// DateResolution is the precision of the HTTP Date header. Offsets
// smaller than this cannot be distinguished from zero.
const DateResolution = time.Second

// Config configures a Synchronizer.
type Config struct {
	Prober Prober

	// Clock defaults to clock.Real().
	Clock clock.Clock

	Probes            int
	FallbackRoundTrip time.Duration
	Freshness         time.Duration
	ProbeTimeout      time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Offset is one clock measurement.
type Offset struct {
	// Offset is estimated authority time minus local time.
	Offset time.Duration

	// RoundTrip is the median round trip of the measurement.
	RoundTrip time.Duration

	// MeasuredAt is the local time of the measurement. Zero means
	// the offset has never been measured.
	MeasuredAt time.Time
}

// Synchronizer measures and caches the clock offset for one authority.
type Synchronizer struct {
	prober            Prober
	clock             clock.Clock
	probes            int
	fallbackRoundTrip time.Duration
	freshness         time.Duration
	probeTimeout      time.Duration
	metrics           *metrics.Metrics
	logger            *slog.Logger

	mu      sync.RWMutex
	current Offset
}

// New creates a Synchronizer. Prober is required.
func New(config Config) (*Synchronizer, error) {
	if config.Prober == nil {
		return nil, errors.New("clocksync: Prober is required")
	}
	s := &Synchronizer{
		prober:            config.Prober,
		clock:             config.Clock,
		probes:            config.Probes,
		fallbackRoundTrip: config.FallbackRoundTrip,
		freshness:         config.Freshness,
		probeTimeout:      config.ProbeTimeout,
		metrics:           config.Metrics,
		logger:            config.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.probes <= 0 {
		s.probes = DefaultProbes
	}
	if s.fallbackRoundTrip <= 0 {
		s.fallbackRoundTrip = DefaultFallbackRoundTrip
	}
	if s.freshness <= 0 {
		s.freshness = DefaultFreshness
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = DefaultProbeTimeout
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

type sample struct {
	sent       time.Time
	roundTrip  time.Duration
	serverTime time.Time
	failed     bool
}

// MeasureLatency probes the authority and returns the median round
// trip. Failed probes count as the fallback round trip. When at least
// one probe returned a usable Date header the cached offset is
// refreshed as a side effect. The only error is ctx's.
func (s *Synchronizer) MeasureLatency(ctx context.Context) (time.Duration, error) {
	samples := make([]sample, 0, s.probes)
	for range s.probes {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		samples = append(samples, s.probe(ctx))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	roundTrips := make([]time.Duration, len(samples))
	failures := 0
	for i, probe := range samples {
		roundTrips[i] = probe.roundTrip
		if probe.failed {
			failures++
		}
	}
	slices.Sort(roundTrips)
	median := roundTrips[(len(roundTrips)-1)/2]

	s.logger.Debug("latency measured",
		"round_trip_ms", median.Milliseconds(),
		"probes", len(samples),
		"failed_probes", failures,
	)

	if offset, ok := offsetFromSamples(samples); ok {
		measured := Offset{Offset: offset, RoundTrip: median, MeasuredAt: s.clock.Now()}
		s.mu.Lock()
		s.current = measured
		s.mu.Unlock()
		s.metrics.ClockSynced(median, offset)
		s.logger.Info("clock synchronized",
			"offset_ms", offset.Milliseconds(),
			"round_trip_ms", median.Milliseconds(),
		)
	}
	return median, nil
}

// EnsureFresh re-measures when the cached offset is older than the
// freshness window. Failure is not an error: the previous offset (or
// zero) stays in effect and a warning is logged. Returns the offset
// in effect afterwards; only ctx cancellation yields an error.
func (s *Synchronizer) EnsureFresh(ctx context.Context) (Offset, error) {
	if s.Fresh() {
		return s.Current(), nil
	}
	if _, err := s.MeasureLatency(ctx); err != nil {
		return s.Current(), err
	}
	if !s.Fresh() {
		current := s.Current()
		s.metrics.ClockDegraded()
		s.logger.Warn("clock sync failed, scheduling with degraded accuracy",
			"offset_ms", current.Offset.Milliseconds(),
			"offset_age", ageString(current.MeasuredAt, s.clock.Now()),
		)
	}
	return s.Current(), nil
}

// SyncedNow returns local time plus the cached offset.
func (s *Synchronizer) SyncedNow() time.Time {
	s.mu.RLock()
	offset := s.current.Offset
	s.mu.RUnlock()
	return s.clock.Now().Add(offset)
}

// Current returns the cached measurement.
func (s *Synchronizer) Current() Offset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Fresh reports whether the cached offset is within the freshness
// window.
func (s *Synchronizer) Fresh() bool {
	s.mu.RLock()
	measuredAt := s.current.MeasuredAt
	s.mu.RUnlock()
	if measuredAt.IsZero() {
		return false
	}
	return s.clock.Now().Sub(measuredAt) < s.freshness
}

// Clock returns the local clock the Synchronizer corrects.
func (s *Synchronizer) Clock() clock.Clock {
	return s.clock
}

func (s *Synchronizer) probe(ctx context.Context) sample {
	probeContext, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	sent := s.clock.Now()
	serverTime, err := s.prober.Probe(probeContext)
	roundTrip := s.clock.Now().Sub(sent)
	if err != nil || roundTrip < 0 {
		s.logger.Debug("latency probe failed, using fallback",
			"error", err,
			"fallback_ms", s.fallbackRoundTrip.Milliseconds(),
		)
		return sample{sent: sent, roundTrip: s.fallbackRoundTrip, failed: true}
	}
	return sample{sent: sent, roundTrip: roundTrip, serverTime: serverTime}
}

// offsetFromSamples estimates the offset from the successful sample
// with the smallest round trip. The Date header truncates to whole
// seconds, so the authority's true time lies in [date, date+1s); the
// midpoint of that interval is compared with the local midpoint of
// the round trip. Estimates within DateResolution of zero are clamped
// to zero.
func offsetFromSamples(samples []sample) (time.Duration, bool) {
	var best *sample
	for i := range samples {
		candidate := &samples[i]
		if candidate.failed || candidate.serverTime.IsZero() {
			continue
		}
		if best == nil || candidate.roundTrip < best.roundTrip {
			best = candidate
		}
	}
	if best == nil {
		return 0, false
	}

	serverMidpoint := best.serverTime.Add(DateResolution / 2)
	localMidpoint := best.sent.Add(best.roundTrip / 2)
	offset := serverMidpoint.Sub(localMidpoint)
	if offset > -DateResolution && offset < DateResolution {
		offset = 0
	}
	return offset, true
}

func ageString(measuredAt, now time.Time) string {
	if measuredAt.IsZero() {
		return "never"
	}
	return now.Sub(measuredAt).Round(time.Second).String()
}
