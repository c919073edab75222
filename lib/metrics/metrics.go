// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics defines courtbook's Prometheus collectors.
//
// Every method is safe on a nil *Metrics, so library packages take an
// optional *Metrics in their Config and record unconditionally; tests
// and one-shot commands simply pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. Construct with New.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec // result=success|failed|aborted
	ClassificationsTotal *prometheus.CounterVec // result=ready|tooEarly|...
	NavigationsTotal     prometheus.Counter
	SubmissionsTotal     *prometheus.CounterVec // result=success|contended|unexpected
	SubmissionGapMS      prometheus.Histogram
	ClockRoundTripMS     prometheus.Gauge
	ClockOffsetMS        prometheus.Gauge
	ClockDegradedTotal   prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry,
// along with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtbook_runs_total",
				Help: "Acquisition runs by final result",
			},
			[]string{"result"},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtbook_classifications_total",
				Help: "Page classifications by result",
			},
			[]string{"result"},
		),
		NavigationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_navigations_total",
			Help: "Navigations to a target's entry form",
		}),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtbook_submissions_total",
				Help: "Write requests by outcome",
			},
			[]string{"result"},
		),
		SubmissionGapMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courtbook_submission_gap_ms",
			Help:    "Time from challenge token receipt to write request issue (ms)",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2s
		}),
		ClockRoundTripMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtbook_clock_rtt_ms",
			Help: "Most recent median round-trip time to the authority (ms)",
		}),
		ClockOffsetMS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtbook_clock_offset_ms",
			Help: "Estimated authority clock minus local clock (ms)",
		}),
		ClockDegradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtbook_clock_sync_degraded_total",
			Help: "Clock syncs that fell back to a stale or zero offset",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.ClassificationsTotal,
		m.NavigationsTotal,
		m.SubmissionsTotal,
		m.SubmissionGapMS,
		m.ClockRoundTripMS,
		m.ClockOffsetMS,
		m.ClockDegradedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for Gather in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RunFinished(result string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Classified(result string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Navigated() {
	if m == nil {
		return
	}
	m.NavigationsTotal.Inc()
}

// Submitted records a write outcome and the token-to-write gap.
func (m *Metrics) Submitted(result string, gap time.Duration) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(result).Inc()
	m.SubmissionGapMS.Observe(float64(gap) / float64(time.Millisecond))
}

// ClockSynced records a successful measurement.
func (m *Metrics) ClockSynced(roundTrip, offset time.Duration) {
	if m == nil {
		return
	}
	m.ClockRoundTripMS.Set(float64(roundTrip.Milliseconds()))
	m.ClockOffsetMS.Set(float64(offset.Milliseconds()))
}

func (m *Metrics) ClockDegraded() {
	if m == nil {
		return
	}
	m.ClockDegradedTotal.Inc()
}
