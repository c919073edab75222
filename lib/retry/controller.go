// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/courtbook/lib/classify"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/metrics"
)

// NavigateFunc loads the target's entry form once and classifies the
// result. navigation counts from 1. Failures to load are expressed as
// a classification (a timeout is Unknown), never as an error.
type NavigateFunc func(ctx context.Context, navigation int) classify.Classification

// Step is one navigation in a target's trace.
type Step struct {
	Navigation int       `cbor:"navigation"`
	Result     string    `cbor:"result"`
	Reason     string    `cbor:"reason"`
	Action     string    `cbor:"action"`
	Retries    int       `cbor:"retries"`
	At         time.Time `cbor:"at"`
}

// State is the per-target attempt state. It lives for one target's
// processing within one run.
type State struct {
	Target      string
	Retries     int
	Navigations int
	Last        classify.Classification
	Outcome     Action
	CapReached  bool
	Trace       []Step
}

// Config configures a Controller.
type Config struct {
	MaxRetries int
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Controller runs the state machine for one target at a time. It
// holds no per-target state and is safe for concurrent use.
type Controller struct {
	maxRetries int
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewController returns a Controller with defaults applied.
func NewController(config Config) *Controller {
	controller := &Controller{
		maxRetries: config.MaxRetries,
		clock:      config.Clock,
		metrics:    config.Metrics,
		logger:     config.Logger,
	}
	if controller.maxRetries <= 0 {
		controller.maxRetries = DefaultMaxRetries
	}
	if controller.clock == nil {
		controller.clock = clock.Real()
	}
	if controller.logger == nil {
		controller.logger = slog.New(slog.DiscardHandler)
	}
	return controller
}

// MaxRetries returns the effective cap.
func (c *Controller) MaxRetries() int {
	return c.maxRetries
}

// Run navigates target until it is ready or abandoned. The returned
// State is always non-nil. On cancellation Run stops before the next
// navigation, marks the target abandoned, and returns ctx.Err().
func (c *Controller) Run(ctx context.Context, target string, navigate NavigateFunc) (*State, error) {
	state := &State{Target: target, Outcome: Abandon}
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		state.Navigations++
		c.metrics.Navigated()
		classification := navigate(ctx, state.Navigations)
		c.metrics.Classified(classification.Result.String())

		decision := Next(classification.Result, state.Retries, c.maxRetries)
		state.Retries = decision.Retries
		state.Last = classification
		state.CapReached = decision.CapReached
		state.Trace = append(state.Trace, Step{
			Navigation: state.Navigations,
			Result:     classification.Result.String(),
			Reason:     classification.Reason,
			Action:     decision.Action.String(),
			Retries:    decision.Retries,
			At:         c.clock.Now(),
		})

		c.logger.Info("target classified",
			"target", target,
			"navigation", state.Navigations,
			"classification", classification.Result.String(),
			"reason", classification.Reason,
			"retries", decision.Retries,
			"action", decision.Action.String(),
		)

		if decision.Action != Retry {
			state.Outcome = decision.Action
			if decision.CapReached {
				c.logger.Info("retry cap reached, abandoning target",
					"target", target,
					"max_retries", c.maxRetries,
				)
			}
			return state, nil
		}
	}
}
