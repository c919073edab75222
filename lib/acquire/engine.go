// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/courtbook/lib/classify"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/clocksync"
	"github.com/bureau-foundation/courtbook/lib/metrics"
	"github.com/bureau-foundation/courtbook/lib/retry"
	"github.com/bureau-foundation/courtbook/lib/session"
	"github.com/bureau-foundation/courtbook/lib/submit"
)

// FormURLFunc returns the entry form address for one target.
type FormURLFunc func(target string, request Request) (string, error)

// Config wires an Engine. Every component except Sink, Metrics and
// Logger is required.
type Config struct {
	Sessions   session.Factory
	Classifier *classify.Classifier
	Controller *retry.Controller
	Pipeline   *submit.Pipeline
	Sync       *clocksync.Synchronizer
	FormURL    FormURLFunc

	Sink    StatusSink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Engine runs acquisitions. Independent runs may execute concurrently;
// they share only the Synchronizer.
type Engine struct {
	sessions   session.Factory
	classifier *classify.Classifier
	controller *retry.Controller
	pipeline   *submit.Pipeline
	sync       *clocksync.Synchronizer
	formURL    FormURLFunc
	clock      clock.Clock
	sink       StatusSink
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New validates config and returns an Engine.
func New(config Config) (*Engine, error) {
	var missing []string
	if config.Sessions == nil {
		missing = append(missing, "Sessions")
	}
	if config.Classifier == nil {
		missing = append(missing, "Classifier")
	}
	if config.Controller == nil {
		missing = append(missing, "Controller")
	}
	if config.Pipeline == nil {
		missing = append(missing, "Pipeline")
	}
	if config.Sync == nil {
		missing = append(missing, "Sync")
	}
	if config.FormURL == nil {
		missing = append(missing, "FormURL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("acquire: Config missing %s", strings.Join(missing, ", "))
	}

	engine := &Engine{
		sessions:   config.Sessions,
		classifier: config.Classifier,
		controller: config.Controller,
		pipeline:   config.Pipeline,
		sync:       config.Sync,
		formURL:    config.FormURL,
		clock:      config.Sync.Clock(),
		sink:       config.Sink,
		metrics:    config.Metrics,
		logger:     config.Logger,
	}
	if engine.sink == nil {
		engine.sink = NopSink{}
	}
	if engine.logger == nil {
		engine.logger = slog.New(slog.DiscardHandler)
	}
	return engine, nil
}

// run is the state of one Acquire call.
type run struct {
	*Engine
	id      string
	request Request
	logger  *slog.Logger
	session session.Session
}

// Acquire runs request to completion. See the package documentation
// for the error contract.
func (e *Engine) Acquire(ctx context.Context, request Request) (Outcome, error) {
	r := &run{
		Engine:  e,
		id:      uuid.NewString(),
		request: request,
	}
	r.logger = e.logger.With("run_id", r.id, "booking", request.ID, "actor", request.Actor)

	outcome, err := r.execute(ctx)
	outcome.RunID = r.id

	if r.session != nil {
		if closeErr := r.session.Close(); closeErr != nil {
			r.logger.Warn("closing session", "error", closeErr)
		}
	}

	result := outcome.Status.String()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		result = "aborted"
	}
	e.metrics.RunFinished(result)
	r.report(func(ctx context.Context) error {
		return e.sink.Complete(ctx, request.ID, outcome)
	})

	r.logger.Info("acquisition finished",
		"status", outcome.Status.String(),
		"confirmation_id", outcome.ConfirmationID,
		"target", outcome.Target,
		"targets_attempted", len(outcome.Attempts),
		"diagnostic", outcome.Diagnostic,
	)
	return outcome, err
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	if err := r.request.Validate(); err != nil {
		return Outcome{Status: submit.Unexpected, Diagnostic: err.Error()}, err
	}
	r.report(func(ctx context.Context) error {
		return r.sink.MarkInProgress(ctx, r.request.ID, r.id)
	})

	plan, err := r.plan(ctx)
	if err != nil {
		return cancelled(nil, err), err
	}

	if err := r.openSession(ctx); err != nil {
		if ctx.Err() != nil {
			return cancelled(nil, ctx.Err()), ctx.Err()
		}
		err = fmt.Errorf("%w: %w", ErrAuthentication, err)
		return Outcome{Status: submit.Unexpected, Diagnostic: err.Error()}, err
	}

	r.pipeline.Prewarm(ctx)

	if !plan.WindowOpen() {
		// Re-read the synced clock: login and prewarm took time.
		wait := plan.LoadTime.Sub(r.sync.SyncedNow())
		r.logger.Info("waiting for load time",
			"load_time", plan.LoadTime.Format(time.RFC3339Nano),
			"wait", wait.String(),
		)
		if err := clock.Sleep(ctx, r.clock, wait); err != nil {
			return cancelled(nil, err), err
		}
	}

	var attempts []Attempt
	for index, target := range r.request.Targets {
		attempt, outcome, err := r.attemptTarget(ctx, index, target)
		attempts = append(attempts, attempt)
		r.report(func(ctx context.Context) error {
			return r.sink.RecordAttempt(ctx, r.request.ID, r.id, attempt)
		})
		if err != nil {
			return cancelled(attempts, err), err
		}
		if outcome != nil {
			outcome.Attempts = attempts
			return *outcome, nil
		}
	}
	return exhausted(attempts), nil
}

// plan synchronizes with the authority and schedules the first
// navigation. Synchronization problems degrade accuracy but never
// stop the run; only cancellation is returned.
func (r *run) plan(ctx context.Context) (Plan, error) {
	roundTrip, err := r.sync.MeasureLatency(ctx)
	if err != nil {
		return Plan{}, err
	}
	if _, err := r.sync.EnsureFresh(ctx); err != nil {
		return Plan{}, err
	}
	plan, err := NewPlan(r.request.Instant, r.sync.SyncedNow(), roundTrip)
	if err != nil {
		r.logger.Warn("invalid round trip, scheduling without latency compensation",
			"round_trip", roundTrip.String(), "error", err)
		plan, _ = NewPlan(r.request.Instant, r.sync.SyncedNow(), 0)
	}
	r.logger.Info("acquisition planned",
		"instant", plan.Instant.Format(time.RFC3339Nano),
		"round_trip_ms", plan.RoundTrip.Milliseconds(),
		"latency_ms", plan.Latency.Milliseconds(),
		"load_time", plan.LoadTime.Format(time.RFC3339Nano),
		"window_open", plan.WindowOpen(),
	)
	return plan, nil
}

func (r *run) openSession(ctx context.Context) error {
	opened, err := r.sessions.Open(ctx)
	if err != nil {
		return err
	}
	r.session = opened
	return opened.Login(ctx, r.request.Credentials)
}

// attemptTarget runs one target through the retry controller and, if
// it becomes ready, the submission pipeline. A non-nil Outcome ends
// the run successfully; the error is only ever cancellation.
func (r *run) attemptTarget(ctx context.Context, index int, target string) (Attempt, *Outcome, error) {
	logger := r.logger.With("target", target, "position", index+1)
	attempt := Attempt{Target: target, StartedAt: r.clock.Now()}
	finish := func(diagnostic string) Attempt {
		attempt.Diagnostic = diagnostic
		attempt.FinishedAt = r.clock.Now()
		return attempt
	}

	if r.session == nil || r.session.Closed() {
		if err := r.openSession(ctx); err != nil {
			if ctx.Err() != nil {
				return finish("cancelled"), nil, ctx.Err()
			}
			logger.Warn("re-opening session failed, skipping target", "error", err)
			return finish("session unavailable: " + err.Error()), nil, nil
		}
	}

	formURL, err := r.formURL(target, r.request)
	if err != nil {
		return finish("building form address: " + err.Error()), nil, nil
	}

	state, err := r.controller.Run(ctx, target, func(ctx context.Context, navigation int) classify.Classification {
		page, navigateErr := r.session.Navigate(ctx, formURL)
		if navigateErr != nil {
			reason := "navigation failed: " + navigateErr.Error()
			var navigationError *session.NavigationError
			if errors.As(navigateErr, &navigationError) && navigationError.Timeout() {
				reason = "navigation timed out"
			}
			return classify.Classification{Result: classify.Unknown, Reason: reason}
		}
		attempt.Snapshot = page.Body
		return r.classifier.Classify(classify.View{
			URL:        page.URL,
			StatusCode: page.StatusCode,
			Body:       page.Body,
			ReadErr:    page.ReadErr,
		})
	})
	attempt.Navigations = state.Navigations
	attempt.Retries = state.Retries
	attempt.CapReached = state.CapReached
	attempt.Classification = state.Last.Result.String()
	attempt.Trace = state.Trace
	if err != nil {
		return finish("cancelled"), nil, err
	}

	if state.Outcome != retry.Submit {
		diagnostic := "abandoned: " + state.Last.String()
		if state.CapReached {
			diagnostic = fmt.Sprintf("abandoned after %d navigations: %s", state.Navigations, state.Last)
		}
		return finish(diagnostic), nil, nil
	}

	result, err := r.pipeline.Submit(ctx, r.session, submit.Params{
		Target:          target,
		Date:            r.request.Date,
		StartMinutes:    r.request.StartMinutes,
		DurationMinutes: r.request.DurationMinutes,
		Category:        r.request.Category,
		Guests:          r.request.Guests,
		Referer:         formURL,
	})
	if err != nil {
		if ctx.Err() != nil {
			return finish("cancelled"), nil, ctx.Err()
		}
		logger.Warn("submission aborted, moving to next target", "error", err)
		return finish("submission aborted: " + err.Error()), nil, nil
	}
	attempt.Submission = result.Status

	// A write cut short by cancellation is not a rejection. A confirmed
	// write still wins over a late cancellation.
	if result.Status != submit.Success && ctx.Err() != nil {
		return finish("cancelled during write: " + result.Diagnostic), nil, ctx.Err()
	}
	if result.Status != submit.Success {
		logger.Info("write rejected, moving to next target",
			"status", result.Status.String(),
			"diagnostic", result.Diagnostic,
		)
		return finish(result.Diagnostic), nil, nil
	}
	return finish(result.Diagnostic), &Outcome{
		Status:         submit.Success,
		ConfirmationID: result.ConfirmationID,
		Target:         target,
		Diagnostic:     result.Diagnostic,
	}, nil
}

// report calls a sink method without letting it affect the run. It
// uses a fresh context so a cancelled run can still record its end.
func (r *run) report(call func(ctx context.Context) error) {
	if r.request.ID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := call(ctx); err != nil {
		r.logger.Warn("status sink update failed", "error", err)
	}
}

func exhausted(attempts []Attempt) Outcome {
	status := submit.Contended
	parts := make([]string, len(attempts))
	for i, attempt := range attempts {
		if attempt.Submission == submit.Unexpected {
			status = submit.Unexpected
		}
		parts[i] = attempt.Target + ": " + attempt.Diagnostic
	}
	return Outcome{
		Status:     status,
		Diagnostic: fmt.Sprintf("all %d targets failed: %s", len(attempts), strings.Join(parts, "; ")),
		Attempts:   attempts,
	}
}

func cancelled(attempts []Attempt, err error) Outcome {
	return Outcome{
		Status:     submit.Unexpected,
		Diagnostic: "run cancelled: " + err.Error(),
		Attempts:   attempts,
	}
}
