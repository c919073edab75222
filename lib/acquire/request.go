// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/retry"
	"github.com/bureau-foundation/courtbook/lib/submit"
)

var (
	// ErrNoTargets: the request names no targets.
	ErrNoTargets = errors.New("acquire: request has no targets")

	// ErrAuthentication: the authority rejected the credentials
	// before any target was navigated.
	ErrAuthentication = errors.New("acquire: authentication failed")
)

// Request is one acquisition. It is read-only to the engine.
type Request struct {
	// ID is the booking record this run reports to. Empty for ad-hoc
	// runs with no record.
	ID string

	Actor string

	// Targets are tried in this order. Duplicates are attempted
	// independently.
	Targets []string

	// Instant is when the contention window opens.
	Instant time.Time

	// Date is the slot's day (YYYY-MM-DD) in the authority's format.
	Date            string
	StartMinutes    int
	DurationMinutes int
	Category        string
	Guests          []string

	Credentials *credential.Bundle
}

// Validate reports run-fatal problems with the request.
func (r Request) Validate() error {
	if len(r.Targets) == 0 {
		return ErrNoTargets
	}
	var errs []error
	for i, target := range r.Targets {
		if strings.TrimSpace(target) == "" {
			errs = append(errs, fmt.Errorf("target %d is empty", i+1))
		}
	}
	if r.Instant.IsZero() {
		errs = append(errs, errors.New("instant is required"))
	}
	if r.StartMinutes < 0 || r.StartMinutes >= 24*60 {
		errs = append(errs, fmt.Errorf("start minutes %d outside 0..1439", r.StartMinutes))
	}
	if r.DurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("duration %d must be positive", r.DurationMinutes))
	}
	if r.Credentials == nil {
		errs = append(errs, errors.New("credentials are required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("acquire: invalid request: %w", err)
	}
	return nil
}

// Attempt records one target's processing within a run.
type Attempt struct {
	Target      string
	Navigations int
	Retries     int
	CapReached  bool

	// Classification is the last classification result.
	Classification string

	// Submission is the write outcome, or zero if no write was made.
	Submission submit.Status

	Diagnostic string
	Trace      []retry.Step

	// Snapshot is the body of the last page loaded for this target.
	Snapshot []byte

	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome is the single result of a run.
type Outcome struct {
	RunID string

	// Status is Success, or the failure kind: Contended when every
	// target was lost, Unexpected when a write failed unexpectedly or
	// the run was cut short.
	Status submit.Status

	ConfirmationID string

	// Target is the target that was booked, if any.
	Target string

	Diagnostic string

	// Attempts are in the order targets were tried.
	Attempts []Attempt
}

// Succeeded reports whether a booking was confirmed.
func (o Outcome) Succeeded() bool {
	return o.Status == submit.Success
}

// AttemptedTargets lists the targets tried, in order.
func (o Outcome) AttemptedTargets() []string {
	targets := make([]string, len(o.Attempts))
	for i, attempt := range o.Attempts {
		targets[i] = attempt.Target
	}
	return targets
}
