// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry is the per-target state machine that turns successive
// page classifications into a decision: submit, navigate again, or
// abandon the target.
//
// [Next] is the transition table as a pure function. [Controller]
// drives it: it navigates, classifies, applies Next, and repeats until
// the target is ready or abandoned. Retries happen immediately with no
// added delay; the window may open between two navigations.
//
// With maxRetries = 2 a target is navigated at most twice when every
// outcome is retryable, and exactly once when the first outcome is
// ready or non-retryable.
package retry

import (
	"fmt"

	"github.com/bureau-foundation/courtbook/lib/classify"
)

// DefaultMaxRetries applies when a non-positive cap is configured.
const DefaultMaxRetries = 2

// Action is what the controller does after a classification.
type Action int

const (
	Retry Action = iota
	Submit
	Abandon
)

func (a Action) String() string {
	switch a {
	case Retry:
		return "retry"
	case Submit:
		return "submit"
	case Abandon:
		return "abandon"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// transitions is the action for each classification before the retry
// cap is applied.
var transitions = map[classify.Result]Action{
	classify.Ready:          Submit,
	classify.TooEarly:       Retry,
	classify.SlowLoading:    Retry,
	classify.Unknown:        Retry,
	classify.Contended:      Abandon,
	classify.TransientError: Abandon,
}

// Decision is the outcome of one transition.
type Decision struct {
	Action Action

	// Retries is the retry count after the transition.
	Retries int

	// CapReached is set when a retryable result was turned into
	// Abandon by the cap.
	CapReached bool
}

// Next applies one classification to a target with the given retry
// count. Retryable results increment the count and retry while it
// stays below maxRetries; non-retryable results leave it untouched.
func Next(result classify.Result, retries, maxRetries int) Decision {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	action, known := transitions[result]
	if !known {
		action = Retry
	}
	if action != Retry {
		return Decision{Action: action, Retries: retries}
	}
	retries++
	if retries >= maxRetries {
		return Decision{Action: Abandon, Retries: retries, CapReached: true}
	}
	return Decision{Action: Retry, Retries: retries}
}
