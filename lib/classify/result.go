// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import "fmt"

// Result is the outcome category of one loaded page.
type Result int

const (
	// Unknown: content unreadable or matched nothing. Retryable.
	Unknown Result = iota
	// Ready: the entry form loaded with its session-bound field.
	Ready
	// TooEarly: the authority says the window has not opened. Retryable.
	TooEarly
	// Contended: another actor holds the target. Abandons the target.
	Contended
	// SlowLoading: the form address loaded without its readiness
	// marker. Retryable.
	SlowLoading
	// TransientError: a generic server error unrelated to contention.
	// Abandons the target.
	TransientError
)

var resultNames = [...]string{
	Unknown:        "unknown",
	Ready:          "ready",
	TooEarly:       "tooEarly",
	Contended:      "contended",
	SlowLoading:    "slowLoading",
	TransientError: "transientError",
}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return fmt.Sprintf("Result(%d)", int(r))
	}
	return resultNames[r]
}

// Retryable reports whether the same target should be navigated again.
func (r Result) Retryable() bool {
	switch r {
	case TooEarly, SlowLoading, Unknown:
		return true
	default:
		return false
	}
}

// ParseResult is the inverse of String.
func ParseResult(name string) (Result, error) {
	for result, candidate := range resultNames {
		if candidate == name {
			return Result(result), nil
		}
	}
	return Unknown, fmt.Errorf("classify: unknown result %q", name)
}
