// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies command errors so that main can pick an
// exit code and scripts can tell bad input from a flaky authority.
type ErrorCategory string

const (
	// CategoryValidation: bad flags, arguments or request files.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: an unknown booking ID or missing file.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden: the authority rejected the credentials.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryTransient: network failures and timeouts. Retrying may
	// help.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: everything else.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error wrapping the real cause.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// Category returns the category of the first ToolError in err's chain,
// or CategoryInternal when there is none.
func Category(err error) ErrorCategory {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	return CategoryInternal
}

// ExitCode maps an error category to a process exit status. 1 is
// reserved for "ran, but booked nothing".
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryForbidden:
		return 4
	case CategoryTransient:
		return 5
	default:
		return 70
	}
}
