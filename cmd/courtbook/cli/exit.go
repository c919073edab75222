// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError asks main to exit with Code without printing anything:
// the command already wrote its own output. `courtbook run` returns
// one when the acquisition ran but booked nothing.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode implements the interface main checks for.
func (e *ExitError) ExitCode() int {
	return e.Code
}
