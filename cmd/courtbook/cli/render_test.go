// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/retry"
	"github.com/bureau-foundation/courtbook/lib/submit"
)

func TestRenderBookings(t *testing.T) {
	bookings := []bookingstore.Booking{
		{
			ID: "0b6f1c2e-77aa-4c1e-9a57-3f0c8d1e2b44",
			Spec: bookingstore.Spec{
				Targets:         []string{"court-4", "court-2"},
				Date:            "2026-03-14",
				StartMinutes:    570,
				DurationMinutes: 60,
				Instant:         time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC),
			},
			Status:         bookingstore.Success,
			ConfirmationID: "98765",
			BookedTarget:   "court-2",
		},
		{
			ID:      "short",
			Spec:    bookingstore.Spec{Targets: []string{"court-1"}, Date: "2026-03-21", Instant: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
			Status:  bookingstore.Failed,
			Message: "all 1 targets failed",
		},
	}

	var output bytes.Buffer
	RenderBookings(&output, bookings, time.UTC, DefaultTheme)
	text := output.String()
	for _, want := range []string{"STATUS", "0b6f1c2e", "success", "03-14 09:30 +60m", "98765 on court-2", "failed", "all 1 targets failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if lines := strings.Count(text, "\n"); lines != 3 {
		t.Errorf("lines = %d, want header plus 2 rows", lines)
	}

	output.Reset()
	RenderBookings(&output, nil, time.UTC, DefaultTheme)
	if !strings.Contains(output.String(), "no bookings") {
		t.Errorf("empty output = %q", output.String())
	}
}

func TestRenderOutcome(t *testing.T) {
	outcome := acquire.Outcome{
		RunID:          "run-1",
		Status:         submit.Success,
		ConfirmationID: "98765",
		Target:         "court-2",
		Attempts: []acquire.Attempt{
			{Target: "court-4", Navigations: 1, Diagnostic: "abandoned: contended"},
			{Target: "court-2", Navigations: 2, Retries: 1, Diagnostic: "confirmed"},
		},
	}
	var output bytes.Buffer
	RenderOutcome(&output, outcome, DefaultTheme)
	text := output.String()
	for _, want := range []string{"booked court-2, confirmation 98765", "✗ court-4", "✓ court-2", "run run-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	output.Reset()
	RenderOutcome(&output, acquire.Outcome{Status: submit.Contended}, DefaultTheme)
	if !strings.Contains(output.String(), "not booked (contended)") {
		t.Errorf("failure output = %q", output.String())
	}
}

func TestRenderTrace(t *testing.T) {
	var output bytes.Buffer
	RenderTrace(&output, []retry.Step{
		{Navigation: 1, Result: "tooEarly", Action: "retry", Reason: "form asks to wait"},
		{Navigation: 2, Result: "ready", Action: "submit"},
	}, DefaultTheme)
	if !strings.Contains(output.String(), "#1 tooEarly") || !strings.Contains(output.String(), "#2 ready") {
		t.Errorf("trace output = %q", output.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("court-4", 10); got != "court-4" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("court-1,court-2,court-3", 10); got != "court-1,c…" {
		t.Errorf("truncate long = %q", got)
	}
}
