// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import "context"

// StatusSink receives a run's progress for a persisted booking.
type StatusSink interface {
	MarkInProgress(ctx context.Context, bookingID, runID string) error
	RecordAttempt(ctx context.Context, bookingID, runID string, attempt Attempt) error
	Complete(ctx context.Context, bookingID string, outcome Outcome) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) MarkInProgress(context.Context, string, string) error { return nil }
func (NopSink) RecordAttempt(context.Context, string, string, Attempt) error { return nil }
func (NopSink) Complete(context.Context, string, Outcome) error { return nil }
