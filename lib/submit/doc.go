// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package submit converts a ready entry form into the booking write.
//
// The pipeline runs in a fixed order so the challenge token is as
// fresh as possible when the write reaches the authority:
//
//  1. Read the session-bound field and the actor's identity fields
//     from the ready page. A missing field aborts the target.
//  2. Request a challenge token, waiting at most the challenge budget.
//     Failure aborts the target.
//  3. Copy the session's authentication cookies, then close the
//     interactive session. The teardown time is measured.
//  4. POST the form-encoded booking over a lightweight write client
//     that never follows redirects.
//  5. Interpret the response: a redirect to the confirmation page is
//     success, a redirect to the error page means another actor won,
//     anything else is unexpected.
//
// Token, teardown, gap (token receipt to write issue) and write
// durations are logged for every submission and the gap is exported
// as a histogram.
//
// A write that fails or times out is an Unexpected result, not an
// error, and is never retried within the run.
package submit
