// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package acquire is the fallback orchestrator: it runs one
// acquisition request against the booking authority and produces
// exactly one [Outcome].
//
// A run synchronizes with the authority's clock, logs in, waits until
// the planned load time (the target instant minus the one-way
// latency), and then walks the request's targets strictly in order.
// Each target is handed to the retry controller; a ready form goes to
// the submission pipeline. The first confirmed booking ends the run.
// A target whose write is rejected is treated like a contended target
// and the run moves on. When every target has been tried the Outcome
// is an aggregate failure listing each attempt in order.
//
// Only two conditions are errors: a request without targets
// ([ErrNoTargets]) and a login failure before any navigation
// ([ErrAuthentication]). Cancellation returns ctx.Err() along with a
// failed Outcome. Everything else resolves into the Outcome.
//
// Progress is reported to a [StatusSink] (the booking store in
// production). Sink failures are logged and never affect the run.
package acquire
