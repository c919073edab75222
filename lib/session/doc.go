// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the interactive session through which the engine
// logs in to the booking authority and loads a target's entry form.
//
// [Session] is the abstraction the engine depends on. [HTTPSession]
// implements it with a cookie-jar backed HTTP client: navigations
// follow redirects, the final address, status and body are captured
// as a [Page], and a body that cannot be read is recorded in the Page
// (not returned as an error) so the classifier can see it.
//
// When a navigation lands on the entry form but the session-bound
// field has not appeared yet, HTTPSession re-reads the same address
// at a poll interval until the field appears or the readiness budget
// runs out. Waiting uses the injected clock.
//
// Anti-automation challenge tokens are obtained from a
// [ChallengeSource]. The engine never solves challenges: a
// [BrokerChallengeSource] asks the challenge widget's token broker for
// a token already bound to the page, waiting a bounded time for the
// broker to become available.
//
// Sessions are single-goroutine objects. A [Factory] opens one per
// run; after Close the session is unusable and the engine opens a new
// one if another target needs it.
package session
