// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for courtbook packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a goroutine driven by a fake
// clock. They are the only place in the test suite that uses real
// wall-clock timeouts; everything else advances a clock.FakeClock.
//
// [UniqueID] generates monotonically increasing identifiers for
// booking actors and request fingerprints that must not collide
// across subtests sharing a database.
//
// [TempPath] returns a path inside t.TempDir() for database and
// credential files.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
