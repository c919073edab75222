// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clocksync estimates the offset between the local clock and
// the booking authority's clock, and the network latency to it.
//
// A [Synchronizer] probes the authority a fixed number of times
// (default 3), records each probe's round-trip time, and reports the
// median. A probe that fails records a conservative fallback value
// (default 150ms) instead of aborting the measurement. Each probe
// also reads the authority's HTTP Date header; the sample with the
// smallest round trip yields the clock offset.
//
// [Synchronizer.SyncedNow] returns local time corrected by the last
// offset. The offset is trusted for a freshness window (default 10
// minutes); [Synchronizer.EnsureFresh] re-measures when it is older.
// Synchronization failure never blocks an acquisition: the last known
// offset (or zero) stays in effect and the degradation is logged.
//
// [OneWayLatency] and [LoadTime] are the pure scheduling arithmetic:
// a request issued at LoadTime(T, rtt) is estimated to reach the
// authority at T.
//
// One Synchronizer may be shared by concurrent runs against the same
// authority; its state is guarded by a read-mostly lock.
package clocksync
