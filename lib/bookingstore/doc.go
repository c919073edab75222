// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bookingstore persists booking requests and the progress of
// the runs that execute them.
//
// A booking moves through pending, in_progress and then success or
// failed. Each run appends one attempts row per target it tried,
// carrying the retry controller's transition trace (CBOR) and the last
// page loaded for the target (zstd). [Store] implements
// acquire.StatusSink so the engine reports straight into the database.
//
// Bookings are deduplicated by a BLAKE3 fingerprint of their canonical
// CBOR form: adding the same request twice returns the existing row.
package bookingstore
