// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bookingstore

// migrations is append-only. Entry i brings user_version from i to i+1.
var migrations = []string{
	`CREATE TABLE bookings (
		id              TEXT PRIMARY KEY,
		fingerprint     BLOB NOT NULL UNIQUE,
		actor           TEXT NOT NULL,
		targets         BLOB NOT NULL,
		date            TEXT NOT NULL,
		start_minutes   INTEGER NOT NULL,
		duration        INTEGER NOT NULL,
		category        TEXT NOT NULL DEFAULT '',
		guests          BLOB,
		instant         INTEGER NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		run_count       INTEGER NOT NULL DEFAULT 0,
		last_run_id     TEXT NOT NULL DEFAULT '',
		message         TEXT NOT NULL DEFAULT '',
		confirmation_id TEXT NOT NULL DEFAULT '',
		booked_target   TEXT NOT NULL DEFAULT '',
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);
	CREATE INDEX bookings_status_instant ON bookings (status, instant);

	CREATE TABLE attempts (
		booking_id     TEXT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		run_id         TEXT NOT NULL,
		position       INTEGER NOT NULL,
		target         TEXT NOT NULL,
		navigations    INTEGER NOT NULL,
		retries        INTEGER NOT NULL,
		cap_reached    INTEGER NOT NULL,
		classification TEXT NOT NULL,
		submission     TEXT NOT NULL DEFAULT '',
		diagnostic     TEXT NOT NULL DEFAULT '',
		trace          BLOB,
		snapshot       BLOB,
		started_at     INTEGER NOT NULL,
		finished_at    INTEGER NOT NULL,
		PRIMARY KEY (booking_id, run_id, position)
	);`,
}
