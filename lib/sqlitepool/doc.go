// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens pooled SQLite connections with courtbook's
// standard pragmas and a forward-only schema migrator.
//
// Connections use WAL journaling so the scheduler can read due
// bookings while a running acquisition records attempts. Foreign keys
// are enforced: attempt rows reference their booking.
//
// Migrations are an ordered list of SQL scripts. The database's
// PRAGMA user_version records how many have been applied; Open runs
// the remainder inside a single immediate transaction:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:       "/var/lib/courtbook/bookings.db",
//	    Migrations: []string{schemaV1, schemaV2},
//	    Logger:     logger,
//	})
//
// Pool wraps zombiezen.com/go/sqlite/sqlitex.Pool and exposes the same
// Take/Put API. Connections are not safe for concurrent use; each
// goroutine takes its own.
package sqlitepool
