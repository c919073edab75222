// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bookingstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/codec"
	"github.com/bureau-foundation/courtbook/lib/retry"
	"github.com/bureau-foundation/courtbook/lib/sqlitepool"
	"github.com/bureau-foundation/courtbook/lib/submit"
)

// ErrNotFound is returned when no booking has the requested ID.
var ErrNotFound = errors.New("bookingstore: booking not found")

// fingerprintContext is the BLAKE3 key derivation context for booking
// fingerprints. Changing it changes every fingerprint.
const fingerprintContext = "courtbook 2026 booking fingerprint v1"

// Status is a booking's lifecycle state.
type Status string

const (
	Pending    Status = "pending"
	InProgress Status = "in_progress"
	Success    Status = "success"
	Failed     Status = "failed"
)

// ParseStatus validates a status name. The empty string is accepted
// and means "any" to List.
func ParseStatus(name string) (Status, error) {
	switch status := Status(name); status {
	case "", Pending, InProgress, Success, Failed:
		return status, nil
	default:
		return "", fmt.Errorf("bookingstore: unknown status %q", name)
	}
}

// Spec is what a caller supplies to create a booking. It is also the
// canonical form hashed into the fingerprint, so field order and CBOR
// keys are part of the storage format.
type Spec struct {
	Actor           string    `cbor:"1,keyasint"`
	Targets         []string  `cbor:"2,keyasint"`
	Date            string    `cbor:"3,keyasint"`
	StartMinutes    int       `cbor:"4,keyasint"`
	DurationMinutes int       `cbor:"5,keyasint"`
	Category        string    `cbor:"6,keyasint,omitempty"`
	Guests          []string  `cbor:"7,keyasint,omitempty"`
	Instant         time.Time `cbor:"8,keyasint"`
}

// Fingerprint returns the BLAKE3 digest of the spec's canonical
// encoding. Instants are compared at nanosecond resolution in UTC.
func (s Spec) Fingerprint() ([]byte, error) {
	canonical := s
	canonical.Instant = s.Instant.UTC()
	encoded, err := codec.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("bookingstore: encoding spec: %w", err)
	}
	digest := make([]byte, 32)
	blake3.DeriveKey(fingerprintContext, encoded, digest)
	return digest, nil
}

// Booking is one persisted request and its current state.
type Booking struct {
	ID          string
	Fingerprint []byte
	Spec

	Status Status

	// RunCount is how many runs have started for this booking.
	RunCount  int
	LastRunID string

	// Message is the last run's diagnostic.
	Message        string
	ConfirmationID string
	BookedTarget   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShortFingerprint is the first 12 hex digits of the fingerprint.
func (b Booking) ShortFingerprint() string {
	encoded := hex.EncodeToString(b.Fingerprint)
	if len(encoded) > 12 {
		return encoded[:12]
	}
	return encoded
}

// AttemptRecord is a stored acquire.Attempt.
type AttemptRecord struct {
	BookingID string
	RunID     string
	Position  int
	acquire.Attempt
}

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path     string
	PoolSize int
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Store is the booking database. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

var _ acquire.StatusSink = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path and brings
// its schema up to date.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       cfg.Path,
		PoolSize:   cfg.PoolSize,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bookingstore: %w", err)
	}
	store := &Store{pool: pool, clock: cfg.Clock, logger: logger}
	if store.clock == nil {
		store.clock = clock.Real()
	}
	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Add stores spec as a pending booking. If an identical booking
// already exists it is returned unchanged and created is false.
func (s *Store) Add(ctx context.Context, spec Spec) (booking Booking, created bool, err error) {
	if len(spec.Targets) == 0 {
		return Booking{}, false, acquire.ErrNoTargets
	}
	if spec.Instant.IsZero() {
		return Booking{}, false, errors.New("bookingstore: instant is required")
	}
	fingerprint, err := spec.Fingerprint()
	if err != nil {
		return Booking{}, false, err
	}
	targets, err := codec.Marshal(spec.Targets)
	if err != nil {
		return Booking{}, false, fmt.Errorf("bookingstore: encoding targets: %w", err)
	}
	var guests any
	if len(spec.Guests) > 0 {
		encoded, err := codec.Marshal(spec.Guests)
		if err != nil {
			return Booking{}, false, fmt.Errorf("bookingstore: encoding guests: %w", err)
		}
		guests = encoded
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Booking{}, false, fmt.Errorf("bookingstore: add: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Booking{}, false, fmt.Errorf("bookingstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	now := s.clock.Now().UnixNano()
	err = sqlitex.Execute(conn, `INSERT INTO bookings
		(id, fingerprint, actor, targets, date, start_minutes, duration,
		 category, guests, instant, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{
				uuid.NewString(),
				fingerprint,
				spec.Actor,
				targets,
				spec.Date,
				spec.StartMinutes,
				spec.DurationMinutes,
				spec.Category,
				guests,
				spec.Instant.UnixNano(),
				now,
				now,
			},
		})
	if err != nil {
		return Booking{}, false, fmt.Errorf("bookingstore: insert booking: %w", err)
	}
	created = conn.Changes() == 1

	bookings, err := s.query(conn, "WHERE fingerprint = ?", fingerprint)
	if err != nil {
		return Booking{}, false, err
	}
	if len(bookings) != 1 {
		return Booking{}, false, fmt.Errorf("bookingstore: booking vanished after insert")
	}
	if created {
		s.logger.Info("booking added",
			"booking", bookings[0].ID,
			"fingerprint", bookings[0].ShortFingerprint(),
			"targets", len(spec.Targets),
			"instant", spec.Instant.Format(time.RFC3339),
		)
	}
	return bookings[0], created, nil
}

// Get returns one booking by ID.
func (s *Store) Get(ctx context.Context, id string) (Booking, error) {
	bookings, err := s.read(ctx, "WHERE id = ?", id)
	if err != nil {
		return Booking{}, err
	}
	if len(bookings) == 0 {
		return Booking{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bookings[0], nil
}

// List returns bookings with the given status, or all bookings when
// status is empty, ordered by instant.
func (s *Store) List(ctx context.Context, status Status) ([]Booking, error) {
	if status == "" {
		return s.read(ctx, "")
	}
	return s.read(ctx, "WHERE status = ?", string(status))
}

// Due returns pending bookings whose instant is at or before
// now + lead, ordered by instant.
func (s *Store) Due(ctx context.Context, now time.Time, lead time.Duration) ([]Booking, error) {
	return s.read(ctx, "WHERE status = ? AND instant <= ?", string(Pending), now.Add(lead).UnixNano())
}

// Claim moves a pending booking to in_progress. It reports false if
// the booking was not pending, so two schedulers never start the same
// booking.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	var claimed bool
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
			&sqlitex.ExecOptions{Args: []any{string(InProgress), s.clock.Now().UnixNano(), id, string(Pending)}})
		claimed = conn.Changes() == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("bookingstore: claim %s: %w", id, err)
	}
	return claimed, nil
}

// RecoverInterrupted fails every in_progress booking. Called on
// scheduler start, when no run can still be executing.
func (s *Store) RecoverInterrupted(ctx context.Context) (int, error) {
	var recovered int
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"UPDATE bookings SET status = ?, message = ?, updated_at = ? WHERE status = ?",
			&sqlitex.ExecOptions{Args: []any{
				string(Failed),
				"interrupted: scheduler stopped during the run",
				s.clock.Now().UnixNano(),
				string(InProgress),
			}})
		recovered = conn.Changes()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bookingstore: recovering interrupted bookings: %w", err)
	}
	if recovered > 0 {
		s.logger.Warn("failed bookings interrupted by a previous shutdown", "count", recovered)
	}
	return recovered, nil
}

// MarkInProgress records the start of a run.
func (s *Store) MarkInProgress(ctx context.Context, bookingID, runID string) error {
	return s.update(ctx, bookingID,
		"UPDATE bookings SET status = ?, run_count = run_count + 1, last_run_id = ?, message = '', updated_at = ? WHERE id = ?",
		string(InProgress), runID, s.clock.Now().UnixNano(), bookingID)
}

// RecordAttempt appends one target's attempt to the run's history.
func (s *Store) RecordAttempt(ctx context.Context, bookingID, runID string, attempt acquire.Attempt) error {
	var trace any
	if len(attempt.Trace) > 0 {
		encoded, err := codec.Marshal(attempt.Trace)
		if err != nil {
			return fmt.Errorf("bookingstore: encoding trace: %w", err)
		}
		trace = encoded
	}
	var snapshot any
	if len(attempt.Snapshot) > 0 {
		snapshot = codec.Compress(attempt.Snapshot)
	}
	var submission string
	if attempt.Submission != 0 {
		submission = attempt.Submission.String()
	}
	capReached := 0
	if attempt.CapReached {
		capReached = 1
	}

	err := s.write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO attempts
			(booking_id, run_id, position, target, navigations, retries,
			 cap_reached, classification, submission, diagnostic, trace,
			 snapshot, started_at, finished_at)
			VALUES (?, ?,
				(SELECT COALESCE(MAX(position), 0) + 1 FROM attempts WHERE booking_id = ? AND run_id = ?),
				?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					bookingID, runID,
					bookingID, runID,
					attempt.Target,
					attempt.Navigations,
					attempt.Retries,
					capReached,
					attempt.Classification,
					submission,
					attempt.Diagnostic,
					trace,
					snapshot,
					attempt.StartedAt.UnixNano(),
					attempt.FinishedAt.UnixNano(),
				},
			})
	})
	if err != nil {
		return fmt.Errorf("bookingstore: record attempt for %s: %w", bookingID, err)
	}
	return nil
}

// Complete records a run's outcome.
func (s *Store) Complete(ctx context.Context, bookingID string, outcome acquire.Outcome) error {
	status := Failed
	if outcome.Succeeded() {
		status = Success
	}
	return s.update(ctx, bookingID,
		"UPDATE bookings SET status = ?, message = ?, confirmation_id = ?, booked_target = ?, updated_at = ? WHERE id = ?",
		string(status), outcome.Diagnostic, outcome.ConfirmationID, outcome.Target,
		s.clock.Now().UnixNano(), bookingID)
}

// Attempts returns the attempts of one run, or of every run when runID
// is empty, in the order they were made.
func (s *Store) Attempts(ctx context.Context, bookingID, runID string) ([]AttemptRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookingstore: attempts: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT run_id, position, target, navigations, retries,
		cap_reached, classification, submission, diagnostic, trace,
		snapshot, started_at, finished_at
		FROM attempts WHERE booking_id = ?`
	args := []any{bookingID}
	if runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY started_at, position"

	var records []AttemptRecord
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, err := scanAttempt(stmt)
			if err != nil {
				return err
			}
			record.BookingID = bookingID
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bookingstore: query attempts for %s: %w", bookingID, err)
	}
	return records, nil
}

func scanAttempt(stmt *sqlite.Stmt) (AttemptRecord, error) {
	// Columns: run_id(0), position(1), target(2), navigations(3),
	// retries(4), cap_reached(5), classification(6), submission(7),
	// diagnostic(8), trace(9), snapshot(10), started_at(11),
	// finished_at(12)
	record := AttemptRecord{
		RunID:    stmt.ColumnText(0),
		Position: stmt.ColumnInt(1),
		Attempt: acquire.Attempt{
			Target:         stmt.ColumnText(2),
			Navigations:    stmt.ColumnInt(3),
			Retries:        stmt.ColumnInt(4),
			CapReached:     stmt.ColumnInt(5) != 0,
			Classification: stmt.ColumnText(6),
			Diagnostic:     stmt.ColumnText(8),
			StartedAt:      time.Unix(0, stmt.ColumnInt64(11)),
			FinishedAt:     time.Unix(0, stmt.ColumnInt64(12)),
		},
	}
	if name := stmt.ColumnText(7); name != "" {
		status, err := parseSubmission(name)
		if err != nil {
			return record, err
		}
		record.Submission = status
	}
	if !stmt.ColumnIsNull(9) {
		var trace []retry.Step
		if err := codec.Unmarshal(columnBytes(stmt, 9), &trace); err != nil {
			return record, fmt.Errorf("decoding trace: %w", err)
		}
		record.Trace = trace
	}
	if !stmt.ColumnIsNull(10) {
		snapshot, err := codec.Decompress(columnBytes(stmt, 10))
		if err != nil {
			return record, fmt.Errorf("decompressing snapshot: %w", err)
		}
		record.Snapshot = snapshot
	}
	return record, nil
}

func parseSubmission(name string) (submit.Status, error) {
	for _, status := range []submit.Status{submit.Success, submit.Contended, submit.Unexpected} {
		if status.String() == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown submission status %q", name)
}

// TraceCBOR returns the raw stored trace of one attempt, for
// diagnostic dumps.
func (s *Store) TraceCBOR(ctx context.Context, bookingID, runID string, position int) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookingstore: trace: %w", err)
	}
	defer s.pool.Put(conn)

	var trace []byte
	found := false
	err = sqlitex.Execute(conn,
		"SELECT trace FROM attempts WHERE booking_id = ? AND run_id = ? AND position = ?",
		&sqlitex.ExecOptions{
			Args: []any{bookingID, runID, position},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				if !stmt.ColumnIsNull(0) {
					trace = columnBytes(stmt, 0)
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("bookingstore: query trace: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no attempt %d in run %s of %s", ErrNotFound, position, runID, bookingID)
	}
	return trace, nil
}

const bookingColumns = `SELECT id, fingerprint, actor, targets, date,
	start_minutes, duration, category, guests, instant, status,
	run_count, last_run_id, message, confirmation_id, booked_target,
	created_at, updated_at FROM bookings `

func (s *Store) read(ctx context.Context, where string, args ...any) ([]Booking, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookingstore: read: %w", err)
	}
	defer s.pool.Put(conn)
	return s.query(conn, where, args...)
}

func (s *Store) query(conn *sqlite.Conn, where string, args ...any) ([]Booking, error) {
	query := bookingColumns + where + " ORDER BY instant, created_at"
	var bookings []Booking
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			booking, err := scanBooking(stmt)
			if err != nil {
				return err
			}
			bookings = append(bookings, booking)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bookingstore: query bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(stmt *sqlite.Stmt) (Booking, error) {
	booking := Booking{
		ID:          stmt.ColumnText(0),
		Fingerprint: columnBytes(stmt, 1),
		Spec: Spec{
			Actor:           stmt.ColumnText(2),
			Date:            stmt.ColumnText(4),
			StartMinutes:    stmt.ColumnInt(5),
			DurationMinutes: stmt.ColumnInt(6),
			Category:        stmt.ColumnText(7),
			Instant:         time.Unix(0, stmt.ColumnInt64(9)).UTC(),
		},
		Status:         Status(stmt.ColumnText(10)),
		RunCount:       stmt.ColumnInt(11),
		LastRunID:      stmt.ColumnText(12),
		Message:        stmt.ColumnText(13),
		ConfirmationID: stmt.ColumnText(14),
		BookedTarget:   stmt.ColumnText(15),
		CreatedAt:      time.Unix(0, stmt.ColumnInt64(16)),
		UpdatedAt:      time.Unix(0, stmt.ColumnInt64(17)),
	}
	if err := codec.Unmarshal(columnBytes(stmt, 3), &booking.Targets); err != nil {
		return booking, fmt.Errorf("decoding targets of %s: %w", booking.ID, err)
	}
	if !stmt.ColumnIsNull(8) {
		if err := codec.Unmarshal(columnBytes(stmt, 8), &booking.Guests); err != nil {
			return booking, fmt.Errorf("decoding guests of %s: %w", booking.ID, err)
		}
	}
	return booking, nil
}

func columnBytes(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}

// update runs a single-row UPDATE and reports ErrNotFound when no row
// matched.
func (s *Store) update(ctx context.Context, bookingID, query string, args ...any) error {
	var changed int
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("bookingstore: updating %s: %w", bookingID, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, bookingID)
	}
	return nil
}

func (s *Store) write(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer endTransaction(&err)
	return fn(conn)
}
