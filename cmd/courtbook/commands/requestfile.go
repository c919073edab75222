// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/credential"
)

// requestFile is the on-disk shape of a booking request. Comments and
// trailing commas are allowed:
//
//	{
//	  // Saturday doubles, first choice first.
//	  "actor": "ada",
//	  "targets": ["court-4", "court-2"],
//	  "date": "2026-03-14",
//	  "start": "09:30",
//	  "duration_minutes": 60,
//	  "opens_at": "2026-03-07T09:00:00+01:00",
//	}
type requestFile struct {
	Actor           string   `json:"actor"`
	Targets         []string `json:"targets"`
	Date            string   `json:"date"`
	Start           string   `json:"start"`
	DurationMinutes int      `json:"duration_minutes"`
	Category        string   `json:"category"`
	Guests          []string `json:"guests"`
	OpensAt         string   `json:"opens_at"`
}

// loadRequestFile reads and validates a request file into a booking
// spec.
func loadRequestFile(path string) (bookingstore.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bookingstore.Spec{}, cli.NotFound("request file %s does not exist", path)
		}
		return bookingstore.Spec{}, fmt.Errorf("reading request file: %w", err)
	}
	spec, err := parseRequest(data)
	if err != nil {
		return bookingstore.Spec{}, cli.Validation("%s: %w", path, err)
	}
	return spec, nil
}

func parseRequest(data []byte) (bookingstore.Spec, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	var file requestFile
	if err := decoder.Decode(&file); err != nil {
		return bookingstore.Spec{}, fmt.Errorf("parsing request: %w", err)
	}

	var errs []error
	if len(file.Targets) == 0 {
		errs = append(errs, acquire.ErrNoTargets)
	}
	if _, err := time.Parse(time.DateOnly, file.Date); err != nil {
		errs = append(errs, fmt.Errorf("date %q must be YYYY-MM-DD", file.Date))
	}
	startMinutes, err := parseClock(file.Start)
	if err != nil {
		errs = append(errs, err)
	}
	if file.DurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("duration_minutes must be positive, got %d", file.DurationMinutes))
	}
	opensAt, err := time.Parse(time.RFC3339Nano, file.OpensAt)
	if err != nil {
		errs = append(errs, fmt.Errorf("opens_at %q must be an RFC 3339 time with a zone", file.OpensAt))
	}
	if err := errors.Join(errs...); err != nil {
		return bookingstore.Spec{}, err
	}

	targets := make([]string, len(file.Targets))
	for i, target := range file.Targets {
		targets[i] = strings.TrimSpace(target)
	}
	return bookingstore.Spec{
		Actor:           file.Actor,
		Targets:         targets,
		Date:            file.Date,
		StartMinutes:    startMinutes,
		DurationMinutes: file.DurationMinutes,
		Category:        file.Category,
		Guests:          file.Guests,
		Instant:         opensAt,
	}, nil
}

// parseClock turns "HH:MM" into minutes past midnight.
func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("start %q must be HH:MM", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// acquireRequest turns a spec into an engine request. bookingID is
// empty for runs that are not persisted.
func acquireRequest(bookingID string, spec bookingstore.Spec, credentials *credential.Bundle) acquire.Request {
	return acquire.Request{
		ID:              bookingID,
		Actor:           spec.Actor,
		Targets:         spec.Targets,
		Instant:         spec.Instant,
		Date:            spec.Date,
		StartMinutes:    spec.StartMinutes,
		DurationMinutes: spec.DurationMinutes,
		Category:        spec.Category,
		Guests:          spec.Guests,
		Credentials:     credentials,
	}
}
