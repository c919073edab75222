// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/clock"
)

// bookingJSON is the --json shape of a booking.
type bookingJSON struct {
	ID              string    `json:"id"`
	Fingerprint     string    `json:"fingerprint"`
	Status          string    `json:"status"`
	Actor           string    `json:"actor,omitempty"`
	Targets         []string  `json:"targets"`
	Date            string    `json:"date"`
	StartMinutes    int       `json:"start_minutes"`
	DurationMinutes int       `json:"duration_minutes"`
	OpensAt         time.Time `json:"opens_at"`
	Runs            int       `json:"runs"`
	Message         string    `json:"message,omitempty"`
	ConfirmationID  string    `json:"confirmation_id,omitempty"`
	BookedTarget    string    `json:"booked_target,omitempty"`
}

func listCommand() *cli.Command {
	var (
		configFlag configFlag
		status     string
		outputJSON bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List stored bookings",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			flagSet.StringVar(&status, "status", "", "only bookings with this status (pending, in_progress, success, failed)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			filter, err := bookingstore.ParseStatus(status)
			if err != nil {
				return cli.Validation("%w", err)
			}
			cfg, err := configFlag.load()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, clock.Real(), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			bookings, err := store.List(ctx, filter)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeBookingsJSON(bookings)
			}
			cli.RenderBookings(os.Stdout, bookings, time.Local, cli.DefaultTheme)
			return nil
		},
	}
}

func writeBookingsJSON(bookings []bookingstore.Booking) error {
	out := make([]bookingJSON, len(bookings))
	for i, booking := range bookings {
		out[i] = bookingJSON{
			ID:              booking.ID,
			Fingerprint:     booking.ShortFingerprint(),
			Status:          string(booking.Status),
			Actor:           booking.Actor,
			Targets:         booking.Targets,
			Date:            booking.Date,
			StartMinutes:    booking.StartMinutes,
			DurationMinutes: booking.DurationMinutes,
			OpensAt:         booking.Instant,
			Runs:            booking.RunCount,
			Message:         booking.Message,
			ConfirmationID:  booking.ConfirmationID,
			BookedTarget:    booking.BookedTarget,
		}
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
