// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/codec"
)

func showCommand() *cli.Command {
	var (
		configFlag configFlag
		trace      bool
		rawCBOR    bool
		snapshot   int
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Show a booking and the attempts of its runs",
		Usage:   "courtbook show ID [flags]",
		Examples: []cli.Example{
			{Description: "Every navigation of every run", Command: "courtbook show 0b6f1c2e-77aa-4c1e-9a57-3f0c8d1e2b44 --trace"},
			{Description: "The last page seen for the first target", Command: "courtbook show 0b6f1c2e-77aa-4c1e-9a57-3f0c8d1e2b44 --snapshot 1 > page.html"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			flagSet.BoolVar(&trace, "trace", false, "print each attempt's navigation trace")
			flagSet.BoolVar(&rawCBOR, "cbor", false, "print traces in CBOR diagnostic notation (implies --trace)")
			flagSet.IntVar(&snapshot, "snapshot", 0, "write the stored page of attempt N of the last run to stdout")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("show takes exactly one booking ID")
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

			booking, err := store.Get(ctx, args[0])
			if err != nil {
				if errors.Is(err, bookingstore.ErrNotFound) {
					return cli.NotFound("no booking %s", args[0])
				}
				return err
			}
			if snapshot > 0 {
				return writeSnapshot(ctx, os.Stdout, store, booking, snapshot)
			}
			return showBooking(ctx, os.Stdout, store, booking, trace || rawCBOR, rawCBOR)
		},
	}
}

func showBooking(ctx context.Context, w io.Writer, store *bookingstore.Store, booking bookingstore.Booking, trace, rawCBOR bool) error {
	cli.RenderBookings(w, []bookingstore.Booking{booking}, time.Local, cli.DefaultTheme)
	fmt.Fprintf(w, "\nfingerprint %s, %d runs\n", booking.ShortFingerprint(), booking.RunCount)

	records, err := store.Attempts(ctx, booking.ID, "")
	if err != nil {
		return err
	}
	runID := ""
	for _, record := range records {
		if record.RunID != runID {
			runID = record.RunID
			fmt.Fprintf(w, "\nrun %s\n", runID)
		}
		submission := "no write"
		if record.Submission != 0 {
			submission = "write " + record.Submission.String()
		}
		fmt.Fprintf(w, "  %d. %-12s %d nav, %d retries, %s, %s: %s\n",
			record.Position, record.Target, record.Navigations, record.Retries,
			record.Classification, submission, record.Diagnostic)
		if !trace {
			continue
		}
		if rawCBOR {
			raw, err := store.TraceCBOR(ctx, booking.ID, record.RunID, record.Position)
			if err != nil {
				return err
			}
			if len(raw) > 0 {
				notation, err := codec.Diagnose(raw)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "    %s\n", notation)
			}
			continue
		}
		cli.RenderTrace(w, record.Trace, cli.DefaultTheme)
	}
	return nil
}

func writeSnapshot(ctx context.Context, w io.Writer, store *bookingstore.Store, booking bookingstore.Booking, position int) error {
	if booking.LastRunID == "" {
		return cli.NotFound("booking %s has not run", booking.ID)
	}
	records, err := store.Attempts(ctx, booking.ID, booking.LastRunID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Position == position {
			if len(record.Snapshot) == 0 {
				return cli.NotFound("attempt %d loaded no page", position)
			}
			_, err := w.Write(record.Snapshot)
			return err
		}
	}
	return cli.NotFound("run %s has no attempt %d", booking.LastRunID, position)
}
