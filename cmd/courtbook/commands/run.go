// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/session"
)

func runCommand() *cli.Command {
	var (
		configFlag  configFlag
		requestPath string
		bookingID   string
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Run one acquisition now, waiting for the window to open",
		Description: `Run one acquisition in the foreground.

The run synchronizes with the authority's clock, logs in, waits until
the booking window is about to open, and then tries each target in
order. It exits 0 when a slot was booked and 1 when every target was
lost.

With --request the run is ad hoc and nothing is stored. With --booking
a queued booking runs now and its status is updated.`,
		Usage: "courtbook run (--request FILE | --booking ID) [flags]",
		Examples: []cli.Example{
			{Description: "Book Saturday's slot", Command: "courtbook run --request saturday.jsonc"},
			{Description: "Run a queued booking without the scheduler", Command: "courtbook run --booking 0b6f1c2e-77aa-4c1e-9a57-3f0c8d1e2b44"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			flagSet.StringVar(&requestPath, "request", "", "request file (JSONC)")
			flagSet.StringVar(&bookingID, "booking", "", "ID of a stored booking")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected arguments %q", args)
			}
			if (requestPath == "") == (bookingID == "") {
				return cli.Validation("exactly one of --request or --booking is required")
			}
			cfg, err := configFlag.load()
			if err != nil {
				return err
			}

			var (
				spec bookingstore.Spec
				sink acquire.StatusSink
			)
			if requestPath != "" {
				spec, err = loadRequestFile(requestPath)
				if err != nil {
					return err
				}
			} else {
				store, err := openStore(cfg, clock.Real(), logger)
				if err != nil {
					return err
				}
				defer store.Close()
				booking, err := store.Get(ctx, bookingID)
				if err != nil {
					if errors.Is(err, bookingstore.ErrNotFound) {
						return cli.NotFound("no booking %s", bookingID)
					}
					return err
				}
				spec, sink = booking.Spec, store
			}

			bundle, err := credential.LoadFile(cfg.Credentials.Bundle, cfg.Credentials.Identity)
			if err != nil {
				return cli.Validation("loading credentials: %w", err)
			}
			defer bundle.Close()

			parts, err := newComponents(cfg, sink, clock.Real(), logger)
			if err != nil {
				return err
			}
			outcome, err := parts.engine.Acquire(ctx, acquireRequest(bookingID, spec, bundle))
			cli.RenderOutcome(os.Stdout, outcome, cli.DefaultTheme)
			return outcomeError(outcome, err)
		},
	}
}

// outcomeError maps a run result to the command's error.
func outcomeError(outcome acquire.Outcome, err error) error {
	switch {
	case err == nil && outcome.Succeeded():
		return nil
	case err == nil:
		return &cli.ExitError{Code: 1}
	case errors.Is(err, acquire.ErrAuthentication), session.IsLoginFailure(err):
		return cli.Forbidden("%w", err)
	case errors.Is(err, acquire.ErrNoTargets):
		return cli.Validation("%w", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return cli.Internal("%w", err)
	}
}
