// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/clock"
)

func addCommand() *cli.Command {
	var (
		configFlag  configFlag
		requestPath string
	)
	return &cli.Command{
		Name:    "add",
		Summary: "Queue a booking request for the scheduler",
		Description: `Store a booking request as pending. The scheduler starts it shortly
before its window opens. Adding the same request twice is a no-op and
prints the existing booking.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			flagSet.StringVar(&requestPath, "request", "", "request file (JSONC)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if requestPath == "" {
				return cli.Validation("--request is required")
			}
			spec, err := loadRequestFile(requestPath)
			if err != nil {
				return err
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

			booking, created, err := store.Add(ctx, spec)
			if err != nil {
				return err
			}
			verb := "added"
			if !created {
				verb = "already queued as"
			}
			fmt.Printf("%s %s (%s, opens %s)\n", verb, booking.ID, booking.Status,
				booking.Instant.Local().Format(time.RFC1123))
			return nil
		},
	}
}
