// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the courtbook command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/version"
)

// Root returns the complete command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "courtbook",
		Description: `courtbook: timed acquisition of contended reservation slots.

Books a slot on a reservation site the moment its booking window opens,
falling back through an ordered list of targets. Requests can run
immediately or be queued for the scheduler daemon.`,
		Subcommands: []*cli.Command{
			runCommand(),
			addCommand(),
			listCommand(),
			showCommand(),
			scheduleCommand(),
			probeCommand(),
			credentialsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if len(args) > 0 {
						return cli.Validation("version takes no arguments")
					}
					fmt.Printf("courtbook %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
