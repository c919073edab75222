// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/clocksync"
	"github.com/bureau-foundation/courtbook/lib/metrics"
)

func probeCommand() *cli.Command {
	var configFlag configFlag
	return &cli.Command{
		Name:    "probe",
		Summary: "Measure latency and clock offset against the authority",
		Description: `Probe the authority the way a run does before its window opens and
print the median round trip, the estimated one-way latency, and the
offset between the authority's clock and the local one.

Useful for checking schedule accuracy before queuing bookings.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("probe", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected arguments %q", args)
			}
			cfg, err := configFlag.load()
			if err != nil {
				return err
			}
			synchronizer, err := newSynchronizer(cfg, clock.Real(), metrics.New(), logger)
			if err != nil {
				return err
			}
			return runProbe(ctx, os.Stdout, synchronizer)
		},
	}
}

func runProbe(ctx context.Context, w io.Writer, synchronizer *clocksync.Synchronizer) error {
	roundTrip, err := synchronizer.MeasureLatency(ctx)
	if err != nil {
		return err
	}
	current := synchronizer.Current()

	fmt.Fprintf(w, "round trip:   %s\n", roundTrip)
	if oneWay, err := clocksync.OneWayLatency(roundTrip); err != nil {
		fmt.Fprintf(w, "one way:      unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(w, "one way:      %s\n", oneWay)
	}
	if current.MeasuredAt.IsZero() {
		fmt.Fprintln(w, "offset:       unavailable (no usable Date header)")
		return cli.Transient("authority returned no usable Date header")
	}
	fmt.Fprintf(w, "offset:       %s\n", current.Offset)
	fmt.Fprintf(w, "synced time:  %s\n", synchronizer.SyncedNow().Format(time.RFC3339Nano))
	return nil
}
