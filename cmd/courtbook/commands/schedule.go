// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/submit"
)

func scheduleCommand() *cli.Command {
	var (
		configFlag configFlag
		listen     string
	)
	return &cli.Command{
		Name:    "schedule",
		Summary: "Run queued bookings as their windows open",
		Description: `Run the scheduler daemon.

Every poll interval the scheduler starts each pending booking whose
window opens within the schedule lead. Bookings run concurrently, one
goroutine each, sharing one clock synchronization. Prometheus metrics
are served on the metrics listen address. SIGINT or SIGTERM stops the
scheduler after in-flight runs are cancelled.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("schedule", pflag.ContinueOnError)
			configFlag.bind(flagSet)
			flagSet.StringVar(&listen, "metrics-listen", "", "override metrics.listen; \"off\" disables the endpoint")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := configFlag.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Metrics.Listen = listen
			}
			if cfg.Metrics.Listen == "off" {
				cfg.Metrics.Listen = ""
			}

			realClock := clock.Real()
			store, err := openStore(cfg, realClock, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.RecoverInterrupted(ctx); err != nil {
				return err
			}

			parts, err := newComponents(cfg, store, realClock, logger)
			if err != nil {
				return err
			}
			runner := &scheduler{
				store:  store,
				clock:  realClock,
				lead:   cfg.Engine.ScheduleLead,
				poll:   cfg.Engine.SchedulePoll,
				logger: logger,
				acquire: func(ctx context.Context, booking bookingstore.Booking) {
					runBooking(ctx, parts.engine, store, cfg.Credentials.Bundle, cfg.Credentials.Identity, booking, logger)
				},
			}

			group, groupContext := errgroup.WithContext(ctx)
			if cfg.Metrics.Listen != "" {
				group.Go(func() error {
					return serveMetrics(groupContext, cfg.Metrics.Listen, parts.metrics.Handler(), logger)
				})
			}
			group.Go(func() error {
				return runner.run(groupContext)
			})
			err = group.Wait()
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				logger.Info("scheduler stopped")
				return nil
			}
			return err
		},
	}
}

// scheduler starts due bookings. Each claimed booking runs in its own
// goroutine; a run's failure never stops the scheduler.
type scheduler struct {
	store   *bookingstore.Store
	clock   clock.Clock
	lead    time.Duration
	poll    time.Duration
	logger  *slog.Logger
	acquire func(ctx context.Context, booking bookingstore.Booking)
}

// run polls until ctx is cancelled, then waits for in-flight runs.
// Returns ctx.Err().
func (s *scheduler) run(ctx context.Context) error {
	var runs errgroup.Group
	defer runs.Wait()

	ticker := s.clock.NewTicker(s.poll)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "lead", s.lead.String(), "poll", s.poll.String())
	for {
		s.dispatch(ctx, &runs)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *scheduler) dispatch(ctx context.Context, runs *errgroup.Group) {
	due, err := s.store.Due(ctx, s.clock.Now(), s.lead)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("listing due bookings", "error", err)
		}
		return
	}
	for _, booking := range due {
		claimed, err := s.store.Claim(ctx, booking.ID)
		if err != nil {
			s.logger.Error("claiming booking", "booking", booking.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		s.logger.Info("starting booking",
			"booking", booking.ID,
			"opens_at", booking.Instant.Format(time.RFC3339),
			"targets", len(booking.Targets),
		)
		runs.Go(func() error {
			s.acquire(ctx, booking)
			return nil
		})
	}
}

// runBooking executes one stored booking. Failures that happen before
// the engine starts are recorded on the booking directly.
func runBooking(ctx context.Context, engine *acquire.Engine, store *bookingstore.Store, bundlePath, identityPath string, booking bookingstore.Booking, logger *slog.Logger) {
	bundle, err := credential.LoadFile(bundlePath, identityPath)
	if err != nil {
		logger.Error("loading credentials", "booking", booking.ID, "error", err)
		failure := acquire.Outcome{
			Status:     submit.Unexpected,
			Diagnostic: "loading credentials: " + err.Error(),
		}
		if err := store.Complete(context.WithoutCancel(ctx), booking.ID, failure); err != nil {
			logger.Error("recording credential failure", "booking", booking.ID, "error", err)
		}
		return
	}
	defer bundle.Close()

	// The engine logs and records the outcome itself.
	_, _ = engine.Acquire(ctx, acquireRequest(booking.ID, booking.Spec, bundle))
}

// serveMetrics serves handler on address until ctx is cancelled, then
// shuts down gracefully.
func serveMetrics(ctx context.Context, address string, handler http.Handler, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Info("metrics server listening", "address", listener.Addr().String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}

	shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.Info("metrics server stopped")
	return nil
}
