// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/acquire"
	"github.com/bureau-foundation/courtbook/lib/bookingstore"
	"github.com/bureau-foundation/courtbook/lib/classify"
	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/clocksync"
	"github.com/bureau-foundation/courtbook/lib/config"
	"github.com/bureau-foundation/courtbook/lib/metrics"
	"github.com/bureau-foundation/courtbook/lib/retry"
	"github.com/bureau-foundation/courtbook/lib/session"
	"github.com/bureau-foundation/courtbook/lib/submit"
	"github.com/bureau-foundation/courtbook/lib/version"
)

// configFlag binds --config. When empty, COURTBOOK_CONFIG is used.
type configFlag struct {
	path string
}

func (f *configFlag) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.path, "config", "", "path to courtbook.yaml (default $COURTBOOK_CONFIG)")
}

func (f *configFlag) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.path != "" {
		cfg, err = config.LoadFile(f.path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %w", err)
	}
	return cfg, nil
}

// components is everything one process needs to run acquisitions.
// The Synchronizer is shared so concurrent runs reuse one offset.
type components struct {
	config    *config.Config
	clock     clock.Clock
	metrics   *metrics.Metrics
	sync      *clocksync.Synchronizer
	engine    *acquire.Engine
	userAgent string
}

func userAgent(cfg *config.Config) string {
	if cfg.Authority.UserAgent != "" {
		return cfg.Authority.UserAgent
	}
	return version.UserAgent()
}

// newSynchronizer builds the clock synchronizer for the authority's
// probe address.
func newSynchronizer(cfg *config.Config, c clock.Clock, m *metrics.Metrics, logger *slog.Logger) (*clocksync.Synchronizer, error) {
	probeURL, err := cfg.Authority.Resolve(cfg.Authority.ProbePath)
	if err != nil {
		return nil, err
	}
	return clocksync.New(clocksync.Config{
		Prober: &clocksync.HTTPProber{
			Client:    &http.Client{Timeout: cfg.Engine.ProbeTimeout},
			URL:       probeURL,
			UserAgent: userAgent(cfg),
		},
		Clock:             c,
		Probes:            cfg.Engine.LatencyProbes,
		FallbackRoundTrip: cfg.Engine.ProbeFallback,
		Freshness:         cfg.Engine.OffsetFreshness,
		ProbeTimeout:      cfg.Engine.ProbeTimeout,
		Metrics:           m,
		Logger:            logger.With("component", "clocksync"),
	})
}

// challengeSource returns the broker client when one is configured,
// and an empty static token otherwise.
func challengeSource(cfg *config.Config, c clock.Clock, logger *slog.Logger) session.ChallengeSource {
	if cfg.Authority.Challenge.BrokerURL == "" {
		return session.StaticChallengeSource("")
	}
	return &session.BrokerChallengeSource{
		Client: &http.Client{Timeout: cfg.Engine.ChallengeWait},
		URL:    cfg.Authority.Challenge.BrokerURL,
		Wait:   cfg.Engine.ChallengeWait,
		Poll:   cfg.Engine.ReadinessPoll,
		Clock:  c,
		Logger: logger.With("component", "challenge"),
	}
}

// newComponents wires the acquisition engine from cfg. sink may be
// nil for runs without a stored booking.
func newComponents(cfg *config.Config, sink acquire.StatusSink, c clock.Clock, logger *slog.Logger) (*components, error) {
	m := metrics.New()
	authority := cfg.Authority
	agent := userAgent(cfg)

	synchronizer, err := newSynchronizer(cfg, c, m, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.New(classify.Rules{
		FormMatch:    authority.FormMatch,
		ErrorMatch:   authority.ErrorMatch,
		SessionField: authority.Fields.Session,
		Wait:         authority.Wording.Wait,
		Contention:   authority.Wording.Contention,
		Error:        authority.Wording.Error,
	})
	if err != nil {
		return nil, err
	}

	writeURL, err := authority.Resolve(authority.WritePath)
	if err != nil {
		return nil, err
	}
	pipeline, err := submit.New(submit.Config{
		WriteURL:          writeURL,
		ConfirmationMatch: authority.ConfirmationMatch,
		ErrorMatch:        authority.ErrorMatch,
		Fields: submit.Fields{
			Target:       authority.Fields.Target,
			Date:         authority.Fields.Date,
			StartTime:    authority.Fields.StartTime,
			Duration:     authority.Fields.Duration,
			Category:     authority.Fields.Category,
			Session:      authority.Fields.Session,
			Challenge:    authority.Fields.Challenge,
			Identity:     authority.Fields.Identity,
			GuestPattern: authority.Fields.GuestPattern,
		},
		ChallengeWait: cfg.Engine.ChallengeWait,
		WriteTimeout:  cfg.Engine.WriteTimeout,
		UserAgent:     agent,
		Clock:         c,
		Metrics:       m,
		Logger:        logger.With("component", "submit"),
	})
	if err != nil {
		return nil, err
	}

	sessions := &session.HTTPFactory{Config: session.Config{
		BaseURL:           authority.BaseURL,
		LoginPath:         authority.LoginPath,
		UsernameField:     authority.Fields.LoginUsername,
		PasswordField:     authority.Fields.LoginPassword,
		FormMatch:         authority.FormMatch,
		SessionField:      authority.Fields.Session,
		NavigationTimeout: cfg.Engine.NavigationTimeout,
		ReadinessWait:     cfg.Engine.ReadinessWait,
		ReadinessPoll:     cfg.Engine.ReadinessPoll,
		UserAgent:         agent,
		Challenge:         challengeSource(cfg, c, logger),
		ChallengeKey:      authority.Challenge.SiteKey,
		ChallengeAction:   authority.Challenge.Action,
		Clock:             c,
		Logger:            logger.With("component", "session"),
	}}

	engine, err := acquire.New(acquire.Config{
		Sessions:   sessions,
		Classifier: classifier,
		Controller: retry.NewController(retry.Config{
			MaxRetries: cfg.Engine.MaxRetries,
			Clock:      c,
			Metrics:    m,
			Logger:     logger.With("component", "retry"),
		}),
		Pipeline: pipeline,
		Sync:     synchronizer,
		FormURL: func(target string, request acquire.Request) (string, error) {
			return authority.FormURL(target, request.Date, request.StartMinutes, request.DurationMinutes, request.Category)
		},
		Sink:    sink,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		config:    cfg,
		clock:     c,
		metrics:   m,
		sync:      synchronizer,
		engine:    engine,
		userAgent: agent,
	}, nil
}

// openStore opens the booking database, creating its directory.
func openStore(cfg *config.Config, c clock.Clock, logger *slog.Logger) (*bookingstore.Store, error) {
	if cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	return bookingstore.Open(bookingstore.Config{
		Path:   cfg.Storage.Path,
		Clock:  c,
		Logger: logger.With("component", "bookingstore"),
	})
}
