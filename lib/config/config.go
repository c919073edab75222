// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the master configuration for courtbook.
type Config struct {
	Environment Environment `yaml:"environment"`

	Authority   AuthorityConfig   `yaml:"authority"`
	Engine      EngineConfig      `yaml:"engine"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Credentials CredentialsConfig `yaml:"credentials"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
// Non-empty values win.
type Overrides struct {
	BaseURL     string             `yaml:"base_url,omitempty"`
	Challenge   *ChallengeConfig   `yaml:"challenge,omitempty"`
	Storage     *StorageConfig     `yaml:"storage,omitempty"`
	Metrics     *MetricsConfig     `yaml:"metrics,omitempty"`
	Credentials *CredentialsConfig `yaml:"credentials,omitempty"`
}

// AuthorityConfig describes the remote booking site.
type AuthorityConfig struct {
	// BaseURL is the scheme and host of the booking site, for example
	// https://bookings.example-club.org. Required.
	BaseURL string `yaml:"base_url"`

	// ProbePath is requested (HEAD) for latency and clock probes.
	ProbePath string `yaml:"probe_path"`

	LoginPath string `yaml:"login_path"`

	// FormPath is the entry form for one target. Placeholders
	// {target}, {date}, {start}, {duration} and {category} are
	// substituted and query-escaped.
	FormPath string `yaml:"form_path"`

	// WritePath receives the form-encoded booking POST.
	WritePath string `yaml:"write_path"`

	// FormMatch, ErrorMatch and ConfirmationMatch are path substrings
	// that identify the entry form, the error page, and the
	// confirmation page respectively.
	FormMatch         string `yaml:"form_match"`
	ErrorMatch        string `yaml:"error_match"`
	ConfirmationMatch string `yaml:"confirmation_match"`

	UserAgent string `yaml:"user_agent"`

	Fields    FieldsConfig    `yaml:"fields"`
	Wording   WordingConfig   `yaml:"wording"`
	Challenge ChallengeConfig `yaml:"challenge"`
}

// FieldsConfig names the form fields on the authority's pages.
type FieldsConfig struct {
	LoginUsername string `yaml:"login_username"`
	LoginPassword string `yaml:"login_password"`

	// Session is the session-bound hidden field whose presence marks
	// the entry form as ready.
	Session string `yaml:"session"`

	// Identity lists hidden fields on the entry form that carry the
	// authenticated actor's identity; each is copied to the write.
	Identity []string `yaml:"identity"`

	Target    string `yaml:"target"`
	Date      string `yaml:"date"`
	StartTime string `yaml:"start_time"`
	Duration  string `yaml:"duration"`
	Category  string `yaml:"category"`
	Challenge string `yaml:"challenge"`

	// GuestPattern is a fmt pattern with one %d verb, numbered from 1.
	GuestPattern string `yaml:"guest_pattern"`
}

// WordingConfig lists lowercase phrases the classifier searches for
// in page text.
type WordingConfig struct {
	Wait       []string `yaml:"wait"`
	Contention []string `yaml:"contention"`
	Error      []string `yaml:"error"`
}

// ChallengeConfig locates the anti-automation token broker. An empty
// BrokerURL disables challenges.
type ChallengeConfig struct {
	BrokerURL string `yaml:"broker_url"`
	SiteKey   string `yaml:"site_key"`
	Action    string `yaml:"action"`
}

// EngineConfig tunes the acquisition engine.
type EngineConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	LatencyProbes     int           `yaml:"latency_probes"`
	ProbeFallback     time.Duration `yaml:"probe_fallback"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	OffsetFreshness   time.Duration `yaml:"offset_freshness"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	ReadinessWait     time.Duration `yaml:"readiness_wait"`
	ReadinessPoll     time.Duration `yaml:"readiness_poll"`
	ChallengeWait     time.Duration `yaml:"challenge_wait"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`

	// ScheduleLead is how long before a booking's instant the
	// scheduler starts its run (login and clock sync happen first).
	ScheduleLead time.Duration `yaml:"schedule_lead"`
	SchedulePoll time.Duration `yaml:"schedule_poll"`
}

// StorageConfig locates the booking database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus listener used by
// `courtbook schedule`. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// CredentialsConfig locates the sealed credential bundle and the age
// identity that opens it.
type CredentialsConfig struct {
	Bundle   string `yaml:"bundle"`
	Identity string `yaml:"identity"`
}

// Default returns the base configuration that a file is merged onto.
func Default() *Config {
	return &Config{
		Environment: Production,
		Authority: AuthorityConfig{
			ProbePath:         "/",
			LoginPath:         "/account/login",
			FormPath:          "/reservations/new?resource={target}&date={date}&start={start}&duration={duration}",
			WritePath:         "/reservations/create",
			FormMatch:         "/reservations/new",
			ErrorMatch:        "/reservations/error",
			ConfirmationMatch: "/reservations/confirmation",
			Fields: FieldsConfig{
				LoginUsername: "Username",
				LoginPassword: "Password",
				Session:       "__RequestVerificationToken",
				Identity:      []string{"MemberId", "MemberName"},
				Target:        "ResourceId",
				Date:          "Date",
				StartTime:     "StartTime",
				Duration:      "Duration",
				Category:      "Category",
				Challenge:     "CaptchaToken",
				GuestPattern:  "Guest%d",
			},
			Wording: WordingConfig{
				Wait:       []string{"please wait", "not yet open", "opens at", "try again in"},
				Contention: []string{"another member", "already reserved", "currently being booked"},
				Error:      []string{"an error occurred", "server error", "something went wrong"},
			},
			Challenge: ChallengeConfig{
				Action: "reservation",
			},
		},
		Engine: EngineConfig{
			MaxRetries:        2,
			LatencyProbes:     3,
			ProbeFallback:     150 * time.Millisecond,
			ProbeTimeout:      5 * time.Second,
			OffsetFreshness:   10 * time.Minute,
			NavigationTimeout: 15 * time.Second,
			ReadinessWait:     3 * time.Second,
			ReadinessPoll:     250 * time.Millisecond,
			ChallengeWait:     10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ScheduleLead:      2 * time.Minute,
			SchedulePoll:      15 * time.Second,
		},
		Storage: StorageConfig{
			Path: "${HOME}/.local/share/courtbook/bookings.db",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
		Credentials: CredentialsConfig{
			Bundle:   "${HOME}/.config/courtbook/credentials.age",
			Identity: "${HOME}/.config/courtbook/identity.key",
		},
	}
}

// Load loads the file named by COURTBOOK_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("COURTBOOK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("COURTBOOK_CONFIG environment variable not set; " +
			"set it to the path of your courtbook.yaml, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile merges the file at path onto Default, applies the matching
// environment section, and expands path variables. It does not
// validate; callers run Validate once flags have been applied.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.BaseURL != "" {
		c.Authority.BaseURL = overrides.BaseURL
	}
	if overrides.Challenge != nil {
		if overrides.Challenge.BrokerURL != "" {
			c.Authority.Challenge.BrokerURL = overrides.Challenge.BrokerURL
		}
		if overrides.Challenge.SiteKey != "" {
			c.Authority.Challenge.SiteKey = overrides.Challenge.SiteKey
		}
		if overrides.Challenge.Action != "" {
			c.Authority.Challenge.Action = overrides.Challenge.Action
		}
	}
	if overrides.Storage != nil && overrides.Storage.Path != "" {
		c.Storage.Path = overrides.Storage.Path
	}
	if overrides.Metrics != nil {
		// An explicit empty listen address in an override is
		// indistinguishable from absence, so metrics can only be
		// moved, not disabled, per environment.
		if overrides.Metrics.Listen != "" {
			c.Metrics.Listen = overrides.Metrics.Listen
		}
	}
	if overrides.Credentials != nil {
		if overrides.Credentials.Bundle != "" {
			c.Credentials.Bundle = overrides.Credentials.Bundle
		}
		if overrides.Credentials.Identity != "" {
			c.Credentials.Identity = overrides.Credentials.Identity
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Storage.Path = expandVars(c.Storage.Path, vars)
	c.Credentials.Bundle = expandVars(c.Credentials.Bundle, vars)
	c.Credentials.Identity = expandVars(c.Credentials.Identity, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, checking vars before
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	authority := c.Authority
	if authority.BaseURL == "" {
		errs = append(errs, errors.New("authority.base_url is required"))
	} else if parsed, err := url.Parse(authority.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("authority.base_url %q must be an absolute URL", authority.BaseURL))
	}
	for name, value := range map[string]string{
		"authority.login_path":         authority.LoginPath,
		"authority.form_path":          authority.FormPath,
		"authority.write_path":         authority.WritePath,
		"authority.form_match":         authority.FormMatch,
		"authority.error_match":        authority.ErrorMatch,
		"authority.confirmation_match": authority.ConfirmationMatch,
		"authority.fields.session":     authority.Fields.Session,
		"authority.fields.target":      authority.Fields.Target,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if !strings.Contains(authority.FormPath, "{target}") {
		errs = append(errs, errors.New("authority.form_path must contain {target}"))
	}
	if pattern := authority.Fields.GuestPattern; pattern != "" && strings.Count(pattern, "%d") != 1 {
		errs = append(errs, fmt.Errorf("authority.fields.guest_pattern %q must contain exactly one %%d", pattern))
	}
	if authority.Challenge.BrokerURL != "" && authority.Challenge.SiteKey == "" {
		errs = append(errs, errors.New("authority.challenge.site_key is required when broker_url is set"))
	}

	engine := c.Engine
	if engine.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("engine.max_retries must be at least 1, got %d", engine.MaxRetries))
	}
	if engine.LatencyProbes < 1 {
		errs = append(errs, fmt.Errorf("engine.latency_probes must be at least 1, got %d", engine.LatencyProbes))
	}
	for name, value := range map[string]time.Duration{
		"engine.probe_fallback":     engine.ProbeFallback,
		"engine.probe_timeout":      engine.ProbeTimeout,
		"engine.offset_freshness":   engine.OffsetFreshness,
		"engine.navigation_timeout": engine.NavigationTimeout,
		"engine.readiness_poll":     engine.ReadinessPoll,
		"engine.write_timeout":      engine.WriteTimeout,
		"engine.schedule_poll":      engine.SchedulePoll,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, value))
		}
	}
	if engine.ReadinessWait < 0 || engine.ChallengeWait < 0 || engine.ScheduleLead < 0 {
		errs = append(errs, errors.New("engine.readiness_wait, challenge_wait and schedule_lead must not be negative"))
	}

	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	} else if !filepath.IsAbs(c.Storage.Path) && c.Storage.Path != ":memory:" {
		errs = append(errs, fmt.Errorf("storage.path %q must be absolute", c.Storage.Path))
	}

	return errors.Join(errs...)
}

// FormURL returns the absolute entry-form URL for one target.
func (a AuthorityConfig) FormURL(target, date string, startMinutes, durationMinutes int, category string) (string, error) {
	replacer := strings.NewReplacer(
		"{target}", url.QueryEscape(target),
		"{date}", url.QueryEscape(date),
		"{start}", fmt.Sprint(startMinutes),
		"{duration}", fmt.Sprint(durationMinutes),
		"{category}", url.QueryEscape(category),
	)
	return a.Resolve(replacer.Replace(a.FormPath))
}

// Resolve joins a site-relative path onto BaseURL.
func (a AuthorityConfig) Resolve(path string) (string, error) {
	base, err := url.Parse(a.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing authority.base_url: %w", err)
	}
	reference, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}
	return base.ResolveReference(reference).String(), nil
}
