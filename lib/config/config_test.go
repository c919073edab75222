// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courtbook.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Engine.MaxRetries != 2 {
		t.Errorf("max_retries = %d, want 2", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.LatencyProbes != 3 {
		t.Errorf("latency_probes = %d, want 3", cfg.Engine.LatencyProbes)
	}
	if cfg.Engine.ProbeFallback != 150*time.Millisecond {
		t.Errorf("probe_fallback = %v, want 150ms", cfg.Engine.ProbeFallback)
	}
	if cfg.Engine.OffsetFreshness != 10*time.Minute {
		t.Errorf("offset_freshness = %v, want 10m", cfg.Engine.OffsetFreshness)
	}

	// Defaults are complete except for the site itself.
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "authority.base_url is required") {
		t.Errorf("Validate() = %v, want base_url error", err)
	}
}

func TestLoadRequiresEnvironmentVariable(t *testing.T) {
	t.Setenv("COURTBOOK_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when COURTBOOK_CONFIG is not set")
	}
	if !strings.HasPrefix(err.Error(), "COURTBOOK_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", "/home/player")
	path := writeConfig(t, `
environment: production
authority:
  base_url: https://bookings.example.org
  fields:
    session: FormToken
    identity: [MemberNumber]
  wording:
    contention: ["held by another player"]
engine:
  max_retries: 3
  readiness_wait: 1500ms
storage:
  path: ${HOME}/courtbook.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Authority.BaseURL != "https://bookings.example.org" {
		t.Errorf("base_url = %q", cfg.Authority.BaseURL)
	}
	if cfg.Authority.Fields.Session != "FormToken" {
		t.Errorf("fields.session = %q", cfg.Authority.Fields.Session)
	}
	if got := cfg.Authority.Fields.Identity; len(got) != 1 || got[0] != "MemberNumber" {
		t.Errorf("fields.identity = %v", got)
	}
	// Unset fields keep their defaults.
	if cfg.Authority.Fields.Target != "ResourceId" {
		t.Errorf("fields.target = %q, want default", cfg.Authority.Fields.Target)
	}
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("max_retries = %d", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.ReadinessWait != 1500*time.Millisecond {
		t.Errorf("readiness_wait = %v", cfg.Engine.ReadinessWait)
	}
	if cfg.Storage.Path != "/home/player/courtbook.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: development
authority:
  base_url: https://bookings.example.org
storage:
  path: /var/lib/courtbook/bookings.db
development:
  base_url: https://staging.bookings.example.org
  storage:
    path: /tmp/courtbook-dev.db
production:
  base_url: https://never-applied.example.org
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Authority.BaseURL != "https://staging.bookings.example.org" {
		t.Errorf("base_url = %q, want development override", cfg.Authority.BaseURL)
	}
	if cfg.Storage.Path != "/tmp/courtbook-dev.db" {
		t.Errorf("storage.path = %q, want development override", cfg.Storage.Path)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("COURTBOOK_TEST_DIR", "/srv")
	tests := []struct {
		input string
		want  string
	}{
		{"${HOME}/db", "/home/x/db"},
		{"${COURTBOOK_TEST_DIR}/db", "/srv/db"},
		{"${COURTBOOK_UNSET_VAR:-/fallback}/db", "/fallback/db"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got := expandVars(test.input, map[string]string{"HOME": "/home/x"})
			if got != test.want {
				t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Authority.BaseURL = "bookings.example.org"
	cfg.Authority.FormPath = "/reservations/new"
	cfg.Authority.Fields.GuestPattern = "Guest"
	cfg.Engine.MaxRetries = 0
	cfg.Engine.WriteTimeout = 0
	cfg.Storage.Path = "relative.db"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"must be an absolute URL",
		"form_path must contain {target}",
		"guest_pattern",
		"engine.max_retries",
		"engine.write_timeout",
		"storage.path",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q:\n%v", want, err)
		}
	}
}

func TestFormURL(t *testing.T) {
	authority := Default().Authority
	authority.BaseURL = "https://bookings.example.org"

	got, err := authority.FormURL("Court 4", "2026-03-14", 540, 60, "doubles")
	if err != nil {
		t.Fatalf("FormURL: %v", err)
	}
	want := "https://bookings.example.org/reservations/new?resource=Court+4&date=2026-03-14&start=540&duration=60"
	if got != want {
		t.Errorf("FormURL = %q\nwant      %q", got, want)
	}
}
