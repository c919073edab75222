// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/clocksync"
	"github.com/bureau-foundation/courtbook/lib/metrics"
)

func newProbeSynchronizer(t *testing.T, handler http.HandlerFunc) *clocksync.Synchronizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	synchronizer, err := clocksync.New(clocksync.Config{
		Prober:  &clocksync.HTTPProber{Client: server.Client(), URL: server.URL},
		Probes:  3,
		Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("clocksync.New: %v", err)
	}
	return synchronizer
}

func TestProbeReportsOffset(t *testing.T) {
	synchronizer := newProbeSynchronizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	})

	var output bytes.Buffer
	if err := runProbe(context.Background(), &output, synchronizer); err != nil {
		t.Fatalf("runProbe: %v", err)
	}
	text := output.String()
	for _, want := range []string{"round trip:", "one way:", "offset:", "synced time:"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	offset := synchronizer.Current().Offset
	if offset < 59*time.Minute || offset > 61*time.Minute {
		t.Errorf("offset = %s, want about 1h", offset)
	}
}

func TestProbeWithoutDateHeader(t *testing.T) {
	synchronizer := newProbeSynchronizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Date"] = nil
	})

	var output bytes.Buffer
	err := runProbe(context.Background(), &output, synchronizer)
	if cli.Category(err) != cli.CategoryTransient {
		t.Fatalf("runProbe error = %v, want transient", err)
	}
	if !strings.Contains(output.String(), "offset:       unavailable") {
		t.Errorf("output = %q, want unavailable offset", output.String())
	}
}
