// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clocksync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bureau-foundation/courtbook/lib/clock"
)

var epoch = time.Date(2026, 3, 14, 8, 58, 0, 0, time.UTC)

// scriptedProbe is one scripted round trip: the fake clock advances by
// roundTrip, and the probe returns serverTime or err.
type scriptedProbe struct {
	roundTrip  time.Duration
	serverTime time.Time
	err        error
}

type scriptedProber struct {
	clock  *clock.FakeClock
	script []scriptedProbe
	calls  int
}

func (p *scriptedProber) Probe(ctx context.Context) (time.Time, error) {
	step := p.script[p.calls%len(p.script)]
	p.calls++
	p.clock.Advance(step.roundTrip)
	return step.serverTime, step.err
}

func newSynchronizer(t *testing.T, fake *clock.FakeClock, script []scriptedProbe) (*Synchronizer, *scriptedProber) {
	t.Helper()
	prober := &scriptedProber{clock: fake, script: script}
	synchronizer, err := New(Config{Prober: prober, Clock: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return synchronizer, prober
}

func TestMeasureLatencyMedian(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, prober := newSynchronizer(t, fake, []scriptedProbe{
		{roundTrip: 900 * time.Millisecond},
		{roundTrip: 120 * time.Millisecond},
		{roundTrip: 140 * time.Millisecond},
	})

	roundTrip, err := synchronizer.MeasureLatency(context.Background())
	if err != nil {
		t.Fatalf("MeasureLatency: %v", err)
	}
	if roundTrip != 140*time.Millisecond {
		t.Errorf("median = %v, want 140ms (outlier discarded by median)", roundTrip)
	}
	if prober.calls != 3 {
		t.Errorf("probes = %d, want 3", prober.calls)
	}
}

func TestMeasureLatencyFailedProbeUsesFallback(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, _ := newSynchronizer(t, fake, []scriptedProbe{
		{roundTrip: 40 * time.Millisecond},
		{roundTrip: 2 * time.Second, err: errors.New("connection reset")},
		{roundTrip: 400 * time.Millisecond},
	})

	roundTrip, err := synchronizer.MeasureLatency(context.Background())
	if err != nil {
		t.Fatalf("MeasureLatency: %v", err)
	}
	// Samples sort to [40ms, 150ms (fallback), 400ms].
	if roundTrip != DefaultFallbackRoundTrip {
		t.Errorf("median = %v, want fallback %v", roundTrip, DefaultFallbackRoundTrip)
	}
}

func TestMeasureLatencyAllProbesFail(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, _ := newSynchronizer(t, fake, []scriptedProbe{
		{err: errors.New("no route to host")},
	})

	roundTrip, err := synchronizer.MeasureLatency(context.Background())
	if err != nil {
		t.Fatalf("MeasureLatency must not fail on probe errors: %v", err)
	}
	if roundTrip != DefaultFallbackRoundTrip {
		t.Errorf("roundTrip = %v, want fallback", roundTrip)
	}
}

func TestMeasureLatencyCancelled(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, prober := newSynchronizer(t, fake, []scriptedProbe{{roundTrip: time.Millisecond}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := synchronizer.MeasureLatency(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if prober.calls != 0 {
		t.Errorf("probes after cancellation = %d, want 0", prober.calls)
	}
}

func TestOffsetFromDateHeader(t *testing.T) {
	fake := clock.Fake(epoch)
	// Authority runs 5 seconds ahead. Each probe takes 100ms; the
	// authority stamps its Date from its own clock mid-flight.
	script := make([]scriptedProbe, 3)
	for i := range script {
		localMidpoint := epoch.Add(time.Duration(i)*100*time.Millisecond + 50*time.Millisecond)
		script[i] = scriptedProbe{
			roundTrip:  100 * time.Millisecond,
			serverTime: localMidpoint.Add(5 * time.Second).Truncate(time.Second),
		}
	}
	synchronizer, _ := newSynchronizer(t, fake, script)

	if _, err := synchronizer.MeasureLatency(context.Background()); err != nil {
		t.Fatalf("MeasureLatency: %v", err)
	}
	offset := synchronizer.Current().Offset
	// Second-resolution dates bound the error to half a second.
	if offset < 4500*time.Millisecond || offset > 5500*time.Millisecond {
		t.Errorf("offset = %v, want 5s ± 500ms", offset)
	}
	synced := synchronizer.SyncedNow()
	if got := synced.Sub(fake.Now()); got != offset {
		t.Errorf("SyncedNow - Now = %v, want offset %v", got, offset)
	}
}

func TestOffsetWithinResolutionClampedToZero(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, _ := newSynchronizer(t, fake, []scriptedProbe{
		{roundTrip: 80 * time.Millisecond, serverTime: epoch},
	})

	if _, err := synchronizer.MeasureLatency(context.Background()); err != nil {
		t.Fatalf("MeasureLatency: %v", err)
	}
	current := synchronizer.Current()
	if current.Offset != 0 {
		t.Errorf("offset = %v, want 0 for a sub-resolution skew", current.Offset)
	}
	if current.MeasuredAt.IsZero() {
		t.Error("MeasuredAt not recorded")
	}
}

func TestEnsureFresh(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, prober := newSynchronizer(t, fake, []scriptedProbe{
		{roundTrip: 100 * time.Millisecond, serverTime: epoch.Add(3 * time.Second)},
	})
	ctx := context.Background()

	if synchronizer.Fresh() {
		t.Fatal("new Synchronizer reports fresh")
	}
	if _, err := synchronizer.EnsureFresh(ctx); err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if prober.calls != 3 {
		t.Fatalf("probes = %d, want 3", prober.calls)
	}

	t.Run("fresh offset is reused", func(t *testing.T) {
		fake.Advance(9 * time.Minute)
		if _, err := synchronizer.EnsureFresh(ctx); err != nil {
			t.Fatalf("EnsureFresh: %v", err)
		}
		if prober.calls != 3 {
			t.Errorf("probes = %d, want no new probes within freshness", prober.calls)
		}
	})

	t.Run("stale offset is refreshed", func(t *testing.T) {
		fake.Advance(2 * time.Minute)
		if _, err := synchronizer.EnsureFresh(ctx); err != nil {
			t.Fatalf("EnsureFresh: %v", err)
		}
		if prober.calls != 6 {
			t.Errorf("probes = %d, want 6 after staleness", prober.calls)
		}
	})
}

func TestEnsureFreshDegradedKeepsLastOffset(t *testing.T) {
	fake := clock.Fake(epoch)
	prober := &scriptedProber{clock: fake, script: []scriptedProbe{
		{roundTrip: 100 * time.Millisecond, serverTime: epoch.Add(-4 * time.Second)},
	}}
	synchronizer, err := New(Config{Prober: prober, Clock: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first, err := synchronizer.EnsureFresh(ctx)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if first.Offset == 0 {
		t.Fatal("expected a non-zero offset from the first sync")
	}

	fake.Advance(11 * time.Minute)
	prober.script = []scriptedProbe{{err: errors.New("authority unreachable")}}

	after, err := synchronizer.EnsureFresh(ctx)
	if err != nil {
		t.Fatalf("EnsureFresh must not fail when probes fail: %v", err)
	}
	if after.Offset != first.Offset {
		t.Errorf("offset = %v, want last known %v", after.Offset, first.Offset)
	}
}

func TestEnsureFreshNeverSyncedUsesZeroOffset(t *testing.T) {
	fake := clock.Fake(epoch)
	synchronizer, _ := newSynchronizer(t, fake, []scriptedProbe{{err: errors.New("down")}})

	offset, err := synchronizer.EnsureFresh(context.Background())
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if offset.Offset != 0 {
		t.Errorf("offset = %v, want 0", offset.Offset)
	}
	if !synchronizer.SyncedNow().Equal(fake.Now()) {
		t.Error("SyncedNow differs from local time with a zero offset")
	}
}

func TestHTTPProber(t *testing.T) {
	serverDate := time.Date(2026, 3, 14, 8, 59, 30, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if r.Header.Get("User-Agent") != "courtbook-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Date", serverDate.Format(http.TimeFormat))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	prober := &HTTPProber{Client: server.Client(), URL: server.URL, UserAgent: "courtbook-test"}
	got, err := prober.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !got.Equal(serverDate) {
		t.Errorf("Probe = %v, want %v", got, serverDate)
	}

	t.Run("transport failure", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		failing := &HTTPProber{Client: closed.Client(), URL: closed.URL}
		if _, err := failing.Probe(context.Background()); err == nil {
			t.Error("expected error probing a closed server")
		}
	})
}
