// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/testutil"
)

type fakeBroker struct {
	readyAfter    int32
	healthChecks  atomic.Int32
	tokenStatus   int
	lastRequest   ChallengeRequest
	tokenRequests atomic.Int32
}

func (b *fakeBroker) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if b.healthChecks.Add(1) < b.readyAfter {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		b.tokenRequests.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&b.lastRequest); err != nil {
			t.Errorf("decoding token request: %v", err)
		}
		if b.tokenStatus != 0 && b.tokenStatus != http.StatusOK {
			http.Error(w, "solver offline", b.tokenStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "03AFcWeA-token"})
	})
	return mux
}

func TestBrokerChallengeSourceReady(t *testing.T) {
	broker := &fakeBroker{readyAfter: 1}
	server := httptest.NewServer(broker.handler(t))
	defer server.Close()

	source := &BrokerChallengeSource{Client: server.Client(), URL: server.URL + "/", Clock: clock.Fake(epoch)}
	token, err := source.Token(context.Background(), ChallengeRequest{
		SiteKey: "site-key", Action: "reservation", PageURL: "https://club.example/reservations/new",
	})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "03AFcWeA-token" {
		t.Errorf("token = %q", token)
	}
	if broker.lastRequest.SiteKey != "site-key" || broker.lastRequest.PageURL != "https://club.example/reservations/new" {
		t.Errorf("broker received %+v", broker.lastRequest)
	}
}

func TestBrokerChallengeSourceWaitsForAvailability(t *testing.T) {
	broker := &fakeBroker{readyAfter: 3}
	server := httptest.NewServer(broker.handler(t))
	defer server.Close()

	fake := clock.Fake(epoch)
	source := &BrokerChallengeSource{
		Client: server.Client(),
		URL:    server.URL,
		Wait:   2 * time.Second,
		Poll:   100 * time.Millisecond,
		Clock:  fake,
	}

	done := make(chan error, 1)
	go func() {
		_, err := source.Token(context.Background(), ChallengeRequest{SiteKey: "k"})
		done <- err
	}()
	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(100 * time.Millisecond)
	}
	if err := testutil.RequireReceive(t, done, 5*time.Second, "token"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if n := broker.healthChecks.Load(); n != 3 {
		t.Errorf("health checks = %d, want 3", n)
	}
}

func TestBrokerChallengeSourceUnavailable(t *testing.T) {
	broker := &fakeBroker{readyAfter: 1000}
	server := httptest.NewServer(broker.handler(t))
	defer server.Close()

	source := &BrokerChallengeSource{Client: server.Client(), URL: server.URL, Clock: clock.Fake(epoch)}
	_, err := source.Token(context.Background(), ChallengeRequest{SiteKey: "k"})
	if !errors.Is(err, ErrChallengeUnavailable) {
		t.Fatalf("Token error = %v, want ErrChallengeUnavailable", err)
	}
	if broker.tokenRequests.Load() != 0 {
		t.Error("token requested from an unavailable broker")
	}
}

func TestBrokerChallengeSourceTokenFailure(t *testing.T) {
	broker := &fakeBroker{readyAfter: 1, tokenStatus: http.StatusBadGateway}
	server := httptest.NewServer(broker.handler(t))
	defer server.Close()

	source := &BrokerChallengeSource{Client: server.Client(), URL: server.URL, Clock: clock.Fake(epoch)}
	if _, err := source.Token(context.Background(), ChallengeRequest{SiteKey: "k"}); err == nil {
		t.Fatal("expected error for HTTP 502 from broker")
	}
}

func TestStaticChallengeSource(t *testing.T) {
	token, err := StaticChallengeSource("fixed").Token(context.Background(), ChallengeRequest{})
	if err != nil || token != "fixed" {
		t.Errorf("Token = %q, %v", token, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := StaticChallengeSource("fixed").Token(ctx, ChallengeRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Token on cancelled context = %v", err)
	}
}
