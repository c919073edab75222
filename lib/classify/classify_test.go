// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

var testRules = Rules{
	FormMatch:    "/reservations/new",
	ErrorMatch:   "/reservations/error",
	SessionField: "__RequestVerificationToken",
	Wait:         []string{"please wait", "not yet open"},
	Contention:   []string{"another member"},
	Error:        []string{"an error occurred"},
}

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	classifier, err := New(testRules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return classifier
}

func view(t *testing.T, address string, status int, body string) View {
	t.Helper()
	parsed, err := url.Parse(address)
	if err != nil {
		t.Fatalf("parsing %q: %v", address, err)
	}
	return View{URL: parsed, StatusCode: status, Body: []byte(body)}
}

const (
	readyForm = `<html><body><form>
		<input type="hidden" name="__RequestVerificationToken" value="abc">
		<input type="hidden" name="MemberId" value="4471">
	</form></body></html>`
	emptyTokenForm = `<html><body><form>
		<input type="hidden" name="__RequestVerificationToken" value="">
	</form></body></html>`
	loadingForm  = `<html><body><div id="spinner">Loading…</div></body></html>`
	waitPage     = `<html><body><h1>Booking is not yet open.</h1><p>Please wait.</p></body></html>`
	contendPage  = `<html><body><p>This court is being booked by another member.</p></body></html>`
	genericError = `<html><body><p>An error occurred while processing your request.</p></body></html>`
)

func TestClassify(t *testing.T) {
	classifier := newClassifier(t)

	tests := []struct {
		name    string
		address string
		status  int
		body    string
		readErr error
		want    Result
	}{
		{"error address with wait wording", "https://club.example/reservations/error?code=1", 200, waitPage, nil, TooEarly},
		{"error address with contention wording", "https://club.example/reservations/error", 200, contendPage, nil, Contended},
		{"error address without known wording", "https://club.example/reservations/error", 200, genericError, nil, TransientError},
		{"error address unreadable", "https://club.example/reservations/error", 200, "", errors.New("stream reset"), Unknown},
		{"form with session field", "https://club.example/reservations/new?resource=4", 200, readyForm, nil, Ready},
		{"form without session field", "https://club.example/reservations/new?resource=4", 200, loadingForm, nil, SlowLoading},
		{"form address case insensitive", "https://club.example/Reservations/New", 200, readyForm, nil, Ready},
		{"form with wait wording", "https://club.example/reservations/new", 200, waitPage, nil, TooEarly},
		{"form with contention banner", "https://club.example/reservations/new", 200, contendPage + readyForm, nil, Contended},
		{"form with server error status", "https://club.example/reservations/new?resource=4", 503, "Service Unavailable", nil, TransientError},
		{"form with generic error wording", "https://club.example/reservations/new?resource=4", 200, genericError, nil, TransientError},
		{"form with server error and wording", "https://club.example/reservations/new?resource=4", 500, genericError, nil, TransientError},
		{"form with empty session field", "https://club.example/reservations/new", 200, emptyTokenForm, nil, SlowLoading},
		{"form unreadable", "https://club.example/reservations/new", 200, "", errors.New("timeout"), Unknown},
		{"server error status", "https://club.example/", 503, "", nil, TransientError},
		{"generic error content", "https://club.example/home", 200, genericError, nil, TransientError},
		{"unreadable elsewhere", "https://club.example/", 503, "", errors.New("eof"), Unknown},
		{"unrecognized page", "https://club.example/account/login", 200, `<html>Sign in</html>`, nil, Unknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := view(t, test.address, test.status, test.body)
			v.ReadErr = test.readErr
			got := classifier.Classify(v)
			if got.Result != test.want {
				t.Errorf("Classify = %v, want %v", got, test.want)
			}
			if got.Reason == "" {
				t.Error("Classify returned an empty reason")
			}
		})
	}
}

func TestClassifyNilURL(t *testing.T) {
	if got := newClassifier(t).Classify(View{}); got.Result != Unknown {
		t.Errorf("Classify(empty view) = %v, want unknown", got)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	classifier := newClassifier(t)
	for _, body := range []string{readyForm, loadingForm, waitPage, contendPage, genericError} {
		v := view(t, "https://club.example/reservations/new", 200, body)
		first := classifier.Classify(v)
		second := classifier.Classify(v)
		if first != second {
			t.Errorf("Classify not idempotent: %v then %v", first, second)
		}
	}
}

func TestClassifyLatency(t *testing.T) {
	classifier := newClassifier(t)
	page := make([]byte, 0, 1<<20)
	page = append(page, "<html><body><table>"...)
	for len(page) < 1<<20 {
		page = append(page, "<tr><td>Court</td><td>09:00</td></tr>"...)
	}
	page = append(page, readyForm...)
	v := view(t, "https://club.example/reservations/new", 200, string(page))

	start := time.Now()
	got := classifier.Classify(v)
	elapsed := time.Since(start)
	if got.Result != Ready {
		t.Fatalf("Classify = %v, want ready", got)
	}
	// Generous bound for shared CI machines.
	if elapsed > time.Second {
		t.Errorf("classifying a 1 MiB page took %v", elapsed)
	}
}

func TestNewRequiresRules(t *testing.T) {
	if _, err := New(Rules{}); err == nil {
		t.Fatal("expected error for empty Rules")
	}
}

func TestResult(t *testing.T) {
	tests := []struct {
		result    Result
		name      string
		retryable bool
	}{
		{Unknown, "unknown", true},
		{Ready, "ready", false},
		{TooEarly, "tooEarly", true},
		{Contended, "contended", false},
		{SlowLoading, "slowLoading", true},
		{TransientError, "transientError", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.result.String(); got != test.name {
				t.Errorf("String() = %q, want %q", got, test.name)
			}
			if got := test.result.Retryable(); got != test.retryable {
				t.Errorf("Retryable() = %v, want %v", got, test.retryable)
			}
			parsed, err := ParseResult(test.name)
			if err != nil || parsed != test.result {
				t.Errorf("ParseResult(%q) = %v, %v", test.name, parsed, err)
			}
		})
	}
	if _, err := ParseResult("maybe"); err == nil {
		t.Error("ParseResult accepted an unknown name")
	}
	if got := Result(42).String(); got != "Result(42)" {
		t.Errorf("out-of-range String() = %q", got)
	}
}
