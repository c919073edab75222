// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/netutil"
)

// ErrChallengeUnavailable is returned when the challenge subsystem did
// not become available within the wait budget.
var ErrChallengeUnavailable = errors.New("session: challenge subsystem unavailable")

// ChallengeRequest identifies the page a token is requested for.
type ChallengeRequest struct {
	SiteKey string `json:"site_key"`
	Action  string `json:"action"`
	PageURL string `json:"page_url"`
}

// ChallengeSource produces anti-automation tokens.
type ChallengeSource interface {
	Token(ctx context.Context, request ChallengeRequest) (string, error)
}

// StaticChallengeSource returns a fixed token. The empty token is the
// right source for authorities without a challenge.
type StaticChallengeSource string

func (s StaticChallengeSource) Token(ctx context.Context, request ChallengeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}

// BrokerChallengeSource talks to a challenge token broker over HTTP:
// GET {URL}/health answers 200 once the broker can issue tokens, and
// POST {URL}/token with a JSON ChallengeRequest answers
// {"token": "..."}.
type BrokerChallengeSource struct {
	Client *http.Client
	URL    string

	// Wait bounds how long Token waits for the broker to become
	// available. Zero means a single availability check.
	Wait time.Duration
	Poll time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Token waits for the broker, then requests a token.
func (b *BrokerChallengeSource) Token(ctx context.Context, request ChallengeRequest) (string, error) {
	clk := b.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poll := b.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	base := strings.TrimRight(b.URL, "/")

	deadline := clk.Now().Add(b.Wait)
	for {
		available, err := b.available(ctx, base)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if available {
			break
		}
		if !clk.Now().Before(deadline) {
			if err != nil {
				return "", fmt.Errorf("%w after %v: %v", ErrChallengeUnavailable, b.Wait, err)
			}
			return "", fmt.Errorf("%w after %v", ErrChallengeUnavailable, b.Wait)
		}
		logger.Debug("challenge broker not ready", "error", err)
		if err := clock.Sleep(ctx, clk, poll); err != nil {
			return "", err
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encoding challenge request: %w", err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := b.client().Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("requesting challenge token: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("challenge broker returned HTTP %d: %s", response.StatusCode, netutil.Excerpt(response.Body))
	}
	var decoded tokenResponse
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return "", fmt.Errorf("decoding challenge token: %w", err)
	}
	if decoded.Token == "" {
		if decoded.Error != "" {
			return "", fmt.Errorf("challenge broker: %s", decoded.Error)
		}
		return "", errors.New("challenge broker returned an empty token")
	}
	return decoded.Token, nil
}

func (b *BrokerChallengeSource) available(ctx context.Context, base string) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false, err
	}
	response, err := b.client().Do(request)
	if err != nil {
		return false, err
	}
	netutil.Excerpt(response.Body)
	response.Body.Close()
	return response.StatusCode == http.StatusOK, nil
}

func (b *BrokerChallengeSource) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}
