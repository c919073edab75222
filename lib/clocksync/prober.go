// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clocksync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober performs one round trip to the authority. It returns the
// authority's reported time, or the zero Time when the response
// carried none. The Synchronizer times the call itself.
type Prober interface {
	Probe(ctx context.Context) (time.Time, error)
}

// HTTPProber probes with a HEAD request and reads the Date header.
type HTTPProber struct {
	Client    *http.Client
	URL       string
	UserAgent string
}

// Probe implements Prober. Any HTTP status counts as a completed
// round trip; only transport failures are errors.
func (p *HTTPProber) Probe(ctx context.Context) (time.Time, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("creating probe request: %w", err)
	}
	if p.UserAgent != "" {
		request.Header.Set("User-Agent", p.UserAgent)
	}
	request.Header.Set("Cache-Control", "no-cache")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return time.Time{}, err
	}
	io.Copy(io.Discard, response.Body)
	response.Body.Close()

	date, err := http.ParseTime(response.Header.Get("Date"))
	if err != nil {
		return time.Time{}, nil
	}
	return date, nil
}
