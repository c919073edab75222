// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package submit

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// NewWriteClient returns the lightweight client used for the booking
// write: a dedicated transport with HTTP/2 enabled, no cookie jar, and
// no redirect following.
func NewWriteClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	// ConfigureTransport only fails when the transport already has
	// HTTP/2 configured; fall back to the transport's own negotiation.
	_ = http2.ConfigureTransport(transport)

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Prewarm opens a connection to the write endpoint ahead of the
// submission so the write does not pay for connection setup. Failures
// are logged and otherwise ignored; the write dials again if needed.
func (p *Pipeline) Prewarm(ctx context.Context) {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, p.writeURL.String(), nil)
	if err != nil {
		return
	}
	if p.config.UserAgent != "" {
		request.Header.Set("User-Agent", p.config.UserAgent)
	}
	response, err := p.client.Do(request)
	if err != nil {
		p.logger.Debug("write connection prewarm failed", "error", err)
		return
	}
	io.Copy(io.Discard, response.Body)
	response.Body.Close()
}
