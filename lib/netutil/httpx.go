// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O utilities shared by the session,
// clock synchronizer, and submission pipeline.
//
// Response helpers (ReadPage, DecodeResponse, Excerpt) bound every body
// read so a misbehaving authority cannot exhaust memory. Error helpers
// (IsTimeout) classify transport failures the engine treats as
// retryable rather than fatal.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxPageSize bounds HTML page reads: 8 MB. Booking pages are tens of
// kilobytes; the bound only guards against pathological responses.
const MaxPageSize int64 = 8 << 20

// MaxExcerpt is the length of a response body kept in diagnostics.
const MaxExcerpt = 512

// ReadPage reads a response body up to MaxPageSize bytes.
func ReadPage(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxPageSize))
}

// DecodeResponse reads a JSON response body (bounded by MaxPageSize)
// and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadPage(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// Excerpt reads at most MaxExcerpt bytes of body for a diagnostic
// message. Read errors are ignored; a partial body is still useful.
func Excerpt(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxExcerpt))
	return strings.TrimSpace(string(data))
}
