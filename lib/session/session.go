// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/netutil"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// ErrLoginFailed wraps every authentication failure.
var ErrLoginFailed = errors.New("session: login failed")

// Session is one authenticated interactive session.
type Session interface {
	// Login authenticates the session. Must precede Navigate.
	Login(ctx context.Context, credentials *credential.Bundle) error

	// Navigate loads address and returns the resulting page. The
	// error is non-nil only when no response was obtained at all.
	Navigate(ctx context.Context, address string) (Page, error)

	// Field returns a named input from the most recent page.
	Field(name string) (string, bool)

	// ChallengeToken returns a fresh anti-automation token bound to
	// the most recent page.
	ChallengeToken(ctx context.Context) (string, error)

	// Cookies returns the authentication cookies for the authority.
	Cookies() []*http.Cookie

	// Close tears the session down. Idempotent.
	Close() error

	Closed() bool
}

// Factory opens sessions.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

// Page is the outcome of one navigation.
type Page struct {
	// URL is the final address after redirects.
	URL        *url.URL
	StatusCode int
	Body       []byte

	// ReadErr is set when the body could not be read in full; Body
	// then holds whatever was read.
	ReadErr error
}

// NavigationError reports a navigation that produced no response.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Timeout reports whether the navigation failed by timing out.
func (e *NavigationError) Timeout() bool {
	return netutil.IsTimeout(e.Err)
}
