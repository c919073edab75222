// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/htmlform"
	"github.com/bureau-foundation/courtbook/lib/netutil"
)

// Config configures HTTP sessions.
type Config struct {
	// BaseURL is the authority's scheme and host.
	BaseURL string

	LoginPath     string
	UsernameField string
	PasswordField string

	// FormMatch identifies the entry form by path substring;
	// SessionField is the hidden input that marks it ready.
	FormMatch    string
	SessionField string

	NavigationTimeout time.Duration
	ReadinessWait     time.Duration
	ReadinessPoll     time.Duration

	UserAgent string

	Challenge       ChallengeSource
	ChallengeKey    string
	ChallengeAction string

	// Transport defaults to a clone of http.DefaultTransport.
	Transport http.RoundTripper

	Clock  clock.Clock
	Logger *slog.Logger
}

// HTTPFactory opens HTTPSessions sharing one Config.
type HTTPFactory struct {
	Config Config
}

// Open implements Factory.
func (f *HTTPFactory) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewHTTPSession(f.Config)
}

// HTTPSession is a Session over plain HTTP with a cookie jar.
type HTTPSession struct {
	config    Config
	baseURL   *url.URL
	client    *http.Client
	transport http.RoundTripper
	jar       *cookiejar.Jar
	clock     clock.Clock
	logger    *slog.Logger

	lastURL      *url.URL
	lastDocument *htmlform.Document
	closed       bool
}

// NewHTTPSession creates an unauthenticated session.
func NewHTTPSession(config Config) (*HTTPSession, error) {
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("session: BaseURL %q must be an absolute URL", config.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("session: creating cookie jar: %w", err)
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if config.Challenge == nil {
		config.Challenge = StaticChallengeSource("")
	}
	if config.ReadinessPoll <= 0 {
		config.ReadinessPoll = 250 * time.Millisecond
	}

	s := &HTTPSession{
		config:    config,
		baseURL:   baseURL,
		transport: transport,
		jar:       jar,
		clock:     config.Clock,
		logger:    config.Logger,
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Navigate loads address. On the entry form it waits for the
// session-bound field up to the readiness budget.
func (s *HTTPSession) Navigate(ctx context.Context, address string) (Page, error) {
	if s.closed {
		return Page{}, ErrClosed
	}
	target, err := s.baseURL.Parse(address)
	if err != nil {
		return Page{}, &NavigationError{URL: address, Err: err}
	}

	page, err := s.fetch(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Page{}, err
	}
	if !s.awaitingReadiness(page) || s.config.ReadinessWait <= 0 {
		return page, nil
	}

	// Re-read the same address without its fragment until the
	// session field appears or the budget runs out.
	reread := *page.URL
	reread.Fragment = ""
	deadline := s.clock.Now().Add(s.config.ReadinessWait)
	for s.awaitingReadiness(page) {
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			break
		}
		if err := clock.Sleep(ctx, s.clock, min(s.config.ReadinessPoll, remaining)); err != nil {
			return page, nil
		}
		next, err := s.fetch(ctx, http.MethodGet, reread.String(), nil)
		if err != nil {
			// Keep the page we have; the classifier decides.
			s.logger.Debug("readiness re-read failed", "url", reread.String(), "error", err)
			return page, nil
		}
		page = next
	}
	return page, nil
}

func (s *HTTPSession) awaitingReadiness(page Page) bool {
	if page.URL == nil || page.ReadErr != nil || s.config.FormMatch == "" || s.config.SessionField == "" {
		return false
	}
	// A server error is final for this navigation.
	if page.StatusCode >= 500 {
		return false
	}
	if !strings.Contains(strings.ToLower(page.URL.Path), strings.ToLower(s.config.FormMatch)) {
		return false
	}
	value, present := s.Field(s.config.SessionField)
	return !present || value == ""
}

// fetch issues one request and records the resulting page.
func (s *HTTPSession) fetch(ctx context.Context, method, address string, form url.Values) (Page, error) {
	if s.config.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.NavigationTimeout)
		defer cancel()
	}

	var body *bytes.Reader
	if form != nil {
		body = bytes.NewReader([]byte(form.Encode()))
	} else {
		body = bytes.NewReader(nil)
	}
	request, err := http.NewRequestWithContext(ctx, method, address, body)
	if err != nil {
		return Page{}, &NavigationError{URL: address, Err: err}
	}
	if form != nil {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	request.Header.Set("Accept", "text/html,application/xhtml+xml")
	if s.config.UserAgent != "" {
		request.Header.Set("User-Agent", s.config.UserAgent)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return Page{}, &NavigationError{URL: address, Err: err}
	}
	defer response.Body.Close()

	page := Page{URL: response.Request.URL, StatusCode: response.StatusCode}
	page.Body, page.ReadErr = netutil.ReadPage(response.Body)

	s.lastURL = page.URL
	s.lastDocument = nil
	if page.ReadErr == nil {
		if document, err := htmlform.Parse(bytes.NewReader(page.Body)); err == nil {
			s.lastDocument = document
		}
	}
	return page, nil
}

// Field returns a named input from the most recent page.
func (s *HTTPSession) Field(name string) (string, bool) {
	if s.lastDocument == nil {
		return "", false
	}
	return s.lastDocument.Input(name)
}

// ChallengeToken asks the configured source for a token bound to the
// most recent page. A data-sitekey on the page overrides the
// configured key.
func (s *HTTPSession) ChallengeToken(ctx context.Context) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	request := ChallengeRequest{
		SiteKey: s.config.ChallengeKey,
		Action:  s.config.ChallengeAction,
	}
	if s.lastURL != nil {
		request.PageURL = s.lastURL.String()
	}
	if s.lastDocument != nil && s.lastDocument.SiteKey != "" {
		request.SiteKey = s.lastDocument.SiteKey
	}
	return s.config.Challenge.Token(ctx, request)
}

// Cookies returns the jar's cookies for the authority.
func (s *HTTPSession) Cookies() []*http.Cookie {
	return s.jar.Cookies(s.baseURL)
}

// Close drops pooled connections and page state.
func (s *HTTPSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.lastDocument = nil
	if closer, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	return nil
}

func (s *HTTPSession) Closed() bool {
	return s.closed
}

// Login loads the login page (collecting its hidden fields, such as an
// anti-forgery token), posts the credentials, and checks that the
// authority accepted them.
func (s *HTTPSession) Login(ctx context.Context, credentials *credential.Bundle) error {
	if s.closed {
		return ErrClosed
	}
	if credentials == nil || credentials.Username == "" || credentials.Password == nil {
		return fmt.Errorf("%w: no credentials", ErrLoginFailed)
	}
	loginURL, err := s.baseURL.Parse(s.config.LoginPath)
	if err != nil {
		return fmt.Errorf("%w: login path: %v", ErrLoginFailed, err)
	}

	page, err := s.fetch(ctx, http.MethodGet, loginURL.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if page.StatusCode >= 400 {
		return fmt.Errorf("%w: login page returned HTTP %d", ErrLoginFailed, page.StatusCode)
	}

	form := url.Values{}
	if s.lastDocument != nil {
		for name, value := range s.lastDocument.Inputs {
			form.Set(name, value)
		}
	}
	form.Set(s.config.UsernameField, credentials.Username)
	form.Set(s.config.PasswordField, credentials.Password.String())

	result, err := s.fetch(ctx, http.MethodPost, loginURL.String(), form)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	switch {
	case result.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", ErrLoginFailed, result.StatusCode)
	case strings.EqualFold(result.URL.Path, loginURL.Path):
		return fmt.Errorf("%w: authority returned the login page again", ErrLoginFailed)
	case len(s.Cookies()) == 0:
		return fmt.Errorf("%w: no session cookie issued", ErrLoginFailed)
	}

	s.logger.Info("logged in", "user", credentials.Username, "landing", result.URL.Path)
	return nil
}

// IsLoginFailure reports whether err came from Login.
func IsLoginFailure(err error) bool {
	return errors.Is(err, ErrLoginFailed)
}
