// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/courtbook/lib/clock"
	"github.com/bureau-foundation/courtbook/lib/metrics"
	"github.com/bureau-foundation/courtbook/lib/netutil"
	"github.com/bureau-foundation/courtbook/lib/session"
)

// ErrChallenge wraps challenge token failures.
var ErrChallenge = errors.New("submit: challenge token unavailable")

// Status is the final state of one submission.
type Status int

const (
	Success Status = iota + 1
	Contended
	Unexpected
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Contended:
		return "contended"
	case Unexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MissingFieldError reports a required field absent from the ready page.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("submit: required field %q missing from ready page", e.Field)
}

// UnexpectedStatusError describes a write response that was neither
// a confirmation nor a contention redirect.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Location   string
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	message := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Location != "" {
		message += " -> " + e.Location
	}
	if e.Body != "" {
		message += ": " + e.Body
	}
	return message
}

// Fields names the write form's fields.
type Fields struct {
	Target    string
	Date      string
	StartTime string
	Duration  string
	Category  string
	Session   string
	Challenge string

	// Identity fields are copied from the ready page to the write.
	Identity []string

	// GuestPattern has one %d verb, numbered from 1.
	GuestPattern string
}

// Params are the booking parameters for one target.
type Params struct {
	Target          string
	Date            string
	StartMinutes    int
	DurationMinutes int
	Category        string
	Guests          []string

	// Referer is sent with the write; normally the entry form URL.
	Referer string
}

// Timing breaks down one submission.
type Timing struct {
	Token    time.Duration
	Teardown time.Duration
	Gap      time.Duration
	Write    time.Duration
}

// Result is the outcome of one submission.
type Result struct {
	Status         Status
	ConfirmationID string
	Diagnostic     string
	Timing         Timing

	// Err is an *UnexpectedStatusError or the write's transport
	// error when Status is Unexpected.
	Err error
}

// Config configures a Pipeline.
type Config struct {
	// WriteURL is the absolute booking endpoint.
	WriteURL string

	// ConfirmationMatch and ErrorMatch are path substrings of the
	// redirect targets.
	ConfirmationMatch string
	ErrorMatch        string

	Fields Fields

	ChallengeWait time.Duration
	WriteTimeout  time.Duration

	// Client issues the write. Defaults to NewWriteClient(). Its
	// redirect policy is overridden to never follow.
	Client *http.Client

	UserAgent string

	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Pipeline submits bookings. Safe for concurrent use.
type Pipeline struct {
	config   Config
	writeURL *url.URL
	client   *http.Client
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New validates config and returns a Pipeline.
func New(config Config) (*Pipeline, error) {
	writeURL, err := url.Parse(config.WriteURL)
	if err != nil || writeURL.Scheme == "" || writeURL.Host == "" {
		return nil, fmt.Errorf("submit: WriteURL %q must be an absolute URL", config.WriteURL)
	}
	var errs []error
	if config.ConfirmationMatch == "" {
		errs = append(errs, errors.New("submit: ConfirmationMatch is required"))
	}
	if config.ErrorMatch == "" {
		errs = append(errs, errors.New("submit: ErrorMatch is required"))
	}
	if config.Fields.Session == "" || config.Fields.Target == "" {
		errs = append(errs, errors.New("submit: Fields.Session and Fields.Target are required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	client := config.Client
	if client == nil {
		client = NewWriteClient()
	}
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	noFollow.Jar = nil

	p := &Pipeline{
		config:   config,
		writeURL: writeURL,
		client:   &noFollow,
		clock:    config.Clock,
		metrics:  config.Metrics,
		logger:   config.Logger,
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p, nil
}

// Submit runs the pipeline against a ready session. The session is
// closed before the write is issued, on every path past field
// extraction. A non-nil error means the target was aborted before
// any write (missing field, challenge failure, cancellation).
func (p *Pipeline) Submit(ctx context.Context, ready session.Session, params Params) (Result, error) {
	fields := p.config.Fields

	sessionValue, ok := ready.Field(fields.Session)
	if !ok || sessionValue == "" {
		return Result{}, &MissingFieldError{Field: fields.Session}
	}
	identity := make(map[string]string, len(fields.Identity))
	for _, name := range fields.Identity {
		value, ok := ready.Field(name)
		if !ok {
			return Result{}, &MissingFieldError{Field: name}
		}
		identity[name] = value
	}

	tokenContext := ctx
	if p.config.ChallengeWait > 0 {
		var cancel context.CancelFunc
		tokenContext, cancel = context.WithTimeout(ctx, p.config.ChallengeWait)
		defer cancel()
	}
	tokenStart := p.clock.Now()
	token, err := ready.ChallengeToken(tokenContext)
	tokenAt := p.clock.Now()
	timing := Timing{Token: tokenAt.Sub(tokenStart)}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %w", ErrChallenge, err)
	}

	cookies := ready.Cookies()
	teardownStart := p.clock.Now()
	if err := ready.Close(); err != nil {
		p.logger.Warn("closing interactive session", "error", err)
	}
	timing.Teardown = p.clock.Now().Sub(teardownStart)

	form := p.buildForm(params, sessionValue, identity, token)
	result := p.write(ctx, form, cookies, params.Referer, tokenAt, timing)

	p.metrics.Submitted(result.Status.String(), result.Timing.Gap)
	p.logger.Info("submission finished",
		"target", params.Target,
		"status", result.Status.String(),
		"confirmation_id", result.ConfirmationID,
		"diagnostic", result.Diagnostic,
		"token_ms", result.Timing.Token.Milliseconds(),
		"teardown_ms", result.Timing.Teardown.Milliseconds(),
		"gap_ms", result.Timing.Gap.Milliseconds(),
		"write_ms", result.Timing.Write.Milliseconds(),
	)
	return result, nil
}

func (p *Pipeline) buildForm(params Params, sessionValue string, identity map[string]string, token string) url.Values {
	fields := p.config.Fields
	form := url.Values{}
	set := func(name, value string) {
		if name != "" {
			form.Set(name, value)
		}
	}

	set(fields.Target, params.Target)
	set(fields.Date, params.Date)
	set(fields.StartTime, strconv.Itoa(params.StartMinutes))
	set(fields.Duration, strconv.Itoa(params.DurationMinutes))
	if params.Category != "" {
		set(fields.Category, params.Category)
	}
	for name, value := range identity {
		set(name, value)
	}
	if fields.GuestPattern != "" {
		for i, guest := range params.Guests {
			form.Set(fmt.Sprintf(fields.GuestPattern, i+1), guest)
		}
	}
	if token != "" {
		set(fields.Challenge, token)
	}
	set(fields.Session, sessionValue)
	return form
}

func (p *Pipeline) write(ctx context.Context, form url.Values, cookies []*http.Cookie, referer string, tokenAt time.Time, timing Timing) Result {
	writeContext := ctx
	if p.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeContext, cancel = context.WithTimeout(ctx, p.config.WriteTimeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(writeContext, http.MethodPost, p.writeURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Status: Unexpected, Diagnostic: "building write request: " + err.Error(), Timing: timing, Err: err}
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.UserAgent != "" {
		request.Header.Set("User-Agent", p.config.UserAgent)
	}
	if referer != "" {
		request.Header.Set("Referer", referer)
	}
	request.Header.Set("Origin", p.writeURL.Scheme+"://"+p.writeURL.Host)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}

	issuedAt := p.clock.Now()
	timing.Gap = issuedAt.Sub(tokenAt)
	response, err := p.client.Do(request)
	timing.Write = p.clock.Now().Sub(issuedAt)
	if err != nil {
		diagnostic := "write request failed: " + err.Error()
		if netutil.IsTimeout(err) {
			diagnostic = fmt.Sprintf("write request timed out after %v", p.config.WriteTimeout)
		}
		return Result{Status: Unexpected, Diagnostic: diagnostic, Timing: timing, Err: err}
	}
	defer response.Body.Close()

	result := p.interpret(response)
	result.Timing = timing
	return result
}

func (p *Pipeline) interpret(response *http.Response) Result {
	unexpected := &UnexpectedStatusError{
		Method:     http.MethodPost,
		URL:        p.writeURL.String(),
		StatusCode: response.StatusCode,
	}

	location, err := response.Location()
	if response.StatusCode < 300 || response.StatusCode >= 400 || err != nil {
		unexpected.Body = netutil.Excerpt(response.Body)
		return Result{Status: Unexpected, Diagnostic: unexpected.Error(), Err: unexpected}
	}
	unexpected.Location = location.String()
	path := strings.ToLower(location.Path)

	switch {
	case strings.Contains(path, strings.ToLower(p.config.ConfirmationMatch)):
		id := ConfirmationID(location)
		if id == "" {
			return Result{Status: Success, Diagnostic: "confirmed; no confirmation id in " + location.String()}
		}
		return Result{Status: Success, ConfirmationID: id, Diagnostic: "confirmed at " + location.Path}
	case strings.Contains(path, strings.ToLower(p.config.ErrorMatch)):
		diagnostic := "write rejected: redirected to " + location.Path
		if reason := location.Query().Get("message"); reason != "" {
			diagnostic += " (" + reason + ")"
		}
		return Result{Status: Contended, Diagnostic: diagnostic}
	default:
		return Result{Status: Unexpected, Diagnostic: unexpected.Error(), Err: unexpected}
	}
}

var trailingDigits = regexp.MustCompile(`(\d+)/?$`)

// confirmationParams are checked in order before the path.
var confirmationParams = []string{"id", "bookingId", "reservationId", "confirmation"}

// ConfirmationID extracts a confirmation identifier from a redirect
// target: a known query parameter, or else the trailing digits of the
// path. Returns "" if neither is present.
func ConfirmationID(location *url.URL) string {
	query := location.Query()
	for _, name := range confirmationParams {
		if value := query.Get(name); value != "" {
			return value
		}
	}
	if match := trailingDigits.FindStringSubmatch(location.Path); match != nil {
		return match[1]
	}
	return ""
}
