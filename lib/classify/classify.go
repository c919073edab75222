// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package classify maps a loaded page to one of a fixed set of
// outcome categories.
//
// Classification is layered: the page address decides which family
// of checks applies (error page, entry form, anything else), the
// page wording refines it, and the presence of the session-bound
// hidden field marks the form ready. It is a pure function of its
// input: it never performs I/O, and classifying the same View twice
// yields the same result.
//
// Content that cannot be read never causes an error. It classifies
// as Unknown, which is retryable.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bureau-foundation/courtbook/lib/htmlform"
)

// View is the already-fetched state of a page.
type View struct {
	// URL is the final address after redirects.
	URL *url.URL

	StatusCode int
	Body       []byte

	// ReadErr is set when the body could not be read in full.
	ReadErr error
}

// Rules describes the authority's pages.
type Rules struct {
	// FormMatch and ErrorMatch are path substrings (case-insensitive)
	// identifying the entry form and the error page.
	FormMatch  string
	ErrorMatch string

	// SessionField is the hidden input that marks the form ready.
	SessionField string

	// Wording lists, matched case-insensitively against visible text.
	Wait       []string
	Contention []string
	Error      []string
}

// Classification is a Result plus a short human-readable reason.
type Classification struct {
	Result Result
	Reason string
}

func (c Classification) String() string {
	return c.Result.String() + ": " + c.Reason
}

// Classifier applies Rules to Views. Safe for concurrent use.
type Classifier struct {
	rules Rules
}

// New validates rules and returns a Classifier.
func New(rules Rules) (*Classifier, error) {
	var errs []error
	if rules.FormMatch == "" {
		errs = append(errs, errors.New("classify: FormMatch is required"))
	}
	if rules.ErrorMatch == "" {
		errs = append(errs, errors.New("classify: ErrorMatch is required"))
	}
	if rules.SessionField == "" {
		errs = append(errs, errors.New("classify: SessionField is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	rules.FormMatch = strings.ToLower(rules.FormMatch)
	rules.ErrorMatch = strings.ToLower(rules.ErrorMatch)
	return &Classifier{rules: rules}, nil
}

// Classify returns the outcome category of view.
func (c *Classifier) Classify(view View) Classification {
	if view.URL == nil {
		return Classification{Unknown, "no address"}
	}
	path := strings.ToLower(view.URL.Path)

	switch {
	case strings.Contains(path, c.rules.ErrorMatch):
		return c.classifyErrorPage(view)
	case strings.Contains(path, c.rules.FormMatch):
		return c.classifyFormPage(view)
	default:
		return c.classifyOther(view)
	}
}

func (c *Classifier) classifyErrorPage(view View) Classification {
	document, reason := readable(view)
	if document == nil {
		return Classification{Unknown, "error address, " + reason}
	}
	if phrase, found := document.ContainsAny(c.rules.Contention); found {
		return Classification{Contended, fmt.Sprintf("error page reports contention (%q)", phrase)}
	}
	if phrase, found := document.ContainsAny(c.rules.Wait); found {
		return Classification{TooEarly, fmt.Sprintf("error page asks to wait (%q)", phrase)}
	}
	return Classification{TransientError, "error page without wait or contention wording"}
}

func (c *Classifier) classifyFormPage(view View) Classification {
	document, reason := readable(view)
	if document == nil {
		return Classification{Unknown, "form address, " + reason}
	}
	if phrase, found := document.ContainsAny(c.rules.Contention); found {
		return Classification{Contended, fmt.Sprintf("form reports contention (%q)", phrase)}
	}
	if view.StatusCode >= 500 {
		return Classification{TransientError, fmt.Sprintf("form address returned HTTP %d", view.StatusCode)}
	}
	if phrase, found := document.ContainsAny(c.rules.Error); found {
		return Classification{TransientError, fmt.Sprintf("form reports an error (%q)", phrase)}
	}
	// The write needs the field's value, so an empty one is not ready.
	value, present := document.Input(c.rules.SessionField)
	if present && value != "" {
		return Classification{Ready, "form loaded with " + c.rules.SessionField}
	}
	if phrase, found := document.ContainsAny(c.rules.Wait); found {
		return Classification{TooEarly, fmt.Sprintf("form asks to wait (%q)", phrase)}
	}
	if present {
		return Classification{SlowLoading, c.rules.SessionField + " is empty"}
	}
	return Classification{SlowLoading, c.rules.SessionField + " not present"}
}

func (c *Classifier) classifyOther(view View) Classification {
	if view.ReadErr != nil {
		return Classification{Unknown, "content unreadable: " + view.ReadErr.Error()}
	}
	if view.StatusCode >= 500 {
		return Classification{TransientError, fmt.Sprintf("HTTP %d", view.StatusCode)}
	}
	document, reason := readable(view)
	if document == nil {
		return Classification{Unknown, reason}
	}
	if phrase, found := document.ContainsAny(c.rules.Error); found {
		return Classification{TransientError, fmt.Sprintf("page reports an error (%q)", phrase)}
	}
	return Classification{Unknown, "unrecognized page " + view.URL.Path}
}

// readable parses the body, or returns nil and the reason it could not.
func readable(view View) (*htmlform.Document, string) {
	if view.ReadErr != nil {
		return nil, "content unreadable: " + view.ReadErr.Error()
	}
	document, err := htmlform.Parse(bytes.NewReader(view.Body))
	if err != nil {
		return nil, "content unparseable: " + err.Error()
	}
	return document, ""
}
