// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlform extracts the parts of an HTML page the acquisition
// engine inspects: named input values, the page's visible text, and
// an embedded challenge widget's site key.
//
// Parsing is a single streaming pass over golang.org/x/net/html's
// tokenizer; no DOM is built. Malformed markup is tolerated the way a
// browser tolerates it.
package htmlform

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the extracted view of one page.
type Document struct {
	Title string

	// Text is the page's visible text, lowercased, with runs of
	// whitespace collapsed to a single space. Script and style
	// contents are excluded.
	Text string

	// Inputs maps input, select and textarea names to their value.
	// The first occurrence of a name wins.
	Inputs map[string]string

	// SiteKey is the first data-sitekey attribute on the page, if any.
	SiteKey string
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	document := &Document{Inputs: make(map[string]string)}
	tokenizer := html.NewTokenizer(r)

	var (
		text     strings.Builder
		skip     int
		inTitle  bool
		textarea string
	)

	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				document.Text = collapse(text.String())
				return document, nil
			}
			return nil, fmt.Errorf("htmlform: %w", err)

		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if tokenType == html.StartTagToken {
					skip++
				}
			case atom.Title:
				inTitle = tokenType == html.StartTagToken
			case atom.Input:
				document.addInput(attribute(token, "name"), attribute(token, "value"))
			case atom.Textarea:
				textarea = attribute(token, "name")
				document.addInput(textarea, "")
			case atom.Select:
				document.addInput(attribute(token, "name"), "")
			case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.Td:
				text.WriteByte(' ')
			}
			if document.SiteKey == "" {
				document.SiteKey = attribute(token, "data-sitekey")
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = false
			case atom.Textarea:
				textarea = ""
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			data := string(tokenizer.Text())
			if inTitle {
				document.Title += strings.TrimSpace(data)
				continue
			}
			if textarea != "" && document.Inputs[textarea] == "" {
				document.Inputs[textarea] = data
			}
			text.WriteString(data)
			text.WriteByte(' ')
		}
	}
}

// Input returns the value of the named input and whether it exists.
func (d *Document) Input(name string) (string, bool) {
	value, ok := d.Inputs[name]
	return value, ok
}

// ContainsAny returns the first phrase (compared lowercased) that
// appears in the page's visible text or title.
func (d *Document) ContainsAny(phrases []string) (string, bool) {
	title := strings.ToLower(d.Title)
	for _, phrase := range phrases {
		needle := strings.ToLower(strings.TrimSpace(phrase))
		if needle == "" {
			continue
		}
		if strings.Contains(d.Text, needle) || strings.Contains(title, needle) {
			return phrase, true
		}
	}
	return "", false
}

func (d *Document) addInput(name, value string) {
	if name == "" {
		return
	}
	if _, exists := d.Inputs[name]; !exists {
		d.Inputs[name] = value
	}
}

func attribute(token html.Token, key string) string {
	for _, attr := range token.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
