// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package htmlform

import (
	"strings"
	"testing"
)

const formPage = `<!DOCTYPE html>
<html>
<head>
  <title>New Reservation</title>
  <script>var message = "Please wait";</script>
</head>
<body>
  <form action="/reservations/create" method="post">
    <input type="hidden" name="__RequestVerificationToken" value="tok-123">
    <input type="hidden" name="MemberId" value="4471">
    <input type="hidden" name="MemberId" value="shadowed">
    <input type="text" name="Guest1">
    <textarea name="Notes">bring balls</textarea>
    <select name="Category"><option>singles</option></select>
    <div class="g-recaptcha" data-sitekey="site-key-abc"></div>
  </form>
  <p>Court   4<br>09:00</p>
</body>
</html>`

func TestParseForm(t *testing.T) {
	document, err := Parse(strings.NewReader(formPage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if document.Title != "New Reservation" {
		t.Errorf("Title = %q", document.Title)
	}
	if value, ok := document.Input("__RequestVerificationToken"); !ok || value != "tok-123" {
		t.Errorf("session field = %q, %v", value, ok)
	}
	if value, _ := document.Input("MemberId"); value != "4471" {
		t.Errorf("MemberId = %q, want first occurrence", value)
	}
	if value, ok := document.Input("Guest1"); !ok || value != "" {
		t.Errorf("Guest1 = %q, %v; want present and empty", value, ok)
	}
	if value, _ := document.Input("Notes"); value != "bring balls" {
		t.Errorf("Notes = %q", value)
	}
	if _, ok := document.Input("Category"); !ok {
		t.Error("select Category not recorded")
	}
	if document.SiteKey != "site-key-abc" {
		t.Errorf("SiteKey = %q", document.SiteKey)
	}
	if !strings.Contains(document.Text, "court 4 09:00") {
		t.Errorf("Text = %q, want collapsed lowercase text", document.Text)
	}
}

func TestScriptTextIgnored(t *testing.T) {
	document, err := Parse(strings.NewReader(formPage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, found := document.ContainsAny([]string{"please wait"}); found {
		t.Error("script contents leaked into page text")
	}
}

func TestContainsAny(t *testing.T) {
	document, err := Parse(strings.NewReader(
		`<html><title>Error</title><body><h1>This court is held by ANOTHER MEMBER.</h1></body></html>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name    string
		phrases []string
		want    string
		found   bool
	}{
		{"case insensitive", []string{"another member"}, "another member", true},
		{"title match", []string{"error"}, "error", true},
		{"first match wins", []string{"missing", "Another Member", "court"}, "Another Member", true},
		{"blank phrases skipped", []string{"", "  "}, "", false},
		{"no match", []string{"please wait"}, "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, found := document.ContainsAny(test.phrases)
			if got != test.want || found != test.found {
				t.Errorf("ContainsAny(%q) = %q, %v; want %q, %v", test.phrases, got, found, test.want, test.found)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	document, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if document.Text != "" || len(document.Inputs) != 0 {
		t.Errorf("empty document = %+v", document)
	}
}
