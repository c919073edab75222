// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReadPageBounded(t *testing.T) {
	data, err := ReadPage(strings.NewReader("<html></html>"))
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("ReadPage = %q", data)
	}
}

func TestDecodeResponse(t *testing.T) {
	var out struct {
		Token string `json:"token"`
	}
	if err := DecodeResponse(strings.NewReader(`{"token":"abc"}`), &out); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if out.Token != "abc" {
		t.Errorf("Token = %q", out.Token)
	}
	if err := DecodeResponse(strings.NewReader(`not json`), &out); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("x", MaxExcerpt*2)
	if got := Excerpt(strings.NewReader(long)); len(got) != MaxExcerpt {
		t.Errorf("Excerpt length = %d, want %d", len(got), MaxExcerpt)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), true},
		{"net timeout", fmt.Errorf("dial: %w", timeoutError{}), true},
		{"cancelled", context.Canceled, false},
		{"other", errors.New("connection refused"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTimeout(test.err); got != test.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
