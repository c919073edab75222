// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })

	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want it to contain abc1234-dirty", got)
	}
	if got := Full(); !strings.Contains(got, "Go: ") {
		t.Errorf("Full() = %q, want Go version line", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "courtbook/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
