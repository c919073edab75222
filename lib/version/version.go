// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// courtbook binary.
//
// Values are injected at build time via -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/courtbook/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain in the binary's build info is used instead.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns the one-line string printed by `courtbook version`.
func Info() string {
	commit, dirty := Commit(), ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, dirty, BuildTime)
}

// Full adds the Go toolchain version and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is the User-Agent header value sent to the authority when
// a request does not override it.
func UserAgent() string {
	return "courtbook/" + Version
}

// Commit returns the injected git SHA, falling back to the build
// info's vcs.revision (shortened to 7 characters).
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitCommit
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) > 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}
	return GitCommit
}
