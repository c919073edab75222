// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the courtbook
// binary: a tree of [Command] values with pflag flag sets, typo
// suggestions for commands and flags, categorized [ToolError] values,
// the command logger, and lipgloss renderers for bookings and run
// outcomes.
package cli
