// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestionDistance is the largest edit distance still offered as a
// "did you mean" suggestion.
const suggestionDistance = 3

// suggestCommand returns the closest subcommand name to unknown, or "".
func suggestCommand(unknown string, commands []*Command) string {
	bestName := ""
	bestDistance := suggestionDistance + 1
	for _, command := range commands {
		if distance := levenshtein(unknown, command.Name); distance < bestDistance {
			bestDistance = distance
			bestName = command.Name
		}
	}
	return bestName
}

// suggestFlag finds the first flag in args that flagSet does not
// define and returns the closest defined flag, with its prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") || arg == "--" {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if index := strings.IndexByte(name, '='); index >= 0 {
			name = name[:index]
		}
		if flagSet.Lookup(name) != nil || (len(name) == 1 && flagSet.ShorthandLookup(name) != nil) {
			continue
		}

		bestName := ""
		bestDistance := suggestionDistance + 1
		flagSet.VisitAll(func(f *pflag.Flag) {
			if distance := levenshtein(name, f.Name); distance < bestDistance {
				bestDistance = distance
				bestName = f.Name
			}
		})
		if bestName == "" {
			return ""
		}
		return "--" + bestName
	}
	return ""
}

// levenshtein is the single-row edit distance between a and b.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}
	for j := 1; j <= len(b); j++ {
		current := make([]int, len(a)+1)
		current[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous = current
	}
	return previous[len(a)]
}
