// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a CLI command or subcommand.
type Command struct {
	// Name is the command name as typed (e.g. "schedule").
	Name string

	// Summary is the one-line description in the parent's listing.
	Summary string

	// Description is shown in the command's own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags returns a fresh flag set. Called lazily; nil means the
	// command takes no flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run executes the command with the positional args left after
	// flag parsing. The logger is already scoped with the command
	// path.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// Logger overrides the default command logger. Set on the root;
	// subcommands inherit it.
	Logger *slog.Logger

	// Output receives help text. Defaults to stderr.
	Output io.Writer

	parent *Command
}

// Example is a usage example shown in help output.
type Example struct {
	Description string
	Command     string
}

// Execute parses args and dispatches to the matching subcommand or
// Run function.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.output())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name := args[0]
		for _, sub := range c.Subcommands {
			if sub.Name == name {
				sub.parent = c
				return sub.Execute(ctx, args[1:])
			}
		}

		if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
			return Validation("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
				name, suggestion, c.fullName())
		}
		return Validation("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
	}

	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(c.output())
		if len(args) == 0 {
			return Validation("subcommand required")
		}
		return Validation("subcommand required (got flag %q)", args[0])
	}

	if c.Flags != nil {
		flagSet := c.Flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			message := err.Error()
			if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand") {
				if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
					return Validation("%s (did you mean %s?)\n\nRun '%s --help' for usage.",
						message, suggestion, c.fullName())
				}
			}
			return Validation("%s\n\nRun '%s --help' for usage.", message, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run != nil {
		logger := c.logger().With("command", c.fullName())
		return c.Run(ctx, args, logger)
	}

	c.PrintHelp(c.output())
	return fmt.Errorf("no action defined for %q", c.fullName())
}

// PrintHelp writes structured help output to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		if usage := c.Flags().FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName returns the command path, e.g. "courtbook credentials seal".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func (c *Command) logger() *slog.Logger {
	for command := c; command != nil; command = command.parent {
		if command.Logger != nil {
			return command.Logger
		}
	}
	return NewCommandLogger()
}

func (c *Command) output() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.Output != nil {
			return command.Output
		}
	}
	return os.Stderr
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
