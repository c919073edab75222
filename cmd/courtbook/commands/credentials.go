// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/courtbook/cmd/courtbook/cli"
	"github.com/bureau-foundation/courtbook/lib/credential"
	"github.com/bureau-foundation/courtbook/lib/sealed"
	"github.com/bureau-foundation/courtbook/lib/secret"
)

func credentialsCommand() *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Summary: "Create and seal account credentials",
		Description: `Manage the sealed credential bundle.

Account credentials are stored encrypted to an age identity. keygen
creates the identity; seal encrypts a username and password to one or
more public keys.`,
		Subcommands: []*cli.Command{
			keygenCommand(),
			sealCommand(),
		},
	}
}

func keygenCommand() *cli.Command {
	var output string
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity for the credential bundle",
		Description: `Generate an age x25519 keypair. The private key is written to
--output with mode 0600 and the public key is printed to stdout.`,
		Usage: "courtbook credentials keygen --output PATH",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVarP(&output, "output", "o", "", "path for the private key")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if output == "" {
				return cli.Validation("--output is required")
			}
			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return cli.Internal("%w", err)
			}
			defer keypair.Close()

			file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
			if err != nil {
				return cli.Validation("creating %s: %w", output, err)
			}
			if _, err := fmt.Fprintf(file, "%s\n", keypair.PrivateKey.String()); err != nil {
				file.Close()
				return cli.Internal("writing %s: %w", output, err)
			}
			if err := file.Close(); err != nil {
				return cli.Internal("writing %s: %w", output, err)
			}
			logger.Info("identity written", "path", output)
			fmt.Println(keypair.PublicKey)
			return nil
		},
	}
}

func sealCommand() *cli.Command {
	var (
		recipients   []string
		username     string
		memberID     string
		passwordFile string
		output       string
	)
	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt account credentials to a bundle file",
		Description: `Encrypt a username and password to the given age recipients.

The password is prompted for on the terminal, or read from
--password-file. When stdin is not a terminal and no file is given,
the first line of stdin is used.`,
		Usage: "courtbook credentials seal --recipient age1... --username NAME --output PATH",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.StringSliceVarP(&recipients, "recipient", "r", nil, "age public key (repeatable)")
			flagSet.StringVar(&username, "username", "", "account username")
			flagSet.StringVar(&memberID, "member-id", "", "member identifier submitted with bookings")
			flagSet.StringVar(&passwordFile, "password-file", "", "read the password from a file")
			flagSet.StringVarP(&output, "output", "o", "", "bundle path")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			switch {
			case len(recipients) == 0:
				return cli.Validation("at least one --recipient is required")
			case username == "":
				return cli.Validation("--username is required")
			case output == "":
				return cli.Validation("--output is required")
			}
			for _, recipient := range recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return cli.Validation("recipient %q: %w", recipient, err)
				}
			}

			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}
			defer password.Close()

			ciphertext, err := credential.Seal(credential.Plain{
				Username: username,
				Password: password.String(),
				MemberID: memberID,
			}, recipients)
			if err != nil {
				return cli.Validation("%w", err)
			}
			if err := os.WriteFile(output, []byte(ciphertext), 0o600); err != nil {
				return cli.Internal("writing %s: %w", output, err)
			}
			logger.Info("credentials sealed", "path", output, "recipients", len(recipients))
			return nil
		},
	}
}

// readPassword reads the password from path, the terminal, or the
// first line of a piped stdin.
func readPassword(path string) (*secret.Buffer, error) {
	var data []byte
	switch {
	case path != "":
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, cli.Validation("reading %s: %w", path, err)
		}
		data = contents
	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Fprint(os.Stderr, "Password: ")
		typed, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, cli.Internal("reading password: %w", err)
		}
		data = typed
	default:
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return nil, cli.Validation("reading password from stdin: %w", err)
		}
		data = []byte(line)
	}

	defer secret.Zero(data)
	trimmed := bytes.TrimRight(data, "\r\n")
	if len(trimmed) == 0 {
		return nil, cli.Validation("password is empty")
	}
	buffer, err := secret.NewFromBytes(trimmed)
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	return buffer, nil
}
