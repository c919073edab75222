// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/bureau-foundation/courtbook/lib/credential"
)

func TestSealedBundleOpensWithKeygenIdentity(t *testing.T) {
	directory := t.TempDir()
	identityPath := filepath.Join(directory, "identity.key")
	bundlePath := filepath.Join(directory, "bundle.age")
	passwordPath := filepath.Join(directory, "password")
	if err := os.WriteFile(passwordPath, []byte("correct horse\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Root().Execute(context.Background(), []string{"credentials", "keygen", "--output", identityPath}); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	info, err := os.Stat(identityPath)
	if err != nil {
		t.Fatalf("identity not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("identity mode = %o, want 600", info.Mode().Perm())
	}

	identity, err := os.ReadFile(identityPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(identity), "AGE-SECRET-KEY-1") {
		t.Fatalf("identity file = %q, want an age secret key", identity)
	}
	recipient := publicKeyFor(t, identityPath)

	err = Root().Execute(context.Background(), []string{
		"credentials", "seal",
		"--recipient", recipient,
		"--username", "ada@example.org",
		"--member-id", "M-1815",
		"--password-file", passwordPath,
		"--output", bundlePath,
	})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	bundle, err := credential.LoadFile(bundlePath, identityPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	defer bundle.Close()
	if bundle.Username != "ada@example.org" || bundle.MemberID != "M-1815" {
		t.Errorf("bundle = %q / %q", bundle.Username, bundle.MemberID)
	}
	if bundle.Password.String() != "correct horse" {
		t.Errorf("password = %q, want trailing newline stripped", bundle.Password.String())
	}
}

func TestSealRejectsBadRecipient(t *testing.T) {
	directory := t.TempDir()
	err := Root().Execute(context.Background(), []string{
		"credentials", "seal",
		"--recipient", "not-a-key",
		"--username", "ada",
		"--output", filepath.Join(directory, "bundle.age"),
	})
	if err == nil {
		t.Fatal("seal accepted an invalid recipient")
	}
	if _, statErr := os.Stat(filepath.Join(directory, "bundle.age")); statErr == nil {
		t.Error("bundle written despite invalid recipient")
	}
}

func TestKeygenRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	if err := os.WriteFile(path, []byte("existing"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Root().Execute(context.Background(), []string{"credentials", "keygen", "-o", path}); err == nil {
		t.Fatal("keygen overwrote an existing identity")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "existing" {
		t.Errorf("identity file changed to %q", data)
	}
}

// publicKeyFor derives the recipient of the identity keygen wrote.
func publicKeyFor(t *testing.T, identityPath string) string {
	t.Helper()
	data, err := os.ReadFile(identityPath)
	if err != nil {
		t.Fatal(err)
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing identity: %v", err)
	}
	return identity.Recipient().String()
}
