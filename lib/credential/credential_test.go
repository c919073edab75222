// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/courtbook/lib/sealed"
)

func TestSealAndLoadFile(t *testing.T) {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	ciphertext, err := Seal(Plain{
		Username: "alice@example.com",
		Password: "hunter2",
		MemberID: "M-1042",
	}, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	directory := t.TempDir()
	bundlePath := filepath.Join(directory, "alice.age")
	identityPath := filepath.Join(directory, "identity")
	if err := os.WriteFile(bundlePath, []byte(ciphertext), 0600); err != nil {
		t.Fatalf("writing bundle: %v", err)
	}
	if err := os.WriteFile(identityPath, []byte(keypair.PrivateKey.String()+"\n"), 0600); err != nil {
		t.Fatalf("writing identity: %v", err)
	}

	bundle, err := LoadFile(bundlePath, identityPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	defer bundle.Close()

	if bundle.Username != "alice@example.com" {
		t.Errorf("Username = %q", bundle.Username)
	}
	if bundle.Password.String() != "hunter2" {
		t.Errorf("Password mismatch")
	}
	if bundle.MemberID != "M-1042" {
		t.Errorf("MemberID = %q", bundle.MemberID)
	}
}

func TestSealRejectsIncompleteBundle(t *testing.T) {
	if _, err := Seal(Plain{Username: "alice"}, []string{"age1xyz"}); err == nil {
		t.Fatal("expected error for missing password")
	}
	if _, err := Seal(Plain{Password: "x"}, []string{"age1xyz"}); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestBundleCloseNil(t *testing.T) {
	var bundle *Bundle
	if err := bundle.Close(); err != nil {
		t.Fatalf("Close on nil bundle: %v", err)
	}
}

func TestReadIdentity(t *testing.T) {
	directory := t.TempDir()
	write := func(t *testing.T, name, contents string) string {
		t.Helper()
		path := filepath.Join(directory, name)
		if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
		return path
	}

	t.Run("age-keygen output", func(t *testing.T) {
		path := write(t, "keygen", "# created: 2026-03-01T09:00:00Z\n# public key: age1abc\n  AGE-SECRET-KEY-1XYZ  \n")
		buffer, err := ReadIdentity(path)
		if err != nil {
			t.Fatalf("ReadIdentity: %v", err)
		}
		defer buffer.Close()
		if buffer.String() != "AGE-SECRET-KEY-1XYZ" {
			t.Errorf("ReadIdentity = %q", buffer.String())
		}
	})

	t.Run("comments only", func(t *testing.T) {
		path := write(t, "blank", "# nothing here\n\n\t\n")
		if _, err := ReadIdentity(path); err == nil {
			t.Fatal("expected error for a file without an identity")
		}
	})

	t.Run("not an identity", func(t *testing.T) {
		path := write(t, "public", "age1qqqqqqqqqqqqqqqqqqqqqqq\n")
		if _, err := ReadIdentity(path); err == nil {
			t.Fatal("expected error for a public key")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadIdentity(filepath.Join(directory, "absent")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
