// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"strings"
	"testing"
)

func TestGenerateKeypair(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	if !strings.HasPrefix(keypair.PrivateKey.String(), "AGE-SECRET-KEY-1") {
		t.Errorf("PrivateKey missing AGE-SECRET-KEY-1 prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey: %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	ciphertext, err := Encrypt([]byte(`{"username":"alice"}`), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if !strings.HasPrefix(ciphertext, "-----BEGIN AGE ENCRYPTED FILE-----\n") {
		t.Errorf("ciphertext is not armored: %q", ciphertext)
	}

	plaintext, err := Decrypt("\n"+ciphertext+"\n", keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	defer plaintext.Close()

	if plaintext.String() != `{"username":"alice"}` {
		t.Errorf("Decrypt = %q", plaintext.String())
	}
}

func TestDecryptWrongKey(t *testing.T) {
	sender, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer sender.Close()
	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer other.Close()

	ciphertext, err := Encrypt([]byte("secret"), []string{sender.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(ciphertext, other.PrivateKey); err == nil {
		t.Fatal("Decrypt with the wrong identity succeeded")
	}
}

func TestEncryptRequiresRecipient(t *testing.T) {
	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Fatal("expected error with no recipients")
	}
	if _, err := Encrypt([]byte("x"), []string{"not-a-key"}); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}
