// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bureau-foundation/courtbook/lib/sealed"
	"github.com/bureau-foundation/courtbook/lib/secret"
)

// Bundle is a decrypted set of actor credentials. The password stays in
// mmap-backed memory. Call Close when the run is finished.
type Bundle struct {
	// Username is the login name at the authority (usually an email).
	Username string

	// Password is the authority password.
	Password *secret.Buffer

	// MemberID is the authority's identifier for the actor, when the
	// booking form does not expose it as a hidden field.
	MemberID string
}

// Close releases the password buffer. Idempotent.
func (b *Bundle) Close() error {
	if b == nil || b.Password == nil {
		return nil
	}
	return b.Password.Close()
}

// Plain is the JSON shape of a bundle before sealing.
type Plain struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MemberID string `json:"member_id,omitempty"`
}

// Validate reports missing required fields.
func (p Plain) Validate() error {
	if p.Username == "" {
		return fmt.Errorf("credential: username is required")
	}
	if p.Password == "" {
		return fmt.Errorf("credential: password is required")
	}
	return nil
}

// Seal encrypts plain to the given age recipients and returns the
// armored ciphertext to write to a bundle file.
func Seal(plain Plain, recipients []string) (string, error) {
	if err := plain.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("credential: encoding bundle: %w", err)
	}
	defer secret.Zero(data)

	ciphertext, err := sealed.Encrypt(data, recipients)
	if err != nil {
		return "", fmt.Errorf("credential: sealing bundle: %w", err)
	}
	return ciphertext, nil
}

// Open decrypts a sealed bundle with identity. The identity is
// borrowed, not closed.
func Open(ciphertext string, identity *secret.Buffer) (*Bundle, error) {
	plaintext, err := sealed.Decrypt(ciphertext, identity)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}
	defer plaintext.Close()

	var plain Plain
	if err := json.Unmarshal(plaintext.Bytes(), &plain); err != nil {
		return nil, fmt.Errorf("credential: decoding bundle: %w", err)
	}
	if err := plain.Validate(); err != nil {
		return nil, err
	}

	password, err := secret.NewFromString(plain.Password)
	if err != nil {
		return nil, fmt.Errorf("credential: protecting password: %w", err)
	}
	return &Bundle{
		Username: plain.Username,
		Password: password,
		MemberID: plain.MemberID,
	}, nil
}

// LoadFile reads a sealed bundle from bundlePath and decrypts it with
// the age identity stored at identityPath ("-" reads the identity from
// stdin).
func LoadFile(bundlePath, identityPath string) (*Bundle, error) {
	ciphertext, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("credential: reading bundle: %w", err)
	}

	identity, err := ReadIdentity(identityPath)
	if err != nil {
		return nil, err
	}
	defer identity.Close()

	return Open(string(ciphertext), identity)
}
