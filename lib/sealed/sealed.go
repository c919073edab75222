// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/courtbook/lib/secret"
)

// Keypair holds an age x25519 keypair. The private key lives in a
// secret.Buffer; the public key is safe to publish.
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... identity.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient string.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	privateKey, err := secret.NewFromString(identity.String())
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to one or more age recipients and returns
// ASCII-armored ciphertext, readable by `age --decrypt`. At least one
// recipient is required.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return "", fmt.Errorf("sealed: recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var armored strings.Builder
	armorWriter := armor.NewWriter(&armored)
	encryptor, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return "", fmt.Errorf("sealed: %w", err)
	}
	if _, err := encryptor.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: encrypting: %w", err)
	}
	// The encryptor flushes the final chunk; the armor writer then
	// writes the footer.
	if err := encryptor.Close(); err != nil {
		return "", fmt.Errorf("sealed: encrypting: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("sealed: armoring: %w", err)
	}
	return armored.String(), nil
}

// Decrypt opens armored ciphertext with privateKey. Surrounding
// whitespace is ignored. The key is borrowed; the caller closes the
// returned buffer.
func Decrypt(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	armored := armor.NewReader(strings.NewReader(strings.TrimSpace(ciphertext)))
	decryptor, err := age.Decrypt(armored, identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(decryptor)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: bundle is empty")
	}
	return secret.NewFromBytes(plaintext)
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("sealed: invalid age public key: %w", err)
	}
	return nil
}
