// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for courtbook
// credential bundles. It wraps filippo.io/age for the three operations
// the CLI and the engine need: generate an x25519 keypair, encrypt a
// bundle to one or more recipients, and decrypt it with the operator's
// identity.
//
// Ciphertext is ASCII-armored ("-----BEGIN AGE ENCRYPTED FILE-----"),
// so a bundle is plain text and the stock age CLI can open it. Private
// keys and decrypted plaintext are returned as [secret.Buffer] values.
package sealed
