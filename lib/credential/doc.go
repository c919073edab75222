// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential manages the actor credentials an acquisition run
// presents to the booking authority.
//
// A credential bundle is a JSON object (username, password, optional
// member id) encrypted with age to the operator's public key and
// written to disk as armored text. The engine never sees plaintext on
// disk: [LoadFile] decrypts with the operator identity and moves the
// password into a [secret.Buffer] before returning.
package credential
