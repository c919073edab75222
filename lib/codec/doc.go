// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides courtbook's standard binary encodings.
//
// courtbook uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: request files, challenge broker
//     responses, and CLI --json output.
//   - CBOR for data at rest: attempt traces stored in the booking
//     database.
//
// The CBOR encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes, which
// keeps stored traces comparable across runs.
//
//	data, err := codec.Marshal(trace)
//	err = codec.Unmarshal(data, &trace)
//
// Page snapshots kept alongside a trace are zstd-compressed with
// Compress and restored with Decompress. HTML compresses well and
// a failing run can store several snapshots per target.
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever serialized as CBOR. A
// `json` tag marks a type that may be serialized as both; fxamacker
// reads `json` tags when `cbor` tags are absent. Never use both on
// the same field.
package codec
