// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for the sensitive values
// an acquisition run handles: the actor's authority password, the
// decrypted credential bundle, and the age identity that unlocks it.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped.
//
// Access via [Buffer.Bytes] (slice into the mmap region) or
// [Buffer.String] (heap copy for API boundaries such as form
// encoding). After Close, any access panics. Close is idempotent.
package secret
