// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close.
//
// A Buffer must not be copied after creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a new zero-filled secret buffer of the given size.
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewFromBytes creates a secret buffer from existing data. The source
// bytes are copied into the protected region and then zeroed in place.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, source)
	Zero(source)

	return buffer, nil
}

// NewFromString creates a secret buffer from a string. The string
// itself stays on the heap until collected; use this only where the
// value already arrived as a string (flags, decoded JSON).
func NewFromString(value string) (*Buffer, error) {
	return NewFromBytes([]byte(value))
}

// Bytes returns the secret data. The returned slice points directly
// into the mmap region and must not outlive the Buffer. Panics if the
// buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return b.data[:b.length]
}

// String returns the secret data as a heap-allocated string. Use only
// at API boundaries that require a string. Panics if the buffer has
// been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return string(b.data[:b.length])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Close zeros the buffer contents, unlocks and unmaps the memory.
// Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}

	b.data = nil
	return firstError
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
