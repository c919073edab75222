// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/courtbook/lib/secret"
)

const identityPrefix = "AGE-SECRET-KEY-1"

// ReadIdentity reads an age identity from path, or from stdin when
// path is "-". Blank lines and "#" comments are skipped, so files
// written by age-keygen load unchanged; the first remaining line must
// be an AGE-SECRET-KEY-1 identity.
func ReadIdentity(path string) (*secret.Buffer, error) {
	var data []byte
	if path == "-" {
		contents, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("credential: reading identity from stdin: %w", err)
		}
		data = contents
	} else {
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("credential: reading identity: %w", err)
		}
		data = contents
	}
	defer secret.Zero(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !bytes.HasPrefix(line, []byte(identityPrefix)) {
			return nil, fmt.Errorf("credential: %s does not hold an age identity", path)
		}
		// NewFromBytes zeroes line, which aliases data.
		return secret.NewFromBytes(line)
	}
	return nil, fmt.Errorf("credential: identity file %s is empty", path)
}
