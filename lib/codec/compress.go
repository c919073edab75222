// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// MaxDecompressedSize bounds Decompress output. Snapshots are bounded
// page reads, so anything larger is corruption.
const MaxDecompressedSize = 16 << 20

// zstdEncoder and zstdDecoder are shared; both are safe for
// concurrent use when driven through EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
	)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns data as a zstd frame. Empty input yields nil.
func Compress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return zstdEncoder.EncodeAll(data, nil)
}

// Decompress reverses Compress. Nil input yields nil.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return data, nil
}
