// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// time.Time fields in attempt traces encode as RFC 3339 strings
	// with nanoseconds so submission gaps survive a round-trip.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// any-typed targets decode to map[string]any rather than
		// map[interface{}]interface{}, matching encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v. Unknown fields are ignored so
// older binaries can read traces written by newer ones.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. Used by `courtbook show --cbor` to dump stored traces.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
