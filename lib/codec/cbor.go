// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Warden's standard serialization: CBOR with
// Core Deterministic Encoding. Gateway frames, workflow payload bodies,
// and persisted sentry records all go through this package so that the
// encoding configuration lives in exactly one place.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Warden never uses non-string map keys. When the decoder's
		// target is any, it must pick a concrete Go map type; the CBOR
		// default of map[interface{}]interface{} is incompatible with
		// most Go code that expects map[string]any. Struct field
		// decoding is unaffected.
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

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value. It implements cbor.Marshaler
// and cbor.Unmarshaler so it can be used to delay decoding or to embed
// pre-encoded output.
type RawMessage = cbor.RawMessage
