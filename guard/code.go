// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/warden-foundation/warden/lib/secret"
)

// codeAlphabet is the character set codes are drawn from. The service
// skips visually ambiguous characters (0/O, 1/I/L, vowels), so valid
// codes never contain them.
const codeAlphabet = "23456789BCDFGHJKMNPQRTVWXY"

// codeLength is the number of characters in a generated code.
const codeLength = 5

// codeInterval is how long each code is valid.
const codeInterval = 30 * time.Second

// GenerateCode derives the second-factor code for the given shared
// secret at time now. The secret buffer holds the base64 encoding of
// the HMAC key; it is not consumed and remains valid after the call.
func GenerateCode(sharedSecret *secret.Buffer, now time.Time) (string, error) {
	if sharedSecret == nil || sharedSecret.Len() == 0 {
		return "", fmt.Errorf("guard: shared secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(sharedSecret.String())
	if err != nil {
		return "", fmt.Errorf("guard: decoding shared secret: %w", err)
	}
	defer secret.Zero(key)

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(now.Unix())/uint64(codeInterval.Seconds()))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	digest := mac.Sum(nil)

	// Dynamic truncation: the low nibble of the final byte selects a
	// 4-byte window, whose value (sign bit cleared) seeds the code.
	start := digest[len(digest)-1] & 0x0F
	value := binary.BigEndian.Uint32(digest[start:start+4]) & 0x7FFFFFFF

	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[value%uint32(len(codeAlphabet))]
		value /= uint32(len(codeAlphabet))
	}
	return string(code), nil
}
