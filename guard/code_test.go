// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/warden-foundation/warden/lib/secret"
)

func secretFromKey(t *testing.T, key []byte) *secret.Buffer {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString(key)
	buffer, err := secret.NewFromBytes([]byte(encoded))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestGenerateCodeShape(t *testing.T) {
	sharedSecret := secretFromKey(t, []byte("0123456789abcdefghij"))

	code, err := GenerateCode(sharedSecret, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q, outside the alphabet", code, r)
		}
	}
}

func TestGenerateCodeStableWithinInterval(t *testing.T) {
	sharedSecret := secretFromKey(t, []byte("0123456789abcdefghij"))

	base := time.Unix(1700000010, 0)
	first, err := GenerateCode(sharedSecret, base)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	// Same 30-second window.
	second, err := GenerateCode(sharedSecret, base.Add(19*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if first != second {
		t.Fatalf("codes differ within one interval: %q vs %q", first, second)
	}
	// Next window almost certainly produces a different code; assert
	// determinism rather than inequality to avoid a flaky collision.
	third, err := GenerateCode(sharedSecret, base.Add(19*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if second != third {
		t.Fatalf("GenerateCode is not deterministic: %q vs %q", second, third)
	}
}

func TestGenerateCodeRejectsBadSecret(t *testing.T) {
	if _, err := GenerateCode(nil, time.Now()); err == nil {
		t.Fatal("nil secret accepted")
	}

	notBase64, err := secret.NewFromBytes([]byte("!!! not base64 !!!"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	defer notBase64.Close()
	if _, err := GenerateCode(notBase64, time.Now()); err == nil {
		t.Fatal("malformed secret accepted")
	}
}

func TestSecretProviderGeneratesLocally(t *testing.T) {
	sharedSecret := secretFromKey(t, []byte("0123456789abcdefghij"))
	provider := &SecretProvider{Secret: sharedSecret}

	code, err := provider.RequestCode(context.Background(), Challenge{Kind: ChallengeTwoFactor, Username: "alice"})
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
	}
}

func TestSecretProviderFallsBackForEmail(t *testing.T) {
	sharedSecret := secretFromKey(t, []byte("0123456789abcdefghij"))
	provider := &SecretProvider{Secret: sharedSecret, Fallback: Static("R2D4X")}

	code, err := provider.RequestCode(context.Background(), Challenge{Kind: ChallengeEmail, Username: "alice"})
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if code != "R2D4X" {
		t.Fatalf("email challenge answered with %q, want fallback code", code)
	}
}

func TestSecretProviderWithoutAnySource(t *testing.T) {
	provider := &SecretProvider{}
	if _, err := provider.RequestCode(context.Background(), Challenge{Kind: ChallengeTwoFactor}); err == nil {
		t.Fatal("provider with no secret and no fallback returned a code")
	}
}

func TestOneShotSupplyBeforeRequest(t *testing.T) {
	provider := NewOneShot()
	provider.Supply("G7KMP")

	code, err := provider.RequestCode(context.Background(), Challenge{})
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if code != "G7KMP" {
		t.Fatalf("RequestCode = %q, want supplied code", code)
	}
}

func TestOneShotSupplyAfterRequest(t *testing.T) {
	provider := NewOneShot()

	type outcome struct {
		code string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		code, err := provider.RequestCode(context.Background(), Challenge{})
		done <- outcome{code, err}
	}()

	provider.Supply("G7KMP")

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("RequestCode: %v", got.err)
		}
		if got.code != "G7KMP" {
			t.Fatalf("RequestCode = %q, want supplied code", got.code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RequestCode did not return after Supply")
	}
}

func TestOneShotCancellation(t *testing.T) {
	provider := NewOneShot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.RequestCode(ctx, Challenge{})
	if err == nil {
		t.Fatal("RequestCode returned a code from a cancelled context")
	}
}
