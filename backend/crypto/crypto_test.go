// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestKeyAgreementSymmetry(t *testing.T) {
	alice, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate alice: %v", err)
	}
	bob, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate bob: %v", err)
	}

	ab, err := DeriveSharedSecret(alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("derive(skA, pkB): %v", err)
	}
	ba, err := DeriveSharedSecret(bob.Private, alice.Public)
	if err != nil {
		t.Fatalf("derive(skB, pkA): %v", err)
	}
	if !bytes.Equal(ab, ba) {
		t.Fatalf("shared secrets differ: %x vs %x", ab, ba)
	}
	if len(ab) != KeySize {
		t.Fatalf("secret length = %d, want %d", len(ab), KeySize)
	}
}

func TestDeriveRejectsInvalidPeerKey(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	cases := []struct {
		name string
		peer PublicKey
	}{
		{"empty", nil},
		{"short", make([]byte, 16)},
		{"long", make([]byte, 64)},
		// All-zero is a low-order point; ECDH output would be all zeros.
		{"low order", make([]byte, 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DeriveSharedSecret(pair.Private, tc.peer); !errors.Is(err, ErrInvalidPeerKey) {
				t.Fatalf("derive with %s key: err = %v, want ErrInvalidPeerKey", tc.name, err)
			}
		})
	}
}

func TestDeriveRejectsBadPrivateKey(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := DeriveSharedSecret(make([]byte, 16), pair.Public); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("short private key: err = %v, want ErrInvalidKeyLength", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := testSecret(t)
	plaintexts := []string{
		"",
		"hello",
		"a longer message with spaces, punctuation, and unicode: ñøñçé 秘密",
	}
	for _, plaintext := range plaintexts {
		payload, err := Encrypt(secret, plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		got, err := Decrypt(secret, payload)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if got != plaintext {
			t.Fatalf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestTamperDetection(t *testing.T) {
	secret := testSecret(t)
	payload, err := Encrypt(secret, "hello")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	// Flipping any single bit anywhere in the payload must fail closed.
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 1 << bit
			_, err := Decrypt(secret, base64.StdEncoding.EncodeToString(tampered))
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Fatalf("byte %d bit %d: err = %v, want ErrDecryptionFailed", i, bit, err)
			}
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	payload, err := Encrypt(testSecret(t), "hello")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	other := testSecret(t)
	if _, err := Decrypt(other, payload); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong key: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptMalformedPayload(t *testing.T) {
	secret := testSecret(t)
	for _, payload := range []string{"", "not base64 at all!!!", "aGVsbG8="} {
		if _, err := Decrypt(secret, payload); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("decrypt %q: err = %v, want ErrDecryptionFailed", payload, err)
		}
	}
}

func TestCipherRejectsBadKeyLength(t *testing.T) {
	short := SharedSecret(make([]byte, 16))
	if _, err := Encrypt(short, "hello"); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("encrypt with 16-byte key: err = %v, want ErrInvalidKeyLength", err)
	}
	if _, err := Decrypt(short, "aGVsbG8="); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("decrypt with 16-byte key: err = %v, want ErrInvalidKeyLength", err)
	}
}

func TestNonceUniqueness(t *testing.T) {
	secret := testSecret(t)
	const rounds = 10000
	seen := make(map[string]struct{}, rounds)
	for i := 0; i < rounds; i++ {
		payload, err := Encrypt(secret, "ping")
		if err != nil {
			t.Fatalf("encrypt %d: %v", i, err)
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		nonce := string(raw[:NonceSize])
		if _, dup := seen[nonce]; dup {
			t.Fatalf("nonce repeated after %d encryptions", i)
		}
		seen[nonce] = struct{}{}
	}
}

func TestIsEncryptedPayload(t *testing.T) {
	secret := testSecret(t)
	payload, err := Encrypt(secret, "hello")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := []struct {
		content string
		want    bool
	}{
		{payload, true},
		{"https://cdn.efchat.net/uploads/cat.png", false},
		{"http://example.com/a.jpg", false},
		{"data:image/png;base64,iVBORw0KGgo=", false},
		{"just some plaintext", false},
		{"aGVsbG8=", false}, // valid base64 but too short to hold nonce+tag
	}
	for _, tc := range cases {
		if got := IsEncryptedPayload(tc.content); got != tc.want {
			t.Fatalf("IsEncryptedPayload(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestZeroWipesKeyMaterial(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	priv := pair.Private
	pair.Zero()
	for i, b := range priv {
		if b != 0 {
			t.Fatalf("private key byte %d not wiped", i)
		}
	}
}

func testSecret(t *testing.T) SharedSecret {
	t.Helper()
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	secret, err := DeriveSharedSecret(a.Private, b.Public)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return secret
}
