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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// NonceSize is the AES-GCM nonce length. A fresh random nonce is drawn
// per message; a repeated nonce under the same key would break both
// confidentiality and authenticity.
const NonceSize = 12

// gcmTagSize is the AES-GCM authentication tag length.
const gcmTagSize = 16

// ErrDecryptionFailed means the payload could not be authenticated:
// wrong key, corruption, or tampering. Recoverable per message; callers
// render a placeholder instead of the message.
var ErrDecryptionFailed = errors.New("message decryption failed")

// Encrypt seals plaintext under the conversation's shared secret and
// returns the self-contained wire payload base64(nonce || ciphertext || tag).
func Encrypt(secret SharedSecret, plaintext string) (string, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a wire payload produced by Encrypt. Any bit flip in
// transit fails authentication and returns ErrDecryptionFailed; a
// corrupted plaintext is never returned.
func Decrypt(secret SharedSecret, payload string) (string, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < NonceSize+gcmTagSize {
		return "", ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsEncryptedPayload reports whether content looks like a sealed payload.
// The message content field also carries attachment URLs in secret
// conversations; those pass through rendering untouched instead of being
// fed to the cipher.
func IsEncryptedPayload(content string) bool {
	if strings.HasPrefix(content, "http://") ||
		strings.HasPrefix(content, "https://") ||
		strings.HasPrefix(content, "data:") {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return false
	}
	return len(raw) >= NonceSize+gcmTagSize
}

func newAEAD(secret SharedSecret) (cipher.AEAD, error) {
	// AES-256 only. A short secret is rejected, never padded.
	if len(secret) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
