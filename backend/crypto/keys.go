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

// Package crypto implements the device-side primitives for secret
// conversations: X25519 key agreement and AES-256-GCM message sealing.
// Private keys never leave the process except through a KeyStore.
package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"fmt"
)

// KeySize is the byte length of every key this package handles:
// X25519 scalars and points, and the derived AES-256 secret.
const KeySize = 32

// ErrEntropyUnavailable means the platform CSPRNG failed. Fatal for the
// operation; retrying will not help.
var ErrEntropyUnavailable = errors.New("secure randomness unavailable")

// PrivateKey is a raw X25519 scalar. It must never be transmitted.
type PrivateKey []byte

// PublicKey is a raw X25519 curve point, safe to transmit.
type PublicKey []byte

// SharedSecret is a 32-byte symmetric key derived from ECDH. It is never
// persisted; holders recompute it from the long-lived key pair per use.
type SharedSecret []byte

// KeyPair is a per-conversation asymmetric key pair. Each secret
// conversation gets its own pair so a compromised key for one
// conversation cannot affect another.
type KeyPair struct {
	Private PrivateKey `json:"private_key"`
	Public  PublicKey  `json:"public_key"`
}

// GenerateKeyPair creates a fresh X25519 key pair from the system CSPRNG.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return KeyPair{
		Private: priv.Bytes(),
		Public:  priv.PublicKey().Bytes(),
	}, nil
}

// Zero wipes the private half in place. The public half is not sensitive.
func (p *KeyPair) Zero() {
	zeroBytes(p.Private)
}

// Zero wipes the secret in place.
func (s SharedSecret) Zero() {
	zeroBytes(s)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
