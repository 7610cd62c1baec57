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
	"crypto/ecdh"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidPeerKey means the peer-supplied public key is not a valid
	// curve point. Not retried: a malformed key will not become valid.
	ErrInvalidPeerKey = errors.New("invalid peer public key")

	// ErrInvalidKeyLength means key material of the wrong size was
	// supplied. Keys are never truncated or padded to fit.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// HKDF context string. Changing it changes every derived secret.
var secretInfo = []byte("secretconv/shared-secret/v1")

// DeriveSharedSecret computes the 32-byte symmetric secret for a
// conversation from the local private key and the peer's public key.
// The result is identical in both directions: derive(skA, pkB) ==
// derive(skB, pkA). Peer keys are validated as curve points before use;
// low-order points that would produce an all-zero ECDH output are
// rejected rather than silently accepted.
func DeriveSharedSecret(private PrivateKey, peerPublic PublicKey) (SharedSecret, error) {
	if len(private) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(private)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}
	pub, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, ErrInvalidPeerKey
	}
	raw, err := priv.ECDH(pub)
	if err != nil {
		return nil, ErrInvalidPeerKey
	}
	defer zeroBytes(raw)

	secret := make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, raw, nil, secretInfo)
	if _, err := io.ReadFull(kdf, secret); err != nil {
		return nil, err
	}
	return secret, nil
}
