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

// Package keystore persists a device's per-conversation key pairs.
// Implementations are injected into the session layer; there is no
// process-wide singleton store.
package keystore

import (
	"errors"

	"github.com/efchatnet/secretconv/backend/crypto"
)

// ErrStorageUnavailable means the backing persistence cannot be read or
// written. Callers must treat this as "secret messaging unavailable" and
// never fall back to plaintext: a key pair that exists only in memory
// would make every later message on that conversation undecryptable.
var ErrStorageUnavailable = errors.New("key storage unavailable")

// KeyStore maps a conversation ID to that conversation's key pair.
// Creation is write-once: PutIfAbsent retains the first pair ever stored
// for a conversation, because replacing it would silently break
// decryption of all prior messages.
type KeyStore interface {
	// PutIfAbsent stores pair under conversationID unless an entry
	// already exists. It returns the retained pair (the existing one on
	// conflict) and whether a new entry was created. Atomic with respect
	// to concurrent callers in the same process.
	PutIfAbsent(conversationID string, pair crypto.KeyPair) (crypto.KeyPair, bool, error)

	// Get returns the stored pair for conversationID, if any.
	Get(conversationID string) (crypto.KeyPair, bool, error)

	// Delete removes the pair for one conversation. Used on explicit
	// conversation deletion only.
	Delete(conversationID string) error

	// Wipe destroys every stored key pair.
	Wipe() error
}
