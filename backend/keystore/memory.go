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

package keystore

import (
	"sync"

	"github.com/efchatnet/secretconv/backend/crypto"
)

// MemoryStore is a non-durable KeyStore. It backs tests and short-lived
// sessions; anything that must survive a restart uses FileStore.
type MemoryStore struct {
	mu    sync.Mutex
	pairs map[string]crypto.KeyPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[string]crypto.KeyPair)}
}

func (s *MemoryStore) PutIfAbsent(conversationID string, pair crypto.KeyPair) (crypto.KeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pairs[conversationID]; ok {
		return clonePair(existing), false, nil
	}
	s.pairs[conversationID] = clonePair(pair)
	return pair, true, nil
}

func (s *MemoryStore) Get(conversationID string) (crypto.KeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[conversationID]
	if !ok {
		return crypto.KeyPair{}, false, nil
	}
	return clonePair(pair), true, nil
}

func (s *MemoryStore) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pair, ok := s.pairs[conversationID]; ok {
		pair.Zero()
		delete(s.pairs, conversationID)
	}
	return nil
}

func (s *MemoryStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pair := range s.pairs {
		pair.Zero()
		delete(s.pairs, id)
	}
	return nil
}

func clonePair(pair crypto.KeyPair) crypto.KeyPair {
	return crypto.KeyPair{
		Private: append(crypto.PrivateKey(nil), pair.Private...),
		Public:  append(crypto.PublicKey(nil), pair.Public...),
	}
}
