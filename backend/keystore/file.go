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
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/efchatnet/secretconv/backend/crypto"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "SECRETCONV1\n"
)

// envelope is the on-disk format: the key map is sealed under a
// passphrase-derived key so private keys are never written in the clear.
type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// FileStore is a durable KeyStore encrypted at rest with argon2id +
// XChaCha20-Poly1305. The whole map is loaded on open and rewritten
// atomically (tmp + rename) on every mutation; the map is small, one
// entry per secret conversation.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
	pairs      map[string]crypto.KeyPair
}

// OpenFileStore loads (or initializes) the key file at path. A missing
// file is an empty store; any other read or decryption failure is
// reported as ErrStorageUnavailable.
func OpenFileStore(path, passphrase string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		passphrase: passphrase,
		pairs:      make(map[string]crypto.KeyPair),
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.open(raw); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) PutIfAbsent(conversationID string, pair crypto.KeyPair) (crypto.KeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pairs[conversationID]; ok {
		return clonePair(existing), false, nil
	}
	s.pairs[conversationID] = clonePair(pair)
	if err := s.save(); err != nil {
		// The write failed, so the pair was never durable. Roll back so
		// a later retry is still the first write.
		delete(s.pairs, conversationID)
		return crypto.KeyPair{}, false, err
	}
	return pair, true, nil
}

func (s *FileStore) Get(conversationID string) (crypto.KeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[conversationID]
	if !ok {
		return crypto.KeyPair{}, false, nil
	}
	return clonePair(pair), true, nil
}

func (s *FileStore) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[conversationID]
	if !ok {
		return nil
	}
	pair.Zero()
	delete(s.pairs, conversationID)
	return s.save()
}

func (s *FileStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pair := range s.pairs {
		pair.Zero()
		delete(s.pairs, id)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) open(raw []byte) error {
	if !strings.HasPrefix(string(raw), filePrefix) {
		return fmt.Errorf("%w: unrecognized key file format", ErrStorageUnavailable)
	}
	var env envelope
	if err := json.Unmarshal(raw[len(filePrefix):], &env); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return fmt.Errorf("%w: unsupported key file version", ErrStorageUnavailable)
	}
	key := s.deriveFileKey(env.Salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: key file authentication failed", ErrStorageUnavailable)
	}
	defer zeroBytes(plaintext)
	if err := json.Unmarshal(plaintext, &s.pairs); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) save() error {
	plaintext, err := json.Marshal(s.pairs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer zeroBytes(plaintext)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	key := s.deriveFileKey(salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	env := envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(filePrefix), raw...), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *FileStore) deriveFileKey(salt []byte) []byte {
	return argon2.IDKey([]byte(s.passphrase), salt, 2, 64*1024, 1, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
