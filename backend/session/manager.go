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

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/efchatnet/secretconv/backend/crypto"
	"github.com/efchatnet/secretconv/backend/keystore"
	"github.com/efchatnet/secretconv/backend/models"
)

var (
	// ErrPeerKeyMissing: the peer has not accepted yet, so no shared
	// secret is derivable. A consent-gating condition, not a crypto
	// failure; the UI disables input rather than surfacing an error.
	ErrPeerKeyMissing = errors.New("peer has not accepted the secret conversation")

	// ErrNoLocalKey: this device holds no key pair for the conversation.
	// Happens when a user opens a secret conversation on a device other
	// than the one that proposed/accepted it.
	ErrNoLocalKey = errors.New("no local key pair for conversation")
)

// ChatService is the boundary to the chat backend. Implementations carry
// the network-level timeout and retry policy; everything in this package
// is local computation.
type ChatService interface {
	CreateSecretConversation(ctx context.Context, conversationID, peerID string, creatorPublicKey []byte) (*models.Conversation, error)
	AcceptSecretConversation(ctx context.Context, conversationID string, publicKey []byte) (*models.Conversation, error)
	LeaveSecretConversation(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, conversationID, content string) (string, error)
	GetMessages(ctx context.Context, conversationID string, limit int) ([]models.EncryptedMessage, error)
}

// Manager owns one device's secret-conversation state. The key store is
// injected; there is no process-wide key cache.
type Manager struct {
	userID string
	keys   keystore.KeyStore
	chat   ChatService
}

func NewManager(userID string, keys keystore.KeyStore, chat ChatService) *Manager {
	return &Manager{userID: userID, keys: keys, chat: chat}
}

// Propose starts a secret conversation with peerID. The key pair is
// generated and persisted before the server learns the public key: a key
// that cannot be saved must never be attached to a conversation, since
// losing the private half makes the conversation permanently unreadable.
func (m *Manager) Propose(ctx context.Context, peerID string) (*models.Conversation, error) {
	conversationID := fmt.Sprintf("conv_%s", uuid.New().String())

	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	stored, _, err := m.keys.PutIfAbsent(conversationID, pair)
	if err != nil {
		pair.Zero()
		return nil, err
	}

	conv, err := m.chat.CreateSecretConversation(ctx, conversationID, peerID, stored.Public)
	if err != nil {
		return nil, fmt.Errorf("create secret conversation: %w", err)
	}
	return conv, nil
}

// Accept joins a pending secret conversation. Key generation is
// idempotent per conversation: a second click while the first request is
// in flight observes the first pair instead of minting a new one, so the
// key submitted to the server always matches the private key on disk.
func (m *Manager) Accept(ctx context.Context, conversationID string) (*models.Conversation, error) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	stored, created, err := m.keys.PutIfAbsent(conversationID, pair)
	if err != nil {
		pair.Zero()
		return nil, err
	}
	if !created {
		pair.Zero()
	}

	conv, err := m.chat.AcceptSecretConversation(ctx, conversationID, stored.Public)
	if err != nil {
		return nil, fmt.Errorf("accept secret conversation: %w", err)
	}
	return conv, nil
}

// Decline rejects a pending secret invitation. No key material is
// generated or transmitted.
func (m *Manager) Decline(ctx context.Context, conversationID string) error {
	return m.chat.LeaveSecretConversation(ctx, conversationID)
}

// Leave exits an established secret conversation. The local key pair is
// kept: history retained on this device must stay decryptable after
// leaving. Key pairs are destroyed only by DeleteConversation or an
// explicit store wipe.
func (m *Manager) Leave(ctx context.Context, conversationID string) error {
	return m.chat.LeaveSecretConversation(ctx, conversationID)
}

// DeleteConversation destroys the local key pair for a conversation that
// has been deleted outright. Any ciphertext still held for it becomes
// permanently unreadable on this device.
func (m *Manager) DeleteConversation(conversationID string) error {
	return m.keys.Delete(conversationID)
}

// SendMessage encrypts and sends plaintext on a secret conversation, or
// passes it through unchanged on an ordinary one. For secret
// conversations the shared secret is recomputed from the stored key pair
// and the peer's current public key; it never outlives this call.
func (m *Manager) SendMessage(ctx context.Context, conv *models.Conversation, plaintext string) (string, error) {
	if !conv.IsSecret() {
		return m.chat.SendMessage(ctx, conv.ConversationID, plaintext)
	}

	secret, err := m.conversationSecret(conv)
	if err != nil {
		return "", err
	}
	defer secret.Zero()

	payload, err := crypto.Encrypt(secret, plaintext)
	if err != nil {
		return "", err
	}
	return m.chat.SendMessage(ctx, conv.ConversationID, payload)
}

// conversationSecret derives the conversation's shared secret from the
// local private key and the peer's member record.
func (m *Manager) conversationSecret(conv *models.Conversation) (crypto.SharedSecret, error) {
	peer := conv.Peer(m.userID)
	if !peer.HasAccepted() {
		return nil, ErrPeerKeyMissing
	}
	pair, ok, err := m.keys.Get(conv.ConversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoLocalKey
	}
	defer pair.Zero()
	return crypto.DeriveSharedSecret(pair.Private, peer.PublicKey)
}
