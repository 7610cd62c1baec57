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

	"github.com/efchatnet/secretconv/backend/crypto"
	"github.com/efchatnet/secretconv/backend/models"
)

// UndecryptablePlaceholder is rendered in place of a message that failed
// authentication. One bad message never blocks the rest of the history.
const UndecryptablePlaceholder = "[message could not be decrypted]"

// DecryptedMessage is a render-ready message. Text holds the plaintext,
// the passed-through attachment URL, or UndecryptablePlaceholder.
type DecryptedMessage struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Text           string `json:"text"`
	Undecryptable  bool   `json:"undecryptable,omitempty"`
}

// LoadHistory fetches and decrypts a conversation's history in two
// explicit phases: load all ciphertext, then transform it into one
// finished list. Rendering consumes only the finished list; nothing is
// decrypted inside a rendering pass.
func (m *Manager) LoadHistory(ctx context.Context, conv *models.Conversation, limit int) ([]DecryptedMessage, error) {
	msgs, err := m.chat.GetMessages(ctx, conv.ConversationID, limit)
	if err != nil {
		return nil, err
	}
	return m.DecryptHistory(conv, msgs), nil
}

// DecryptHistory transforms stored messages into render-ready ones.
// Per-message decryption failures produce placeholder entries, attachment
// URLs and other non-ciphertext content pass through unchanged, and a
// missing key degrades every sealed message to a placeholder rather than
// failing the batch. The returned list always has one entry per input
// message, in order.
func (m *Manager) DecryptHistory(conv *models.Conversation, msgs []models.EncryptedMessage) []DecryptedMessage {
	out := make([]DecryptedMessage, 0, len(msgs))

	if !conv.IsSecret() {
		for _, msg := range msgs {
			out = append(out, passthrough(msg))
		}
		return out
	}

	// One derivation for the whole batch; the secret lives only for the
	// duration of this call.
	secret, err := m.conversationSecret(conv)
	if err != nil {
		secret = nil
	} else {
		defer secret.Zero()
	}

	for _, msg := range msgs {
		if !crypto.IsEncryptedPayload(msg.Content) {
			// Attachment URL or other non-ciphertext content sharing the
			// field; pass through, never feed to the cipher.
			out = append(out, passthrough(msg))
			continue
		}
		if secret == nil {
			out = append(out, placeholder(msg))
			continue
		}
		plaintext, err := crypto.Decrypt(secret, msg.Content)
		if err != nil {
			out = append(out, placeholder(msg))
			continue
		}
		out = append(out, DecryptedMessage{
			MessageID:      msg.MessageID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Text:           plaintext,
		})
	}
	return out
}

func passthrough(msg models.EncryptedMessage) DecryptedMessage {
	return DecryptedMessage{
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           msg.Content,
	}
}

func placeholder(msg models.EncryptedMessage) DecryptedMessage {
	return DecryptedMessage{
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           UndecryptablePlaceholder,
		Undecryptable:  true,
	}
}
