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

package storage

import (
	"errors"

	"github.com/efchatnet/secretconv/backend/models"
)

// ErrNotFound is returned when a conversation or member does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating a conversation whose ID is
// already taken. Creation must never touch an existing conversation's
// membership, so the whole create is rejected.
var ErrAlreadyExists = errors.New("conversation already exists")

type ConversationStore interface {
	CreateConversation(conv models.Conversation) error
	GetConversation(conversationID string) (*models.Conversation, error)
	GetUserConversations(userID string) ([]models.Conversation, error)
}

type MemberStore interface {
	// SetMemberPublicKey merges a member's public key into their record.
	// Last write wins per member record; a user accepting the same
	// conversation from two devices desynchronizes the losing device
	// (known limitation, see DESIGN.md).
	SetMemberPublicKey(conversationID, userID string, publicKey []byte) error
	RemoveMember(conversationID, userID string) error
	IsMember(conversationID, userID string) (bool, error)
	SetLastReadMessage(conversationID, userID, messageID string) error
}

type MessageStore interface {
	SaveMessage(msg models.EncryptedMessage) error
	GetMessages(conversationID string, limit int) ([]models.EncryptedMessage, error)
	GetUnreadCount(conversationID, userID string) (int64, error)
	MarkMessageRead(conversationID, messageID, userID string) error
}

type Store interface {
	ConversationStore
	MemberStore
	MessageStore
}
