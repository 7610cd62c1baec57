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

package models

import (
	"time"
)

const (
	TypePrivate = "private"
	TypeGroup   = "group"

	// SubtypeSecret marks an end-to-end encrypted private conversation.
	SubtypeSecret = "secret"
)

// Conversation is the server-side conversation record. The crypto
// subsystem only depends on Subtype and the members' public keys.
type Conversation struct {
	ConversationID string               `json:"conversation_id" db:"conversation_id"`
	Type           string               `json:"type" db:"type"`
	Subtype        string               `json:"subtype,omitempty" db:"subtype"`
	CreatedBy      string               `json:"created_by" db:"created_by"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	Members        []ConversationMember `json:"members"`
}

// ConversationMember relates a user to a conversation. PublicKey is null
// until the member accepts a secret conversation invitation; its presence
// is the consent signal. For non-secret conversations it is always null.
type ConversationMember struct {
	ConversationID    string    `json:"conversation_id" db:"conversation_id"`
	UserID            string    `json:"user_id" db:"user_id"`
	PublicKey         []byte    `json:"public_key,omitempty" db:"public_key"`
	LastReadMessageID string    `json:"last_read_message_id,omitempty" db:"last_read_message_id"`
	JoinedAt          time.Time `json:"joined_at" db:"joined_at"`
}

// IsSecret reports whether messages in this conversation are end-to-end
// encrypted.
func (c *Conversation) IsSecret() bool {
	return c.Subtype == SubtypeSecret
}

// Member returns the member record for userID, or nil.
func (c *Conversation) Member(userID string) *ConversationMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// Peer returns the other member of a private conversation, or nil if the
// peer has left or was never present.
func (c *Conversation) Peer(userID string) *ConversationMember {
	for i := range c.Members {
		if c.Members[i].UserID != userID {
			return &c.Members[i]
		}
	}
	return nil
}

// HasAccepted reports whether the given member has accepted the secret
// conversation, i.e. their member record carries a public key.
func (m *ConversationMember) HasAccepted() bool {
	return m != nil && len(m.PublicKey) > 0
}
