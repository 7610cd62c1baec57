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

// EncryptedMessage is a stored message. Content is an opaque string:
// plaintext for ordinary conversations, base64(nonce||ciphertext||tag)
// for secret ones, or an attachment URL in either. The row itself is
// subtype-agnostic; interpretation is driven by the owning conversation.
type EncryptedMessage struct {
	MessageID      string     `json:"message_id" db:"message_id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	SenderID       string     `json:"sender_id" db:"sender_id"`
	Content        string     `json:"content" db:"content"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
}
