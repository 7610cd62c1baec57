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

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		// Conversations table
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id VARCHAR(255) PRIMARY KEY,
			type VARCHAR(20) NOT NULL CHECK (type IN ('private', 'group')),
			subtype VARCHAR(20),
			created_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Conversation members table. public_key is NULL until the member
		// accepts a secret conversation; that nullability carries the
		// consent state, there is no separate status column.
		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			public_key BYTEA,
			last_read_message_id VARCHAR(255),
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (conversation_id, user_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE
		)`,

		// Index for listing a user's conversations
		`CREATE INDEX IF NOT EXISTS idx_member_conversations
		ON conversation_members(user_id, conversation_id)`,

		// Note: message content is stored in Redis with TTL; no Postgres
		// tables needed for messages.
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
