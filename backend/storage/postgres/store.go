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

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/secretconv/backend/models"
	"github.com/efchatnet/secretconv/backend/storage"
	redisStore "github.com/efchatnet/secretconv/backend/storage/redis"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Store keeps conversations and membership (including public keys) in
// Postgres and delegates message traffic to Redis.
type Store struct {
	db       *sql.DB
	redis    *redis.Client
	msgStore *redisStore.MessageStore
}

func NewStore(db *sql.DB, rdb *redis.Client) *Store {
	return &Store{
		db:       db,
		redis:    rdb,
		msgStore: redisStore.NewMessageStore(rdb),
	}
}

func (s *Store) CreateConversation(conv models.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A duplicate conversation ID must abort the whole transaction:
	// creating against an existing ID would otherwise append the caller
	// to someone else's membership.
	_, err = tx.Exec(`
		INSERT INTO conversations (conversation_id, type, subtype, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		conv.ConversationID, conv.Type, conv.Subtype, conv.CreatedBy, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return storage.ErrAlreadyExists
		}
		return err
	}

	for _, member := range conv.Members {
		// public_key stays NULL for every member except a secret
		// conversation's creator; presence of a key is the consent signal.
		var key interface{}
		if len(member.PublicKey) > 0 {
			key = member.PublicKey
		}
		_, err = tx.Exec(`
			INSERT INTO conversation_members (conversation_id, user_id, public_key, joined_at)
			VALUES ($1, $2, $3, $4)`,
			conv.ConversationID, member.UserID, key, time.Now())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetConversation(conversationID string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var subtype sql.NullString
	err := s.db.QueryRow(`
		SELECT conversation_id, type, subtype, created_by, created_at
		FROM conversations WHERE conversation_id = $1`, conversationID).Scan(
		&conv.ConversationID, &conv.Type, &subtype, &conv.CreatedBy, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.Subtype = subtype.String

	members, err := s.getMembers(conversationID)
	if err != nil {
		return nil, err
	}
	conv.Members = members
	return conv, nil
}

func (s *Store) GetUserConversations(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT c.conversation_id, c.type, c.subtype, c.created_by, c.created_at
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.conversation_id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var subtype sql.NullString
		if err := rows.Scan(&conv.ConversationID, &conv.Type, &subtype,
			&conv.CreatedBy, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conv.Subtype = subtype.String
		members, err := s.getMembers(conv.ConversationID)
		if err != nil {
			return nil, err
		}
		conv.Members = members
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *Store) getMembers(conversationID string) ([]models.ConversationMember, error) {
	rows, err := s.db.Query(`
		SELECT conversation_id, user_id, public_key, last_read_message_id, joined_at
		FROM conversation_members WHERE conversation_id = $1
		ORDER BY joined_at`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.ConversationMember
	for rows.Next() {
		var m models.ConversationMember
		var key []byte
		var lastRead sql.NullString
		if err := rows.Scan(&m.ConversationID, &m.UserID, &key, &lastRead, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.PublicKey = key
		m.LastReadMessageID = lastRead.String
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) SetMemberPublicKey(conversationID, userID string, publicKey []byte) error {
	res, err := s.db.Exec(`
		UPDATE conversation_members SET public_key = $3
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID, publicKey)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) RemoveMember(conversationID, userID string) error {
	res, err := s.db.Exec(`
		DELETE FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) IsMember(conversationID, userID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID).Scan(&count)
	return count > 0, err
}

func (s *Store) SetLastReadMessage(conversationID, userID, messageID string) error {
	_, err := s.db.Exec(`
		UPDATE conversation_members SET last_read_message_id = $3
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID, messageID)
	return err
}

// Message traffic lives in Redis.

func (s *Store) SaveMessage(msg models.EncryptedMessage) error {
	if err := s.msgStore.SaveMessage(msg); err != nil {
		return err
	}
	// Mark unread for everyone but the sender. Best effort; a failed
	// unread marker never loses the message itself.
	members, err := s.getMembers(msg.ConversationID)
	if err != nil {
		return nil
	}
	for _, m := range members {
		if m.UserID == msg.SenderID {
			continue
		}
		s.msgStore.MarkMessageUnread(msg.ConversationID, msg.MessageID, m.UserID)
	}
	return nil
}

func (s *Store) GetMessages(conversationID string, limit int) ([]models.EncryptedMessage, error) {
	return s.msgStore.GetMessages(conversationID, limit)
}

func (s *Store) GetUnreadCount(conversationID, userID string) (int64, error) {
	return s.msgStore.GetUnreadCount(conversationID, userID)
}

func (s *Store) MarkMessageRead(conversationID, messageID, userID string) error {
	if err := s.msgStore.MarkMessageRead(conversationID, messageID, userID); err != nil {
		return err
	}
	return s.SetLastReadMessage(conversationID, userID, messageID)
}
