// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/secretconv/backend/models"
)

const (
	// MessageTTL bounds how long message content is retained server-side.
	// The server never holds key material, so expired ciphertext is gone
	// for good; clients keep their own history.
	MessageTTL = 30 * 24 * time.Hour

	// Redis key prefixes
	convQueuePrefix  = "conv:queue:"  // conv:queue:{conversationId} - list of message IDs
	convMsgPrefix    = "conv:msg:"    // conv:msg:{messageId} - message content
	convUnreadPrefix = "conv:unread:" // conv:unread:{conversationId}:{userId} - set of unread message IDs
	convNotifyPrefix = "conv:notify:" // conv:notify:{conversationId} - pub/sub channel
)

// MessageStore keeps opaque message payloads in Redis. Content is never
// inspected here; ciphertext, plaintext and attachment URLs all pass
// through identically.
type MessageStore struct {
	rdb *redis.Client
	ctx context.Context
}

func NewMessageStore(rdb *redis.Client) *MessageStore {
	return &MessageStore{
		rdb: rdb,
		ctx: context.Background(),
	}
}

// SaveMessage stores a message and notifies subscribers.
func (s *MessageStore) SaveMessage(msg models.EncryptedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	messageKey := convMsgPrefix + msg.MessageID
	if err := s.rdb.Set(s.ctx, messageKey, data, MessageTTL).Err(); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	queueKey := convQueuePrefix + msg.ConversationID
	if err := s.rdb.RPush(s.ctx, queueKey, msg.MessageID).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}
	s.rdb.Expire(s.ctx, queueKey, MessageTTL)

	notification := map[string]string{
		"type":            "new_message",
		"message_id":      msg.MessageID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
	}
	payload, _ := json.Marshal(notification)
	s.rdb.Publish(s.ctx, convNotifyPrefix+msg.ConversationID, payload)

	return nil
}

// GetMessages returns up to limit messages for a conversation, oldest
// first, skipping entries whose content has expired.
func (s *MessageStore) GetMessages(conversationID string, limit int) ([]models.EncryptedMessage, error) {
	queueKey := convQueuePrefix + conversationID

	messageIDs, err := s.rdb.LRange(s.ctx, queueKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get message queue: %w", err)
	}

	var msgs []models.EncryptedMessage
	for _, id := range messageIDs {
		data, err := s.rdb.Get(s.ctx, convMsgPrefix+id).Result()
		if err == redis.Nil {
			// Expired; drop from the queue.
			s.rdb.LRem(s.ctx, queueKey, 1, id)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to get message: %w", err)
		}

		var msg models.EncryptedMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// MarkMessageRead removes a message from the reader's unread set.
func (s *MessageStore) MarkMessageRead(conversationID, messageID, userID string) error {
	key := unreadKey(conversationID, userID)
	if err := s.rdb.SRem(s.ctx, key, messageID).Err(); err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// MarkMessageUnread adds a message to a reader's unread set.
func (s *MessageStore) MarkMessageUnread(conversationID, messageID, userID string) error {
	key := unreadKey(conversationID, userID)
	if err := s.rdb.SAdd(s.ctx, key, messageID).Err(); err != nil {
		return fmt.Errorf("failed to mark as unread: %w", err)
	}
	s.rdb.Expire(s.ctx, key, MessageTTL)
	return nil
}

// GetUnreadCount returns the number of unread messages for a reader.
func (s *MessageStore) GetUnreadCount(conversationID, userID string) (int64, error) {
	return s.rdb.SCard(s.ctx, unreadKey(conversationID, userID)).Result()
}

// Subscribe subscribes to real-time notifications for a conversation.
func (s *MessageStore) Subscribe(conversationID string) *redis.PubSub {
	return s.rdb.Subscribe(s.ctx, convNotifyPrefix+conversationID)
}

// DeleteConversationMessages removes all stored messages for a
// conversation, used when a conversation is deleted outright.
func (s *MessageStore) DeleteConversationMessages(conversationID string) error {
	queueKey := convQueuePrefix + conversationID
	messageIDs, err := s.rdb.LRange(s.ctx, queueKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list messages for cleanup: %w", err)
	}
	for _, id := range messageIDs {
		s.rdb.Del(s.ctx, convMsgPrefix+id)
	}
	return s.rdb.Del(s.ctx, queueKey).Err()
}

func unreadKey(conversationID, userID string) string {
	return convUnreadPrefix + conversationID + ":" + userID
}
