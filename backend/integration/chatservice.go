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

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/efchatnet/secretconv/backend/models"
)

// HTTPChatService is the device-side client for the secret-conversation
// routes. It implements session.ChatService; timeouts and cancellation
// are carried here rather than in the crypto core, which is pure local
// computation.
type HTTPChatService struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPChatService(baseURL, bearerToken string) *HTTPChatService {
	return &HTTPChatService{
		baseURL: baseURL,
		token:   bearerToken,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPChatService) CreateSecretConversation(ctx context.Context, conversationID, peerID string, creatorPublicKey []byte) (*models.Conversation, error) {
	body := map[string]interface{}{
		"type":               models.TypePrivate,
		"subtype":            models.SubtypeSecret,
		"conversation_id":    conversationID,
		"member_user_ids":    []string{peerID},
		"creator_public_key": creatorPublicKey,
	}
	var conv models.Conversation
	if err := c.do(ctx, "POST", "/api/secret/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *HTTPChatService) AcceptSecretConversation(ctx context.Context, conversationID string, publicKey []byte) (*models.Conversation, error) {
	body := map[string]interface{}{"public_key": publicKey}
	var conv models.Conversation
	path := fmt.Sprintf("/api/secret/conversations/%s/accept", conversationID)
	if err := c.do(ctx, "PATCH", path, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *HTTPChatService) LeaveSecretConversation(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/secret/conversations/%s/leave", conversationID)
	return c.do(ctx, "POST", path, nil, nil)
}

func (c *HTTPChatService) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	body := map[string]string{"content": content}
	var resp struct {
		MessageID string `json:"message_id"`
	}
	path := fmt.Sprintf("/api/secret/conversations/%s/messages", conversationID)
	if err := c.do(ctx, "POST", path, body, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

func (c *HTTPChatService) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.EncryptedMessage, error) {
	var resp struct {
		Messages []models.EncryptedMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/secret/conversations/%s/messages?limit=%d", conversationID, limit)
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *HTTPChatService) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat service returned %s for %s %s", resp.Status, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
