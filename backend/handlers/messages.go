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

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/efchatnet/secretconv/backend/middleware"
	"github.com/efchatnet/secretconv/backend/models"
	"github.com/efchatnet/secretconv/backend/storage"
)

type MessageHandler struct {
	store storage.Store
}

func NewMessageHandler(store storage.Store) *MessageHandler {
	return &MessageHandler{store: store}
}

// SendMessage stores an opaque message payload. The server never inspects
// content: for secret conversations it is ciphertext sealed client-side.
// POST /api/secret/conversations/{conversationId}/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	isMember, err := h.store.IsMember(conversationID, senderID)
	if err != nil || !isMember {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return
	}

	msg := models.EncryptedMessage{
		MessageID:      uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
	}

	if err := h.store.SaveMessage(msg); err != nil {
		http.Error(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message_id": msg.MessageID,
		"status":     "sent",
	})
}

// GetMessages retrieves a conversation's messages, oldest first. Payloads
// are returned exactly as stored; decryption happens on the device.
// GET /api/secret/conversations/{conversationId}/messages?limit=50
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]

	isMember, err := h.store.IsMember(conversationID, userID)
	if err != nil || !isMember {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	msgs, err := h.store.GetMessages(conversationID, limit)
	if err != nil {
		http.Error(w, "Failed to retrieve messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []models.EncryptedMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// MarkMessageRead marks a message read and advances the caller's
// last_read_message_id.
// POST /api/secret/conversations/{conversationId}/messages/{messageId}/read
func (h *MessageHandler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]
	messageID := vars["messageId"]

	isMember, err := h.store.IsMember(conversationID, userID)
	if err != nil || !isMember {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return
	}

	if err := h.store.MarkMessageRead(conversationID, messageID, userID); err != nil {
		http.Error(w, "Failed to mark message as read", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "marked_read",
	})
}
