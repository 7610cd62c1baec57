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
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/efchatnet/secretconv/backend/crypto"
	"github.com/efchatnet/secretconv/backend/middleware"
	"github.com/efchatnet/secretconv/backend/models"
	"github.com/efchatnet/secretconv/backend/storage"
)

type ConversationHandler struct {
	store storage.Store
}

func NewConversationHandler(store storage.Store) *ConversationHandler {
	return &ConversationHandler{store: store}
}

// CreateConversationRequest is the conversation-creation contract. For
// subtype "secret" the creator's public key is attached at creation time;
// every invited member starts with a null key (pending invitation).
type CreateConversationRequest struct {
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype,omitempty"`
	ConversationID   string   `json:"conversation_id,omitempty"`
	MemberUserIDs    []string `json:"member_user_ids"`
	CreatorPublicKey []byte   `json:"creator_public_key,omitempty"`
}

// CreateConversation creates a conversation.
// POST /api/secret/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type != models.TypePrivate && req.Type != models.TypeGroup {
		http.Error(w, "Invalid conversation type", http.StatusBadRequest)
		return
	}
	if len(req.MemberUserIDs) == 0 {
		http.Error(w, "member_user_ids is required", http.StatusBadRequest)
		return
	}

	if req.Subtype == models.SubtypeSecret {
		if req.Type != models.TypePrivate || len(req.MemberUserIDs) != 1 {
			http.Error(w, "Secret conversations are private and have exactly one invitee", http.StatusBadRequest)
			return
		}
		if len(req.CreatorPublicKey) != crypto.KeySize {
			http.Error(w, "creator_public_key is required for secret conversations", http.StatusBadRequest)
			return
		}
	} else if len(req.CreatorPublicKey) > 0 {
		// Invariant: public keys exist only on secret conversations.
		http.Error(w, "creator_public_key is only valid for secret conversations", http.StatusBadRequest)
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = fmt.Sprintf("conv_%s", uuid.New().String())
	}

	conv := models.Conversation{
		ConversationID: conversationID,
		Type:           req.Type,
		Subtype:        req.Subtype,
		CreatedBy:      userID,
		Members: []models.ConversationMember{
			{ConversationID: conversationID, UserID: userID, PublicKey: req.CreatorPublicKey},
		},
	}
	for _, memberID := range req.MemberUserIDs {
		if memberID == userID {
			continue
		}
		conv.Members = append(conv.Members, models.ConversationMember{
			ConversationID: conversationID,
			UserID:         memberID,
		})
	}

	if err := h.store.CreateConversation(conv); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Never merge members into an existing conversation: membership
			// changes only through accept/leave.
			http.Error(w, "Conversation already exists", http.StatusConflict)
			return
		}
		log.Printf("[ConversationHandler] create %s failed: %v", conversationID, err)
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}

	created, err := h.store.GetConversation(conversationID)
	if err != nil {
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// GetConversation returns a conversation with all members' current public
// keys, so a device can derive the shared secret as soon as both sides
// have accepted.
// GET /api/secret/conversations/{conversationId}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]

	conv, err := h.store.GetConversation(conversationID)
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if conv.Member(userID) == nil {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conv)
}

// ListConversations lists the caller's conversations, including pending
// secret invitations (their own member record has no public key yet).
// GET /api/secret/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.store.GetUserConversations(userID)
	if err != nil {
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// AcceptConversationRequest carries the accepting member's public key.
type AcceptConversationRequest struct {
	PublicKey []byte `json:"public_key"`
}

// AcceptConversation merges the caller's public key into their member
// record and returns the updated conversation. This is the transition
// that makes the shared secret derivable on both devices.
// PATCH /api/secret/conversations/{conversationId}/accept
func (h *ConversationHandler) AcceptConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]

	var req AcceptConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.PublicKey) != crypto.KeySize {
		http.Error(w, "public_key must be a 32-byte curve point", http.StatusBadRequest)
		return
	}

	conv, err := h.store.GetConversation(conversationID)
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if !conv.IsSecret() {
		http.Error(w, "Not a secret conversation", http.StatusBadRequest)
		return
	}
	if conv.Member(userID) == nil {
		http.Error(w, "Not a member of this conversation", http.StatusForbidden)
		return
	}

	if err := h.store.SetMemberPublicKey(conversationID, userID, req.PublicKey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not a member of this conversation", http.StatusForbidden)
			return
		}
		log.Printf("[ConversationHandler] accept %s by %s failed: %v", conversationID, userID, err)
		http.Error(w, "Failed to accept conversation", http.StatusInternalServerError)
		return
	}

	updated, err := h.store.GetConversation(conversationID)
	if err != nil {
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// LeaveConversation removes the caller's membership. Used both to reject
// a pending secret invitation and to leave later; no key material is
// transmitted either way. Messages already sent stay encrypted under a
// secret the leaving party's peers can no longer complete.
// POST /api/secret/conversations/{conversationId}/leave
func (h *ConversationHandler) LeaveConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	conversationID := vars["conversationId"]

	if err := h.store.RemoveMember(conversationID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not a member of this conversation", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to leave conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":          "left",
		"conversation_id": conversationID,
	})
}
