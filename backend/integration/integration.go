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
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/secretconv/backend/handlers"
	"github.com/efchatnet/secretconv/backend/middleware"
	"github.com/efchatnet/secretconv/backend/storage/postgres"
)

// SecretConversations provides the secret-conversation subsystem as a
// plugin for the host chat application.
type SecretConversations struct {
	store               *postgres.Store
	conversationHandler *handlers.ConversationHandler
	messageHandler      *handlers.MessageHandler
	jwtSecret           string
	jwtIssuer           string
}

// Config holds configuration for the integration.
type Config struct {
	DB        *sql.DB
	Redis     *redis.Client
	JWTSecret string
	JWTIssuer string
}

// New creates a secret-conversation integration that can be embedded
// into the host application's router.
func New(config *Config) (*SecretConversations, error) {
	store := postgres.NewStore(config.DB, config.Redis)

	if err := store.Migrate(); err != nil {
		return nil, err
	}

	return &SecretConversations{
		store:               store,
		conversationHandler: handlers.NewConversationHandler(store),
		messageHandler:      handlers.NewMessageHandler(store),
		jwtSecret:           config.JWTSecret,
		jwtIssuer:           config.JWTIssuer,
	}, nil
}

// RegisterRoutes adds the subsystem's routes to an existing router.
// If authMiddleware is nil, the built-in JWT validation is used.
func (s *SecretConversations) RegisterRoutes(router *mux.Router, authMiddleware func(http.Handler) http.Handler) {
	api := router.PathPrefix("/api/secret").Subrouter()

	if authMiddleware != nil {
		api.Use(authMiddleware)
	} else {
		api.Use(middleware.NewAuthMiddleware(s.jwtSecret, s.jwtIssuer))
	}

	api.HandleFunc("/conversations", s.conversationHandler.CreateConversation).Methods("POST", "OPTIONS")
	api.HandleFunc("/conversations", s.conversationHandler.ListConversations).Methods("GET", "OPTIONS")
	api.HandleFunc("/conversations/{conversationId}", s.conversationHandler.GetConversation).Methods("GET", "OPTIONS")
	api.HandleFunc("/conversations/{conversationId}/accept", s.conversationHandler.AcceptConversation).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/conversations/{conversationId}/leave", s.conversationHandler.LeaveConversation).Methods("POST", "OPTIONS")

	api.HandleFunc("/conversations/{conversationId}/messages", s.messageHandler.SendMessage).Methods("POST", "OPTIONS")
	api.HandleFunc("/conversations/{conversationId}/messages", s.messageHandler.GetMessages).Methods("GET", "OPTIONS")
	api.HandleFunc("/conversations/{conversationId}/messages/{messageId}/read", s.messageHandler.MarkMessageRead).Methods("POST", "OPTIONS")
}

// GetStore returns the underlying storage implementation.
func (s *SecretConversations) GetStore() *postgres.Store {
	return s.store
}
