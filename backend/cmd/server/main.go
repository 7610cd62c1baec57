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

package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/secretconv/backend/handlers"
	"github.com/efchatnet/secretconv/backend/middleware"
	"github.com/efchatnet/secretconv/backend/storage/postgres"
)

func main() {
	// Database connection
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://localhost/secretconv?sslmode=disable"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis connection
	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Initialize storage
	store := postgres.NewStore(db, rdb)

	// Run migrations
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize handlers
	conversationHandler := handlers.NewConversationHandler(store)
	messageHandler := handlers.NewMessageHandler(store)

	// Get JWT configuration from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "efchat"
	}

	// Create auth middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtSecret, jwtIssuer)

	// Setup router
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(middleware.CORS)

	// API routes
	api := r.PathPrefix("/api/secret").Subrouter()
	api.Use(authMiddleware)

	// Conversation endpoints
	api.HandleFunc("/conversations", conversationHandler.CreateConversation).Methods("POST")
	api.HandleFunc("/conversations", conversationHandler.ListConversations).Methods("GET")
	api.HandleFunc("/conversations/{conversationId}", conversationHandler.GetConversation).Methods("GET")
	api.HandleFunc("/conversations/{conversationId}/accept", conversationHandler.AcceptConversation).Methods("PATCH")
	api.HandleFunc("/conversations/{conversationId}/leave", conversationHandler.LeaveConversation).Methods("POST")

	// Message endpoints (opaque payloads; decryption happens on devices)
	api.HandleFunc("/conversations/{conversationId}/messages", messageHandler.SendMessage).Methods("POST")
	api.HandleFunc("/conversations/{conversationId}/messages", messageHandler.GetMessages).Methods("GET")
	api.HandleFunc("/conversations/{conversationId}/messages/{messageId}/read", messageHandler.MarkMessageRead).Methods("POST")

	// Health check (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Database unavailable"))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	log.Printf("Secret conversation server starting on port %s", port)
	log.Printf("JWT Issuer: %s", jwtIssuer)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
