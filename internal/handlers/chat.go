package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/inkleaf/backend/internal/chat"
	"github.com/inkleaf/backend/internal/logging"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatHandler exposes chat rooms, history, and the websocket endpoint.
type ChatHandler struct {
	Hub      *chat.Hub
	Profiles ProfileStore
	Sessions SessionManager
}

// Rooms handles GET /api/v1/chat/rooms.
func (h ChatHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	rooms, err := h.Hub.Rooms(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list chat rooms failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load rooms"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, rooms)
}

// History handles GET /api/v1/chat/rooms/{id}/messages, returning the most
// recent messages in chronological order along with the current roster.
func (h ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	roomID := r.PathValue("id")

	messages, err := h.Hub.History(ctx, roomID)
	if err != nil {
		logging.FromContext(ctx).Error("chat history failed", "roomId", roomID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"messages": messages,
		"present":  h.Hub.Presence(roomID),
	})
}

// Connect handles GET /api/v1/chat/rooms/{id}/ws, upgrading to a websocket.
// Browsers cannot set headers on websocket requests, so the access token is
// also accepted as a query parameter.
func (h ChatHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	userID, err := h.Sessions.Resolve(ctx, token)
	if err != nil {
		logger.Warn("chat access token rejected", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil {
		logger.Error("chat profile lookup failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := chat.NewClient(h.Hub, conn, r.PathValue("id"), userID, profile.Username)
	h.Hub.Join(client)

	// The request context dies when this handler returns; the connection
	// outlives it, so the pumps run against the background context.
	client.Run(context.Background())
}
