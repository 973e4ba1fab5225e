package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/inkleaf/backend/internal/friends"
	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/models"
)

// FriendHandler exposes the friendship registry over HTTP.
type FriendHandler struct {
	Registries FriendshipRegistries
	Sessions   SessionManager
}

// relationshipView is the wire shape for one relationship, seen from the
// requesting user's side.
type relationshipView struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	RequesterID string          `json:"requesterId"`
	AddresseeID string          `json:"addresseeId"`
	BlockedByMe bool            `json:"blockedByMe,omitempty"`
	Counterpart *models.Profile `json:"counterpart,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type partitionsResponse struct {
	Friends         []relationshipView `json:"friends"`
	PendingReceived []relationshipView `json:"pendingReceived"`
	PendingSent     []relationshipView `json:"pendingSent"`
	Blocked         []relationshipView `json:"blocked"`
}

// List handles GET /api/v1/friends, returning the four partitions.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	registry, err := h.Registries.Registry(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("friendship registry unavailable", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "friendships are temporarily unavailable"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, partitionsResponse{
		Friends:         viewsFor(userID, registry.Friends()),
		PendingReceived: viewsFor(userID, registry.PendingReceived()),
		PendingSent:     viewsFor(userID, registry.PendingSent()),
		Blocked:         viewsFor(userID, registry.Blocked()),
	})
}

// Status handles GET /api/v1/friends/status?userId=, returning the derived
// relationship status toward the counterpart.
func (h FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	counterpart := strings.TrimSpace(r.URL.Query().Get("userId"))
	if counterpart == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "userId query parameter is required"})
		return
	}

	registry, err := h.Registries.Registry(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("friendship registry unavailable", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "friendships are temporarily unavailable"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"status":       string(registry.Status(counterpart)),
		"friendshipId": registry.FriendshipID(counterpart),
	})
}

// SendRequest handles POST /api/v1/friends/requests {userId}.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	h.mutateTarget(w, r, func(registry *friends.Registry, targetID string) error {
		return registry.SendRequest(r.Context(), targetID)
	})
}

// Block handles POST /api/v1/friends/block {userId}.
func (h FriendHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.mutateTarget(w, r, func(registry *friends.Registry, targetID string) error {
		return registry.Block(r.Context(), targetID)
	})
}

// Accept handles POST /api/v1/friends/requests/{id}/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, func(registry *friends.Registry, id string) error {
		return registry.Accept(r.Context(), id)
	})
}

// Reject handles POST /api/v1/friends/requests/{id}/reject. The requester may
// use the same endpoint to cancel a request they sent.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, func(registry *friends.Registry, id string) error {
		return registry.Reject(r.Context(), id)
	})
}

// Remove handles DELETE /api/v1/friends/{id}.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.mutate(w, r, func(registry *friends.Registry) error {
		return registry.RemoveFriend(r.Context(), r.PathValue("id"))
	})
}

// Unblock handles POST /api/v1/friends/{id}/unblock.
func (h FriendHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, func(registry *friends.Registry, id string) error {
		return registry.Unblock(r.Context(), id)
	})
}

func (h FriendHandler) mutateTarget(w http.ResponseWriter, r *http.Request, op func(*friends.Registry, string) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	h.mutate(w, r, func(registry *friends.Registry) error {
		return op(registry, strings.TrimSpace(req.UserID))
	})
}

func (h FriendHandler) mutateByID(w http.ResponseWriter, r *http.Request, op func(*friends.Registry, string) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.mutate(w, r, func(registry *friends.Registry) error {
		return op(registry, r.PathValue("id"))
	})
}

func (h FriendHandler) mutate(w http.ResponseWriter, r *http.Request, op func(*friends.Registry) error) {
	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	registry, err := h.Registries.Registry(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("friendship registry unavailable", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "friendships are temporarily unavailable"})
		return
	}

	if err := op(registry); err != nil {
		status, message := friendshipErrorStatus(err)
		respondJSON(ctx, w, status, map[string]string{"error": message})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func friendshipErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, friends.ErrNotAuthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, friends.ErrInvalidTarget):
		return http.StatusBadRequest, "invalid relationship target"
	case errors.Is(err, friends.ErrDuplicateRelationship):
		return http.StatusConflict, "relationship already exists"
	default:
		return http.StatusBadGateway, "friendships are temporarily unavailable"
	}
}

func viewsFor(userID string, relationships []models.Friendship) []relationshipView {
	views := make([]relationshipView, 0, len(relationships))
	for _, rel := range relationships {
		views = append(views, relationshipView{
			ID:          rel.ID,
			Status:      rel.Status,
			RequesterID: rel.RequesterID,
			AddresseeID: rel.AddresseeID,
			BlockedByMe: rel.BlockedBy == userID,
			Counterpart: rel.CounterpartProfile(userID),
			CreatedAt:   rel.CreatedAt,
			UpdatedAt:   rel.UpdatedAt,
		})
	}
	return views
}
