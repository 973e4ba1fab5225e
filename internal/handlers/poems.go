package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/models"
)

// PoemHandler implements verse endpoints.
type PoemHandler struct {
	Poems    PoemStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

// Collection handles /api/v1/poems: GET lists, POST creates.
func (h PoemHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h PoemHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("mine") != "" {
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		poems, err := h.Poems.ListForUser(ctx, userID)
		if err != nil {
			logging.FromContext(ctx).Error("list own poems failed", "userId", userID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load poems"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, poems)
		return
	}

	poems, err := h.Poems.ListPublic(ctx, 50)
	if err != nil {
		logging.FromContext(ctx).Error("list public poems failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load poems"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, poems)
}

func (h PoemHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		IsPublic bool   `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
		return
	}

	now := h.now()
	poem := models.Poem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		IsPublic:  req.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Poems.Create(ctx, poem); err != nil {
		logger.Error("create poem failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create poem"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, poem)
}

// Delete handles DELETE /api/v1/poems/{id} for the author.
func (h PoemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	poems, err := h.Poems.ListForUser(ctx, userID)
	if err != nil {
		logger.Error("list own poems failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load poems"})
		return
	}

	id := r.PathValue("id")
	owned := false
	for _, poem := range poems {
		if poem.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "poem not found"})
		return
	}

	if err := h.Poems.Delete(ctx, id); err != nil {
		logger.Error("delete poem failed", "poemId", id, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete poem"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h PoemHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
