package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/repositories"
)

// StoryHandler implements short-fiction endpoints.
type StoryHandler struct {
	Stories  StoryStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

type storyRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"isPublic"`
}

// Collection handles /api/v1/stories: GET lists, POST creates.
func (h StoryHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h StoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("mine") != "" {
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		stories, err := h.Stories.ListForUser(ctx, userID)
		if err != nil {
			logging.FromContext(ctx).Error("list own stories failed", "userId", userID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load stories"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, stories)
		return
	}

	stories, err := h.Stories.ListPublic(ctx, 50)
	if err != nil {
		logging.FromContext(ctx).Error("list public stories failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load stories"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, stories)
}

func (h StoryHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req storyRequest
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
	story := models.Story{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		WordCount: len(strings.Fields(req.Content)),
		IsPublic:  req.IsPublic,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Stories.Create(ctx, story); err != nil {
		logger.Error("create story failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create story"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, story)
}

// ByID handles /api/v1/stories/{id}: GET reads, PUT updates, DELETE removes.
func (h StoryHandler) ByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h StoryHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	story, err := h.Stories.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "story not found"})
			return
		}
		logging.FromContext(ctx).Error("story lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load story"})
		return
	}

	if !story.IsPublic {
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		if userID != story.UserID {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "story not found"})
			return
		}
	} else {
		// Best effort; a lost view does not fail the read.
		if err := h.Stories.RecordView(ctx, story.ID); err != nil {
			logging.FromContext(ctx).Warn("record story view failed", "storyId", story.ID, "error", err)
		} else {
			story.Views++
		}
	}

	respondJSON(ctx, w, http.StatusOK, story)
}

func (h StoryHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	story, err := h.Stories.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "story not found"})
			return
		}
		logger.Error("story lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load story"})
		return
	}
	if story.UserID != userID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your story"})
		return
	}

	var req storyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
		return
	}

	story.Title = req.Title
	story.Content = req.Content
	story.WordCount = len(strings.Fields(req.Content))
	story.IsPublic = req.IsPublic
	story.UpdatedAt = h.now()

	if err := h.Stories.Update(ctx, story); err != nil {
		logger.Error("update story failed", "storyId", story.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update story"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, story)
}

func (h StoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	story, err := h.Stories.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "story not found"})
			return
		}
		logger.Error("story lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load story"})
		return
	}
	if story.UserID != userID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your story"})
		return
	}

	if err := h.Stories.Delete(ctx, story.ID); err != nil {
		logger.Error("delete story failed", "storyId", story.ID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete story"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h StoryHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
