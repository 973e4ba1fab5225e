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

// DiaryHandler implements journal endpoints. Entries are only ever visible to
// their author.
type DiaryHandler struct {
	Diary    DiaryStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

type diaryRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Mood      string `json:"mood"`
	IsPrivate *bool  `json:"isPrivate"`
	IsPinned  bool   `json:"isPinned"`
}

// Collection handles /api/v1/diary: GET lists own entries, POST creates.
func (h DiaryHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h DiaryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	entries, err := h.Diary.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list diary entries failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load entries"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, entries)
}

func (h DiaryHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req diaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
		return
	}

	// Private unless the author explicitly opens the entry up.
	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	now := h.now()
	entry := models.DiaryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		Mood:      strings.TrimSpace(req.Mood),
		IsPrivate: isPrivate,
		IsPinned:  req.IsPinned,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Diary.Create(ctx, entry); err != nil {
		logger.Error("create diary entry failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create entry"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, entry)
}

// ByID handles /api/v1/diary/{id}: GET, PUT, DELETE for the author only.
func (h DiaryHandler) ByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	entry, err := h.Diary.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "entry not found"})
			return
		}
		logger.Error("diary entry lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load entry"})
		return
	}
	if entry.UserID != userID {
		// Do not reveal that the entry exists.
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "entry not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		respondJSON(ctx, w, http.StatusOK, entry)

	case http.MethodPut:
		var req diaryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || strings.TrimSpace(req.Content) == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
			return
		}

		entry.Title = req.Title
		entry.Content = req.Content
		entry.Mood = strings.TrimSpace(req.Mood)
		if req.IsPrivate != nil {
			entry.IsPrivate = *req.IsPrivate
		}
		entry.IsPinned = req.IsPinned
		entry.UpdatedAt = h.now()

		if err := h.Diary.Update(ctx, entry); err != nil {
			logger.Error("update diary entry failed", "entryId", entry.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update entry"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, entry)

	case http.MethodDelete:
		if err := h.Diary.Delete(ctx, entry.ID); err != nil {
			logger.Error("delete diary entry failed", "entryId", entry.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete entry"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h DiaryHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
