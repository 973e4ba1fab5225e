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

// NovelHandler implements serialized-novel and chapter endpoints.
type NovelHandler struct {
	Novels   NovelStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

type novelRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Language    string `json:"language"`
	Status      string `json:"status"`
	CoverURL    string `json:"coverUrl"`
}

type chapterRequest struct {
	ChapterNumber int    `json:"chapterNumber"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Published     bool   `json:"published"`
}

// Collection handles /api/v1/novels: GET lists, POST creates.
func (h NovelHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h NovelHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("mine") != "" {
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		novels, err := h.Novels.ListForAuthor(ctx, userID)
		if err != nil {
			logging.FromContext(ctx).Error("list own novels failed", "userId", userID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load novels"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, novels)
		return
	}

	novels, err := h.Novels.List(ctx, 50)
	if err != nil {
		logging.FromContext(ctx).Error("list novels failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load novels"})
		return
	}
	respondJSON(ctx, w, http.StatusOK, novels)
}

func (h NovelHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req novelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	now := h.now()
	novel := models.Novel{
		ID:          uuid.NewString(),
		AuthorID:    userID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Genre:       strings.TrimSpace(req.Genre),
		Language:    strings.TrimSpace(req.Language),
		Status:      strings.TrimSpace(req.Status),
		CoverURL:    strings.TrimSpace(req.CoverURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if novel.Status == "" {
		novel.Status = "ongoing"
	}

	if err := h.Novels.Create(ctx, novel); err != nil {
		logger.Error("create novel failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create novel"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, novel)
}

// ByID handles /api/v1/novels/{id}: GET reads, PUT updates, DELETE removes.
func (h NovelHandler) ByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	novel, err := h.Novels.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "novel not found"})
			return
		}
		logger.Error("novel lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load novel"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		if err := h.Novels.RecordView(ctx, novel.ID); err != nil {
			logger.Warn("record novel view failed", "novelId", novel.ID, "error", err)
		} else {
			novel.Views++
		}
		respondJSON(ctx, w, http.StatusOK, novel)

	case http.MethodPut:
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		if novel.AuthorID != userID {
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your novel"})
			return
		}

		var req novelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title is required"})
			return
		}

		novel.Title = req.Title
		novel.Description = strings.TrimSpace(req.Description)
		novel.Genre = strings.TrimSpace(req.Genre)
		novel.Language = strings.TrimSpace(req.Language)
		if status := strings.TrimSpace(req.Status); status != "" {
			novel.Status = status
		}
		if cover := strings.TrimSpace(req.CoverURL); cover != "" {
			novel.CoverURL = cover
		}
		novel.UpdatedAt = h.now()

		if err := h.Novels.Update(ctx, novel); err != nil {
			logger.Error("update novel failed", "novelId", novel.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update novel"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, novel)

	case http.MethodDelete:
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		if novel.AuthorID != userID {
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your novel"})
			return
		}

		if err := h.Novels.Delete(ctx, novel.ID); err != nil {
			logger.Error("delete novel failed", "novelId", novel.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete novel"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Chapters handles /api/v1/novels/{id}/chapters: GET lists, POST creates.
func (h NovelHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	novel, err := h.Novels.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "novel not found"})
			return
		}
		logger.Error("novel lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load novel"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		// Readers only see published chapters; the author sees drafts too.
		publishedOnly := true
		if token := bearerToken(r); token != "" {
			if userID, err := h.Sessions.Resolve(ctx, token); err == nil && userID == novel.AuthorID {
				publishedOnly = false
			}
		}

		chapters, err := h.Novels.ListChapters(ctx, novel.ID, publishedOnly)
		if err != nil {
			logger.Error("list chapters failed", "novelId", novel.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load chapters"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, chapters)

	case http.MethodPost:
		userID := authenticate(w, r, h.Sessions)
		if userID == "" {
			return
		}
		if novel.AuthorID != userID {
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your novel"})
			return
		}

		var req chapterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.ChapterNumber <= 0 || req.Title == "" || strings.TrimSpace(req.Content) == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "chapterNumber, title, and content are required"})
			return
		}

		now := h.now()
		chapter := models.Chapter{
			ID:            uuid.NewString(),
			NovelID:       novel.ID,
			ChapterNumber: req.ChapterNumber,
			Title:         req.Title,
			Content:       req.Content,
			Published:     req.Published,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := h.Novels.CreateChapter(ctx, chapter); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "chapter number already exists"})
				return
			}
			logger.Error("create chapter failed", "novelId", novel.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create chapter"})
			return
		}
		respondJSON(ctx, w, http.StatusCreated, chapter)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ChapterByID handles /api/v1/novels/{id}/chapters/{chapterId}: PUT updates,
// DELETE removes. Author only.
func (h NovelHandler) ChapterByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	novel, err := h.Novels.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "novel not found"})
			return
		}
		logger.Error("novel lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load novel"})
		return
	}
	if novel.AuthorID != userID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "not your novel"})
		return
	}

	chapterID := r.PathValue("chapterId")

	switch r.Method {
	case http.MethodPut:
		var req chapterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || strings.TrimSpace(req.Content) == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and content are required"})
			return
		}

		chapter := models.Chapter{
			ID:        chapterID,
			NovelID:   novel.ID,
			Title:     req.Title,
			Content:   req.Content,
			Published: req.Published,
			UpdatedAt: h.now(),
		}
		if err := h.Novels.UpdateChapter(ctx, chapter); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "chapter not found"})
				return
			}
			logger.Error("update chapter failed", "chapterId", chapterID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update chapter"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "updated"})

	case http.MethodDelete:
		if err := h.Novels.DeleteChapter(ctx, chapterID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "chapter not found"})
				return
			}
			logger.Error("delete chapter failed", "chapterId", chapterID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete chapter"})
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h NovelHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
