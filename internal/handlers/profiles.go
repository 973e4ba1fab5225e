package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/repositories"
	"github.com/inkleaf/backend/internal/storage"
)

const maxAvatarBytes = 5 << 20

// ProfileHandler implements public profile endpoints.
type ProfileHandler struct {
	Profiles ProfileStore
	Sessions SessionManager
	Media    MediaUploader
	NowFunc  func() time.Time
}

// Get handles GET /api/v1/profiles/{id}.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	profile, err := h.Profiles.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "profile not found"})
			return
		}
		logging.FromContext(ctx).Error("profile lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}

// Search handles GET /api/v1/profiles?q=.
func (h ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "q query parameter is required"})
		return
	}

	profiles, err := h.Profiles.Search(ctx, query, 25)
	if err != nil {
		logging.FromContext(ctx).Error("profile search failed", "query", query, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, profiles)
}

// Update handles PUT /api/v1/profile for the authenticated user.
func (h ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	var req struct {
		DisplayName       string `json:"displayName"`
		Bio               string `json:"bio"`
		PreferredLanguage string `json:"preferredLanguage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil {
		logger.Error("profile lookup failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}

	profile.DisplayName = strings.TrimSpace(req.DisplayName)
	profile.Bio = strings.TrimSpace(req.Bio)
	profile.PreferredLanguage = strings.TrimSpace(req.PreferredLanguage)
	profile.UpdatedAt = h.now()

	if err := h.Profiles.Update(ctx, profile); err != nil {
		logger.Error("profile update failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}

// UploadAvatar handles POST /api/v1/profile/avatar with an image body.
func (h ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	if h.Media == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "media uploads are not configured"})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar must be an image"})
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	name := fmt.Sprintf("%s%s", userID, extensionFor(contentType))
	location, err := h.Media.Save(ctx, storage.AvatarPrefix, name, contentType, body)
	if err != nil {
		logger.Error("avatar upload failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to store avatar"})
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil {
		logger.Error("profile lookup failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}

	profile.AvatarURL = location
	profile.UpdatedAt = h.now()
	if err := h.Profiles.Update(ctx, profile); err != nil {
		logger.Error("avatar profile update failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"avatarUrl": location})
}

func (h ProfileHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
