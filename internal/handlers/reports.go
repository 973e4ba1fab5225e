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

// ReportHandler implements story reporting and the moderation queue.
type ReportHandler struct {
	Reports  ReportStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

// Create handles POST /api/v1/reports {storyId, reason}.
func (h ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		StoryID string `json:"storyId"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.StoryID = strings.TrimSpace(req.StoryID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.StoryID == "" || req.Reason == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "storyId and reason are required"})
		return
	}

	report := models.Report{
		ID:         uuid.NewString(),
		ReporterID: userID,
		StoryID:    req.StoryID,
		Reason:     req.Reason,
		Status:     models.ReportOpen,
		CreatedAt:  h.now(),
		UpdatedAt:  h.now(),
	}

	if err := h.Reports.Create(ctx, report); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "story not found"})
			return
		}
		logger.Error("create report failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to submit report"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, report)
}

// List handles GET /api/v1/admin/reports?status=. Admin only.
func (h ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := h.requireAdmin(w, r)
	if userID == "" {
		return
	}

	reports, err := h.Reports.List(ctx, strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		logging.FromContext(ctx).Error("list reports failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load reports"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, reports)
}

// Resolve handles POST /api/v1/admin/reports/{id} {status, notes}. Admin only.
func (h ReportHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := h.requireAdmin(w, r)
	if userID == "" {
		return
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status != models.ReportResolved && req.Status != models.ReportDismissed {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "status must be resolved or dismissed"})
		return
	}

	if err := h.Reports.Resolve(ctx, r.PathValue("id"), req.Status, strings.TrimSpace(req.Notes)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "report not found"})
			return
		}
		logger.Error("resolve report failed", "reportId", r.PathValue("id"), "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve report"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h ReportHandler) requireAdmin(w http.ResponseWriter, r *http.Request) string {
	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return ""
	}

	isAdmin, err := h.Reports.HasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		logging.FromContext(ctx).Error("role lookup failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to verify permissions"})
		return ""
	}
	if !isAdmin {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "admin access required"})
		return ""
	}

	return userID
}

func (h ReportHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
