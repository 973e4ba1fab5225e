package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/inkleaf/backend/internal/credits"
	"github.com/inkleaf/backend/internal/logging"
)

// CreditHandler exposes the writer-credit surface.
type CreditHandler struct {
	Credits  CreditService
	Sessions SessionManager
}

// Balance handles GET /api/v1/credits.
func (h CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	ledger, err := h.Credits.Balance(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("credit balance failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load credits"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, ledger)
}

// Eligible handles GET /api/v1/credits/milestones.
func (h CreditHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	claimables, err := h.Credits.Eligible(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("eligible milestones failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load milestones"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, claimables)
}

// Claim handles POST /api/v1/credits/claim {storyId|novelId, milestone}.
func (h CreditHandler) Claim(w http.ResponseWriter, r *http.Request) {
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
		StoryID   string `json:"storyId"`
		NovelID   string `json:"novelId"`
		Milestone int64  `json:"milestone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var err error
	switch {
	case req.StoryID != "" && req.NovelID == "":
		err = h.Credits.ClaimStory(ctx, userID, req.StoryID, req.Milestone)
	case req.NovelID != "" && req.StoryID == "":
		err = h.Credits.ClaimNovel(ctx, userID, req.NovelID, req.Milestone)
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "exactly one of storyId or novelId is required"})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, credits.ErrAlreadyClaimed):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "milestone already claimed"})
		case errors.Is(err, credits.ErrNotEligible):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "milestone not eligible"})
		default:
			logger.Error("milestone claim failed", "userId", userID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to claim milestone"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "claimed"})
}

// History handles GET /api/v1/credits/transactions.
func (h CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.Credits.History(ctx, userID, limit)
	if err != nil {
		logging.FromContext(ctx).Error("credit history failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load transactions"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, txns)
}
