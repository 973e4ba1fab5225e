package handlers

import (
	"errors"
	"net/http"

	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/repositories"
)

// AccountHandler implements account lifecycle endpoints beyond signup.
type AccountHandler struct {
	Users    UserStore
	Sessions SessionManager
	Purger   SessionPurger
}

// Delete handles DELETE /api/v1/account. It removes the account and everything
// the user wrote, then invalidates every session the user holds.
func (h AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "account.delete")
	defer span.End()
	logger := logging.FromContext(ctx)

	userID := authenticate(w, r, h.Sessions)
	if userID == "" {
		return
	}

	if err := h.Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		logger.Error("account deletion failed", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete account"})
		return
	}

	if h.Purger != nil {
		if err := h.Purger.DeleteForUser(ctx, userID); err != nil {
			// The account is gone; stale sessions fail on the user lookup.
			logger.Warn("session purge failed", "userId", userID, "error", err)
		}
	}

	logger.Info("account deleted", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "account deleted"})
}
