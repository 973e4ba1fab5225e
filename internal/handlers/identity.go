package handlers

import (
	"net/http"
	"strings"

	"github.com/inkleaf/backend/internal/logging"
)

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// authenticate resolves the request's bearer token to a user id, writing the
// 401 response itself when the token is missing or invalid. An empty return
// means the response is already written.
func authenticate(w http.ResponseWriter, r *http.Request, sessions SessionManager) string {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return ""
	}

	userID, err := sessions.Resolve(ctx, token)
	if err != nil {
		logging.FromContext(ctx).Warn("access token rejected", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
		return ""
	}

	return userID
}
