package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler constructs the handler, stamping the process start time.
func NewHealthHandler() HealthHandler {
	return HealthHandler{started: time.Now().UTC()}
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{
		"status":  "ok",
		"service": "inkleaf-backend",
	}
	if !h.started.IsZero() {
		payload["uptime"] = time.Since(h.started).Round(time.Second).String()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
