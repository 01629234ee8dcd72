package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/robot-engine/internal/storage"
)

type ProgressRequest struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
}

type ProgressResponse struct {
	Username string `json:"username"`
	Level    int    `json:"level"`
}

// ProgressHandler is the cloud save: the highest level a user has unlocked.
type ProgressHandler struct {
	store  storage.ProgressStore
	logger *slog.Logger
}

func NewProgressHandler(store storage.ProgressStore, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{store: store, logger: logger}
}

// ServeHTTP handles
// GET  /v1/progress?username={name}
// POST /v1/progress {"username": "...", "level": n}
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			writeError(w, h.logger, http.StatusBadRequest, "Missing username")
			return
		}
		lvl, err := h.store.GetProgress(r.Context(), username)
		if err != nil {
			h.logger.Error("Failed to load progress", "username", username, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load progress")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, ProgressResponse{Username: strings.ToLower(username), Level: lvl})

	case http.MethodPost:
		var req ProgressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			writeError(w, h.logger, http.StatusBadRequest, "Missing username")
			return
		}
		if req.Level < 1 {
			writeError(w, h.logger, http.StatusBadRequest, "Level must be at least 1")
			return
		}
		if err := h.store.SetProgress(r.Context(), req.Username, req.Level); err != nil {
			h.logger.Error("Failed to save progress", "username", req.Username, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to save progress")
			return
		}
		h.logger.Info("Progress saved", "username", req.Username, "level", req.Level)
		writeJSON(w, h.logger, http.StatusOK, ProgressResponse{Username: strings.ToLower(req.Username), Level: req.Level})

	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, POST")
	}
}
