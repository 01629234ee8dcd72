package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/internal/logger"
	"github.com/jwebster45206/robot-engine/internal/services/session"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

// CreateSessionRequest starts a session. Without level_index the session
// opens at the user's saved progress.
type CreateSessionRequest struct {
	Username   string `json:"username,omitempty"`
	LevelIndex *int   `json:"level_index,omitempty"`
}

type ScriptRequest struct {
	Script string `json:"script"`
}

type SetLevelRequest struct {
	Index int `json:"index"`
}

type NextLevelResponse struct {
	Advanced bool         `json:"advanced"`
	Session  session.View `json:"session"`
}

type SessionsHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewSessionsHandler(manager *session.Manager, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{manager: manager, logger: logger}
}

// ServeHTTP handles HTTP requests for play sessions
// Routes:
// POST   /v1/sessions               - Create a session
// GET    /v1/sessions/{id}          - Read a session
// DELETE /v1/sessions/{id}          - Delete a session
// POST   /v1/sessions/{id}/run      - Run a script from the start
// POST   /v1/sessions/{id}/continue - Run only the newly added actions
// POST   /v1/sessions/{id}/level    - Switch level
// POST   /v1/sessions/{id}/next     - Advance to the next level
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}
	switch parts[1] {
	case "run":
		h.handleLaunch(w, r, id, engine.ModeRun)
	case "continue":
		h.handleLaunch(w, r, id, engine.ModeContinue)
	case "level":
		h.handleSetLevel(w, r, id)
	case "next":
		h.handleNext(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
	}
	index := -1
	if req.LevelIndex != nil {
		if *req.LevelIndex < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "level_index must not be negative")
			return
		}
		index = *req.LevelIndex
	}

	s, err := h.manager.Create(r.Context(), strings.TrimSpace(req.Username), index)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, s.View())
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.View())
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.writeSessionError(w, err)
		return
	}
	logger.WithSession(h.logger, id.String()).Info("Session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleLaunch starts the run and answers before it finishes. Progress
// arrives on the session's event stream.
func (h *SessionsHandler) handleLaunch(w http.ResponseWriter, r *http.Request, id uuid.UUID, mode engine.Mode) {
	var req ScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	var (
		s   *session.Session
		err error
	)
	if mode == engine.ModeContinue {
		s, err = h.manager.Continue(r.Context(), id, req.Script)
	} else {
		s, err = h.manager.Run(r.Context(), id, req.Script)
	}
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	logger.WithSession(h.logger, id.String()).Info("Run launched", "mode", mode.String())
	writeJSON(w, h.logger, http.StatusAccepted, s.View())
}

func (h *SessionsHandler) handleSetLevel(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req SetLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	s, err := h.manager.SetLevel(r.Context(), id, req.Index)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.View())
}

func (h *SessionsHandler) handleNext(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, advanced, err := h.manager.NextLevel(r.Context(), id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, NextLevelResponse{Advanced: advanced, Session: s.View()})
}

func (h *SessionsHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
	case errors.Is(err, level.ErrLevelOutOfRange):
		writeError(w, h.logger, http.StatusBadRequest, "Level index out of range")
	case errors.Is(err, engine.ErrBusy):
		writeError(w, h.logger, http.StatusConflict, "A run is already in progress")
	case errors.Is(err, engine.ErrCannotContinue):
		writeError(w, h.logger, http.StatusConflict, "Nothing to continue. Run the script first.")
	case errors.Is(err, engine.ErrNoLevel):
		writeError(w, h.logger, http.StatusConflict, "No level loaded")
	default:
		logger.WithError(h.logger, err).Error("Session request failed")
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}
