package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jwebster45206/robot-engine/pkg/level"
)

// LevelSummary is one row of the level list.
type LevelSummary struct {
	Index      int    `json:"index"`
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Difficulty int    `json:"difficulty,omitempty"`
}

type LevelsHandler struct {
	catalog *level.Catalog
	logger  *slog.Logger
}

func NewLevelsHandler(catalog *level.Catalog, logger *slog.Logger) *LevelsHandler {
	return &LevelsHandler{catalog: catalog, logger: logger}
}

// ServeHTTP handles
// GET /v1/levels          - list levels in play order
// GET /v1/levels/{index}  - full level template
func (h *LevelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/levels"), "/")
	if path == "" {
		all := h.catalog.All()
		list := make([]LevelSummary, len(all))
		for i, l := range all {
			list[i] = LevelSummary{Index: i, ID: l.ID, Title: l.Title, Difficulty: l.Difficulty}
		}
		writeJSON(w, h.logger, http.StatusOK, list)
		return
	}

	index, err := strconv.Atoi(path)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Level index must be a number")
		return
	}
	lvl, err := h.catalog.Get(index)
	if errors.Is(err, level.ErrLevelOutOfRange) {
		writeError(w, h.logger, http.StatusNotFound, "Level not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load level", "index", index, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load level")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, lvl)
}
