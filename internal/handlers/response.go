package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/affinity-engine/internal/game"
	"github.com/jwebster45206/affinity-engine/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, game.ErrProfileNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, state.ErrInvalidDelta):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrEpisodeUnavailable),
		errors.Is(err, game.ErrChoiceUnavailable),
		errors.Is(err, game.ErrNoActiveBeat):
		writeError(w, logger, http.StatusConflict, err.Error())
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

func methodNotAllowed(w http.ResponseWriter, logger *slog.Logger, r *http.Request) {
	logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path)
	writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
}

// pathParts splits the request path after prefix into its non-empty segments.
func pathParts(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
