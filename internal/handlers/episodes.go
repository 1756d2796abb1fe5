package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/affinity-engine/internal/game"
	"github.com/jwebster45206/affinity-engine/pkg/engine"
	"github.com/jwebster45206/affinity-engine/pkg/episode"
)

// EpisodesListResponse is the body of GET /v1/episodes.
type EpisodesListResponse struct {
	Episodes []episode.Episode `json:"episodes"`
}

// EpisodesHandler serves the episode catalog.
// Routes:
// GET    /v1/episodes      - List available episodes
// GET    /v1/episodes/{id} - Read one episode
// DELETE /v1/episodes/{id} - Remove an episode from play
type EpisodesHandler struct {
	engine  *engine.Engine
	service *game.Service
	logger  *slog.Logger
}

func NewEpisodesHandler(eng *engine.Engine, service *game.Service, logger *slog.Logger) *EpisodesHandler {
	return &EpisodesHandler{
		engine:  eng,
		service: service,
		logger:  logger,
	}
}

func (h *EpisodesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/episodes")
	if len(parts) > 1 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, h.logger, r)
			return
		}
		episodes := h.engine.ListAvailableEpisodes(r.Context())
		writeJSON(w, h.logger, http.StatusOK, EpisodesListResponse{Episodes: episodes})
		return
	}

	id := parts[0]
	switch r.Method {
	case http.MethodGet:
		ep, ok := h.engine.GetEpisode(r.Context(), id)
		if !ok {
			writeError(w, h.logger, http.StatusNotFound, "Episode not found")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, ep)

	case http.MethodDelete:
		if err := h.service.DeleteEpisode(r.Context(), id); err != nil {
			h.logger.Error("Failed to delete episode", "episode_id", id, "error", err)
			writeError(w, h.logger, http.StatusServiceUnavailable, "Failed to delete episode")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, h.logger, r)
	}
}
