package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/affinity-engine/internal/game"
	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/reward"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/jwebster45206/affinity-engine/pkg/story"
)

type ChoiceRequest struct {
	Scene    string `json:"scene"`
	ChoiceID string `json:"choice_id"`
}

type EventRequest struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type TimeRequest struct {
	TimeOfDay string `json:"time_of_day"`
}

type SceneResponse struct {
	Scene   string         `json:"scene"`
	Choices []story.Choice `json:"choices"`
	Optimal []string       `json:"optimal"`
}

type PathsResponse struct {
	Paths []story.StoryPath `json:"paths"`
}

type InboxResponse struct {
	Messages []storage.Message `json:"messages"`
}

type GreetingResponse struct {
	Location string `json:"location"`
	Activity string `json:"activity"`
	Greeting string `json:"greeting"`
}

// ProfilesHandler handles HTTP requests for profile operations
// Routes:
// POST   /v1/profiles                               - Create a profile
// GET    /v1/profiles/{id}                          - Read a profile
// DELETE /v1/profiles/{id}                          - Delete a profile
// GET    /v1/profiles/{id}/paths                    - Evaluate story paths
// GET    /v1/profiles/{id}/scenes/{scene}           - Legal choices for a scene
// POST   /v1/profiles/{id}/choices                  - Apply a dialogue choice
// POST   /v1/profiles/{id}/activities               - Apply activity rewards
// PUT    /v1/profiles/{id}/time                     - Change the time of day
// GET    /v1/profiles/{id}/episodes                 - Episodes available to the profile
// POST   /v1/profiles/{id}/episodes/{episode}/start - Start an episode
// POST   /v1/profiles/{id}/events                   - Report an event to the active beat
// GET    /v1/profiles/{id}/inbox                    - Pending communicator messages
// DELETE /v1/profiles/{id}/inbox                    - Clear the inbox
// GET    /v1/profiles/{id}/greeting                 - Greeting for ?location=&activity=
type ProfilesHandler struct {
	service *game.Service
	logger  *slog.Logger
}

func NewProfilesHandler(service *game.Service, logger *slog.Logger) *ProfilesHandler {
	return &ProfilesHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ProfilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/profiles")

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, h.logger, r)
			return
		}
		h.handleCreate(w, r)
		return
	}

	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			methodNotAllowed(w, h.logger, r)
		}
		return
	}

	route := r.Method + " " + parts[1]
	switch {
	case route == "GET paths" && len(parts) == 2:
		h.handlePaths(w, r, id)
	case route == "GET scenes" && len(parts) == 3:
		h.handleScene(w, r, id, parts[2])
	case route == "POST choices" && len(parts) == 2:
		h.handleChoice(w, r, id)
	case route == "POST activities" && len(parts) == 2:
		h.handleActivity(w, r, id)
	case route == "PUT time" && len(parts) == 2:
		h.handleTime(w, r, id)
	case route == "GET episodes" && len(parts) == 2:
		h.handleEpisodes(w, r, id)
	case route == "POST episodes" && len(parts) == 4 && parts[3] == "start":
		h.handleStart(w, r, id, parts[2])
	case route == "POST events" && len(parts) == 2:
		h.handleEvent(w, r, id)
	case (route == "GET inbox" || route == "DELETE inbox") && len(parts) == 2:
		h.handleInbox(w, r, id)
	case route == "GET greeting" && len(parts) == 2:
		h.handleGreeting(w, r, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *ProfilesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ps, err := h.service.CreateProfile(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, ps)
}

func (h *ProfilesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	ps, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ps)
}

func (h *ProfilesHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteProfile(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) handlePaths(w http.ResponseWriter, r *http.Request, id string) {
	paths, err := h.service.Paths(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, PathsResponse{Paths: paths})
}

func (h *ProfilesHandler) handleScene(w http.ResponseWriter, r *http.Request, id, scene string) {
	choices, err := h.service.ChoicesForScene(r.Context(), id, scene)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := SceneResponse{Scene: scene, Choices: choices, Optimal: []string{}}
	if resp.Choices == nil {
		resp.Choices = []story.Choice{}
	}
	for _, c := range story.OptimalChoices(choices) {
		resp.Optimal = append(resp.Optimal, c.ID)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *ProfilesHandler) handleChoice(w http.ResponseWriter, r *http.Request, id string) {
	var req ChoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Scene == "" || req.ChoiceID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "scene and choice_id are required")
		return
	}

	res, err := h.service.MakeChoice(r.Context(), id, req.Scene, req.ChoiceID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ProfilesHandler) handleActivity(w http.ResponseWriter, r *http.Request, id string) {
	var activity reward.Activity
	if !h.decode(w, r, &activity) {
		return
	}

	res, err := h.service.CompleteActivity(r.Context(), id, activity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ProfilesHandler) handleTime(w http.ResponseWriter, r *http.Request, id string) {
	var req TimeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ps, err := h.service.SetTimeOfDay(r.Context(), id, req.TimeOfDay)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ps)
}

func (h *ProfilesHandler) handleEpisodes(w http.ResponseWriter, r *http.Request, id string) {
	episodes, err := h.service.AvailableEpisodes(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if episodes == nil {
		episodes = []episode.Episode{}
	}
	writeJSON(w, h.logger, http.StatusOK, EpisodesListResponse{Episodes: episodes})
}

func (h *ProfilesHandler) handleStart(w http.ResponseWriter, r *http.Request, id, episodeID string) {
	ps, err := h.service.StartEpisode(r.Context(), id, episodeID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ps)
}

func (h *ProfilesHandler) handleEvent(w http.ResponseWriter, r *http.Request, id string) {
	var req EventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Event == "" {
		writeError(w, h.logger, http.StatusBadRequest, "event is required")
		return
	}

	res, err := h.service.CompleteBeat(r.Context(), id, req.Event, req.Data)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ProfilesHandler) handleInbox(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method == http.MethodDelete {
		if err := h.service.ClearInbox(r.Context(), id); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	msgs, err := h.service.Inbox(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, InboxResponse{Messages: msgs})
}

func (h *ProfilesHandler) handleGreeting(w http.ResponseWriter, r *http.Request, id string) {
	location := r.URL.Query().Get("location")
	activity := r.URL.Query().Get("activity")

	greeting, err := h.service.Greeting(r.Context(), id, location, activity)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, GreetingResponse{
		Location: location,
		Activity: activity,
		Greeting: greeting,
	})
}

func (h *ProfilesHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
