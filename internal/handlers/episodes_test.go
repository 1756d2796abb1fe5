package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodesHandler_List(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.episodes, http.MethodGet, "/v1/episodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[EpisodesListResponse](t, w)
	require.Len(t, resp.Episodes, 1)
	assert.Equal(t, episode.DefaultID, resp.Episodes[0].ID)

	f.store.AddEpisode(episode.Episode{ID: "b_gate", Title: "B Gate", Beats: []episode.Beat{{ID: 1}}})
	f.store.AddEpisode(episode.Episode{ID: "a_date", Title: "A Date", Beats: []episode.Beat{{ID: 1}}})

	w = do(t, f.episodes, http.MethodGet, "/v1/episodes/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[EpisodesListResponse](t, w)
	require.Len(t, resp.Episodes, 2)
	assert.Equal(t, "a_date", resp.Episodes[0].ID)
	assert.Equal(t, "b_gate", resp.Episodes[1].ID)
}

func TestEpisodesHandler_GetAndDelete(t *testing.T) {
	f := newFixture(t)
	f.store.AddEpisode(episode.Episode{ID: "gate_run", Title: "Gate Run", Beats: []episode.Beat{{ID: 1}}})

	w := do(t, f.episodes, http.MethodGet, "/v1/episodes/gate_run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Gate Run", decodeBody[episode.Episode](t, w).Title)

	w = do(t, f.episodes, http.MethodDelete, "/v1/episodes/gate_run", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// deleting twice is not an error
	w = do(t, f.episodes, http.MethodDelete, "/v1/episodes/gate_run", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, f.episodes, http.MethodGet, "/v1/episodes/gate_run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Episode not found", decodeBody[ErrorResponse](t, w).Error)
}

func TestEpisodesHandler_Errors(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.episodes, http.MethodPost, "/v1/episodes", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, f.episodes, http.MethodPut, "/v1/episodes/x", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, f.episodes, http.MethodGet, "/v1/episodes/x/y", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.store.SetLedgerError(errors.New("ledger offline"))
	w = do(t, f.episodes, http.MethodDelete, "/v1/episodes/x", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
