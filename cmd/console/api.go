package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/jwebster45206/affinity-engine/pkg/story"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// apiClient talks to the affinity engine HTTP API.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends body (if any) as JSON and decodes the response into out (if any).
func (c *apiClient) call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) createProfile() (*state.PlayerState, error) {
	var ps state.PlayerState
	if err := c.call(http.MethodPost, "/v1/profiles", nil, &ps); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &ps, nil
}

func (c *apiClient) getProfile(profileID string) (*state.PlayerState, error) {
	var ps state.PlayerState
	if err := c.call(http.MethodGet, "/v1/profiles/"+profileID, nil, &ps); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &ps, nil
}

type sceneResponse struct {
	Scene   string         `json:"scene"`
	Choices []story.Choice `json:"choices"`
	Optimal []string       `json:"optimal"`
}

func (c *apiClient) getScene(profileID, scene string) (*sceneResponse, error) {
	var resp sceneResponse
	path := fmt.Sprintf("/v1/profiles/%s/scenes/%s", profileID, url.PathEscape(scene))
	if err := c.call(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type choiceResult struct {
	Profile       *state.PlayerState `json:"profile"`
	UnlockedPaths []string           `json:"unlocked_paths"`
}

func (c *apiClient) makeChoice(profileID, scene, choiceID string) (*choiceResult, error) {
	var res choiceResult
	body := map[string]string{"scene": scene, "choice_id": choiceID}
	if err := c.call(http.MethodPost, "/v1/profiles/"+profileID+"/choices", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) listEpisodes(profileID string) ([]episode.Episode, error) {
	var resp struct {
		Episodes []episode.Episode `json:"episodes"`
	}
	if err := c.call(http.MethodGet, "/v1/profiles/"+profileID+"/episodes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Episodes, nil
}

func (c *apiClient) startEpisode(profileID, episodeID string) (*state.PlayerState, error) {
	var ps state.PlayerState
	path := fmt.Sprintf("/v1/profiles/%s/episodes/%s/start", profileID, url.PathEscape(episodeID))
	if err := c.call(http.MethodPost, path, nil, &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

type beatResult struct {
	Profile          *state.PlayerState `json:"profile"`
	Completed        bool               `json:"completed"`
	NextBeat         *episode.Beat      `json:"next_beat"`
	EpisodeCompleted bool               `json:"episode_completed"`
}

func (c *apiClient) sendEvent(profileID, event string, data map[string]any) (*beatResult, error) {
	var res beatResult
	body := map[string]any{"event": event, "data": data}
	if err := c.call(http.MethodPost, "/v1/profiles/"+profileID+"/events", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) setTime(profileID, timeOfDay string) (*state.PlayerState, error) {
	var ps state.PlayerState
	body := map[string]string{"time_of_day": timeOfDay}
	if err := c.call(http.MethodPut, "/v1/profiles/"+profileID+"/time", body, &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

func (c *apiClient) inbox(profileID string) ([]storage.Message, error) {
	var resp struct {
		Messages []storage.Message `json:"messages"`
	}
	if err := c.call(http.MethodGet, "/v1/profiles/"+profileID+"/inbox", nil, &resp); err != nil {
		return nil, err
	}
	if err := c.call(http.MethodDelete, "/v1/profiles/"+profileID+"/inbox", nil, nil); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *apiClient) greeting(profileID, location, activity string) (string, error) {
	var resp struct {
		Greeting string `json:"greeting"`
	}
	q := url.Values{"location": {location}, "activity": {activity}}
	if err := c.call(http.MethodGet, "/v1/profiles/"+profileID+"/greeting?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}
	return resp.Greeting, nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type      string         `json:"type"`
	EpisodeID string         `json:"episode_id"`
	Data      map[string]any `json:"data"`
}

// listenToSSE connects to the profile event stream and forwards events to eventChan.
// It returns when the stream ends or ctx is cancelled.
func (c *apiClient) listenToSSE(ctx context.Context, profileID string, eventChan chan<- SSEEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events/profiles/"+profileID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// the shared client has a timeout that would cut the stream
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if currentEvent.Type != "" {
				select {
				case eventChan <- currentEvent:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentEvent = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			var payload SSEEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err == nil {
				currentEvent.EpisodeID = payload.EpisodeID
				currentEvent.Data = payload.Data
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
