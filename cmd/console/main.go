package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/affinity-engine/pkg/state"
)

type ConsoleConfig struct {
	APIBaseURL string
	ProfileID  string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		ProfileID:  os.Getenv("PROFILE_ID"),
		Timeout:    30 * time.Second,
	}

	api := &apiClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.APIBaseURL,
	}

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	profile, err := loadOrCreateProfile(api, cfg.ProfileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(api, profile),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())

	// Forward live profile events into the UI. The stream only exists when the
	// API runs on redis, so a failed connection is ignored.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan SSEEvent, 16)
	go func() {
		_ = api.listenToSSE(ctx, profile.ProfileID, events)
		close(events)
	}()
	go func() {
		for ev := range events {
			p.Send(sseEventMsg(ev))
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func loadOrCreateProfile(api *apiClient, profileID string) (*state.PlayerState, error) {
	if profileID != "" {
		return api.getProfile(profileID)
	}
	return api.createProfile()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
