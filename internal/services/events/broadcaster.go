package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeStatsUpdated     EventType = "profile.stats_updated"
	EventTypePathUnlocked     EventType = "profile.path_unlocked"
	EventTypeBeatCompleted    EventType = "episode.beat_completed"
	EventTypeEpisodeCompleted EventType = "episode.completed"
	EventTypeEpisodeDeleted   EventType = "episode.deleted"
	EventTypeMessageReceived  EventType = "inbox.message"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	ProfileID string         `json:"profile_id,omitempty"`
	EpisodeID string         `json:"episode_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ProfileChannel is the pub/sub channel carrying events for one profile.
func ProfileChannel(profileID string) string {
	return fmt.Sprintf("profile-events:%s", profileID)
}

// CatalogChannel carries catalog-wide events such as deletions.
const CatalogChannel = "catalog-events"

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishStatsUpdated publishes the relationship stats after a change.
func (b *Broadcaster) PublishStatsUpdated(ctx context.Context, profileID string, affection, intimacy, trust int, stage string) error {
	return b.publish(ctx, ProfileChannel(profileID), Event{
		Type:      EventTypeStatsUpdated,
		ProfileID: profileID,
		Data: map[string]any{
			"affection_level":      affection,
			"intimacy_level":       intimacy,
			"trust_level":          trust,
			"romantic_progression": stage,
		},
	})
}

// PublishPathUnlocked publishes a newly unlocked story path.
func (b *Broadcaster) PublishPathUnlocked(ctx context.Context, profileID, pathID string) error {
	return b.publish(ctx, ProfileChannel(profileID), Event{
		Type:      EventTypePathUnlocked,
		ProfileID: profileID,
		Data:      map[string]any{"path_id": pathID},
	})
}

// PublishBeatCompleted publishes a completed beat.
func (b *Broadcaster) PublishBeatCompleted(ctx context.Context, profileID, episodeID string, beatID int) error {
	return b.publish(ctx, ProfileChannel(profileID), Event{
		Type:      EventTypeBeatCompleted,
		ProfileID: profileID,
		EpisodeID: episodeID,
		Data:      map[string]any{"beat_id": beatID},
	})
}

// PublishEpisodeCompleted publishes a completed episode.
func (b *Broadcaster) PublishEpisodeCompleted(ctx context.Context, profileID, episodeID string) error {
	return b.publish(ctx, ProfileChannel(profileID), Event{
		Type:      EventTypeEpisodeCompleted,
		ProfileID: profileID,
		EpisodeID: episodeID,
	})
}

// PublishMessageReceived publishes a communicator message delivery.
func (b *Broadcaster) PublishMessageReceived(ctx context.Context, profileID, sender string) error {
	return b.publish(ctx, ProfileChannel(profileID), Event{
		Type:      EventTypeMessageReceived,
		ProfileID: profileID,
		Data:      map[string]any{"sender": sender},
	})
}

// PublishEpisodeDeleted publishes a catalog deletion.
func (b *Broadcaster) PublishEpisodeDeleted(ctx context.Context, episodeID string) error {
	return b.publish(ctx, CatalogChannel, Event{
		Type:      EventTypeEpisodeDeleted,
		EpisodeID: episodeID,
	})
}

func (b *Broadcaster) publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
