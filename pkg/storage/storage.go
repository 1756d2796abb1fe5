package storage

import (
	"context"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
)

// EpisodeSource lists the episode catalog.
type EpisodeSource interface {
	// ListEpisodes returns every loadable episode. Malformed entries are skipped.
	ListEpisodes(ctx context.Context) ([]episode.Episode, error)
	// GetEpisode returns nil, nil when the id is unknown.
	GetEpisode(ctx context.Context, id string) (*episode.Episode, error)
}

// DeletionLedger is the persistent set of deleted episode ids. Entries are never removed.
type DeletionLedger interface {
	IsDeleted(ctx context.Context, episodeID string) (bool, error)
	// MarkDeleted is idempotent and atomic.
	MarkDeleted(ctx context.Context, episodeID string) error
	ListDeleted(ctx context.Context) ([]string, error)
}

// ProfileStore persists player state documents.
type ProfileStore interface {
	SaveProfile(ctx context.Context, ps *state.PlayerState) error
	// LoadProfile returns nil, nil when the profile does not exist.
	LoadProfile(ctx context.Context, profileID string) (*state.PlayerState, error)
	DeleteProfile(ctx context.Context, profileID string) error
}

// Message is a communicator message delivered to a profile.
type Message struct {
	Sender      string `json:"sender"`
	Message     string `json:"message"`
	EpisodeID   string `json:"episode_id,omitempty"`
	DeliveredAt int64  `json:"delivered_at"`
}

// Inbox holds undelivered communicator messages per profile, oldest first.
type Inbox interface {
	PushMessage(ctx context.Context, profileID string, msg Message) error
	Messages(ctx context.Context, profileID string) ([]Message, error)
	ClearMessages(ctx context.Context, profileID string) error
}

// Storage defines a unified interface for all storage operations.
// Profiles, the ledger and the inbox live in the backend (Redis or SQLite);
// the episode catalog is read from the filesystem.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	EpisodeSource
	DeletionLedger
	ProfileStore
	Inbox
}
