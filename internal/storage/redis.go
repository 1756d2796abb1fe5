package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const (
	profileKeyPrefix = "profile:"
	inboxKeyPrefix   = "inbox:"
	deletedKey       = "episodes:deleted"
)

// RedisStorage keeps profiles, the deletion ledger and inboxes in Redis and
// reads the episode catalog from the filesystem.
type RedisStorage struct {
	*Catalog

	client     *redis.Client
	logger     *slog.Logger
	profileTTL time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// redis:// URL or a bare host:port. A zero profileTTL keeps profiles forever.
func NewRedisStorage(redisURL, dataDir string, profileTTL time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		var err error
		opts, err = redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
	}

	return &RedisStorage{
		Catalog:    NewCatalog(dataDir, logger),
		client:     redis.NewClient(opts),
		logger:     logger,
		profileTTL: profileTTL,
	}, nil
}

// Client exposes the underlying connection so the event broadcaster can share it.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Profile operations

func (r *RedisStorage) SaveProfile(ctx context.Context, ps *state.PlayerState) error {
	if ps == nil {
		return errors.New("profile cannot be nil")
	}
	ps.Touch()

	data, err := json.Marshal(ps)
	if err != nil {
		r.logger.Error("Failed to marshal profile", "profile_id", ps.ProfileID, "error", err)
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := r.client.Set(ctx, profileKeyPrefix+ps.ProfileID, data, r.profileTTL).Err(); err != nil {
		r.logger.Error("Failed to save profile", "profile_id", ps.ProfileID, "error", err)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadProfile(ctx context.Context, profileID string) (*state.PlayerState, error) {
	data, err := r.client.Get(ctx, profileKeyPrefix+profileID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Profile not found", "profile_id", profileID)
			return nil, nil
		}
		r.logger.Error("Failed to load profile", "profile_id", profileID, "error", err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var ps state.PlayerState
	if err := json.Unmarshal(data, &ps); err != nil {
		r.logger.Error("Failed to unmarshal profile", "profile_id", profileID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &ps, nil
}

func (r *RedisStorage) DeleteProfile(ctx context.Context, profileID string) error {
	if err := r.client.Del(ctx, profileKeyPrefix+profileID, inboxKeyPrefix+profileID).Err(); err != nil {
		r.logger.Error("Failed to delete profile", "profile_id", profileID, "error", err)
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// Deletion ledger, a Redis set. SADD is atomic so concurrent deletes never lose updates.

func (r *RedisStorage) IsDeleted(ctx context.Context, episodeID string) (bool, error) {
	deleted, err := r.client.SIsMember(ctx, deletedKey, episodeID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check deletion ledger: %w", err)
	}
	return deleted, nil
}

func (r *RedisStorage) MarkDeleted(ctx context.Context, episodeID string) error {
	if err := r.client.SAdd(ctx, deletedKey, episodeID).Err(); err != nil {
		return fmt.Errorf("failed to update deletion ledger: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListDeleted(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, deletedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read deletion ledger: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Inbox operations, one Redis list per profile.

func (r *RedisStorage) PushMessage(ctx context.Context, profileID string, msg storage.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := r.client.RPush(ctx, inboxKeyPrefix+profileID, data).Err(); err != nil {
		r.logger.Error("Failed to push message", "profile_id", profileID, "error", err)
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

func (r *RedisStorage) Messages(ctx context.Context, profileID string) ([]storage.Message, error) {
	raw, err := r.client.LRange(ctx, inboxKeyPrefix+profileID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	msgs := make([]storage.Message, 0, len(raw))
	for _, item := range raw {
		var msg storage.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warn("Skipping malformed inbox message", "profile_id", profileID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (r *RedisStorage) ClearMessages(ctx context.Context, profileID string) error {
	if err := r.client.Del(ctx, inboxKeyPrefix+profileID).Err(); err != nil {
		return fmt.Errorf("failed to clear inbox: %w", err)
	}
	return nil
}
