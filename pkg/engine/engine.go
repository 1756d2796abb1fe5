// Package engine drives episode progression: it enumerates the catalog through the
// deletion ledger, resolves beats and routes beat actions to their handlers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
)

// CompletionFunc observes beat completions reported through TriggerBeatCompletion.
type CompletionFunc func(ctx context.Context, episodeID string, beatID int, eventData map[string]any)

// Engine is constructed once at startup and shared by all request handlers.
type Engine struct {
	source     storage.EpisodeSource
	ledger     storage.DeletionLedger
	logger     *slog.Logger
	failClosed bool
	onComplete CompletionFunc

	// unrecognized action tags that have already been logged
	seenTags sync.Map
}

// New creates an engine reading episodes from source and deletions from ledger.
func New(source storage.EpisodeSource, ledger storage.DeletionLedger, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		ledger: ledger,
		logger: logger,
	}
}

// SetFailClosed controls what happens when the ledger cannot be read. Open (the
// default) treats the ledger as empty; closed hides everything but the default episode.
func (e *Engine) SetFailClosed(failClosed bool) {
	e.failClosed = failClosed
}

// OnBeatCompletion registers fn to be called for every reported beat completion.
func (e *Engine) OnBeatCompletion(fn CompletionFunc) {
	e.onComplete = fn
}

// ListAvailableEpisodes returns the catalog minus deleted episodes, sorted by id.
// An empty or unreadable catalog yields the built-in default episode. It never fails.
func (e *Engine) ListAvailableEpisodes(ctx context.Context) []episode.Episode {
	episodes, err := e.source.ListEpisodes(ctx)
	if err != nil {
		e.logger.Warn("Episode catalog unavailable, using default episode", "error", err)
		episodes = nil
	}
	if len(episodes) == 0 {
		episodes = []episode.Episode{episode.Default()}
	}

	deleted, err := e.ledger.ListDeleted(ctx)
	if err != nil {
		if e.failClosed {
			e.logger.Error("Deletion ledger unavailable, serving default episode only", "error", err)
			return []episode.Episode{episode.Default()}
		}
		e.logger.Warn("Deletion ledger unavailable, treating as empty", "error", err)
		deleted = nil
	}

	available := slices.DeleteFunc(episodes, func(ep episode.Episode) bool {
		return slices.Contains(deleted, ep.ID)
	})
	slices.SortFunc(available, func(a, b episode.Episode) int {
		return strings.Compare(a.ID, b.ID)
	})
	return available
}

// AvailableFor returns the available episodes whose prerequisites hold for ps.
func (e *Engine) AvailableFor(ctx context.Context, ps *state.PlayerState) []episode.Episode {
	return slices.DeleteFunc(e.ListAvailableEpisodes(ctx), func(ep episode.Episode) bool {
		return !ep.Prerequisite.Satisfied(ps)
	})
}

// GetEpisode returns the episode with the given id unless it is unknown or deleted.
func (e *Engine) GetEpisode(ctx context.Context, id string) (episode.Episode, bool) {
	if id == "" {
		return episode.Episode{}, false
	}

	deleted, err := e.ledger.IsDeleted(ctx, id)
	if err != nil {
		e.logger.Warn("Deletion ledger unavailable", "episode_id", id, "error", err)
		deleted = e.failClosed && id != episode.DefaultID
	}
	if deleted {
		return episode.Episode{}, false
	}

	ep, err := e.source.GetEpisode(ctx, id)
	if err != nil {
		e.logger.Warn("Failed to load episode", "episode_id", id, "error", err)
		ep = nil
	}
	if ep != nil {
		return *ep, true
	}
	if id == episode.DefaultID {
		return episode.Default(), true
	}
	return episode.Episode{}, false
}

// DeleteEpisode adds id to the deletion ledger. Deleting twice is a no-op.
func (e *Engine) DeleteEpisode(ctx context.Context, id string) error {
	if err := e.ledger.MarkDeleted(ctx, id); err != nil {
		return fmt.Errorf("failed to delete episode %s: %w", id, err)
	}
	e.logger.Info("Episode deleted", "episode_id", id)
	return nil
}

// NextBeat returns the beat that follows beatID in ep.
func (e *Engine) NextBeat(ep episode.Episode, beatID int) (episode.Beat, bool) {
	return ep.NextBeat(beatID)
}

// TriggerBeatCompletion reports that a beat's completion condition fired. It does
// not advance the episode; callers use NextBeat for that.
func (e *Engine) TriggerBeatCompletion(ctx context.Context, episodeID string, beatID int, eventData map[string]any) bool {
	ep, ok := e.GetEpisode(ctx, episodeID)
	if !ok {
		return false
	}
	if _, ok := ep.Beat(beatID); !ok {
		return false
	}

	e.logger.Info("Beat completed", "episode_id", episodeID, "beat_id", beatID)
	if e.onComplete != nil {
		e.onComplete(ctx, episodeID, beatID, eventData)
	}
	return true
}
