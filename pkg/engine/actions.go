package engine

import (
	"context"

	"github.com/jwebster45206/affinity-engine/pkg/episode"
)

// ActionHandler receives beat actions. The engine only routes by tag; effects are
// entirely up to the handler.
type ActionHandler interface {
	AddCommunicatorMessage(ctx context.Context, episodeID string, msg episode.AddCommunicatorMessage) error
	SetQuestObjective(ctx context.Context, objective string) error
	UpdateQuestObjective(ctx context.Context, objective string) error
	SetChaLocationOverride(ctx context.Context, override episode.SetChaLocationOverride) error
	SetChaMood(ctx context.Context, mood string) error
	CompleteEpisode(ctx context.Context, episodeID string) error
}

// ExecuteBeatAction dispatches the action at actionIndex of the given beat. It
// reports whether an action was dispatched and handled without error. Missing
// episodes, beats or indexes are no-ops.
func (e *Engine) ExecuteBeatAction(ctx context.Context, episodeID string, beatID, actionIndex int, h ActionHandler) bool {
	ep, ok := e.GetEpisode(ctx, episodeID)
	if !ok {
		return false
	}
	beat, ok := ep.Beat(beatID)
	if !ok || actionIndex < 0 || actionIndex >= len(beat.Actions) {
		return false
	}
	return e.dispatch(ctx, episodeID, beat.Actions[actionIndex], h)
}

// ExecuteBeat runs every action of a beat in order and returns how many were handled.
func (e *Engine) ExecuteBeat(ctx context.Context, episodeID string, beatID int, h ActionHandler) int {
	ep, ok := e.GetEpisode(ctx, episodeID)
	if !ok {
		return 0
	}
	beat, ok := ep.Beat(beatID)
	if !ok {
		return 0
	}

	handled := 0
	for _, action := range beat.Actions {
		if e.dispatch(ctx, episodeID, action, h) {
			handled++
		}
	}
	return handled
}

func (e *Engine) dispatch(ctx context.Context, episodeID string, action episode.Action, h ActionHandler) bool {
	var err error
	switch cmd := action.Command.(type) {
	case episode.AddCommunicatorMessage:
		err = h.AddCommunicatorMessage(ctx, episodeID, cmd)
	case episode.SetQuestObjective:
		err = h.SetQuestObjective(ctx, cmd.ObjectiveText)
	case episode.UpdateQuestObjective:
		err = h.UpdateQuestObjective(ctx, cmd.ObjectiveText)
	case episode.SetChaLocationOverride:
		err = h.SetChaLocationOverride(ctx, cmd)
	case episode.SetChaMood:
		err = h.SetChaMood(ctx, cmd.Mood)
	case episode.CompleteEpisode:
		target := cmd.EpisodeID
		if target == "" {
			target = episodeID
		}
		err = h.CompleteEpisode(ctx, target)
	default:
		e.logUnrecognized(episodeID, action.Type())
		return false
	}

	if err != nil {
		e.logger.Error("Beat action failed", "episode_id", episodeID, "action", action.Type(), "error", err)
		return false
	}
	return true
}

func (e *Engine) logUnrecognized(episodeID string, tag episode.ActionType) {
	if _, seen := e.seenTags.LoadOrStore(tag, struct{}{}); seen {
		return
	}
	e.logger.Warn("Ignoring unrecognized beat action", "episode_id", episodeID, "action", tag)
}
