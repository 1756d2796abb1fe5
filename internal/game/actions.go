package game

import (
	"context"
	"slices"
	"time"

	"github.com/jwebster45206/affinity-engine/pkg/engine"
	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
)

// profileActions applies beat actions to one loaded profile. The caller holds the
// profile lock, saves the profile afterwards and then delivers the queued messages.
type profileActions struct {
	ps *state.PlayerState

	messages  []storage.Message
	completed []string
}

var _ engine.ActionHandler = (*profileActions)(nil)

func (a *profileActions) AddCommunicatorMessage(ctx context.Context, episodeID string, msg episode.AddCommunicatorMessage) error {
	a.messages = append(a.messages, storage.Message{
		Sender:      msg.Sender,
		Message:     msg.Message,
		EpisodeID:   episodeID,
		DeliveredAt: time.Now().UnixMilli(),
	})
	return nil
}

func (a *profileActions) SetQuestObjective(ctx context.Context, objective string) error {
	a.ps.QuestObjective = objective
	return nil
}

func (a *profileActions) UpdateQuestObjective(ctx context.Context, objective string) error {
	a.ps.QuestObjective = objective
	return nil
}

func (a *profileActions) SetChaLocationOverride(ctx context.Context, o episode.SetChaLocationOverride) error {
	if o.LocationID == "" {
		a.ps.ChaLocationOverride = nil
		return nil
	}
	a.ps.ChaLocationOverride = &state.LocationOverride{LocationID: o.LocationID, Reason: o.Reason}
	return nil
}

func (a *profileActions) SetChaMood(ctx context.Context, mood string) error {
	a.ps.ChaMood = mood
	return nil
}

func (a *profileActions) CompleteEpisode(ctx context.Context, episodeID string) error {
	finishEpisode(a.ps, episodeID)
	a.completed = append(a.completed, episodeID)
	return nil
}

// finishEpisode records the episode as completed and clears it if it was active.
func finishEpisode(ps *state.PlayerState, episodeID string) {
	if !slices.Contains(ps.CompletedEpisodes, episodeID) {
		ps.CompletedEpisodes = append(ps.CompletedEpisodes, episodeID)
	}
	if ps.ActiveEpisode == episodeID {
		ps.ActiveEpisode = ""
		ps.ActiveBeat = 0
		ps.ChaLocationOverride = nil
	}
}
