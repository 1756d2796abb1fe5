// Package game applies player actions to persisted profiles. Every read-modify-write
// of a profile runs under that profile's lock.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/affinity-engine/internal/logger"
	"github.com/jwebster45206/affinity-engine/pkg/engine"
	"github.com/jwebster45206/affinity-engine/pkg/episode"
	"github.com/jwebster45206/affinity-engine/pkg/reward"
	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
	"github.com/jwebster45206/affinity-engine/pkg/story"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jwebster45206/affinity-engine/internal/game"

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEpisodeUnavailable = errors.New("episode not available")
	ErrChoiceUnavailable  = errors.New("choice not available")
	ErrNoActiveBeat       = errors.New("no active beat")
)

// TimesOfDay lists the accepted values of PlayerState.TimeOfDay.
var TimesOfDay = []string{"morning", "afternoon", "evening", "night"}

// Publisher receives profile and catalog events. *events.Broadcaster implements it.
type Publisher interface {
	PublishStatsUpdated(ctx context.Context, profileID string, affection, intimacy, trust int, stage string) error
	PublishPathUnlocked(ctx context.Context, profileID, pathID string) error
	PublishBeatCompleted(ctx context.Context, profileID, episodeID string, beatID int) error
	PublishEpisodeCompleted(ctx context.Context, profileID, episodeID string) error
	PublishMessageReceived(ctx context.Context, profileID, sender string) error
	PublishEpisodeDeleted(ctx context.Context, episodeID string) error
}

// Service is the application layer over the engine, the story library and storage.
type Service struct {
	store     storage.Storage
	engine    *engine.Engine
	library   *story.Library
	publisher Publisher
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewService creates a service and registers it as the engine's completion observer.
// publisher may be nil when no event bus is configured.
func NewService(store storage.Storage, eng *engine.Engine, library *story.Library, publisher Publisher, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	s := &Service{
		store:     store,
		engine:    eng,
		library:   library,
		publisher: publisher,
		logger:    log,
		locks:     newKeyedMutex(),
	}
	eng.OnBeatCompletion(recordBeatCompletion)
	return s
}

// recordBeatCompletion marks the completion on the span of the update that reported it.
func recordBeatCompletion(ctx context.Context, episodeID string, beatID int, _ map[string]any) {
	trace.SpanFromContext(ctx).AddEvent("beat.completed", trace.WithAttributes(
		attribute.String("episode.id", episodeID),
		attribute.Int("beat.id", beatID),
	))
}

// ChoiceResult is returned after a dialogue choice is applied.
type ChoiceResult struct {
	Profile       *state.PlayerState `json:"profile"`
	Outcome       reward.Outcome     `json:"outcome"`
	UnlockedPaths []string           `json:"unlocked_paths"`
}

// BeatResult is returned after an event is reported against the active beat.
type BeatResult struct {
	Profile          *state.PlayerState `json:"profile"`
	Completed        bool               `json:"completed"`
	NextBeat         *episode.Beat      `json:"next_beat,omitempty"`
	EpisodeCompleted bool               `json:"episode_completed"`
}

// CreateProfile creates and saves a brand new profile.
func (s *Service) CreateProfile(ctx context.Context) (*state.PlayerState, error) {
	ps := state.NewPlayerState(uuid.New().String())
	s.unlockPaths(ps)
	if err := s.store.SaveProfile(ctx, ps); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	logger.WithProfile(s.logger, ps.ProfileID).Info("Profile created")
	return ps, nil
}

// GetProfile loads a profile.
func (s *Service) GetProfile(ctx context.Context, profileID string) (*state.PlayerState, error) {
	ps, err := s.store.LoadProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, ErrProfileNotFound
	}
	return ps, nil
}

// DeleteProfile removes a profile and its inbox.
func (s *Service) DeleteProfile(ctx context.Context, profileID string) error {
	unlock := s.locks.Lock(profileID)
	defer unlock()
	return s.store.DeleteProfile(ctx, profileID)
}

// SetTimeOfDay changes the in-game time used by episode prerequisites.
func (s *Service) SetTimeOfDay(ctx context.Context, profileID, timeOfDay string) (*state.PlayerState, error) {
	valid := false
	for _, t := range TimesOfDay {
		valid = valid || t == timeOfDay
	}
	if !valid {
		return nil, fmt.Errorf("%w: unknown time of day %q", state.ErrInvalidDelta, timeOfDay)
	}
	return s.update(ctx, "SetTimeOfDay", profileID, func(ctx context.Context, ps *state.PlayerState) error {
		ps.TimeOfDay = timeOfDay
		return nil
	})
}

// ChoicesForScene returns the choices of a scene currently legal for the profile.
func (s *Service) ChoicesForScene(ctx context.Context, profileID, sceneKey string) ([]story.Choice, error) {
	ps, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.library.ChoicesForScene(sceneKey, ps), nil
}

// Paths returns every story path evaluated for the profile.
func (s *Service) Paths(ctx context.Context, profileID string) ([]story.StoryPath, error) {
	ps, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return story.EvaluatePaths(s.library.Paths, ps), nil
}

// MakeChoice applies a dialogue choice picked in a scene.
func (s *Service) MakeChoice(ctx context.Context, profileID, sceneKey, choiceID string) (*ChoiceResult, error) {
	choice, ok := s.library.Choice(sceneKey, choiceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrChoiceUnavailable, sceneKey, choiceID)
	}

	outcome := reward.ResolveChoice(choice)
	var unlocked []string
	ps, err := s.update(ctx, "MakeChoice", profileID, func(ctx context.Context, ps *state.PlayerState) error {
		if !choice.Available(ps) {
			return fmt.Errorf("%w: requirements for %s not met", ErrChoiceUnavailable, choiceID)
		}
		if err := outcome.Apply(ps); err != nil {
			return err
		}
		unlocked = s.unlockPaths(ps)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStats(ctx, ps, unlocked)
	logger.WithProfile(s.logger, profileID).Info("Choice applied", "scene", sceneKey, "choice", choiceID)
	return &ChoiceResult{Profile: ps, Outcome: outcome, UnlockedPaths: nonNil(unlocked)}, nil
}

// CompleteActivity applies the rewards of a finished activity.
func (s *Service) CompleteActivity(ctx context.Context, profileID string, activity reward.Activity) (*ChoiceResult, error) {
	outcome, err := reward.ResolveActivity(activity)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	ps, err := s.update(ctx, "CompleteActivity", profileID, func(ctx context.Context, ps *state.PlayerState) error {
		if err := outcome.Apply(ps); err != nil {
			return err
		}
		unlocked = s.unlockPaths(ps)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStats(ctx, ps, unlocked)
	return &ChoiceResult{Profile: ps, Outcome: outcome, UnlockedPaths: nonNil(unlocked)}, nil
}

// AvailableEpisodes lists the episodes the profile could start now.
func (s *Service) AvailableEpisodes(ctx context.Context, profileID string) ([]episode.Episode, error) {
	ps, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.engine.AvailableFor(ctx, ps), nil
}

// StartEpisode makes the episode active at its first beat and runs that beat's actions.
func (s *Service) StartEpisode(ctx context.Context, profileID, episodeID string) (*state.PlayerState, error) {
	ep, ok := s.engine.GetEpisode(ctx, episodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEpisodeUnavailable, episodeID)
	}
	first, ok := ep.FirstBeat()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no beats", ErrEpisodeUnavailable, episodeID)
	}

	var handler *profileActions
	ps, err := s.update(ctx, "StartEpisode", profileID, func(ctx context.Context, ps *state.PlayerState) error {
		if !ep.Prerequisite.Satisfied(ps) {
			return fmt.Errorf("%w: prerequisites for %s not met", ErrEpisodeUnavailable, episodeID)
		}
		ps.ActiveEpisode = ep.ID
		ps.ActiveBeat = first.ID
		handler = s.actionsFor(ps)
		s.engine.ExecuteBeat(ctx, ep.ID, first.ID, handler)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, profileID, handler)
	s.publishCompleted(ctx, profileID, handler.completed)
	logger.WithProfile(s.logger, profileID).Info("Episode started", "episode_id", episodeID)
	return ps, nil
}

// CompleteBeat reports an event against the profile's active beat. If the beat's
// completion condition matches, the episode advances to the next beat and runs its
// actions; after the last beat the episode is completed.
func (s *Service) CompleteBeat(ctx context.Context, profileID, event string, data map[string]any) (*BeatResult, error) {
	result := &BeatResult{}
	var (
		handler   *profileActions
		episodeID string
		beatID    int
	)

	ps, err := s.update(ctx, "CompleteBeat", profileID, func(ctx context.Context, ps *state.PlayerState) error {
		if ps.ActiveEpisode == "" {
			return ErrNoActiveBeat
		}
		ep, ok := s.engine.GetEpisode(ctx, ps.ActiveEpisode)
		if !ok {
			return fmt.Errorf("%w: %s", ErrEpisodeUnavailable, ps.ActiveEpisode)
		}
		beat, ok := ep.Beat(ps.ActiveBeat)
		if !ok {
			return fmt.Errorf("%w: beat %d of %s", ErrNoActiveBeat, ps.ActiveBeat, ep.ID)
		}
		if !beat.CompletionCondition.Matches(event, data) {
			return nil
		}

		episodeID, beatID = ep.ID, beat.ID
		result.Completed = s.engine.TriggerBeatCompletion(ctx, ep.ID, beat.ID, data)
		handler = s.actionsFor(ps)

		next, ok := s.engine.NextBeat(ep, beat.ID)
		if !ok {
			_ = handler.CompleteEpisode(ctx, ep.ID)
			return nil
		}
		ps.ActiveBeat = next.ID
		result.NextBeat = &next
		s.engine.ExecuteBeat(ctx, ep.ID, next.ID, handler)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Profile = ps
	if handler != nil {
		s.deliver(ctx, profileID, handler)
	}
	if result.Completed {
		_ = s.publisher.PublishBeatCompleted(ctx, profileID, episodeID, beatID)
		s.publishCompleted(ctx, profileID, handler.completed)
		result.EpisodeCompleted = len(handler.completed) > 0
		if ps.ActiveEpisode == "" {
			result.NextBeat = nil
		}
	}
	return result, nil
}

// DeleteEpisode removes an episode from play for every profile.
func (s *Service) DeleteEpisode(ctx context.Context, episodeID string) error {
	if err := s.engine.DeleteEpisode(ctx, episodeID); err != nil {
		return err
	}
	_ = s.publisher.PublishEpisodeDeleted(ctx, episodeID)
	return nil
}

// Inbox returns the profile's pending communicator messages.
func (s *Service) Inbox(ctx context.Context, profileID string) ([]storage.Message, error) {
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return nonNil(msgs), nil
}

// ClearInbox marks every pending message as read.
func (s *Service) ClearInbox(ctx context.Context, profileID string) error {
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return err
	}
	return s.store.ClearMessages(ctx, profileID)
}

// Greeting returns Cha Hae-In's greeting for the profile. An active location
// override wins over the requested location.
func (s *Service) Greeting(ctx context.Context, profileID, location, activity string) (string, error) {
	ps, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return "", err
	}
	if ps.ChaLocationOverride != nil {
		location = ps.ChaLocationOverride.LocationID
	}
	return s.library.Greeting(location, activity), nil
}

// update runs fn on the loaded profile under its lock and saves the result.
// When fn fails nothing is saved. fn receives the span context. Each call is traced as one span named after op.
func (s *Service) update(ctx context.Context, op, profileID string, fn func(ctx context.Context, ps *state.PlayerState) error) (_ *state.PlayerState, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "game."+op,
		trace.WithAttributes(attribute.String("profile.id", profileID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := s.locks.Lock(profileID)
	defer unlock()

	ps, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, ps); err != nil {
		return nil, err
	}
	if err := s.store.SaveProfile(ctx, ps); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	span.SetAttributes(attribute.String("profile.stage", string(ps.RomanticProgression)))
	return ps, nil
}

// unlockPaths evaluates paths and applies the consequences of every path that
// unlocks for the first time. Consequences can raise affection, so evaluation
// repeats until nothing new unlocks.
func (s *Service) unlockPaths(ps *state.PlayerState) []string {
	var unlocked []string
	for {
		changed := false
		for _, p := range story.UnlockedPaths(story.EvaluatePaths(s.library.Paths, ps)) {
			if !ps.MarkPathUnlocked(p.ID) {
				continue
			}
			changed = true
			if p.ID != story.MainPathID {
				unlocked = append(unlocked, p.ID)
			}
			c := p.Consequences
			if c.AffectionModifier != 0 {
				// A plain affection delta always validates.
				_ = ps.ApplyDelta(state.Delta{Affection: state.Int(c.AffectionModifier)})
			}
			ps.AddFlags(c.StoryFlags...)
			ps.UnlockChoices(c.FutureChoicesUnlocked...)
		}
		if !changed {
			return unlocked
		}
	}
}

func (s *Service) actionsFor(ps *state.PlayerState) *profileActions {
	return &profileActions{ps: ps}
}

// deliver pushes the messages queued by beat actions. It runs only after the profile
// is saved, so a failed update leaves the inbox untouched.
func (s *Service) deliver(ctx context.Context, profileID string, a *profileActions) {
	for _, msg := range a.messages {
		if err := s.store.PushMessage(ctx, profileID, msg); err != nil {
			logger.WithProfile(s.logger, profileID).Error("Failed to deliver message",
				"episode_id", msg.EpisodeID, "sender", msg.Sender, "error", err)
			continue
		}
		_ = s.publisher.PublishMessageReceived(ctx, profileID, msg.Sender)
	}
}

func (s *Service) publishStats(ctx context.Context, ps *state.PlayerState, unlocked []string) {
	_ = s.publisher.PublishStatsUpdated(ctx, ps.ProfileID, ps.AffectionLevel, ps.IntimacyLevel, ps.TrustLevel, string(ps.RomanticProgression))
	for _, id := range unlocked {
		_ = s.publisher.PublishPathUnlocked(ctx, ps.ProfileID, id)
	}
}

func (s *Service) publishCompleted(ctx context.Context, profileID string, episodeIDs []string) {
	for _, id := range episodeIDs {
		_ = s.publisher.PublishEpisodeCompleted(ctx, profileID, id)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type nopPublisher struct{}

func (nopPublisher) PublishStatsUpdated(context.Context, string, int, int, int, string) error {
	return nil
}

func (nopPublisher) PublishPathUnlocked(context.Context, string, string) error {
	return nil
}

func (nopPublisher) PublishBeatCompleted(context.Context, string, string, int) error {
	return nil
}

func (nopPublisher) PublishEpisodeCompleted(context.Context, string, string) error {
	return nil
}

func (nopPublisher) PublishMessageReceived(context.Context, string, string) error {
	return nil
}

func (nopPublisher) PublishEpisodeDeleted(context.Context, string) error {
	return nil
}
