package state

import (
	"slices"
	"time"
)

// MemoryBankLimit is the number of memories a profile retains.
const MemoryBankLimit = 50

// Trait names a personality trait accumulator.
type Trait string

const (
	TraitConfidence     Trait = "confidence"
	TraitPlayfulness    Trait = "playfulness"
	TraitVulnerability  Trait = "vulnerability"
	TraitProtectiveness Trait = "protectiveness"
)

// Traits holds the personality trait accumulators, each in [0,100].
type Traits struct {
	Confidence     int `json:"confidence"`
	Playfulness    int `json:"playfulness"`
	Vulnerability  int `json:"vulnerability"`
	Protectiveness int `json:"protectiveness"`
}

func (t *Traits) field(name Trait) *int {
	switch name {
	case TraitConfidence:
		return &t.Confidence
	case TraitPlayfulness:
		return &t.Playfulness
	case TraitVulnerability:
		return &t.Vulnerability
	case TraitProtectiveness:
		return &t.Protectiveness
	}
	return nil
}

// Memory is one entry of the memory bank.
type Memory struct {
	Event     string `json:"event"`
	Impact    int    `json:"impact"`
	Timestamp int64  `json:"timestamp"` // Unix millis
	Emotion   string `json:"emotion"`
}

// LocationOverride pins Cha Hae-In to a location regardless of her schedule.
type LocationOverride struct {
	LocationID string `json:"location_id"`
	Reason     string `json:"reason"`
}

// PlayerState is the relationship and narrative state of a single profile.
type PlayerState struct {
	ProfileID string `json:"profile_id"`

	AffectionLevel      int    `json:"affection_level"`
	IntimacyLevel       int    `json:"intimacy_level"`
	TrustLevel          int    `json:"trust_level"`
	PersonalityTraits   Traits `json:"personality_traits"`
	RomanticProgression Stage  `json:"romantic_progression"`

	PlayerLevel int    `json:"player_level"`
	Experience  int    `json:"experience"`
	Gold        int    `json:"gold"`
	TimeOfDay   string `json:"time_of_day"`

	StoryFlags    []string       `json:"story_flags"`    // sorted set
	MemoryBank    []Memory       `json:"memory_bank"`    // oldest first
	UnlockedPaths   []string       `json:"unlocked_paths"`   // sorted set, sticky
	UnlockedChoices []string       `json:"unlocked_choices"` // sorted set, sticky
	PathProgress    map[string]int `json:"path_progress"`

	ActiveEpisode     string   `json:"active_episode"`
	ActiveBeat        int      `json:"active_beat"`
	CompletedEpisodes []string `json:"completed_episodes"`

	QuestObjective      string            `json:"quest_objective"`
	ChaMood             string            `json:"cha_mood"`
	ChaLocationOverride *LocationOverride `json:"cha_location_override"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewPlayerState returns the state of a brand new profile.
func NewPlayerState(profileID string) *PlayerState {
	now := time.Now().UnixMilli()
	return &PlayerState{
		ProfileID:           profileID,
		RomanticProgression: StageStranger,
		PlayerLevel:         1,
		TimeOfDay:           "morning",
		StoryFlags:          []string{},
		MemoryBank:          []Memory{},
		UnlockedPaths:       []string{},
		UnlockedChoices:     []string{},
		PathProgress:        map[string]int{},
		CompletedEpisodes:   []string{},
		ChaMood:             "neutral",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// HasFlag reports whether the story flag has been recorded.
func (ps *PlayerState) HasFlag(flag string) bool {
	_, found := slices.BinarySearch(ps.StoryFlags, flag)
	return found
}

// AddFlags records story flags, ignoring ones already present.
func (ps *PlayerState) AddFlags(flags ...string) {
	ps.StoryFlags = insertSorted(ps.StoryFlags, flags...)
}

// IsPathUnlocked reports whether the path id is in the sticky unlock cache.
func (ps *PlayerState) IsPathUnlocked(pathID string) bool {
	_, found := slices.BinarySearch(ps.UnlockedPaths, pathID)
	return found
}

// MarkPathUnlocked adds the path id to the sticky unlock cache.
// It returns false if the path was already unlocked.
func (ps *PlayerState) MarkPathUnlocked(pathID string) bool {
	if ps.IsPathUnlocked(pathID) {
		return false
	}
	ps.UnlockedPaths = insertSorted(ps.UnlockedPaths, pathID)
	return true
}

// IsChoiceUnlocked reports whether a path consequence has unlocked the choice id.
func (ps *PlayerState) IsChoiceUnlocked(choiceID string) bool {
	_, found := slices.BinarySearch(ps.UnlockedChoices, choiceID)
	return found
}

// UnlockChoices records choice ids unlocked by a path consequence.
func (ps *PlayerState) UnlockChoices(choiceIDs ...string) {
	ps.UnlockedChoices = insertSorted(ps.UnlockedChoices, choiceIDs...)
}

// HasCompletedEpisode reports whether the episode was completed by this profile.
func (ps *PlayerState) HasCompletedEpisode(episodeID string) bool {
	return slices.Contains(ps.CompletedEpisodes, episodeID)
}

// AdvancePath adds progression points to a story path, clamped to [0,100].
func (ps *PlayerState) AdvancePath(pathID string, points int) {
	if pathID == "" || points == 0 {
		return
	}
	if ps.PathProgress == nil {
		ps.PathProgress = make(map[string]int)
	}
	ps.PathProgress[pathID] = addStat(ps.PathProgress[pathID], points)
}

// Touch updates the modification timestamp.
func (ps *PlayerState) Touch() {
	ps.UpdatedAt = time.Now().UnixMilli()
}

// Clone returns a deep copy of the state.
func (ps *PlayerState) Clone() *PlayerState {
	if ps == nil {
		return nil
	}
	c := *ps
	c.StoryFlags = slices.Clone(ps.StoryFlags)
	c.MemoryBank = slices.Clone(ps.MemoryBank)
	c.UnlockedPaths = slices.Clone(ps.UnlockedPaths)
	c.UnlockedChoices = slices.Clone(ps.UnlockedChoices)
	c.CompletedEpisodes = slices.Clone(ps.CompletedEpisodes)
	if ps.PathProgress != nil {
		c.PathProgress = make(map[string]int, len(ps.PathProgress))
		for k, v := range ps.PathProgress {
			c.PathProgress[k] = v
		}
	}
	if ps.ChaLocationOverride != nil {
		o := *ps.ChaLocationOverride
		c.ChaLocationOverride = &o
	}
	return &c
}

func insertSorted(set []string, values ...string) []string {
	if set == nil {
		set = []string{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		i, found := slices.BinarySearch(set, v)
		if !found {
			set = slices.Insert(set, i, v)
		}
	}
	return set
}
