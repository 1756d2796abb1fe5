package episode

import (
	"fmt"
	"slices"

	"github.com/jwebster45206/affinity-engine/pkg/state"
)

// Episode is a top-level story unit composed of ordered beats, gated by a prerequisite.
// Episodes are immutable once loaded.
type Episode struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Prerequisite Predicate `json:"prerequisite"`
	Beats        []Beat    `json:"beats"`
}

// Beat is a single scene within an episode.
type Beat struct {
	ID                  int                 `json:"id"` // unique and ordered within the episode
	Title               string              `json:"title"`
	Trigger             string              `json:"trigger"`
	Actions             []Action            `json:"actions"`
	CompletionCondition CompletionCondition `json:"completion_condition"`
}

// CompletionCondition names the event that completes a beat.
type CompletionCondition struct {
	Event  string         `json:"event"`
	Params map[string]any `json:"params,omitempty"`
}

// Matches reports whether an event completes the beat. Every condition param must be
// present in the event data with an equal value.
func (c CompletionCondition) Matches(event string, data map[string]any) bool {
	if c.Event == "" || c.Event != event {
		return false
	}
	for k, want := range c.Params {
		got, ok := data[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Predicate is a conjunction of optional constraints on the player state.
// Numeric fields are minimums. An empty predicate is always satisfied.
type Predicate struct {
	PlayerLevel        *int   `json:"player_level,omitempty"`
	AffectionLevel     *int   `json:"affection_level,omitempty"`
	RelationshipLevel  *int   `json:"relationship_level,omitempty"` // rank of the romantic stage
	RelationshipStatus string `json:"relationship_status,omitempty"`
	TimeOfDay          string `json:"time_of_day,omitempty"`
}

// Satisfied reports whether every present constraint holds against ps.
func (p Predicate) Satisfied(ps *state.PlayerState) bool {
	if ps == nil {
		return false
	}
	if p.PlayerLevel != nil && ps.PlayerLevel < *p.PlayerLevel {
		return false
	}
	if p.AffectionLevel != nil && ps.AffectionLevel < *p.AffectionLevel {
		return false
	}
	if p.RelationshipLevel != nil && ps.RomanticProgression.Rank() < *p.RelationshipLevel {
		return false
	}
	if p.RelationshipStatus != "" && string(ps.RomanticProgression) != p.RelationshipStatus {
		return false
	}
	if p.TimeOfDay != "" && ps.TimeOfDay != p.TimeOfDay {
		return false
	}
	return true
}

// Beat returns the beat with the given id.
func (e *Episode) Beat(id int) (Beat, bool) {
	for _, b := range e.Beats {
		if b.ID == id {
			return b, true
		}
	}
	return Beat{}, false
}

// FirstBeat returns the beat with the lowest id.
func (e *Episode) FirstBeat() (Beat, bool) {
	if len(e.Beats) == 0 {
		return Beat{}, false
	}
	return slices.MinFunc(e.Beats, func(a, b Beat) int { return a.ID - b.ID }), true
}

// NextBeat returns the beat that follows id in beat ordering.
func (e *Episode) NextBeat(id int) (Beat, bool) {
	var next Beat
	found := false
	for _, b := range e.Beats {
		if b.ID > id && (!found || b.ID < next.ID) {
			next = b
			found = true
		}
	}
	return next, found
}
