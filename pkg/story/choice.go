package story

import (
	"github.com/jwebster45206/affinity-engine/pkg/state"
)

// Choice is a dialogue option offered in a scene.
type Choice struct {
	ID            string              `yaml:"id" json:"id"`
	Text          string              `yaml:"text" json:"text"`
	PathID        string              `yaml:"path_id" json:"path_id"`
	Requirements  *ChoiceRequirements `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Locked        bool                `yaml:"locked" json:"locked,omitempty"`
	Impact        Impact              `yaml:"impact" json:"impact"`
	OptimalChoice bool                `yaml:"optimal_choice" json:"optimal_choice"`
}

// ChoiceRequirements gates a choice. A nil requirements block means always offered.
type ChoiceRequirements struct {
	AffectionLevel  *int     `yaml:"affection_level,omitempty" json:"affection_level,omitempty"`
	PreviousChoices []string `yaml:"previous_choices,omitempty" json:"previous_choices,omitempty"`
	StoryFlags      []string `yaml:"story_flags,omitempty" json:"story_flags,omitempty"`
}

// Impact is the stat effect of picking a choice.
type Impact struct {
	AffectionChange int                 `yaml:"affection_change" json:"affection_change"`
	IntimacyChange  *int                `yaml:"intimacy_change,omitempty" json:"intimacy_change,omitempty"`
	TrustChange     *int                `yaml:"trust_change,omitempty" json:"trust_change,omitempty"`
	Traits          map[state.Trait]int `yaml:"traits,omitempty" json:"traits,omitempty"`
	PathProgression int                 `yaml:"path_progression" json:"path_progression"`
}

// Available reports whether the choice may be offered to ps. A locked choice is
// offered only after a path consequence has unlocked it.
func (c Choice) Available(ps *state.PlayerState) bool {
	if ps == nil {
		return c.Requirements == nil && !c.Locked
	}
	if c.Locked && !ps.IsChoiceUnlocked(c.ID) {
		return false
	}
	if c.Requirements == nil {
		return true
	}
	req := c.Requirements
	if req.AffectionLevel != nil && ps.AffectionLevel < *req.AffectionLevel {
		return false
	}
	return hasAllFlags(ps, req.PreviousChoices) && hasAllFlags(ps, req.StoryFlags)
}

// ChoicesForScene returns the choices of a scene that are currently legal for ps,
// in table order. Unknown scenes have no choices.
func (l *Library) ChoicesForScene(sceneKey string, ps *state.PlayerState) []Choice {
	var offered []Choice
	for _, c := range l.Scenes[sceneKey] {
		if c.Available(ps) {
			offered = append(offered, c)
		}
	}
	return offered
}

// OptimalChoices filters choices down to the ones marked optimal. Used for hints only.
func OptimalChoices(choices []Choice) []Choice {
	var optimal []Choice
	for _, c := range choices {
		if c.OptimalChoice {
			optimal = append(optimal, c)
		}
	}
	return optimal
}
