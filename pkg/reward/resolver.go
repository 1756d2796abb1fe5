// Package reward turns resolved choices and finished activities into stat changes.
package reward

import (
	"fmt"
	"maps"

	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/story"
)

// Outcome is everything a choice or activity changes on a profile.
type Outcome struct {
	Delta           state.Delta `json:"delta"`
	NewFlags        []string    `json:"new_flags,omitempty"`
	Gold            int         `json:"gold,omitempty"`
	Experience      int         `json:"experience,omitempty"`
	PathID          string      `json:"path_id,omitempty"`
	PathProgression int         `json:"path_progression,omitempty"`
	Memory          string      `json:"memory,omitempty"`
}

// ActivityKind classifies non-dialogue activities.
type ActivityKind string

const (
	ActivityGift     ActivityKind = "gift"
	ActivityGate     ActivityKind = "gate"
	ActivityMiniGame ActivityKind = "mini_game"
	ActivityDate     ActivityKind = "date"
)

// Activity is the declared reward of a completed non-dialogue activity.
type Activity struct {
	ID               string       `json:"id"`
	Kind             ActivityKind `json:"kind"`
	GoldReward       int          `json:"gold_reward,omitempty"`
	ExperienceReward int          `json:"experience_reward,omitempty"`
	AffectionReward  int          `json:"affection_reward,omitempty"`
	Achievements     []string     `json:"achievements,omitempty"`
}

// ResolveChoice copies a choice's impact into an outcome. The choice id is always
// recorded as a story flag so later requirements can refer to it.
func ResolveChoice(c story.Choice) Outcome {
	d := state.Delta{
		Affection: state.Int(c.Impact.AffectionChange),
		Intimacy:  copyInt(c.Impact.IntimacyChange),
		Trust:     copyInt(c.Impact.TrustChange),
	}
	if len(c.Impact.Traits) > 0 {
		d.Traits = maps.Clone(c.Impact.Traits)
	}
	return Outcome{
		Delta:           d,
		NewFlags:        []string{c.ID},
		PathID:          c.PathID,
		PathProgression: c.Impact.PathProgression,
		Memory:          c.Text,
	}
}

// ResolveActivity maps an activity's declared rewards to an outcome. Rewards must be
// non-negative.
func ResolveActivity(a Activity) (Outcome, error) {
	if a.GoldReward < 0 || a.ExperienceReward < 0 || a.AffectionReward < 0 {
		return Outcome{}, fmt.Errorf("%w: activity %s declares a negative reward", state.ErrInvalidDelta, a.ID)
	}

	out := Outcome{
		Gold:       a.GoldReward,
		Experience: a.ExperienceReward,
		Memory:     activityMemory(a),
	}
	if a.AffectionReward > 0 {
		out.Delta.Affection = state.Int(a.AffectionReward)
	}
	if a.ID != "" {
		out.NewFlags = append(out.NewFlags, a.ID)
	}
	out.NewFlags = append(out.NewFlags, a.Achievements...)
	return out, nil
}

// Apply writes the outcome into ps. The delta is validated before anything changes,
// so a rejected outcome leaves ps untouched.
func (o Outcome) Apply(ps *state.PlayerState) error {
	if err := o.Delta.Validate(); err != nil {
		return err
	}
	if o.Gold < 0 || o.Experience < 0 {
		return fmt.Errorf("%w: negative gold or experience", state.ErrInvalidDelta)
	}

	if err := ps.ApplyDelta(o.Delta); err != nil {
		return err
	}
	// Both are non-negative, checked above.
	_ = ps.AddGold(o.Gold)
	_ = ps.AddExperience(o.Experience)
	ps.AddFlags(o.NewFlags...)
	ps.AdvancePath(o.PathID, o.PathProgression)

	if o.Memory != "" {
		impact := 0
		if o.Delta.Affection != nil {
			impact = *o.Delta.Affection
		}
		ps.RecordMemory(o.Memory, impact, state.EmotionFor(impact))
	}
	return nil
}

func activityMemory(a Activity) string {
	switch a.Kind {
	case ActivityGift:
		return "Received a gift"
	case ActivityGate:
		return "Cleared a gate together"
	case ActivityMiniGame:
		return "Played a game together"
	case ActivityDate:
		return "Went on a date"
	}
	return ""
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	return state.Int(*p)
}
