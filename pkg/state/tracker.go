package state

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	minStat = 0
	maxStat = 100

	// ExperiencePerLevel is the experience needed for each player level.
	ExperiencePerLevel = 100
)

// ErrInvalidDelta is returned when a delta cannot be applied. The state is left unchanged.
var ErrInvalidDelta = errors.New("invalid stat delta")

// Delta is a set of relative changes to relationship stats.
// Nil fields are left unchanged.
type Delta struct {
	Affection *int          `json:"affection,omitempty"`
	Intimacy  *int          `json:"intimacy,omitempty"`
	Trust     *int          `json:"trust,omitempty"`
	Traits    map[Trait]int `json:"traits,omitempty"`
}

// IsEmpty reports whether the delta changes nothing.
func (d Delta) IsEmpty() bool {
	return d.Affection == nil && d.Intimacy == nil && d.Trust == nil && len(d.Traits) == 0
}

// Validate checks that every trait named in the delta exists.
func (d Delta) Validate() error {
	var probe Traits
	for name := range d.Traits {
		if probe.field(name) == nil {
			return fmt.Errorf("%w: unknown trait %q", ErrInvalidDelta, name)
		}
	}
	return nil
}

// ApplyDelta adds each present field of d to the state, clamps the result to [0,100]
// and re-derives the romantic progression stage.
func (ps *PlayerState) ApplyDelta(d Delta) error {
	if err := d.Validate(); err != nil {
		return err
	}

	if d.Affection != nil {
		ps.AffectionLevel = addStat(ps.AffectionLevel, *d.Affection)
	}
	if d.Intimacy != nil {
		ps.IntimacyLevel = addStat(ps.IntimacyLevel, *d.Intimacy)
	}
	if d.Trust != nil {
		ps.TrustLevel = addStat(ps.TrustLevel, *d.Trust)
	}
	for name, change := range d.Traits {
		f := ps.PersonalityTraits.field(name)
		*f = addStat(*f, change)
	}

	ps.UpdateProgression()
	return nil
}

// UpdateProgression writes the derived stage back to the state. The stage never moves
// backwards, so a stat penalty cannot demote an established relationship.
func (ps *PlayerState) UpdateProgression() {
	derived := DeriveProgression(ps.AffectionLevel, ps.IntimacyLevel, ps.TrustLevel)
	if !ps.RomanticProgression.Valid() {
		ps.RomanticProgression = derived
		return
	}
	ps.RomanticProgression = maxStage(ps.RomanticProgression, derived)
}

// RecordMemory appends a memory, evicting the oldest entries beyond MemoryBankLimit.
func (ps *PlayerState) RecordMemory(event string, impact int, emotion string) {
	ps.MemoryBank = append(ps.MemoryBank, Memory{
		Event:     event,
		Impact:    impact,
		Timestamp: time.Now().UnixMilli(),
		Emotion:   emotion,
	})
	if over := len(ps.MemoryBank) - MemoryBankLimit; over > 0 {
		ps.MemoryBank = append([]Memory(nil), ps.MemoryBank[over:]...)
	}
}

// AddExperience grants experience and recomputes the player level.
func (ps *PlayerState) AddExperience(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative experience %d", ErrInvalidDelta, amount)
	}
	ps.Experience = saturatingAdd(ps.Experience, amount)
	ps.PlayerLevel = 1 + ps.Experience/ExperiencePerLevel
	return nil
}

// AddGold grants gold.
func (ps *PlayerState) AddGold(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative gold %d", ErrInvalidDelta, amount)
	}
	ps.Gold = saturatingAdd(ps.Gold, amount)
	return nil
}

// EmotionFor maps a stat impact to the emotion recorded alongside a memory.
func EmotionFor(impact int) string {
	switch {
	case impact >= 5:
		return "delighted"
	case impact > 0:
		return "happy"
	case impact < 0:
		return "hurt"
	default:
		return "neutral"
	}
}

func clamp(v int) int {
	return max(minStat, min(maxStat, v))
}

// addStat applies change to a stat in [0,100]. The change is bounded to the width
// of the range first so the sum cannot overflow.
func addStat(stat, change int) int {
	return clamp(stat + max(-maxStat, min(maxStat, change)))
}

// saturatingAdd adds a non-negative amount, stopping at math.MaxInt.
func saturatingAdd(total, amount int) int {
	if amount > math.MaxInt-total {
		return math.MaxInt
	}
	return total + amount
}

// Int returns a pointer to v, for building deltas.
func Int(v int) *int {
	return &v
}
