package story

import (
	"slices"

	"github.com/jwebster45206/affinity-engine/pkg/state"
)

// MainPathID is the path that is unlocked from the start.
const MainPathID = "main_story"

// StoryPath is a named narrative branch with its own unlock requirements.
type StoryPath struct {
	ID           string           `yaml:"id" json:"id"`
	Name         string           `yaml:"name" json:"name"`
	Requirements PathRequirements `yaml:"requirements" json:"requirements"`
	Unlocked     bool             `yaml:"unlocked" json:"unlocked"`
	Consequences Consequences     `yaml:"consequences" json:"consequences"`
}

// PathRequirements gates a path. Missing fields are vacuously satisfied.
type PathRequirements struct {
	AffectionLevel  *int     `yaml:"affection_level,omitempty" json:"affection_level,omitempty"`
	IntimacyLevel   *int     `yaml:"intimacy_level,omitempty" json:"intimacy_level,omitempty"`
	TrustLevel      *int     `yaml:"trust_level,omitempty" json:"trust_level,omitempty"`
	SpecificChoices []string `yaml:"specific_choices,omitempty" json:"specific_choices,omitempty"`
	Achievements    []string `yaml:"achievements,omitempty" json:"achievements,omitempty"`
}

// Consequences are applied once, when a path first unlocks. FutureChoicesUnlocked
// names locked choices that become available from then on.
type Consequences struct {
	AffectionModifier     int      `yaml:"affection_modifier" json:"affection_modifier"`
	StoryFlags            []string `yaml:"story_flags" json:"story_flags,omitempty"`
	FutureChoicesUnlocked []string `yaml:"future_choices_unlocked" json:"future_choices_unlocked,omitempty"`
}

// RequirementsSatisfied reports whether every present requirement holds for ps.
func RequirementsSatisfied(req PathRequirements, ps *state.PlayerState) bool {
	if ps == nil {
		return false
	}
	if req.AffectionLevel != nil && ps.AffectionLevel < *req.AffectionLevel {
		return false
	}
	if req.IntimacyLevel != nil && ps.IntimacyLevel < *req.IntimacyLevel {
		return false
	}
	if req.TrustLevel != nil && ps.TrustLevel < *req.TrustLevel {
		return false
	}
	return hasAllFlags(ps, req.SpecificChoices) && hasAllFlags(ps, req.Achievements)
}

// EvaluatePaths returns a copy of paths with Unlocked recomputed. Unlocks are sticky:
// a path already unlocked, either on the path itself or in the profile's unlock cache,
// stays unlocked even if stats have since dropped.
func EvaluatePaths(paths []StoryPath, ps *state.PlayerState) []StoryPath {
	out := make([]StoryPath, len(paths))
	for i, p := range paths {
		p.Unlocked = p.Unlocked ||
			p.ID == MainPathID ||
			(ps != nil && ps.IsPathUnlocked(p.ID)) ||
			RequirementsSatisfied(p.Requirements, ps)
		out[i] = p
	}
	return out
}

// UnlockedPaths filters evaluated paths down to the unlocked ones.
func UnlockedPaths(paths []StoryPath) []StoryPath {
	return slices.DeleteFunc(slices.Clone(paths), func(p StoryPath) bool { return !p.Unlocked })
}

func hasAllFlags(ps *state.PlayerState, flags []string) bool {
	for _, f := range flags {
		if !ps.HasFlag(f) {
			return false
		}
	}
	return true
}
