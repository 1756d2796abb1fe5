package story

import (
	"testing"

	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceIDs(choices []Choice) []string {
	ids := make([]string, 0, len(choices))
	for _, c := range choices {
		ids = append(ids, c.ID)
	}
	return ids
}

func pathByID(t *testing.T, paths []StoryPath, id string) StoryPath {
	t.Helper()
	for _, p := range paths {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("path %s not found", id)
	return StoryPath{}
}

func TestDefaultLibraryLoads(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	assert.NotEmpty(t, lib.Paths)
	assert.Contains(t, lib.Scenes, "FIRST_MEETING")

	c, ok := lib.Choice("FIRST_MEETING", "warm_greeting")
	require.True(t, ok)
	assert.Equal(t, 3, c.Impact.AffectionChange)
	require.NotNil(t, c.Impact.TrustChange)
	assert.Equal(t, 2, *c.Impact.TrustChange)
	assert.Equal(t, 15, c.Impact.PathProgression)
}

func TestChoicesForScene_FirstMeeting(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	offered := choiceIDs(lib.ChoicesForScene("FIRST_MEETING", ps))
	assert.Contains(t, offered, "professional_greeting")
	assert.Contains(t, offered, "warm_greeting")
	assert.NotContains(t, offered, "charming_greeting")

	ps.AffectionLevel = 10
	offered = choiceIDs(lib.ChoicesForScene("FIRST_MEETING", ps))
	assert.Contains(t, offered, "charming_greeting")
}

func TestChoicesForScene_FlagRequirements(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	ps.AffectionLevel = 20
	assert.Equal(t, []string{"ask_about_her_day"}, choiceIDs(lib.ChoicesForScene("COFFEE_DATE", ps)))

	ps.AddFlags("warm_greeting", "friendship_path")
	assert.Equal(t,
		[]string{"ask_about_her_day", "share_gate_story"},
		choiceIDs(lib.ChoicesForScene("COFFEE_DATE", ps)))

	assert.Empty(t, lib.ChoicesForScene("NO_SUCH_SCENE", ps))
}

func TestChoicesForScene_LockedChoices(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	ps.AffectionLevel = 50
	ps.AddFlags("protector_path", "romance_path_unlocked")
	assert.Equal(t,
		[]string{"check_her_injuries", "praise_her_skill"},
		choiceIDs(lib.ChoicesForScene("GATE_AFTERMATH", ps)))

	ps.UnlockChoices("stand_guard", "confess_feelings")
	assert.Equal(t,
		[]string{"check_her_injuries", "praise_her_skill", "stand_guard", "confess_feelings"},
		choiceIDs(lib.ChoicesForScene("GATE_AFTERMATH", ps)))

	// Unlocked but still below the affection requirement.
	ps.AffectionLevel = 10
	assert.NotContains(t, choiceIDs(lib.ChoicesForScene("GATE_AFTERMATH", ps)), "confess_feelings")
	assert.False(t, ps.IsChoiceUnlocked("tease_her_sword"))
}

func TestOptimalChoices(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	optimal := OptimalChoices(lib.ChoicesForScene("FIRST_MEETING", ps))
	assert.Equal(t, []string{"warm_greeting"}, choiceIDs(optimal))
}

func TestRequirementsSatisfied(t *testing.T) {
	ps := state.NewPlayerState("p1")
	ps.AffectionLevel = 40
	ps.IntimacyLevel = 20
	ps.TrustLevel = 30
	ps.AddFlags("check_her_injuries")

	tests := []struct {
		name     string
		req      PathRequirements
		expected bool
	}{
		{"empty", PathRequirements{}, true},
		{"stats met", PathRequirements{AffectionLevel: state.Int(40), IntimacyLevel: state.Int(20), TrustLevel: state.Int(30)}, true},
		{"intimacy unmet", PathRequirements{IntimacyLevel: state.Int(21)}, false},
		{"choice recorded", PathRequirements{SpecificChoices: []string{"check_her_injuries"}}, true},
		{"choice missing", PathRequirements{SpecificChoices: []string{"check_her_injuries", "stand_guard"}}, false},
		{"achievement missing", PathRequirements{Achievements: []string{"red_gate_cleared"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequirementsSatisfied(tt.req, ps))
		})
	}
}

func TestEvaluatePaths_StickyUnlock(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	paths := EvaluatePaths(lib.Paths, ps)
	assert.True(t, pathByID(t, paths, MainPathID).Unlocked)
	assert.False(t, pathByID(t, paths, "friendship").Unlocked)

	ps.AffectionLevel = 20
	ps.TrustLevel = 15
	paths = EvaluatePaths(lib.Paths, ps)
	require.True(t, pathByID(t, paths, "friendship").Unlocked)

	// Stats drop: the evaluated paths carry the unlock forward.
	lower := state.NewPlayerState("p1")
	lower.AffectionLevel = 1
	again := EvaluatePaths(paths, lower)
	assert.True(t, pathByID(t, again, "friendship").Unlocked)

	// Stats drop: the profile's unlock cache carries it forward as well.
	lower.MarkPathUnlocked("friendship")
	fresh := EvaluatePaths(lib.Paths, lower)
	assert.True(t, pathByID(t, fresh, "friendship").Unlocked)

	// The library itself is never mutated.
	assert.False(t, pathByID(t, lib.Paths, "friendship").Unlocked)
}

func TestUnlockedPaths(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	ps := state.NewPlayerState("p1")
	ps.AddFlags("red_gate_cleared", "shadow_extraction")
	unlocked := UnlockedPaths(EvaluatePaths(lib.Paths, ps))

	var ids []string
	for _, p := range unlocked {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{MainPathID, "shadow_monarch"}, ids)
}

func TestGreeting(t *testing.T) {
	lib, err := DefaultLibrary()
	require.NoError(t, err)

	assert.Equal(t, "I ordered for you. Americano, right?", lib.Greeting("hongdae_cafe", "coffee"))
	assert.Equal(t, "I saved you a seat by the window.", lib.Greeting("hongdae_cafe", "shopping"))
	assert.Equal(t, "Oh, Jin-Woo. I didn't expect to see you here.", lib.Greeting("namsan_tower", "coffee"))

	empty := &Library{}
	assert.Equal(t, "...", empty.Greeting("anywhere", "anything"))
}

func TestLoadLibrary_Validation(t *testing.T) {
	_, err := LoadLibrary([]byte(`
paths:
  - id: a
scenes:
  S:
    - id: c1
      path_id: missing
`))
	assert.Error(t, err)

	_, err = LoadLibrary([]byte(`
paths:
  - id: a
  - id: a
`))
	assert.Error(t, err)

	_, err = LoadLibrary([]byte(`
paths:
  - id: a
    consequences:
      future_choices_unlocked: [c1]
scenes:
  S:
    - id: c1
      path_id: a
`))
	assert.Error(t, err)

	_, err = LoadLibrary([]byte("paths: [\n"))
	assert.Error(t, err)
}
