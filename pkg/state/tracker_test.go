package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDelta_Clamping(t *testing.T) {
	ps := NewPlayerState("p1")
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		d := Delta{
			Affection: Int(r.IntN(301) - 150),
			Intimacy:  Int(r.IntN(301) - 150),
			Trust:     Int(r.IntN(301) - 150),
			Traits: map[Trait]int{
				TraitConfidence:     r.IntN(301) - 150,
				TraitProtectiveness: r.IntN(301) - 150,
			},
		}
		require.NoError(t, ps.ApplyDelta(d))

		for name, v := range map[string]int{
			"affection":      ps.AffectionLevel,
			"intimacy":       ps.IntimacyLevel,
			"trust":          ps.TrustLevel,
			"confidence":     ps.PersonalityTraits.Confidence,
			"protectiveness": ps.PersonalityTraits.Protectiveness,
		} {
			if v < 0 || v > 100 {
				t.Fatalf("iteration %d: %s out of range: %d", i, name, v)
			}
		}
	}
}

func TestApplyDelta_ExtremeDeltas(t *testing.T) {
	tests := []struct {
		name  string
		start int
		delta int
		want  int
	}{
		{"max int from mid", 50, math.MaxInt, 100},
		{"max int from top", 100, math.MaxInt, 100},
		{"min int from mid", 50, math.MinInt, 0},
		{"min int from zero", 0, math.MinInt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := NewPlayerState("p1")
			ps.AffectionLevel = tt.start
			ps.IntimacyLevel = tt.start
			ps.TrustLevel = tt.start
			ps.PersonalityTraits.Confidence = tt.start

			require.NoError(t, ps.ApplyDelta(Delta{
				Affection: Int(tt.delta),
				Intimacy:  Int(tt.delta),
				Trust:     Int(tt.delta),
				Traits:    map[Trait]int{TraitConfidence: tt.delta},
			}))

			assert.Equal(t, tt.want, ps.AffectionLevel)
			assert.Equal(t, tt.want, ps.IntimacyLevel)
			assert.Equal(t, tt.want, ps.TrustLevel)
			assert.Equal(t, tt.want, ps.PersonalityTraits.Confidence)
		})
	}
}

func TestApplyDelta_UnspecifiedFieldsUnchanged(t *testing.T) {
	ps := NewPlayerState("p1")
	ps.AffectionLevel = 10
	ps.IntimacyLevel = 20
	ps.TrustLevel = 30

	require.NoError(t, ps.ApplyDelta(Delta{Trust: Int(5)}))

	assert.Equal(t, 10, ps.AffectionLevel)
	assert.Equal(t, 20, ps.IntimacyLevel)
	assert.Equal(t, 35, ps.TrustLevel)
}

func TestApplyDelta_UnknownTraitRejected(t *testing.T) {
	ps := NewPlayerState("p1")
	before := ps.Clone()

	err := ps.ApplyDelta(Delta{
		Affection: Int(10),
		Traits:    map[Trait]int{"charisma": 4},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDelta))
	assert.Equal(t, before, ps, "state must be unchanged after a rejected delta")
}

func TestDeriveProgression(t *testing.T) {
	tests := []struct {
		name                       string
		affection, intimacy, trust int
		expected                   Stage
	}{
		{"all zero", 0, 0, 0, StageStranger},
		{"just below acquaintance", 4, 100, 100, StageStranger},
		{"acquaintance", 5, 0, 0, StageAcquaintance},
		{"friend", 15, 0, 10, StageFriend},
		{"close friend", 30, 0, 30, StageCloseFriend},
		{"romantic interest without intimacy", 45, 0, 55, StageRomanticInterest},
		{"dating", 50, 40, 50, StageDating},
		{"committed", 70, 60, 70, StageCommitted},
		{"soulmate", 85, 75, 85, StageSoulmate},
		{"soulmate thresholds exact", 80, 70, 80, StageSoulmate},
		{"high affection low trust", 100, 100, 9, StageAcquaintance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveProgression(tt.affection, tt.intimacy, tt.trust)
			if got != tt.expected {
				t.Errorf("DeriveProgression(%d, %d, %d) = %s, want %s",
					tt.affection, tt.intimacy, tt.trust, got, tt.expected)
			}
		})
	}
}

func TestApplyDelta_ProgressionNeverDecreases(t *testing.T) {
	ps := NewPlayerState("p1")
	require.NoError(t, ps.ApplyDelta(Delta{Affection: Int(50), Intimacy: Int(40), Trust: Int(50)}))
	assert.Equal(t, StageDating, ps.RomanticProgression)

	require.NoError(t, ps.ApplyDelta(Delta{Affection: Int(-30), Trust: Int(-30)}))
	assert.Equal(t, 20, ps.AffectionLevel)
	assert.Equal(t, StageDating, ps.RomanticProgression)

	require.NoError(t, ps.ApplyDelta(Delta{Affection: Int(60), Intimacy: Int(60), Trust: Int(60)}))
	assert.Equal(t, StageSoulmate, ps.RomanticProgression)
}

func TestRecordMemory_Bound(t *testing.T) {
	ps := NewPlayerState("p1")
	for i := 0; i < 60; i++ {
		ps.RecordMemory(fmt.Sprintf("event-%d", i), i, "neutral")
	}

	require.Len(t, ps.MemoryBank, MemoryBankLimit)
	for i, m := range ps.MemoryBank {
		assert.Equal(t, fmt.Sprintf("event-%d", i+10), m.Event)
	}
}

func TestAddExperience(t *testing.T) {
	ps := NewPlayerState("p1")
	require.NoError(t, ps.AddExperience(250))
	assert.Equal(t, 3, ps.PlayerLevel)

	err := ps.AddExperience(-1)
	assert.ErrorIs(t, err, ErrInvalidDelta)
	assert.Equal(t, 250, ps.Experience)

	assert.ErrorIs(t, ps.AddGold(-5), ErrInvalidDelta)
}

func TestAddExperience_Saturates(t *testing.T) {
	ps := NewPlayerState("p1")
	require.NoError(t, ps.AddExperience(math.MaxInt))
	require.NoError(t, ps.AddExperience(1))
	assert.Equal(t, math.MaxInt, ps.Experience)
	assert.Positive(t, ps.PlayerLevel)

	require.NoError(t, ps.AddGold(math.MaxInt))
	require.NoError(t, ps.AddGold(math.MaxInt))
	assert.Equal(t, math.MaxInt, ps.Gold)
}

func TestFlagsAreSortedSet(t *testing.T) {
	ps := NewPlayerState("p1")
	ps.AddFlags("warm_greeting", "coffee_date", "warm_greeting", "")

	assert.Equal(t, []string{"coffee_date", "warm_greeting"}, ps.StoryFlags)
	assert.True(t, ps.HasFlag("coffee_date"))
	assert.False(t, ps.HasFlag("missing"))
}

func TestPlayerState_JSONRoundTrip(t *testing.T) {
	ps := NewPlayerState("p1")
	require.NoError(t, ps.ApplyDelta(Delta{Affection: Int(33), Trust: Int(31), Traits: map[Trait]int{TraitPlayfulness: 7}}))
	ps.AddFlags("warm_greeting", "gate_cleared")
	ps.MarkPathUnlocked("main_story")
	ps.AdvancePath("romance", 15)
	ps.RecordMemory("first", 3, "happy")
	ps.RecordMemory("second", -2, "hurt")
	ps.ChaLocationOverride = &LocationOverride{LocationID: "hunter_association", Reason: "meeting"}
	ps.ActiveEpisode = "ep_1"
	ps.ActiveBeat = 2

	data, err := json.Marshal(ps)
	require.NoError(t, err)

	var loaded PlayerState
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, ps, &loaded)
	assert.Equal(t, "first", loaded.MemoryBank[0].Event)
}

func TestStage_DisplayName(t *testing.T) {
	assert.Equal(t, "Close Friend", StageCloseFriend.DisplayName())
	assert.Equal(t, 7, StageSoulmate.Rank())
	assert.Equal(t, -1, Stage("rival").Rank())
}
