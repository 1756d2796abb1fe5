package state

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is the romantic progression stage derived from relationship stats.
type Stage string

const (
	StageStranger         Stage = "stranger"
	StageAcquaintance     Stage = "acquaintance"
	StageFriend           Stage = "friend"
	StageCloseFriend      Stage = "close_friend"
	StageRomanticInterest Stage = "romantic_interest"
	StageDating           Stage = "dating"
	StageCommitted        Stage = "committed"
	StageSoulmate         Stage = "soulmate"
)

// Stages lists every stage in ascending order.
var Stages = []Stage{
	StageStranger,
	StageAcquaintance,
	StageFriend,
	StageCloseFriend,
	StageRomanticInterest,
	StageDating,
	StageCommitted,
	StageSoulmate,
}

type threshold struct {
	stage                      Stage
	affection, intimacy, trust int
}

// Highest tier first. Tiers are strictly ordered so at most one is selected.
var thresholds = []threshold{
	{StageSoulmate, 80, 70, 80},
	{StageCommitted, 70, 60, 70},
	{StageDating, 50, 40, 50},
	{StageRomanticInterest, 40, 0, 40},
	{StageCloseFriend, 30, 0, 30},
	{StageFriend, 15, 0, 10},
	{StageAcquaintance, 5, 0, 0},
}

// DeriveProgression returns the highest stage whose thresholds are met.
func DeriveProgression(affection, intimacy, trust int) Stage {
	for _, t := range thresholds {
		if affection >= t.affection && intimacy >= t.intimacy && trust >= t.trust {
			return t.stage
		}
	}
	return StageStranger
}

// Rank is the ordinal of the stage, stranger being 0. Unknown stages rank -1.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Rank() >= 0
}

// DisplayName renders the stage for people, e.g. "Close Friend".
func (s Stage) DisplayName() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// maxStage returns the later of two stages.
func maxStage(a, b Stage) Stage {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
