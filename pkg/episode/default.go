package episode

// DefaultID is the id of the built-in episode served when the catalog cannot be read.
const DefaultID = "first_encounter"

// Default returns the built-in episode.
func Default() Episode {
	return Episode{
		ID:          DefaultID,
		Title:       "First Encounter",
		Description: "A chance meeting with Cha Hae-In at the Hunter Association.",
		Beats: []Beat{
			{
				ID:      1,
				Title:   "A Message from the Association",
				Trigger: "episode_started",
				Actions: []Action{
					{Command: AddCommunicatorMessage{
						Sender:  "Hunter Association",
						Message: "S-Rank Hunter Cha Hae-In has requested a briefing. Please report to headquarters.",
					}},
					{Command: SetQuestObjective{ObjectiveText: "Report to the Hunter Association"}},
					{Command: SetChaLocationOverride{LocationID: "hunter_association", Reason: "briefing"}},
				},
				CompletionCondition: CompletionCondition{
					Event:  "location_visited",
					Params: map[string]any{"location_id": "hunter_association"},
				},
			},
			{
				ID:      2,
				Title:   "The Briefing",
				Trigger: "location_visited",
				Actions: []Action{
					{Command: SetChaMood{Mood: "curious"}},
					{Command: UpdateQuestObjective{ObjectiveText: "Talk to Cha Hae-In"}},
				},
				CompletionCondition: CompletionCondition{
					Event:  "dialogue_completed",
					Params: map[string]any{"scene": "FIRST_MEETING"},
				},
			},
			{
				ID:      3,
				Title:   "Parting Words",
				Trigger: "dialogue_completed",
				Actions: []Action{
					{Command: AddCommunicatorMessage{
						Sender:  "Cha Hae-In",
						Message: "It was good to finally meet you. Let's talk again soon.",
					}},
					{Command: CompleteEpisode{EpisodeID: DefaultID}},
				},
			},
		},
	}
}
