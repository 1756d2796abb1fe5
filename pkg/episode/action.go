package episode

import (
	"encoding/json"
	"fmt"
)

// ActionType is the tag of a beat action.
type ActionType string

const (
	ActionAddCommunicatorMessage ActionType = "ADD_COMMUNICATOR_MESSAGE"
	ActionSetQuestObjective      ActionType = "SET_QUEST_OBJECTIVE"
	ActionUpdateQuestObjective   ActionType = "UPDATE_QUEST_OBJECTIVE"
	ActionSetChaLocationOverride ActionType = "SET_CHA_LOCATION_OVERRIDE"
	ActionSetChaMood             ActionType = "SET_CHA_MOOD"
	ActionCompleteEpisode        ActionType = "COMPLETE_EPISODE"
)

// Command is the decoded payload of an action. The set of implementations is closed;
// tags this package does not know decode to Unrecognized.
type Command interface {
	actionType() ActionType
}

type AddCommunicatorMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type SetQuestObjective struct {
	ObjectiveText string `json:"objective_text"`
}

type UpdateQuestObjective struct {
	ObjectiveText string `json:"objective_text"`
}

type SetChaLocationOverride struct {
	LocationID string `json:"location_id"`
	Reason     string `json:"reason"`
}

type SetChaMood struct {
	Mood string `json:"mood"`
}

type CompleteEpisode struct {
	EpisodeID string `json:"episode_id"`
}

// Unrecognized keeps an action whose tag is not known, so newer content still loads.
type Unrecognized struct {
	Tag    ActionType
	Params json.RawMessage
}

func (AddCommunicatorMessage) actionType() ActionType { return ActionAddCommunicatorMessage }
func (SetQuestObjective) actionType() ActionType      { return ActionSetQuestObjective }
func (UpdateQuestObjective) actionType() ActionType   { return ActionUpdateQuestObjective }
func (SetChaLocationOverride) actionType() ActionType { return ActionSetChaLocationOverride }
func (SetChaMood) actionType() ActionType             { return ActionSetChaMood }
func (CompleteEpisode) actionType() ActionType        { return ActionCompleteEpisode }
func (u Unrecognized) actionType() ActionType         { return u.Tag }

// Action is a tagged command executed when a beat plays.
type Action struct {
	Command Command
}

// Type returns the action tag.
func (a Action) Type() ActionType {
	if a.Command == nil {
		return ""
	}
	return a.Command.actionType()
}

// Recognized reports whether the tag is one this package knows.
func (a Action) Recognized() bool {
	if a.Command == nil {
		return false
	}
	_, unknown := a.Command.(Unrecognized)
	return !unknown
}

type wireAction struct {
	Type   ActionType      `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// UnmarshalJSON decodes {"type": "...", "params": {...}} into the matching Command.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var (
		cmd Command
		err error
	)
	switch w.Type {
	case ActionAddCommunicatorMessage:
		cmd, err = decodeParams[AddCommunicatorMessage](w.Params)
	case ActionSetQuestObjective:
		cmd, err = decodeParams[SetQuestObjective](w.Params)
	case ActionUpdateQuestObjective:
		cmd, err = decodeParams[UpdateQuestObjective](w.Params)
	case ActionSetChaLocationOverride:
		cmd, err = decodeParams[SetChaLocationOverride](w.Params)
	case ActionSetChaMood:
		cmd, err = decodeParams[SetChaMood](w.Params)
	case ActionCompleteEpisode:
		cmd, err = decodeParams[CompleteEpisode](w.Params)
	default:
		cmd = Unrecognized{Tag: w.Type, Params: w.Params}
	}
	if err != nil {
		return fmt.Errorf("action %s: %w", w.Type, err)
	}
	a.Command = cmd
	return nil
}

// MarshalJSON encodes the action back into its wire form.
func (a Action) MarshalJSON() ([]byte, error) {
	w := wireAction{Type: a.Type()}
	switch c := a.Command.(type) {
	case nil:
	case Unrecognized:
		w.Params = c.Params
	default:
		params, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		w.Params = params
	}
	return json.Marshal(w)
}

func decodeParams[T Command](raw json.RawMessage) (Command, error) {
	var params T
	if len(raw) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
