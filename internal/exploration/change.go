package exploration

import (
	"encoding/json"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
)

const (
	CmdCreateNew               = "create_new"
	CmdAddState                = "add_state"
	CmdDeleteState             = "delete_state"
	CmdRenameState             = "rename_state"
	CmdEditStateProperty       = "edit_state_property"
	CmdEditExplorationProperty = "edit_exploration_property"
	CmdMigrateStatesSchema     = "migrate_states_schema_to_latest_version"

	StatePropertyContent            = "content"
	StatePropertyRecordedVoiceovers = "recorded_voiceovers"
)

// StateProperties are the property names edit_state_property accepts.
var StateProperties = []string{
	"param_changes",
	StatePropertyContent,
	StatePropertyRecordedVoiceovers,
	"written_translations",
	"widget_id",
	"widget_customization_args",
	"widget_handlers",
	"widget_sticky",
	"interaction_id",
	"interaction_customization_args",
	"interaction_answer_groups",
	"interaction_default_outcome",
	"interaction_hints",
	"interaction_solution",
	"solicit_answer_details",
	"card_is_checkpoint",
	"next_content_id_index",
	"linked_skill_id",
	"classifier_model_id",
	"confirmed_unclassified_answers",
}

// ExplorationProperties are the property names edit_exploration_property
// accepts.
var ExplorationProperties = []string{
	"title",
	"category",
	"objective",
	"language_code",
	"tags",
	"blurb",
	"author_notes",
	"param_specs",
	"param_changes",
	"init_state_name",
	"auto_tts_enabled",
	"correctness_feedback_enabled",
}

var ChangeSpec = changes.NewSpec(
	changes.Command{Name: CmdCreateNew, Required: []string{"category", "title"}},
	changes.Command{Name: CmdAddState, Required: []string{"state_name"}},
	changes.Command{Name: CmdDeleteState, Required: []string{"state_name"}},
	changes.Command{Name: CmdRenameState, Required: []string{"new_state_name", "old_state_name"}},
	changes.Command{
		Name:          CmdEditStateProperty,
		Required:      []string{"new_value", "property_name", "state_name"},
		Optional:      []string{"old_value"},
		AllowedValues: map[string][]string{"property_name": StateProperties},
	},
	changes.Command{
		Name:          CmdEditExplorationProperty,
		Required:      []string{"new_value", "property_name"},
		Optional:      []string{"old_value"},
		AllowedValues: map[string][]string{"property_name": ExplorationProperties},
	},
	changes.Command{Name: CmdMigrateStatesSchema, Required: []string{"from_version", "to_version"}},
)

// decodeInto converts a decoded JSON value into a typed struct.
func decodeInto(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Apply applies one validated change to e.
func (e *Exploration) Apply(ch changes.Change) error {
	switch ch.Cmd() {
	case CmdAddState:
		name := ch.String("state_name")
		if _, ok := e.States[name]; ok {
			return validationErrorf("Duplicate state name %s", name)
		}
		e.States[name] = NewDefaultState()
	case CmdDeleteState:
		name := ch.String("state_name")
		if name == e.InitStateName {
			return validationErrorf("Cannot delete initial state of an exploration.")
		}
		if _, ok := e.States[name]; !ok {
			return validationErrorf("State %s does not exist", name)
		}
		delete(e.States, name)
	case CmdRenameState:
		oldName, newName := ch.String("old_state_name"), ch.String("new_state_name")
		s, ok := e.States[oldName]
		if !ok {
			return validationErrorf("State %s does not exist", oldName)
		}
		if _, dup := e.States[newName]; dup && oldName != newName {
			return validationErrorf("Duplicate state name: %s", newName)
		}
		delete(e.States, oldName)
		e.States[newName] = s
		if e.InitStateName == oldName {
			e.InitStateName = newName
		}
	case CmdEditStateProperty:
		return e.applyStateProperty(ch)
	case CmdEditExplorationProperty:
		return e.applyExplorationProperty(ch)
	case CmdCreateNew, CmdMigrateStatesSchema, changes.CmdDeleteCommit:
	default:
		return validationErrorf("Command %s is not allowed", ch.Cmd())
	}
	return nil
}

func (e *Exploration) applyStateProperty(ch changes.Change) error {
	name := ch.String("state_name")
	s, ok := e.States[name]
	if !ok {
		return validationErrorf("State %s does not exist", name)
	}
	switch prop := ch.String("property_name"); prop {
	case StatePropertyContent:
		var content SubtitledHTML
		if err := decodeInto(ch.Get("new_value"), &content); err != nil {
			return validationErrorf("Expected content to be a SubtitledHtml dict, received %v", ch.Get("new_value"))
		}
		content.HTML = objects.SanitizeHTML(content.HTML)
		s.Content = content
	case StatePropertyRecordedVoiceovers:
		var rv RecordedVoiceovers
		if err := decodeInto(ch.Get("new_value"), &rv); err != nil {
			return validationErrorf("Expected recorded_voiceovers to be a dict, received %v", ch.Get("new_value"))
		}
		if rv.VoiceoversMapping == nil {
			rv.VoiceoversMapping = map[string]map[string]Voiceover{}
		}
		s.RecordedVoiceovers = rv
	default:
		return validationErrorf("Editing state property %s is not supported", prop)
	}
	return nil
}

func (e *Exploration) applyExplorationProperty(ch changes.Change) error {
	switch prop := ch.String("property_name"); prop {
	case "title":
		e.Title = ch.String("new_value")
	case "category":
		e.Category = ch.String("new_value")
	case "objective":
		e.Objective = ch.String("new_value")
	case "language_code":
		e.LanguageCode = ch.String("new_value")
	case "tags":
		tags, err := ch.StringSlice("new_value")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		e.Tags = tags
	case "init_state_name":
		name := ch.String("new_value")
		if _, ok := e.States[name]; !ok {
			return validationErrorf("State %s does not exist", name)
		}
		e.InitStateName = name
	default:
		return validationErrorf("Editing exploration property %s is not supported", prop)
	}
	return nil
}

// ApplyChanges validates list against ChangeSpec and applies it in order.
func (e *Exploration) ApplyChanges(list []map[string]interface{}) ([]changes.Change, error) {
	validated, err := ChangeSpec.ValidateList(list)
	if err != nil {
		return nil, err
	}
	for _, ch := range validated {
		if err := e.Apply(ch); err != nil {
			return nil, err
		}
	}
	return validated, nil
}
