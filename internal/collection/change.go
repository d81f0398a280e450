package collection

import (
	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
)

const (
	CmdCreateNew                  = "create_new"
	CmdAddCollectionNode          = "add_collection_node"
	CmdDeleteCollectionNode       = "delete_collection_node"
	CmdSwapCollectionNodes        = "swap_nodes"
	CmdEditCollectionProperty     = "edit_collection_property"
	CmdEditCollectionNodeProperty = "edit_collection_node_property"
	CmdMigrateSchemaToLatest      = "migrate_schema_to_latest_version"
	CmdAddCollectionSkill         = "add_collection_skill"
	CmdDeleteCollectionSkill      = "delete_collection_skill"
	CmdAddQuestionIDToSkill       = "add_question_id_to_skill"
	CmdRemoveQuestionIDFromSkill  = "remove_question_id_from_skill"

	PropertyTitle        = "title"
	PropertyCategory     = "category"
	PropertyObjective    = "objective"
	PropertyLanguageCode = "language_code"
	PropertyTags         = "tags"
)

// ChangeSpec lists the commands a collection change list may contain.
var ChangeSpec = changes.NewSpec(
	changes.Command{Name: CmdCreateNew, Required: []string{"category", "title"}},
	changes.Command{Name: CmdAddCollectionNode, Required: []string{"exploration_id"}},
	changes.Command{Name: CmdDeleteCollectionNode, Required: []string{"exploration_id"}},
	changes.Command{Name: CmdSwapCollectionNodes, Required: []string{"first_index", "second_index"}},
	changes.Command{
		Name:     CmdEditCollectionProperty,
		Required: []string{"property_name", "new_value"},
		Optional: []string{"old_value"},
		AllowedValues: map[string][]string{
			"property_name": {PropertyTitle, PropertyCategory, PropertyObjective, PropertyLanguageCode, PropertyTags},
		},
	},
	changes.Command{
		Name:     CmdEditCollectionNodeProperty,
		Required: []string{"exploration_id", "property_name", "new_value"},
		Optional: []string{"old_value"},
	},
	changes.Command{Name: CmdMigrateSchemaToLatest, Required: []string{"from_version", "to_version"}},
	changes.Command{Name: CmdAddCollectionSkill, Required: []string{"name"}},
	changes.Command{Name: CmdDeleteCollectionSkill, Required: []string{"skill_id"}},
	changes.Command{Name: CmdAddQuestionIDToSkill, Required: []string{"question_id", "skill_id"}},
	changes.Command{Name: CmdRemoveQuestionIDFromSkill, Required: []string{"question_id", "skill_id"}},
)

// ApplyChange applies one validated change to c. Skill commands only exist in
// commit history from before schema version 6 and do nothing here.
func (c *Collection) ApplyChange(ch changes.Change) error {
	switch ch.Cmd() {
	case CmdAddCollectionNode:
		return c.AddNode(ch.String("exploration_id"))
	case CmdDeleteCollectionNode:
		return c.DeleteNode(ch.String("exploration_id"))
	case CmdSwapCollectionNodes:
		first, err := ch.Int("first_index")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		second, err := ch.Int("second_index")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		return c.SwapNodes(first, second)
	case CmdEditCollectionProperty:
		return c.applyPropertyChange(ch)
	case CmdEditCollectionNodeProperty:
		if c.GetNode(ch.String("exploration_id")) == nil {
			return validationErrorf("Exploration is not part of this collection: %s", ch.String("exploration_id"))
		}
		return nil
	case CmdCreateNew, CmdMigrateSchemaToLatest, changes.CmdDeleteCommit,
		CmdAddCollectionSkill, CmdDeleteCollectionSkill,
		CmdAddQuestionIDToSkill, CmdRemoveQuestionIDFromSkill:
		return nil
	}
	return validationErrorf("Command %s is not allowed", ch.Cmd())
}

func (c *Collection) applyPropertyChange(ch changes.Change) error {
	switch ch.String("property_name") {
	case PropertyTitle:
		c.UpdateTitle(ch.String("new_value"))
	case PropertyCategory:
		c.UpdateCategory(ch.String("new_value"))
	case PropertyObjective:
		c.UpdateObjective(ch.String("new_value"))
	case PropertyLanguageCode:
		c.UpdateLanguageCode(ch.String("new_value"))
	case PropertyTags:
		tags, err := ch.StringSlice("new_value")
		if err != nil {
			return &ValidationError{Msg: err.Error()}
		}
		c.UpdateTags(tags)
	}
	return nil
}

// ApplyChanges validates the raw change list against ChangeSpec and applies it
// in order.
func (c *Collection) ApplyChanges(list []map[string]interface{}) ([]changes.Change, error) {
	validated, err := ChangeSpec.ValidateList(list)
	if err != nil {
		return nil, err
	}
	for _, ch := range validated {
		if err := c.ApplyChange(ch); err != nil {
			return nil, err
		}
	}
	return validated, nil
}
