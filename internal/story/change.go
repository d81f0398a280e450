package story

import (
	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
)

const (
	CmdCreateNew                  = "create_new"
	CmdAddStoryNode               = "add_story_node"
	CmdDeleteStoryNode            = "delete_story_node"
	CmdUpdateStoryProperty        = "update_story_property"
	CmdUpdateStoryNodeProperty    = "update_story_node_property"
	CmdUpdateStoryContentProperty = "update_story_contents_property"

	PropertyTitle          = "title"
	PropertyDescription    = "description"
	PropertyURLFragment    = "url_fragment"
	PropertyMetaTagContent = "meta_tag_content"

	NodePropertyTitle              = "title"
	NodePropertyDescription        = "description"
	NodePropertyOutline            = "outline"
	NodePropertyOutlineFinalized   = "outline_is_finalized"
	NodePropertyExplorationID      = "exploration_id"
	NodePropertyDestinationNodeIDs = "destination_node_ids"
	NodePropertyAcquiredSkillIDs   = "acquired_skill_ids"
	NodePropertyPrerequisiteSkills = "prerequisite_skill_ids"

	ContentPropertyInitialNodeID = "initial_node_id"
)

// ChangeSpec lists the commands a story change list may contain.
var ChangeSpec = changes.NewSpec(
	changes.Command{Name: CmdCreateNew, Required: []string{"title"}},
	changes.Command{Name: CmdAddStoryNode, Required: []string{"node_id", "title"}},
	changes.Command{Name: CmdDeleteStoryNode, Required: []string{"node_id"}},
	changes.Command{
		Name:     CmdUpdateStoryProperty,
		Required: []string{"property_name", "new_value", "old_value"},
		AllowedValues: map[string][]string{
			"property_name": {PropertyTitle, PropertyDescription, PropertyURLFragment, PropertyMetaTagContent},
		},
	},
	changes.Command{
		Name:     CmdUpdateStoryNodeProperty,
		Required: []string{"node_id", "property_name", "new_value", "old_value"},
		AllowedValues: map[string][]string{
			"property_name": {
				NodePropertyTitle, NodePropertyDescription, NodePropertyOutline, NodePropertyOutlineFinalized,
				NodePropertyExplorationID, NodePropertyDestinationNodeIDs, NodePropertyAcquiredSkillIDs,
				NodePropertyPrerequisiteSkills,
			},
		},
	},
	changes.Command{
		Name:     CmdUpdateStoryContentProperty,
		Required: []string{"property_name", "new_value", "old_value"},
		AllowedValues: map[string][]string{
			"property_name": {ContentPropertyInitialNodeID},
		},
	},
)

// ApplyChanges validates list and applies it to s in order.
func (s *Story) ApplyChanges(list []map[string]interface{}) ([]changes.Change, error) {
	parsed, err := ChangeSpec.ValidateList(list)
	if err != nil {
		return nil, err
	}
	for _, ch := range parsed {
		if err := s.apply(ch); err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

func (s *Story) apply(ch changes.Change) error {
	switch ch.Cmd() {
	case CmdAddStoryNode:
		return s.addNode(ch.String("node_id"), ch.String("title"))
	case CmdDeleteStoryNode:
		return s.deleteNode(ch.String("node_id"))
	case CmdUpdateStoryProperty:
		v := ch.String("new_value")
		switch ch.String("property_name") {
		case PropertyTitle:
			s.Title = v
		case PropertyDescription:
			s.Description = v
		case PropertyURLFragment:
			s.URLFragment = v
		case PropertyMetaTagContent:
			s.MetaTagContent = v
		}
		return nil
	case CmdUpdateStoryContentProperty:
		s.Contents.InitialNodeID = ch.String("new_value")
		return nil
	case CmdUpdateStoryNodeProperty:
		return s.applyNodeProperty(ch)
	}
	return nil
}

func (s *Story) addNode(id, title string) error {
	num, err := NodeNumber(id)
	if err != nil {
		return err
	}
	if _, ok := s.Contents.Node(id); ok {
		return validationErrorf("The node with id %s already exists.", id)
	}
	s.Contents.Nodes = append(s.Contents.Nodes, NewNode(id, title))
	if next, err := NodeNumber(s.Contents.NextNodeID); err != nil || num >= next {
		s.Contents.NextNodeID = NodeIDFromNumber(num + 1)
	}
	if s.Contents.InitialNodeID == "" {
		s.Contents.InitialNodeID = id
	}
	return nil
}

func (s *Story) deleteNode(id string) error {
	idx := -1
	for i, n := range s.Contents.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return validationErrorf("The node with id %s is not part of this story", id)
	}
	if id == s.Contents.InitialNodeID {
		if len(s.Contents.Nodes) > 1 {
			return validationErrorf("The node specified cannot be deleted as it is the initial node.")
		}
		s.Contents.InitialNodeID = ""
	}
	s.Contents.Nodes = append(s.Contents.Nodes[:idx], s.Contents.Nodes[idx+1:]...)
	for i := range s.Contents.Nodes {
		s.Contents.Nodes[i].DestinationNodeIDs = without(s.Contents.Nodes[i].DestinationNodeIDs, id)
	}
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Story) applyNodeProperty(ch changes.Change) error {
	id := ch.String("node_id")
	n, ok := s.Contents.Node(id)
	if !ok {
		return validationErrorf("The node with id %s is not part of this story", id)
	}
	switch ch.String("property_name") {
	case NodePropertyTitle:
		n.Title = ch.String("new_value")
	case NodePropertyDescription:
		n.Description = ch.String("new_value")
	case NodePropertyOutline:
		n.Outline = ch.String("new_value")
	case NodePropertyOutlineFinalized:
		b, ok := ch.Get("new_value").(bool)
		if !ok {
			return validationErrorf("Expected outline_is_finalized to be a boolean")
		}
		n.OutlineIsFinalized = b
	case NodePropertyExplorationID:
		if v := ch.String("new_value"); v != "" {
			n.ExplorationID = &v
		} else {
			n.ExplorationID = nil
		}
	default:
		ids, err := ch.StringSlice("new_value")
		if err != nil {
			return err
		}
		switch ch.String("property_name") {
		case NodePropertyDestinationNodeIDs:
			n.DestinationNodeIDs = ids
		case NodePropertyAcquiredSkillIDs:
			n.AcquiredSkillIDs = ids
		case NodePropertyPrerequisiteSkills:
			n.PrerequisiteSkillIDs = ids
		}
	}
	return nil
}
