package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func chain(ids ...string) Contents {
	c := Contents{NextNodeID: NodeIDFromNumber(len(ids) + 1)}
	for i, id := range ids {
		n := NewNode(id, "Title "+id)
		if i+1 < len(ids) {
			n.DestinationNodeIDs = []string{ids[i+1]}
		}
		c.Nodes = append(c.Nodes, n)
	}
	if len(ids) > 0 {
		c.InitialNodeID = ids[0]
	}
	return c
}

func orderedIDs(c Contents) []string {
	var out []string
	for _, n := range c.OrderedNodes() {
		out = append(out, n.ID)
	}
	return out
}

func TestOrderedNodes(t *testing.T) {
	c := chain("node_1", "node_2", "node_3")
	assert.Equal(t, []string{"node_1", "node_2", "node_3"}, orderedIDs(c))

	c.InitialNodeID = "node_2"
	assert.Equal(t, []string{"node_2", "node_3"}, orderedIDs(c))

	// cycle back to the start
	c.Nodes[2].DestinationNodeIDs = []string{"node_2"}
	assert.Equal(t, []string{"node_2", "node_3"}, orderedIDs(c))

	c.Nodes[2].DestinationNodeIDs = []string{"node_9"}
	assert.Equal(t, []string{"node_2", "node_3"}, orderedIDs(c))

	assert.Empty(t, (&Contents{}).OrderedNodes())
}

func TestValidate(t *testing.T) {
	st := NewDefault("s1", "Title", "Description", "topic_id", "title-one")
	require.NoError(t, st.Validate())

	st.Contents = chain("node_1", "node_2")
	require.NoError(t, st.Validate())

	st.Contents.NextNodeID = "node_2"
	require.EqualError(t, st.Validate(), "The node with id node_2 is out of bounds.")
	st.Contents.NextNodeID = "node_3"

	st.Contents.Nodes[1].DestinationNodeIDs = []string{"node_2"}
	require.EqualError(t, st.Validate(), "The story node with ID node_2 points to itself.")
	st.Contents.Nodes[1].DestinationNodeIDs = []string{"node_7"}
	require.EqualError(t, st.Validate(), "Expected all destination nodes to exist")
	st.Contents.Nodes[1].DestinationNodeIDs = nil

	st.Contents.InitialNodeID = "node_5"
	require.EqualError(t, st.Validate(), "Expected starting node to exist.")
	st.Contents.InitialNodeID = "node_1"

	st.URLFragment = "Bad Fragment"
	require.EqualError(t, st.Validate(), "Story Url Fragment field must only contain lowercase letters and hyphens, received Bad Fragment")
	st.URLFragment = "title-one"

	st.Title = ""
	require.EqualError(t, st.Validate(), "Title field should not be empty")
}

func TestApplyChanges(t *testing.T) {
	st := NewDefault("s1", "Title", "Description", "topic_id", "title-one")
	_, err := st.ApplyChanges([]map[string]interface{}{
		{"cmd": "add_story_node", "node_id": "node_1", "title": "One"},
		{"cmd": "add_story_node", "node_id": "node_2", "title": "Two"},
		{"cmd": "update_story_node_property", "node_id": "node_1", "property_name": "destination_node_ids", "old_value": []interface{}{}, "new_value": []interface{}{"node_2"}},
		{"cmd": "update_story_node_property", "node_id": "node_2", "property_name": "acquired_skill_ids", "old_value": []interface{}{}, "new_value": []interface{}{"skill_1"}},
		{"cmd": "update_story_node_property", "node_id": "node_2", "property_name": "exploration_id", "old_value": nil, "new_value": "exp"},
		{"cmd": "update_story_property", "property_name": "meta_tag_content", "old_value": "", "new_value": "meta"},
	})
	require.NoError(t, err)
	require.NoError(t, st.Validate())
	assert.Equal(t, "node_1", st.Contents.InitialNodeID)
	assert.Equal(t, "node_3", st.Contents.NextNodeID)
	assert.Equal(t, "meta", st.MetaTagContent)
	assert.Equal(t, []string{"skill_1"}, st.AcquiredSkillIDs([]string{"node_1", "node_2"}))
	assert.Equal(t, "exp", *st.Contents.Nodes[1].ExplorationID)

	_, err = st.ApplyChanges([]map[string]interface{}{{"cmd": "delete_story_node", "node_id": "node_1"}})
	require.EqualError(t, err, "The node specified cannot be deleted as it is the initial node.")

	_, err = st.ApplyChanges([]map[string]interface{}{{"cmd": "delete_story_node", "node_id": "node_2"}})
	require.NoError(t, err)
	assert.Empty(t, st.Contents.Nodes[0].DestinationNodeIDs)
}

func TestMigrateContents(t *testing.T) {
	v1 := map[string]interface{}{
		"initial_node_id": "node_1",
		"next_node_id":    "node_2",
		"nodes": []interface{}{
			map[string]interface{}{
				"id":                     "node_1",
				"title":                  "Title",
				"destination_node_ids":   []interface{}{},
				"acquired_skill_ids":     []interface{}{},
				"prerequisite_skill_ids": []interface{}{},
				"outline":                `<p onclick="x()">Outline</p>`,
				"exploration_id":         nil,
			},
		},
	}
	got, err := MigrateContents(v1, 1)
	require.NoError(t, err)
	require.Equal(t, CurrentContentsSchemaVersion, got.SchemaVersion)
	node := got.Contents["nodes"].([]interface{})[0].(map[string]interface{})
	assert.Nil(t, node["thumbnail_filename"])
	assert.Nil(t, node["thumbnail_bg_color"])
	assert.Nil(t, node["thumbnail_size_in_bytes"])
	assert.Equal(t, false, node["outline_is_finalized"])
	assert.Equal(t, "<p>Outline</p>", node["outline"])

	_, err = MigrateContents(map[string]interface{}{}, 6)
	require.EqualError(t, err, "Sorry, we can only process v1-v5 story schemas at present.")

	st, err := FromModel(&Model{ID: "s1", Title: "Title", TopicID: "t", URLFragment: "frag", SchemaVersion: 1, Contents: v1})
	require.NoError(t, err)
	require.Len(t, st.Contents.Nodes, 1)
	assert.Equal(t, "<p>Outline</p>", st.Contents.Nodes[0].Outline)
	assert.Equal(t, CurrentContentsSchemaVersion, st.SchemaVersion)
}

func TestTopicStoryReferences(t *testing.T) {
	tp := NewTopic("topic_id", "Topic", "topic")
	require.NoError(t, tp.AddCanonicalStory("s1"))
	require.EqualError(t, tp.AddCanonicalStory("s1"),
		"The story_id s1 is already present in the canonical story references list of the topic.")
	assert.False(t, tp.StoryPublished("s1"))
	require.NoError(t, tp.PublishStory("s1"))
	assert.True(t, tp.StoryPublished("s1"))
	require.EqualError(t, tp.PublishStory("s1"), "The story is already published.")
	require.NoError(t, tp.UnpublishStory("s1"))
	require.EqualError(t, tp.PublishStory("nope"), "Story with given id doesn't exist in the topic")
	assert.Equal(t, []string{"s1"}, tp.CanonicalStoryIDs())

	tp.AdditionalStoryIDs = []string{"s1"}
	require.EqualError(t, tp.Validate(), "Expected canonical story ids and additional story ids to be mutually exclusive.")
}
