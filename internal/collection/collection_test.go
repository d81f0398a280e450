package collection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
)

const yamlV1 = `category: A category
nodes:
- acquired_skills:
  - Skill1
  - Skill2
  exploration_id: Exp1
  prerequisite_skills: []
- acquired_skills: []
  exploration_id: Exp2
  prerequisite_skills:
  - Skill1
objective: ''
schema_version: 1
title: A title
`

const yamlV2 = `category: A category
language_code: en
nodes:
- acquired_skills:
  - Skill1
  - Skill2
  exploration_id: Exp1
  prerequisite_skills: []
- acquired_skills: []
  exploration_id: Exp2
  prerequisite_skills:
  - Skill1
objective: ''
schema_version: 2
tags: []
title: A title
`

const yamlV4 = `category: A category
language_code: en
next_skill_id: 2
nodes:
- acquired_skill_ids:
  - skill0
  - skill1
  exploration_id: Exp1
  prerequisite_skill_ids: []
- acquired_skill_ids: []
  exploration_id: Exp2
  prerequisite_skill_ids:
  - skill0
objective: ''
schema_version: 4
skills:
  skill0:
    name: Skill1
    question_ids: []
  skill1:
    name: Skill2
    question_ids: []
tags: []
title: A title
`

const yamlV5 = `category: A category
language_code: en
next_skill_index: 2
nodes:
- acquired_skill_ids:
  - skill0
  - skill1
  exploration_id: Exp1
  prerequisite_skill_ids: []
- acquired_skill_ids: []
  exploration_id: Exp2
  prerequisite_skill_ids:
  - skill0
objective: ''
schema_version: 5
skills:
  skill0:
    name: Skill1
    question_ids: []
  skill1:
    name: Skill2
    question_ids: []
tags: []
title: A title
`

const yamlLatest = `category: A category
language_code: en
nodes:
- exploration_id: Exp1
- exploration_id: Exp2
objective: ''
schema_version: 6
tags: []
title: A title
`

func TestFromYAML_MigratesEveryVersion(t *testing.T) {
	cases := map[string]string{
		"v1": yamlV1,
		"v2": yamlV2,
		"v3": strings.Replace(yamlV2, "schema_version: 2", "schema_version: 3", 1),
		"v4": yamlV4,
		"v5": yamlV5,
		"v6": yamlLatest,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := FromYAML("cid", text)
			require.NoError(t, err)
			require.Equal(t, "cid", c.ID)
			out, err := c.ToYAML()
			require.NoError(t, err)
			require.YAMLEq(t, yamlLatest, out)
		})
	}
}

func TestYAMLChain_SkillIDsAssignedInSortedOrder(t *testing.T) {
	parse := func() map[string]interface{} {
		var doc map[string]interface{}
		require.NoError(t, yaml.Unmarshal([]byte(yamlV1), &doc))
		return doc
	}

	doc, err := yamlChain.Migrate(parse(), 1)
	require.NoError(t, err)
	require.Equal(t, 6, doc["schema_version"])
	require.NotContains(t, doc, "skills")
	require.NotContains(t, doc, "next_skill_index")

	doc = parse()
	for v := 1; v < 4; v++ {
		doc, err = yamlChain.Steps[v](doc)
		require.NoError(t, err)
	}
	require.Equal(t, 4, doc["schema_version"])
	require.Equal(t, 2, doc["next_skill_id"])
	skills := doc["skills"].(map[string]interface{})
	require.Equal(t, "Skill1", skills["skill0"].(map[string]interface{})["name"])
	require.Equal(t, "Skill2", skills["skill1"].(map[string]interface{})["name"])
	nodes := doc["nodes"].([]interface{})
	require.Equal(t, []interface{}{"skill0", "skill1"}, nodes[0].(map[string]interface{})["acquired_skill_ids"])
	require.Equal(t, []interface{}{"skill0"}, nodes[1].(map[string]interface{})["prerequisite_skill_ids"])
}

func TestFromYAML_Errors(t *testing.T) {
	_, err := FromYAML("cid", "a: [unclosed")
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "Please ensure that you are uploading a YAML text file, not a zip file. The YAML parser returned the following error: "))

	_, err = FromYAML("cid", "title: A title\n")
	require.EqualError(t, err, "Invalid YAML file: no schema version specified.")

	for _, v := range []string{"0", "7"} {
		_, err = FromYAML("cid", "schema_version: "+v+"\n")
		require.EqualError(t, err, "Sorry, we can only process v1 to v6 collection YAML files at present.")
	}
}

func TestUpdateContentsFromModel(t *testing.T) {
	v := &VersionedContents{
		SchemaVersion: 3,
		Contents: map[string]interface{}{"nodes": []interface{}{
			map[string]interface{}{"exploration_id": "e1", "acquired_skills": []interface{}{"z", "a"}, "prerequisite_skills": []interface{}{"a"}},
		}},
	}
	require.NoError(t, UpdateContentsFromModel(v, 3))
	require.Equal(t, 4, v.SchemaVersion)
	require.Equal(t, 2, v.Contents["next_skill_id"])
	node := v.Contents["nodes"].([]interface{})[0].(map[string]interface{})
	require.Equal(t, []interface{}{"skill1", "skill0"}, node["acquired_skill_ids"])

	require.NoError(t, MigrateContents(v))
	require.Equal(t, CurrentSchemaVersion, v.SchemaVersion)
	require.Equal(t, 2, v.Contents["next_skill_index"])
	require.Equal(t, map[string]interface{}{"exploration_id": "e1"}, node)

	err := UpdateContentsFromModel(v, CurrentSchemaVersion)
	require.EqualError(t, err, "Collection is version 6 but current collection schema version is 6")
}

func TestRequireValidName(t *testing.T) {
	require.NoError(t, RequireValidName("", "the collection title", true))
	require.NoError(t, RequireValidName("Fractions 101", "the collection title", true))

	cases := map[string]string{
		"":                      "The length of the collection title should be between 1 and 50 characters; received ",
		strings.Repeat("a", 51): "The length of the collection title should be between 1 and 50 characters; received " + strings.Repeat("a", 51),
		" lead":                 "Names should not start or end with whitespace.",
		"a  b":                  "Adjacent whitespace in the collection title should be collapsed.",
		"a:b":                   "Invalid character : in the collection title: a:b",
		"under_score":           "Invalid character _ in the collection title: under_score",
		"ctrl\u0085char":        "Invalid character \u0085 in the collection title: ctrl\u0085char",
	}
	for name, want := range cases {
		require.EqualError(t, RequireValidName(name, "the collection title", false), want, name)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Collection {
		c := NewDefault("c1", "A title", "A category", "An objective")
		require.NoError(t, c.AddNode("e1"))
		return c
	}
	require.NoError(t, valid().Validate(true))

	cases := []struct {
		mutate func(c *Collection)
		strict bool
		want   string
	}{
		{func(c *Collection) { c.Title = "a#b" }, false, "Invalid character # in the collection title: a#b"},
		{func(c *Collection) { c.Category = " x" }, false, "Names should not start or end with whitespace."},
		{func(c *Collection) { c.LanguageCode = "" }, false, "A language must be specified (in the 'Settings' tab)."},
		{func(c *Collection) { c.LanguageCode = "xx" }, false, "Invalid language code: xx"},
		{func(c *Collection) { c.Tags = []string{"a", "a"} }, false, "Expected tags to be unique, but found duplicates"},
		{func(c *Collection) { c.Tags = []string{""} }, false, "Tags should be non-empty."},
		{func(c *Collection) { c.Tags = []string{"Abc"} }, false, "Tags should only contain lowercase letters and spaces, received 'Abc'"},
		{func(c *Collection) { c.Tags = []string{" abc"} }, false, "Tags should not start or end with whitespace, received  ' abc'"},
		{func(c *Collection) { c.Tags = []string{"a  b"} }, false, "Adjacent whitespace in tags should be collapsed, received 'a  b'"},
		{func(c *Collection) { c.SchemaVersion = 5 }, false, "Expected schema version to be 6, received 5"},
		{func(c *Collection) { c.Nodes = append(c.Nodes, Node{ExplorationID: "e1"}) }, false, "There are explorations referenced in the collection more than once."},
		{func(c *Collection) { c.Title = "" }, true, "A title must be specified for the collection."},
		{func(c *Collection) { c.Objective = "" }, true, "An objective must be specified for the collection."},
		{func(c *Collection) { c.Category = "" }, true, "A category must be specified for the collection."},
		{func(c *Collection) { c.Nodes = nil }, true, "Expected to have at least 1 exploration in the collection."},
	}
	for _, tc := range cases {
		c := valid()
		tc.mutate(c)
		require.EqualError(t, c.Validate(tc.strict), tc.want)
	}

	c := valid()
	c.Title = ""
	require.NoError(t, c.Validate(false))
}

func TestNodeOperations(t *testing.T) {
	c := NewDefault("c1", "t", "c", "o")
	require.Equal(t, "", c.FirstExplorationID())
	require.NoError(t, c.AddNode("e1"))
	require.NoError(t, c.AddNode("e2"))
	require.NoError(t, c.AddNode("e3"))
	require.EqualError(t, c.AddNode("e1"), "Exploration is already part of this collection: e1")

	require.Equal(t, "e1", c.FirstExplorationID())
	require.Equal(t, "e2", c.NextExplorationID([]string{"e1"}))
	require.Equal(t, "", c.NextExplorationID([]string{"e1", "e2", "e3"}))
	require.Equal(t, "e3", c.NextExplorationIDInSequence("e2"))
	require.Equal(t, "", c.NextExplorationIDInSequence("e3"))
	require.Equal(t, "", c.NextExplorationIDInSequence("missing"))

	require.EqualError(t, c.SwapNodes(1, 1), "Both indices point to the same collection node.")
	require.NoError(t, c.SwapNodes(0, 2))
	require.Equal(t, []string{"e3", "e2", "e1"}, c.ExplorationIDs())

	require.EqualError(t, c.DeleteNode("nope"), "Exploration is not part of this collection: nope")
	require.NoError(t, c.DeleteNode("e2"))
	require.Equal(t, []string{"e3", "e1"}, c.ExplorationIDs())
	require.NotNil(t, c.GetNode("e1"))
	require.Nil(t, c.GetNode("e2"))

	require.True(t, IsDemoID("0"))
	require.False(t, c.IsDemo())
}

func TestSerializeRoundTrip(t *testing.T) {
	c := NewDefault("c1", "t", "c", "o")
	require.NoError(t, c.AddNode("e1"))
	c.Tags = []string{"math"}
	c.Version = 3
	data, err := c.Serialize()
	require.NoError(t, err)
	got, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, c.ToMap(), got.ToMap())
	require.Equal(t, 3, got.Version)

	fromMap, err := FromMap(c.ToMap())
	require.NoError(t, err)
	require.Equal(t, c.ExplorationIDs(), fromMap.ExplorationIDs())
}

func TestApplyChanges(t *testing.T) {
	c := NewDefault("c1", "t", "c", "o")
	applied, err := c.ApplyChanges([]map[string]interface{}{
		{"cmd": "add_collection_node", "exploration_id": "e1"},
		{"cmd": "add_collection_node", "exploration_id": "e2"},
		{"cmd": "swap_nodes", "first_index": float64(0), "second_index": float64(1)},
		{"cmd": "edit_collection_property", "property_name": "title", "new_value": "New"},
		{"cmd": "edit_collection_property", "property_name": "tags", "new_value": []interface{}{"algebra"}},
		{"cmd": "add_collection_skill", "name": "legacy"},
	})
	require.NoError(t, err)
	require.Len(t, applied, 6)
	require.Equal(t, []string{"e2", "e1"}, c.ExplorationIDs())
	require.Equal(t, "New", c.Title)
	require.Equal(t, []string{"algebra"}, c.Tags)

	_, err = c.ApplyChanges([]map[string]interface{}{
		{"cmd": "edit_collection_property", "property_name": "nodes", "new_value": "x"},
	})
	require.EqualError(t, err, "Value for property_name in cmd edit_collection_property: nodes is not allowed")

	_, err = c.ApplyChanges([]map[string]interface{}{{"cmd": "add_collection_node"}})
	var verr *changes.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "The following required attributes are missing: exploration_id", verr.Msg)

	_, err = c.ApplyChanges([]map[string]interface{}{
		{"cmd": "edit_collection_node_property", "exploration_id": "zz", "property_name": "x", "new_value": 1},
	})
	require.EqualError(t, err, "Exploration is not part of this collection: zz")
}

func TestSummary(t *testing.T) {
	s := &Summary{
		Title: "A title", Category: "c", LanguageCode: "en",
		Status: StatusPrivate, OwnerIDs: []string{"o1"}, EditorIDs: []string{"ed"}, ViewerIDs: []string{"v"},
	}
	require.NoError(t, s.Validate())
	require.True(t, s.IsPrivate())
	require.True(t, s.IsEditableBy("o1"))
	require.True(t, s.IsEditableBy("ed"))
	require.False(t, s.IsEditableBy("v"))
	require.False(t, s.IsEditableBy(""))
	require.True(t, s.IsSolelyOwnedBy("o1"))
	require.True(t, s.DoesUserHaveAnyRole("v"))
	require.False(t, s.DoesUserHaveAnyRole("x"))

	s.CommunityOwned = true
	require.True(t, s.IsEditableBy("anyone"))
	require.False(t, s.IsEditableBy(""))

	s.AddContributionByUser("u2")
	s.AddContributionByUser("u1")
	s.AddContributionByUser("u2")
	s.AddContributionByUser("admin")
	require.Equal(t, map[string]int{"u1": 1, "u2": 2}, s.ContributorsSummary)
	require.Equal(t, []string{"u1", "u2"}, s.ContributorIDs)

	s.Tags = []string{" a", " a"}
	require.EqualError(t, s.Validate(), "Tags should not start or end with whitespace, received ' a'")
	s.Tags = []string{"a", "a"}
	require.EqualError(t, s.Validate(), "Expected tags to be unique, but found duplicates")
}
