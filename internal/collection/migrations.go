package collection

import (
	"sort"
	"strconv"

	"github.com/openlearn/openlearn/backend/go-services/internal/schema"
)

// contentsChain upgrades stored collection contents (the nodes plus, for
// versions 4 and 5, the skill table).
var contentsChain = &schema.Chain{
	Entity:  "collection",
	Current: CurrentSchemaVersion,
	Steps: map[int]schema.Step{
		1: identity,
		2: identity,
		3: contentsV3ToV4,
		4: contentsV4ToV5,
		5: contentsV5ToV6,
	},
}

// yamlChain upgrades a whole collection dict read from YAML.
var yamlChain = &schema.Chain{
	Entity:  "collection_yaml",
	Current: CurrentSchemaVersion,
	Steps: map[int]schema.Step{
		1: yamlV1ToV2,
		2: yamlV2ToV3,
		3: yamlV3ToV4,
		4: yamlV4ToV5,
		5: yamlV5ToV6,
	},
}

func identity(doc schema.Doc) (schema.Doc, error) { return doc, nil }

func listOf(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return nil
}

func nodeMaps(doc schema.Doc) []map[string]interface{} {
	var out []map[string]interface{}
	for _, n := range listOf(doc["nodes"]) {
		if m, ok := n.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// contentsV3ToV4 assigns ids to the skill names used by nodes, in sorted name
// order, and replaces the names on each node with those ids.
func contentsV3ToV4(doc schema.Doc) (schema.Doc, error) {
	nodes := nodeMaps(doc)
	names := map[string]bool{}
	for _, n := range nodes {
		for _, s := range listOf(n["acquired_skills"]) {
			if name, ok := s.(string); ok {
				names[name] = true
			}
		}
		for _, s := range listOf(n["prerequisite_skills"]) {
			if name, ok := s.(string); ok {
				names[name] = true
			}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	ids := make(map[string]string, len(sorted))
	skills := make(map[string]interface{}, len(sorted))
	for i, name := range sorted {
		id := skillIDPrefix + strconv.Itoa(i)
		ids[name] = id
		skills[id] = map[string]interface{}{"name": name, "question_ids": []interface{}{}}
	}

	toIDs := func(v interface{}) []interface{} {
		out := []interface{}{}
		for _, s := range listOf(v) {
			if name, ok := s.(string); ok {
				out = append(out, ids[name])
			}
		}
		return out
	}
	newNodes := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		newNodes = append(newNodes, map[string]interface{}{
			"exploration_id":         n["exploration_id"],
			"prerequisite_skill_ids": toIDs(n["prerequisite_skills"]),
			"acquired_skill_ids":     toIDs(n["acquired_skills"]),
		})
	}
	doc["nodes"] = newNodes
	doc["skills"] = skills
	doc["next_skill_id"] = len(sorted)
	return doc, nil
}

func contentsV4ToV5(doc schema.Doc) (schema.Doc, error) {
	doc["next_skill_index"] = doc["next_skill_id"]
	delete(doc, "next_skill_id")
	return doc, nil
}

func contentsV5ToV6(doc schema.Doc) (schema.Doc, error) {
	for _, n := range nodeMaps(doc) {
		delete(n, "prerequisite_skill_ids")
		delete(n, "acquired_skill_ids")
	}
	return doc, nil
}

func yamlV1ToV2(doc schema.Doc) (schema.Doc, error) {
	doc["schema_version"] = 2
	doc["language_code"] = DefaultLanguageCode
	doc["tags"] = []interface{}{}
	return doc, nil
}

// yamlV2ToV3 only bumps the version; the structural change happens in v3 to v4.
func yamlV2ToV3(doc schema.Doc) (schema.Doc, error) {
	doc["schema_version"] = 3
	return doc, nil
}

func yamlV3ToV4(doc schema.Doc) (schema.Doc, error) {
	doc, err := contentsV3ToV4(doc)
	if err != nil {
		return nil, err
	}
	doc["schema_version"] = 4
	return doc, nil
}

func yamlV4ToV5(doc schema.Doc) (schema.Doc, error) {
	doc, err := contentsV4ToV5(doc)
	if err != nil {
		return nil, err
	}
	doc["schema_version"] = 5
	return doc, nil
}

func yamlV5ToV6(doc schema.Doc) (schema.Doc, error) {
	delete(doc, "skills")
	delete(doc, "next_skill_index")
	doc["schema_version"] = 6
	return doc, nil
}

// VersionedContents is the stored form of a collection's nodes.
type VersionedContents = schema.Versioned

// UpdateContentsFromModel upgrades versioned from version current to current+1
// in place.
func UpdateContentsFromModel(versioned *VersionedContents, current int) error {
	if versioned.SchemaVersion+1 > CurrentSchemaVersion {
		return validationErrorf("Collection is version %d but current collection schema version is %d",
			versioned.SchemaVersion, CurrentSchemaVersion)
	}
	return contentsChain.UpgradeOne(versioned, current)
}

// MigrateContents upgrades versioned to the current schema version.
func MigrateContents(versioned *VersionedContents) error {
	for versioned.SchemaVersion < CurrentSchemaVersion {
		if err := UpdateContentsFromModel(versioned, versioned.SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}
