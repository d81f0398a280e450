package story

import (
	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
	"github.com/openlearn/openlearn/backend/go-services/internal/schema"
)

var contentsChain = &schema.Chain{
	Entity:  "story",
	Current: CurrentContentsSchemaVersion,
	Steps: map[int]schema.Step{
		1: contentsV1ToV2,
		2: contentsV2ToV3,
		3: contentsV3ToV4,
		4: contentsV4ToV5,
	},
}

// MigrateContents upgrades story contents stored at version from.
func MigrateContents(contents schema.Doc, from int) (*schema.Versioned, error) {
	if from < 1 || from > CurrentContentsSchemaVersion {
		return nil, validationErrorf("Sorry, we can only process v1-v%d story schemas at present.", CurrentContentsSchemaVersion)
	}
	versioned := &schema.Versioned{SchemaVersion: from, Contents: contents}
	if err := contentsChain.UpgradeToCurrent(versioned); err != nil {
		return nil, err
	}
	return versioned, nil
}

func eachNode(doc schema.Doc, fn func(map[string]interface{}) error) error {
	nodes, _ := doc["nodes"].([]interface{})
	for _, raw := range nodes {
		n, ok := raw.(map[string]interface{})
		if !ok {
			return validationErrorf("Expected node to be a dict, received %v", raw)
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func contentsV1ToV2(doc schema.Doc) (schema.Doc, error) {
	err := eachNode(doc, func(n map[string]interface{}) error {
		n["thumbnail_filename"] = nil
		n["thumbnail_bg_color"] = nil
		return nil
	})
	return doc, err
}

func contentsV2ToV3(doc schema.Doc) (schema.Doc, error) {
	err := eachNode(doc, func(n map[string]interface{}) error {
		outline, ok := n["outline"]
		if !ok || outline == nil {
			n["outline"] = ""
			return nil
		}
		clean, err := objects.Normalize("Html", outline)
		if err != nil {
			return err
		}
		n["outline"] = clean
		return nil
	})
	return doc, err
}

func contentsV3ToV4(doc schema.Doc) (schema.Doc, error) {
	err := eachNode(doc, func(n map[string]interface{}) error {
		if _, ok := n["outline_is_finalized"]; !ok {
			n["outline_is_finalized"] = false
		}
		return nil
	})
	return doc, err
}

func contentsV4ToV5(doc schema.Doc) (schema.Doc, error) {
	err := eachNode(doc, func(n map[string]interface{}) error {
		n["thumbnail_size_in_bytes"] = nil
		return nil
	})
	return doc, err
}
