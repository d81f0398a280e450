package collection

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToYAML renders the collection as YAML. The id is not part of the YAML form.
func (c *Collection) ToYAML() (string, error) {
	m := c.ToMap()
	delete(m, "id")
	out, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal collection yaml: %w", err)
	}
	return string(out), nil
}

// MigrateYAML parses YAML of any supported schema version and returns the
// collection dict at the current version.
func MigrateYAML(text string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, validationErrorf("Please ensure that you are uploading a YAML text file, not a zip file. The YAML parser returned the following error: %s", err)
	}
	if doc == nil {
		return nil, validationErrorf("Please ensure that you are uploading a YAML text file, not a zip file. The YAML parser returned the following error: %s", "document is not a mapping")
	}
	raw, ok := doc["schema_version"]
	if !ok || raw == nil {
		return nil, validationErrorf("Invalid YAML file: no schema version specified.")
	}
	version, ok := toInt(raw)
	if !ok || version < 1 || version > CurrentSchemaVersion {
		return nil, validationErrorf("Sorry, we can only process v1 to v%d collection YAML files at present.", CurrentSchemaVersion)
	}
	return yamlChain.Migrate(doc, version)
}

// FromYAML builds a collection with the given id from YAML of any supported
// schema version.
func FromYAML(id, text string) (*Collection, error) {
	doc, err := MigrateYAML(text)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	return FromMap(doc)
}
