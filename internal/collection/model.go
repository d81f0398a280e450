package collection

import (
	"time"
)

// Model is the persisted form of a collection. Contents holds the nodes at
// SchemaVersion and is migrated when the model is loaded.
type Model struct {
	ID            string                 `bson:"_id" json:"id"`
	Title         string                 `bson:"title" json:"title"`
	Category      string                 `bson:"category" json:"category"`
	Objective     string                 `bson:"objective" json:"objective"`
	LanguageCode  string                 `bson:"language_code" json:"language_code"`
	Tags          []string               `bson:"tags" json:"tags"`
	SchemaVersion int                    `bson:"schema_version" json:"schema_version"`
	Contents      map[string]interface{} `bson:"collection_contents" json:"collection_contents"`
	Version       int                    `bson:"version" json:"version"`
	CreatedOn     time.Time              `bson:"created_on" json:"created_on"`
	LastUpdated   time.Time              `bson:"last_updated" json:"last_updated"`
}

// ToModel returns the persisted form of c.
func (c *Collection) ToModel() *Model {
	nodes := make([]interface{}, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nodes = append(nodes, n.ToMap())
	}
	return &Model{
		ID:            c.ID,
		Title:         c.Title,
		Category:      c.Category,
		Objective:     c.Objective,
		LanguageCode:  c.LanguageCode,
		Tags:          append([]string{}, c.Tags...),
		SchemaVersion: c.SchemaVersion,
		Contents:      map[string]interface{}{"nodes": nodes},
		Version:       c.Version,
		CreatedOn:     c.CreatedOn,
		LastUpdated:   c.LastUpdated,
	}
}

// FromModel builds a collection from its persisted form, upgrading the
// contents to the current schema version first. m.Contents must already be
// in plain JSON shapes.
func FromModel(m *Model) (*Collection, error) {
	contents := m.Contents
	if contents == nil {
		contents = map[string]interface{}{}
	}
	versioned := &VersionedContents{SchemaVersion: m.SchemaVersion, Contents: contents}
	if err := MigrateContents(versioned); err != nil {
		return nil, err
	}

	c := &Collection{
		ID:            m.ID,
		Title:         m.Title,
		Category:      m.Category,
		Objective:     m.Objective,
		LanguageCode:  m.LanguageCode,
		Tags:          append([]string{}, m.Tags...),
		SchemaVersion: versioned.SchemaVersion,
		Nodes:         []Node{},
		Version:       m.Version,
		CreatedOn:     m.CreatedOn,
		LastUpdated:   m.LastUpdated,
	}
	for _, raw := range listOf(versioned.Contents["nodes"]) {
		nm, ok := raw.(map[string]interface{})
		if !ok {
			return nil, validationErrorf("Expected node to be a dict, received %v", raw)
		}
		n, err := NodeFromMap(nm)
		if err != nil {
			return nil, err
		}
		c.Nodes = append(c.Nodes, n)
	}
	return c, nil
}
