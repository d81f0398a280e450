// Package collection implements collections: ordered lists of explorations a
// learner works through, with their YAML form and schema migrations.
package collection

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// CurrentSchemaVersion is the schema version of collection contents.
	CurrentSchemaVersion = 6
	DefaultLanguageCode  = "en"

	DefaultTitle     = "Untitled"
	DefaultCategory  = ""
	DefaultObjective = ""

	skillIDPrefix = "skill"
)

// DemoCollectionIDs are the ids of collections seeded for new installations.
var DemoCollectionIDs = map[string]bool{"0": true}

// SystemUserIDs never count as contributors.
var SystemUserIDs = map[string]bool{"admin": true, "SYSTEM_COMMITTER_ID": true}

// ValidationError reports invalid collection data or input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

// Node is one exploration in a collection.
type Node struct {
	ExplorationID string `json:"exploration_id" bson:"exploration_id"`
}

func (n Node) ToMap() map[string]interface{} {
	return map[string]interface{}{"exploration_id": n.ExplorationID}
}

// NodeFromMap reads a node dict, ignoring keys from older schema versions.
func NodeFromMap(m map[string]interface{}) (Node, error) {
	id, ok := m["exploration_id"].(string)
	if !ok {
		return Node{}, validationErrorf("Expected exploration ID to be a string, received %v", m["exploration_id"])
	}
	return Node{ExplorationID: id}, nil
}

// Collection is the domain object for a collection.
type Collection struct {
	ID            string
	Title         string
	Category      string
	Objective     string
	LanguageCode  string
	Tags          []string
	SchemaVersion int
	Nodes         []Node
	Version       int
	CreatedOn     time.Time
	LastUpdated   time.Time
}

// NewDefault returns an empty collection at the current schema version.
func NewDefault(id, title, category, objective string) *Collection {
	return &Collection{
		ID:            id,
		Title:         title,
		Category:      category,
		Objective:     objective,
		LanguageCode:  DefaultLanguageCode,
		Tags:          []string{},
		SchemaVersion: CurrentSchemaVersion,
		Nodes:         []Node{},
	}
}

// ToMap returns the dict form of the collection, without version or timestamps.
func (c *Collection) ToMap() map[string]interface{} {
	nodes := make([]interface{}, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nodes = append(nodes, n.ToMap())
	}
	tags := make([]interface{}, 0, len(c.Tags))
	for _, t := range c.Tags {
		tags = append(tags, t)
	}
	return map[string]interface{}{
		"id":             c.ID,
		"title":          c.Title,
		"category":       c.Category,
		"objective":      c.Objective,
		"language_code":  c.LanguageCode,
		"tags":           tags,
		"schema_version": c.SchemaVersion,
		"nodes":          nodes,
	}
}

// FromMap builds a collection from its dict form.
func FromMap(m map[string]interface{}) (*Collection, error) {
	c := &Collection{}
	var err error
	if c.ID, err = stringField(m, "id", "ID"); err != nil {
		return nil, err
	}
	if c.Title, err = stringField(m, "title", "title"); err != nil {
		return nil, err
	}
	if c.Category, err = stringField(m, "category", "category"); err != nil {
		return nil, err
	}
	if c.Objective, err = stringField(m, "objective", "objective"); err != nil {
		return nil, err
	}
	if c.LanguageCode, err = stringField(m, "language_code", "language code"); err != nil {
		return nil, err
	}
	if c.Tags, err = stringList(m["tags"], "tags"); err != nil {
		return nil, err
	}
	v, ok := toInt(m["schema_version"])
	if !ok {
		return nil, validationErrorf("Expected schema version to be an integer, received %v", m["schema_version"])
	}
	c.SchemaVersion = v

	rawNodes, ok := m["nodes"].([]interface{})
	if !ok && m["nodes"] != nil {
		return nil, validationErrorf("Expected nodes to be a list, received %v", m["nodes"])
	}
	c.Nodes = make([]Node, 0, len(rawNodes))
	for _, rn := range rawNodes {
		nm, ok := rn.(map[string]interface{})
		if !ok {
			return nil, validationErrorf("Expected node to be a dict, received %v", rn)
		}
		n, err := NodeFromMap(nm)
		if err != nil {
			return nil, err
		}
		c.Nodes = append(c.Nodes, n)
	}
	return c, nil
}

type serialized struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Objective     string   `json:"objective"`
	LanguageCode  string   `json:"language_code"`
	Tags          []string `json:"tags"`
	SchemaVersion int      `json:"schema_version"`
	Nodes         []Node   `json:"nodes"`
	Version       int      `json:"version"`
	CreatedOn     string   `json:"created_on,omitempty"`
	LastUpdated   string   `json:"last_updated,omitempty"`
}

// Serialize encodes the collection, including version and timestamps, as JSON.
func (c *Collection) Serialize() ([]byte, error) {
	s := serialized{
		ID:            c.ID,
		Title:         c.Title,
		Category:      c.Category,
		Objective:     c.Objective,
		LanguageCode:  c.LanguageCode,
		Tags:          c.Tags,
		SchemaVersion: c.SchemaVersion,
		Nodes:         c.Nodes,
		Version:       c.Version,
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if !c.CreatedOn.IsZero() {
		s.CreatedOn = c.CreatedOn.UTC().Format(time.RFC3339Nano)
	}
	if !c.LastUpdated.IsZero() {
		s.LastUpdated = c.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(s)
}

// Deserialize decodes bytes produced by Serialize.
func Deserialize(data []byte) (*Collection, error) {
	var s serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("deserialize collection: %w", err)
	}
	c := &Collection{
		ID:            s.ID,
		Title:         s.Title,
		Category:      s.Category,
		Objective:     s.Objective,
		LanguageCode:  s.LanguageCode,
		Tags:          s.Tags,
		SchemaVersion: s.SchemaVersion,
		Nodes:         s.Nodes,
		Version:       s.Version,
	}
	var err error
	if s.CreatedOn != "" {
		if c.CreatedOn, err = time.Parse(time.RFC3339Nano, s.CreatedOn); err != nil {
			return nil, fmt.Errorf("deserialize collection created_on: %w", err)
		}
	}
	if s.LastUpdated != "" {
		if c.LastUpdated, err = time.Parse(time.RFC3339Nano, s.LastUpdated); err != nil {
			return nil, fmt.Errorf("deserialize collection last_updated: %w", err)
		}
	}
	return c, nil
}

// ExplorationIDs returns the exploration ids in node order.
func (c *Collection) ExplorationIDs() []string {
	out := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		out = append(out, n.ExplorationID)
	}
	return out
}

// FirstExplorationID returns the first node's exploration id, or "" when the
// collection is empty.
func (c *Collection) FirstExplorationID() string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return c.Nodes[0].ExplorationID
}

// NextExplorationID returns the first exploration not in completed, or ""
// when every exploration is completed.
func (c *Collection) NextExplorationID(completed []string) string {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	for _, id := range c.ExplorationIDs() {
		if !done[id] {
			return id
		}
	}
	return ""
}

// NextExplorationIDInSequence returns the exploration after current, or ""
// when current is last or absent.
func (c *Collection) NextExplorationIDInSequence(current string) string {
	for i := 0; i < len(c.Nodes)-1; i++ {
		if c.Nodes[i].ExplorationID == current {
			return c.Nodes[i+1].ExplorationID
		}
	}
	return ""
}

func IsDemoID(id string) bool { return DemoCollectionIDs[id] }

func (c *Collection) IsDemo() bool { return IsDemoID(c.ID) }

func (c *Collection) UpdateTitle(title string)         { c.Title = title }
func (c *Collection) UpdateCategory(category string)   { c.Category = category }
func (c *Collection) UpdateObjective(objective string) { c.Objective = objective }
func (c *Collection) UpdateLanguageCode(code string)   { c.LanguageCode = code }

func (c *Collection) UpdateTags(tags []string) {
	c.Tags = append([]string{}, tags...)
}

func (c *Collection) findNode(explorationID string) int {
	for i, n := range c.Nodes {
		if n.ExplorationID == explorationID {
			return i
		}
	}
	return -1
}

// GetNode returns the node for explorationID, or nil.
func (c *Collection) GetNode(explorationID string) *Node {
	if i := c.findNode(explorationID); i >= 0 {
		return &c.Nodes[i]
	}
	return nil
}

func (c *Collection) AddNode(explorationID string) error {
	if c.GetNode(explorationID) != nil {
		return validationErrorf("Exploration is already part of this collection: %s", explorationID)
	}
	c.Nodes = append(c.Nodes, Node{ExplorationID: explorationID})
	return nil
}

func (c *Collection) SwapNodes(first, second int) error {
	if first == second {
		return validationErrorf("Both indices point to the same collection node.")
	}
	if first < 0 || second < 0 || first >= len(c.Nodes) || second >= len(c.Nodes) {
		return validationErrorf("Node index out of range: %d, %d", first, second)
	}
	c.Nodes[first], c.Nodes[second] = c.Nodes[second], c.Nodes[first]
	return nil
}

func (c *Collection) DeleteNode(explorationID string) error {
	i := c.findNode(explorationID)
	if i < 0 {
		return validationErrorf("Exploration is not part of this collection: %s", explorationID)
	}
	c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
	return nil
}

func stringField(m map[string]interface{}, key, label string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", validationErrorf("Expected %s to be a string, received %v", label, v)
	}
	return s, nil
}

func stringList(v interface{}, label string) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, t...), nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, validationErrorf("Expected each tag to be a string, received '%v'", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, validationErrorf("Expected %s to be a list, received %v", label, v)
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	}
	return 0, false
}
