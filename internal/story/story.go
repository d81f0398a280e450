// Package story holds stories, the ordered chapters of a topic, and the
// learner-facing story viewer built on top of them.
package story

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	CurrentContentsSchemaVersion = 5
	NodeIDPrefix                 = "node_"
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, a ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

// Node is one chapter of a story. Each node plays one exploration.
type Node struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	ThumbnailFilename    *string  `json:"thumbnail_filename"`
	ThumbnailBgColor     *string  `json:"thumbnail_bg_color"`
	ThumbnailSizeInBytes *int     `json:"thumbnail_size_in_bytes"`
	DestinationNodeIDs   []string `json:"destination_node_ids"`
	AcquiredSkillIDs     []string `json:"acquired_skill_ids"`
	PrerequisiteSkillIDs []string `json:"prerequisite_skill_ids"`
	Outline              string   `json:"outline"`
	OutlineIsFinalized   bool     `json:"outline_is_finalized"`
	ExplorationID        *string  `json:"exploration_id"`
}

func NewNode(id, title string) Node {
	return Node{
		ID:                   id,
		Title:                title,
		DestinationNodeIDs:   []string{},
		AcquiredSkillIDs:     []string{},
		PrerequisiteSkillIDs: []string{},
	}
}

// ToMap returns the node dict sent to clients.
func (n Node) ToMap() map[string]interface{} {
	b, _ := json.Marshal(n)
	var m map[string]interface{}
	json.Unmarshal(b, &m)
	return m
}

// NodeNumber parses the numeric part of a node id such as "node_3".
func NodeNumber(id string) (int, error) {
	if !strings.HasPrefix(id, NodeIDPrefix) {
		return 0, validationErrorf("Invalid node_id: %s", id)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, NodeIDPrefix))
	if err != nil || n < 1 {
		return 0, validationErrorf("Invalid node_id: %s", id)
	}
	return n, nil
}

func NodeIDFromNumber(n int) string { return NodeIDPrefix + strconv.Itoa(n) }

type Contents struct {
	Nodes         []Node `json:"nodes"`
	InitialNodeID string `json:"initial_node_id,omitempty"`
	NextNodeID    string `json:"next_node_id"`
}

// Node returns the node with the given id.
func (c *Contents) Node(id string) (*Node, bool) {
	for i := range c.Nodes {
		if c.Nodes[i].ID == id {
			return &c.Nodes[i], true
		}
	}
	return nil, false
}

// OrderedNodes walks the story from the initial node, following the first
// destination of each node. The walk ends at a node without destinations, a
// missing node or a node already visited.
func (c *Contents) OrderedNodes() []Node {
	out := []Node{}
	seen := map[string]bool{}
	id := c.InitialNodeID
	for id != "" && !seen[id] {
		n, ok := c.Node(id)
		if !ok {
			break
		}
		seen[id] = true
		out = append(out, *n)
		id = ""
		if len(n.DestinationNodeIDs) > 0 {
			id = n.DestinationNodeIDs[0]
		}
	}
	return out
}

// Validate checks node ids, links and the next node counter.
func (c *Contents) Validate() error {
	next, err := NodeNumber(c.NextNodeID)
	if err != nil {
		return err
	}
	ids := map[string]bool{}
	for _, n := range c.Nodes {
		num, err := NodeNumber(n.ID)
		if err != nil {
			return err
		}
		if num >= next {
			return validationErrorf("The node with id %s is out of bounds.", n.ID)
		}
		if ids[n.ID] {
			return validationErrorf("Expected all node ids to be distinct.")
		}
		ids[n.ID] = true
		if n.Title == "" {
			return validationErrorf("Expected node %s to have a title", n.ID)
		}
		if n.ThumbnailSizeInBytes != nil && *n.ThumbnailSizeInBytes <= 0 {
			return validationErrorf("Expected thumbnail size in bytes to be positive, received %d", *n.ThumbnailSizeInBytes)
		}
	}
	if len(c.Nodes) == 0 {
		if c.InitialNodeID != "" {
			return validationErrorf("Expected starting node to not exist.")
		}
		return nil
	}
	if !ids[c.InitialNodeID] {
		return validationErrorf("Expected starting node to exist.")
	}
	for _, n := range c.Nodes {
		seen := map[string]bool{}
		for _, d := range n.DestinationNodeIDs {
			if d == n.ID {
				return validationErrorf("The story node with ID %s points to itself.", n.ID)
			}
			if !ids[d] {
				return validationErrorf("Expected all destination nodes to exist")
			}
			if seen[d] {
				return validationErrorf("Expected all destination node ids to be distinct.")
			}
			seen[d] = true
		}
	}
	return nil
}

type Story struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	TopicID        string    `json:"corresponding_topic_id"`
	URLFragment    string    `json:"url_fragment"`
	MetaTagContent string    `json:"meta_tag_content"`
	LanguageCode   string    `json:"language_code"`
	Contents       Contents  `json:"story_contents"`
	SchemaVersion  int       `json:"story_contents_schema_version"`
	Version        int       `json:"version"`
	CreatedOn      time.Time `json:"created_on"`
	LastUpdated    time.Time `json:"last_updated"`
}

// NewDefault returns a story without nodes in the given topic.
func NewDefault(id, title, description, topicID, urlFragment string) *Story {
	return &Story{
		ID:            id,
		Title:         title,
		Description:   description,
		TopicID:       topicID,
		URLFragment:   urlFragment,
		LanguageCode:  "en",
		Contents:      Contents{Nodes: []Node{}, NextNodeID: NodeIDFromNumber(1)},
		SchemaVersion: CurrentContentsSchemaVersion,
	}
}

const (
	maxTitleLength          = 39
	maxURLFragmentLength    = 30
	maxMetaTagContentLength = 160
)

func validURLFragment(s string) bool {
	if s == "" || len(s) > maxURLFragmentLength || strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && r != '-' {
			return false
		}
	}
	return true
}

func (s *Story) Validate() error {
	if s.Title == "" {
		return validationErrorf("Title field should not be empty")
	}
	if len(s.Title) > maxTitleLength {
		return validationErrorf("Story title should be less than %d chars, received %s", maxTitleLength, s.Title)
	}
	if s.TopicID == "" {
		return validationErrorf("Expected corresponding_topic_id to be set")
	}
	if !validURLFragment(s.URLFragment) {
		return validationErrorf("Story Url Fragment field must only contain lowercase letters and hyphens, received %s", s.URLFragment)
	}
	if len(s.MetaTagContent) > maxMetaTagContentLength {
		return validationErrorf("Story meta tag content should not be longer than %d characters.", maxMetaTagContentLength)
	}
	if s.SchemaVersion != CurrentContentsSchemaVersion {
		return validationErrorf("Expected story contents schema version to be %d, received %d", CurrentContentsSchemaVersion, s.SchemaVersion)
	}
	return s.Contents.Validate()
}

// AcquiredSkillIDs returns the distinct skills acquired by the given nodes,
// in node order.
func (s *Story) AcquiredSkillIDs(nodeIDs []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, id := range nodeIDs {
		n, ok := s.Contents.Node(id)
		if !ok {
			continue
		}
		for _, sk := range n.AcquiredSkillIDs {
			if !seen[sk] {
				seen[sk] = true
				out = append(out, sk)
			}
		}
	}
	return out
}

// Model is the persisted form of a story. Contents is migrated when loaded.
type Model struct {
	ID             string                 `bson:"_id" json:"id"`
	Title          string                 `bson:"title" json:"title"`
	Description    string                 `bson:"description" json:"description"`
	TopicID        string                 `bson:"corresponding_topic_id" json:"corresponding_topic_id"`
	URLFragment    string                 `bson:"url_fragment" json:"url_fragment"`
	MetaTagContent string                 `bson:"meta_tag_content" json:"meta_tag_content"`
	LanguageCode   string                 `bson:"language_code" json:"language_code"`
	SchemaVersion  int                    `bson:"story_contents_schema_version" json:"story_contents_schema_version"`
	Contents       map[string]interface{} `bson:"story_contents" json:"story_contents"`
	Version        int                    `bson:"version" json:"version"`
	CreatedOn      time.Time              `bson:"created_on" json:"created_on"`
	LastUpdated    time.Time              `bson:"last_updated" json:"last_updated"`
}

func (s *Story) ToModel() (*Model, error) {
	b, err := json.Marshal(s.Contents)
	if err != nil {
		return nil, err
	}
	var contents map[string]interface{}
	if err := json.Unmarshal(b, &contents); err != nil {
		return nil, err
	}
	return &Model{
		ID:             s.ID,
		Title:          s.Title,
		Description:    s.Description,
		TopicID:        s.TopicID,
		URLFragment:    s.URLFragment,
		MetaTagContent: s.MetaTagContent,
		LanguageCode:   s.LanguageCode,
		SchemaVersion:  s.SchemaVersion,
		Contents:       contents,
		Version:        s.Version,
		CreatedOn:      s.CreatedOn,
		LastUpdated:    s.LastUpdated,
	}, nil
}

// FromModel upgrades m.Contents to the current schema and decodes it.
// m.Contents must already be in plain JSON shapes.
func FromModel(m *Model) (*Story, error) {
	contents := m.Contents
	if contents == nil {
		contents = map[string]interface{}{}
	}
	versioned, err := MigrateContents(contents, m.SchemaVersion)
	if err != nil {
		return nil, err
	}
	s := &Story{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		TopicID:        m.TopicID,
		URLFragment:    m.URLFragment,
		MetaTagContent: m.MetaTagContent,
		LanguageCode:   m.LanguageCode,
		SchemaVersion:  versioned.SchemaVersion,
		Version:        m.Version,
		CreatedOn:      m.CreatedOn,
		LastUpdated:    m.LastUpdated,
	}
	b, err := json.Marshal(versioned.Contents)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &s.Contents); err != nil {
		return nil, validationErrorf("Invalid story contents: %v", err)
	}
	if s.Contents.Nodes == nil {
		s.Contents.Nodes = []Node{}
	}
	return s, nil
}
