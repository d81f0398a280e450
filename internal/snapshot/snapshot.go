// Package snapshot keeps the versioned commit history of collections,
// explorations and skills: per-version metadata, a commit log and the
// compressed content of each version.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	KindCollection  = "collection"
	KindExploration = "exploration"
	KindSkill       = "skill"
	KindStory       = "story"

	CommitTypeCreate = "create"
	CommitTypeEdit   = "edit"
	CommitTypeDelete = "delete"
)

var ErrNotFound = errors.New("snapshot not found")

// Metadata describes one committed version of an entity.
type Metadata struct {
	ID            string                   `json:"id" bson:"id"`
	EntityKind    string                   `json:"entity_kind" bson:"entity_kind"`
	EntityID      string                   `json:"entity_id" bson:"entity_id"`
	Version       int                      `json:"version" bson:"version"`
	CommitterID   string                   `json:"committer_id" bson:"committer_id"`
	CommitType    string                   `json:"commit_type" bson:"commit_type"`
	CommitMessage string                   `json:"commit_message" bson:"commit_message"`
	CommitCmds    []map[string]interface{} `json:"commit_cmds" bson:"commit_cmds"`
	CreatedOn     time.Time                `json:"created_on" bson:"created_on"`
}

// CommitLogEntry is the cross-entity commit log record of one version.
type CommitLogEntry struct {
	ID            string                   `json:"id" bson:"id"`
	EntityKind    string                   `json:"entity_kind" bson:"entity_kind"`
	EntityID      string                   `json:"entity_id" bson:"entity_id"`
	Version       int                      `json:"version" bson:"version"`
	UserID        string                   `json:"user_id" bson:"user_id"`
	CommitType    string                   `json:"commit_type" bson:"commit_type"`
	CommitMessage string                   `json:"commit_message" bson:"commit_message"`
	CommitCmds    []map[string]interface{} `json:"commit_cmds" bson:"commit_cmds"`
	CreatedOn     time.Time                `json:"created_on" bson:"created_on"`
}

// Commit is everything recorded for one new version.
type Commit struct {
	Kind        string
	EntityID    string
	Version     int
	CommitterID string
	CommitType  string
	Message     string
	Cmds        []map[string]interface{}
	Content     []byte
}

func MetadataID(entityID string, version int) string {
	return fmt.Sprintf("%s-%d", entityID, version)
}

func CommitLogID(kind, entityID string, version int) string {
	return fmt.Sprintf("%s-%s-%d", kind, entityID, version)
}

func (c Commit) metadata(now time.Time) Metadata {
	return Metadata{
		ID:            MetadataID(c.EntityID, c.Version),
		EntityKind:    c.Kind,
		EntityID:      c.EntityID,
		Version:       c.Version,
		CommitterID:   c.CommitterID,
		CommitType:    c.CommitType,
		CommitMessage: c.Message,
		CommitCmds:    c.Cmds,
		CreatedOn:     now,
	}
}

func (c Commit) logEntry(now time.Time) CommitLogEntry {
	return CommitLogEntry{
		ID:            CommitLogID(c.Kind, c.EntityID, c.Version),
		EntityKind:    c.Kind,
		EntityID:      c.EntityID,
		Version:       c.Version,
		UserID:        c.CommitterID,
		CommitType:    c.CommitType,
		CommitMessage: c.Message,
		CommitCmds:    c.Cmds,
		CreatedOn:     now,
	}
}

// Store persists commits.
type Store interface {
	Record(ctx context.Context, c Commit) error
	// Content returns the uncompressed content of a version.
	Content(ctx context.Context, kind, entityID string, version int) ([]byte, error)
	MetadataFor(ctx context.Context, kind string) ([]Metadata, error)
	CommitLogFor(ctx context.Context, kind string) ([]CommitLogEntry, error)
	// DeleteOlderThan drops stored content of versions committed before
	// cutoff. Metadata and commit log entries are kept.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
