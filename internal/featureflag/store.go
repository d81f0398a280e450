package featureflag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNoRules = errors.New("no stored rules for feature")

// RuleSet is the stored rule list of one feature.
type RuleSet struct {
	Name              string    `json:"name" bson:"_id"`
	Rules             []Rule    `json:"rules" bson:"rules"`
	RuleSchemaVersion int       `json:"rule_schema_version" bson:"rule_schema_version"`
	Version           int       `json:"version" bson:"version"`
	LastUpdated       time.Time `json:"last_updated" bson:"last_updated"`
}

// RuleCommit records one change to a feature's rules.
type RuleCommit struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Version       int       `json:"version" bson:"version"`
	CommitterID   string    `json:"committer_id" bson:"committer_id"`
	CommitMessage string    `json:"commit_message" bson:"commit_message"`
	Rules         []Rule    `json:"rules" bson:"rules"`
	CreatedOn     time.Time `json:"created_on" bson:"created_on"`
}

// RuleStore persists rule sets. Load returns ErrNoRules for features whose
// rules were never changed.
type RuleStore interface {
	Load(ctx context.Context, name string) (*RuleSet, error)
	// Save stores rules as the next version of name and records the commit.
	Save(ctx context.Context, name string, rules []Rule, committerID, message string) (*RuleSet, error)
	History(ctx context.Context, name string) ([]RuleCommit, error)
}

func commitID(name string, version int) string {
	return fmt.Sprintf("%s-%d", name, version)
}

type MemoryRuleStore struct {
	mu      sync.RWMutex
	sets    map[string]RuleSet
	commits map[string][]RuleCommit
	now     func() time.Time
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{sets: map[string]RuleSet{}, commits: map[string][]RuleCommit{}, now: time.Now}
}

func (m *MemoryRuleStore) Load(ctx context.Context, name string) (*RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[name]
	if !ok {
		return nil, ErrNoRules
	}
	set.Rules = append([]Rule{}, set.Rules...)
	return &set, nil
}

func (m *MemoryRuleStore) Save(ctx context.Context, name string, rules []Rule, committerID, message string) (*RuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	set := RuleSet{
		Name:              name,
		Rules:             append([]Rule{}, rules...),
		RuleSchemaVersion: RuleSchemaVersion,
		Version:           m.sets[name].Version + 1,
		LastUpdated:       now,
	}
	m.sets[name] = set
	m.commits[name] = append(m.commits[name], RuleCommit{
		ID:            commitID(name, set.Version),
		Name:          name,
		Version:       set.Version,
		CommitterID:   committerID,
		CommitMessage: message,
		Rules:         set.Rules,
		CreatedOn:     now,
	})
	return &set, nil
}

func (m *MemoryRuleStore) History(ctx context.Context, name string) ([]RuleCommit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RuleCommit{}, m.commits[name]...), nil
}

// MongoRuleStore keeps the current rule sets in one collection and the
// commits in another.
type MongoRuleStore struct {
	sets    *mongo.Collection
	commits *mongo.Collection
}

func NewMongoRuleStore(sets, commits *mongo.Collection) *MongoRuleStore {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}, {Key: "version", Value: 1}}}
	commits.Indexes().CreateOne(context.Background(), idx)
	return &MongoRuleStore{sets: sets, commits: commits}
}

func (s *MongoRuleStore) Load(ctx context.Context, name string) (*RuleSet, error) {
	var set RuleSet
	if err := s.sets.FindOne(ctx, bson.M{"_id": name}).Decode(&set); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoRules
		}
		return nil, err
	}
	return &set, nil
}

func (s *MongoRuleStore) Save(ctx context.Context, name string, rules []Rule, committerID, message string) (*RuleSet, error) {
	now := time.Now()
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{"rules": rules, "rule_schema_version": RuleSchemaVersion, "last_updated": now},
		"$inc": bson.M{"version": 1},
	}
	var set RuleSet
	if err := s.sets.FindOneAndUpdate(ctx, bson.M{"_id": name}, update, opts).Decode(&set); err != nil {
		return nil, err
	}
	commit := RuleCommit{
		ID:            commitID(name, set.Version),
		Name:          name,
		Version:       set.Version,
		CommitterID:   committerID,
		CommitMessage: message,
		Rules:         rules,
		CreatedOn:     now,
	}
	if _, err := s.commits.InsertOne(ctx, commit); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *MongoRuleStore) History(ctx context.Context, name string) ([]RuleCommit, error) {
	cur, err := s.commits.Find(ctx, bson.M{"name": name})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []RuleCommit{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
