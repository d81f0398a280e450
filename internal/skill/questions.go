package skill

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QuestionIndex links skills to the questions that test them.
type QuestionIndex interface {
	Link(ctx context.Context, skillID string, questionIDs ...string) error
	Unlink(ctx context.Context, skillID, questionID string) error
	// QuestionIDs returns the distinct questions linked to any of skillIDs,
	// sorted.
	QuestionIDs(ctx context.Context, skillIDs ...string) ([]string, error)
}

// QuestionsAvailable reports whether at least one question tests one of
// skillIDs.
func QuestionsAvailable(ctx context.Context, idx QuestionIndex, skillIDs []string) (bool, error) {
	if len(skillIDs) == 0 {
		return false, nil
	}
	ids, err := idx.QuestionIDs(ctx, skillIDs...)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

type MemoryQuestionIndex struct {
	mu    sync.RWMutex
	links map[string]map[string]bool
}

func NewMemoryQuestionIndex() *MemoryQuestionIndex {
	return &MemoryQuestionIndex{links: map[string]map[string]bool{}}
}

func (m *MemoryQuestionIndex) Link(ctx context.Context, skillID string, questionIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.links[skillID]
	if !ok {
		set = map[string]bool{}
		m.links[skillID] = set
	}
	for _, q := range questionIDs {
		set[q] = true
	}
	return nil
}

func (m *MemoryQuestionIndex) Unlink(ctx context.Context, skillID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links[skillID], questionID)
	return nil
}

func (m *MemoryQuestionIndex) QuestionIDs(ctx context.Context, skillIDs ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for _, s := range skillIDs {
		for q := range m.links[s] {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// MongoQuestionIndex stores one document per question-skill link.
type MongoQuestionIndex struct {
	col *mongo.Collection
}

type questionSkillLink struct {
	ID         string `bson:"_id"`
	SkillID    string `bson:"skill_id"`
	QuestionID string `bson:"question_id"`
}

func NewMongoQuestionIndex(col *mongo.Collection) *MongoQuestionIndex {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "skill_id", Value: 1}}}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoQuestionIndex{col: col}
}

func linkID(skillID, questionID string) string {
	return questionID + "." + skillID
}

func (m *MongoQuestionIndex) Link(ctx context.Context, skillID string, questionIDs ...string) error {
	opts := options.Replace().SetUpsert(true)
	for _, q := range questionIDs {
		link := questionSkillLink{ID: linkID(skillID, q), SkillID: skillID, QuestionID: q}
		if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": link.ID}, link, opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *MongoQuestionIndex) Unlink(ctx context.Context, skillID, questionID string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": linkID(skillID, questionID)})
	return err
}

func (m *MongoQuestionIndex) QuestionIDs(ctx context.Context, skillIDs ...string) ([]string, error) {
	out := []string{}
	if len(skillIDs) == 0 {
		return out, nil
	}
	raw, err := m.col.Distinct(ctx, "question_id", bson.M{"skill_id": bson.M{"$in": skillIDs}})
	if err != nil {
		return nil, err
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}
