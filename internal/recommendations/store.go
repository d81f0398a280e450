package recommendations

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store keeps the computed recommendation lists and the topic similarity
// matrix. Get returns an empty list for explorations without results.
type Store interface {
	Get(ctx context.Context, expID string) ([]string, error)
	Set(ctx context.Context, expID string, ids []string) error
	LoadSimilarities(ctx context.Context) (map[string]map[string]float64, error)
	SaveSimilarities(ctx context.Context, m map[string]map[string]float64) error
}

type MemoryStore struct {
	mu           sync.RWMutex
	recs         map[string][]string
	similarities map[string]map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string][]string{}}
}

func (m *MemoryStore) Get(ctx context.Context, expID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.recs[expID]...), nil
}

func (m *MemoryStore) Set(ctx context.Context, expID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[expID] = append([]string{}, ids...)
	return nil
}

func (m *MemoryStore) LoadSimilarities(ctx context.Context) (map[string]map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.similarities, nil
}

func (m *MemoryStore) SaveSimilarities(ctx context.Context, sim map[string]map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.similarities = sim
	return nil
}

const similaritiesDocID = "topic_similarities"

type recommendationDoc struct {
	ExpID          string   `bson:"_id"`
	RecommendedIDs []string `bson:"recommended_exploration_ids"`
}

type similaritiesDoc struct {
	ID     string                        `bson:"_id"`
	Matrix map[string]map[string]float64 `bson:"matrix"`
}

// MongoStore keeps one document per exploration in recs and the similarity
// matrix as a single document in settings.
type MongoStore struct {
	recs     *mongo.Collection
	settings *mongo.Collection
}

func NewMongoStore(recs, settings *mongo.Collection) *MongoStore {
	return &MongoStore{recs: recs, settings: settings}
}

func (s *MongoStore) Get(ctx context.Context, expID string) ([]string, error) {
	var doc recommendationDoc
	err := s.recs.FindOne(ctx, bson.M{"_id": expID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.RecommendedIDs == nil {
		doc.RecommendedIDs = []string{}
	}
	return doc.RecommendedIDs, nil
}

func (s *MongoStore) Set(ctx context.Context, expID string, ids []string) error {
	_, err := s.recs.ReplaceOne(ctx, bson.M{"_id": expID},
		recommendationDoc{ExpID: expID, RecommendedIDs: ids},
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) LoadSimilarities(ctx context.Context) (map[string]map[string]float64, error) {
	var doc similaritiesDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": similaritiesDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Matrix, nil
}

func (s *MongoStore) SaveSimilarities(ctx context.Context, m map[string]map[string]float64) error {
	_, err := s.settings.ReplaceOne(ctx, bson.M{"_id": similaritiesDocID},
		similaritiesDoc{ID: similaritiesDocID, Matrix: m},
		options.Replace().SetUpsert(true))
	return err
}
