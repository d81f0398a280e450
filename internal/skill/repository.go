package skill

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound        = errors.New("skill not found")
	ErrAlreadyExists   = errors.New("skill already exists")
	ErrVersionConflict = errors.New("skill was modified concurrently")
)

type Repository interface {
	Create(ctx context.Context, s *Skill) error
	Get(ctx context.Context, id string) (*Skill, error)
	// Update replaces s if the stored version still equals prevVersion.
	Update(ctx context.Context, s *Skill, prevVersion int) error
}

type MemoryRepo struct {
	mu     sync.RWMutex
	skills map[string][]byte
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{skills: map[string][]byte{}}
}

func (r *MemoryRepo) Create(ctx context.Context, s *Skill) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[s.ID]; ok {
		return ErrAlreadyExists
	}
	r.skills[s.ID] = b
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*Skill, error) {
	r.mu.RLock()
	b, ok := r.skills[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s Skill
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *MemoryRepo) Update(ctx context.Context, s *Skill, prevVersion int) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.skills[s.ID]
	if !ok {
		return ErrNotFound
	}
	var stored Skill
	if err := json.Unmarshal(cur, &stored); err != nil {
		return err
	}
	if stored.Version != prevVersion {
		return ErrVersionConflict
	}
	r.skills[s.ID] = b
	return nil
}

type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (r *MongoRepo) Create(ctx context.Context, s *Skill) error {
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*Skill, error) {
	var s Skill
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepo) Update(ctx context.Context, s *Skill, prevVersion int) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.ID, "version": prevVersion}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if n, cerr := r.col.CountDocuments(ctx, bson.M{"_id": s.ID}); cerr == nil && n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}
