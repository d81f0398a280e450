package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
)

var (
	ErrNotFound        = errors.New("collection not found")
	ErrAlreadyExists   = errors.New("collection already exists")
	ErrVersionConflict = errors.New("collection was modified concurrently")
)

// Repository persists collection models and their summaries.
type Repository interface {
	Create(ctx context.Context, m *collection.Model) error
	Get(ctx context.Context, id string) (*collection.Model, error)
	// Update replaces the model if the stored version still equals prevVersion.
	Update(ctx context.Context, m *collection.Model, prevVersion int) error
	SaveSummary(ctx context.Context, s *collection.Summary) error
	GetSummary(ctx context.Context, id string) (*collection.Summary, error)
	ListSummaries(ctx context.Context) ([]*collection.Summary, error)
}

// MemoryRepo keeps models as JSON so that reads see the same plain shapes a
// Mongo round trip produces.
type MemoryRepo struct {
	mu        sync.RWMutex
	models    map[string][]byte
	summaries map[string]*collection.Summary
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{models: make(map[string][]byte), summaries: make(map[string]*collection.Summary)}
}

func (r *MemoryRepo) Create(ctx context.Context, m *collection.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.ID]; ok {
		return ErrAlreadyExists
	}
	r.models[m.ID] = data
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*collection.Model, error) {
	r.mu.RLock()
	data, ok := r.models[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var m collection.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemoryRepo) Update(ctx context.Context, m *collection.Model, prevVersion int) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.models[m.ID]
	if !ok {
		return ErrNotFound
	}
	var stored struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(cur, &stored); err != nil {
		return err
	}
	if stored.Version != prevVersion {
		return ErrVersionConflict
	}
	r.models[m.ID] = data
	return nil
}

func (r *MemoryRepo) SaveSummary(ctx context.Context, s *collection.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.summaries[s.ID] = &cp
	return nil
}

func (r *MemoryRepo) GetSummary(ctx context.Context, id string) (*collection.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepo) ListSummaries(ctx context.Context) ([]*collection.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*collection.Summary, 0, len(r.summaries))
	for _, s := range r.summaries {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
