package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
)

var (
	ErrNotFound        = errors.New("exploration not found")
	ErrAlreadyExists   = errors.New("exploration already exists")
	ErrVersionConflict = errors.New("exploration was modified concurrently")
)

// Repository persists explorations, their rights and their summaries.
type Repository interface {
	Create(ctx context.Context, e *exploration.Exploration, r *exploration.Rights) error
	Get(ctx context.Context, id string) (*exploration.Exploration, error)
	// Update replaces e if the stored version still equals prevVersion.
	Update(ctx context.Context, e *exploration.Exploration, prevVersion int) error
	GetRights(ctx context.Context, id string) (*exploration.Rights, error)
	SaveRights(ctx context.Context, r *exploration.Rights) error
	GetSummary(ctx context.Context, id string) (*exploration.Summary, error)
	SaveSummary(ctx context.Context, s *exploration.Summary) error
	ListSummaries(ctx context.Context) ([]*exploration.Summary, error)
}

// MemoryRepo is an in-memory repository used when no MongoDB is configured
// and in tests. Values are stored encoded so callers never share pointers
// with the store.
type MemoryRepo struct {
	mu        sync.RWMutex
	store     map[string][]byte
	rights    map[string][]byte
	summaries map[string][]byte
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		store:     make(map[string][]byte),
		rights:    make(map[string][]byte),
		summaries: make(map[string][]byte),
	}
}

func (m *MemoryRepo) Create(ctx context.Context, e *exploration.Exploration, r *exploration.Rights) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	rights, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[e.ID]; ok {
		return ErrAlreadyExists
	}
	m.store[e.ID] = data
	m.rights[e.ID] = rights
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*exploration.Exploration, error) {
	m.mu.RLock()
	data, ok := m.store[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return exploration.Deserialize(data)
}

func (m *MemoryRepo) Update(ctx context.Context, e *exploration.Exploration, prevVersion int) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[e.ID]
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
	m.store[e.ID] = data
	return nil
}

func (m *MemoryRepo) GetRights(ctx context.Context, id string) (*exploration.Rights, error) {
	m.mu.RLock()
	data, ok := m.rights[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var r exploration.Rights
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MemoryRepo) SaveRights(ctx context.Context, r *exploration.Rights) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[r.ID]; !ok {
		return ErrNotFound
	}
	m.rights[r.ID] = data
	return nil
}

func (m *MemoryRepo) GetSummary(ctx context.Context, id string) (*exploration.Summary, error) {
	m.mu.RLock()
	data, ok := m.summaries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s exploration.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryRepo) SaveSummary(ctx context.Context, s *exploration.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.ID] = data
	return nil
}

func (m *MemoryRepo) ListSummaries(ctx context.Context) ([]*exploration.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*exploration.Summary, 0, len(m.summaries))
	for _, data := range m.summaries {
		var s exploration.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
