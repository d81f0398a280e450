package story

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	ErrNotFound        = errors.New("story not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrAlreadyExists   = errors.New("story already exists")
	ErrVersionConflict = errors.New("story was modified concurrently")
	ErrURLFragmentUsed = errors.New("url fragment already in use")
)

// Repository persists story models.
type Repository interface {
	Create(ctx context.Context, m *Model) error
	Get(ctx context.Context, id string) (*Model, error)
	GetByURLFragment(ctx context.Context, fragment string) (*Model, error)
	// Update replaces m if the stored version still equals prevVersion.
	Update(ctx context.Context, m *Model, prevVersion int) error
}

type TopicRepository interface {
	Save(ctx context.Context, t *Topic) error
	Get(ctx context.Context, id string) (*Topic, error)
	GetByURLFragment(ctx context.Context, fragment string) (*Topic, error)
}

// MemoryRepo keeps story models as JSON, like a Mongo round trip would.
type MemoryRepo struct {
	mu     sync.RWMutex
	models map[string][]byte
	frags  map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{models: map[string][]byte{}, frags: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := r.frags[m.URLFragment]; ok {
		return ErrURLFragmentUsed
	}
	r.models[m.ID] = data
	r.frags[m.URLFragment] = m.ID
	return nil
}

func (r *MemoryRepo) decode(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*Model, error) {
	r.mu.RLock()
	data, ok := r.models[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.decode(data)
}

func (r *MemoryRepo) GetByURLFragment(ctx context.Context, fragment string) (*Model, error) {
	r.mu.RLock()
	id, ok := r.frags[fragment]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepo) Update(ctx context.Context, m *Model, prevVersion int) error {
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
	stored, err := r.decode(cur)
	if err != nil {
		return err
	}
	if stored.Version != prevVersion {
		return ErrVersionConflict
	}
	if owner, ok := r.frags[m.URLFragment]; ok && owner != m.ID {
		return ErrURLFragmentUsed
	}
	delete(r.frags, stored.URLFragment)
	r.frags[m.URLFragment] = m.ID
	r.models[m.ID] = data
	return nil
}

type MemoryTopicRepo struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

func NewMemoryTopicRepo() *MemoryTopicRepo {
	return &MemoryTopicRepo{topics: map[string]Topic{}}
}

func copyTopic(t Topic) *Topic {
	t.CanonicalStories = append([]StoryReference{}, t.CanonicalStories...)
	t.AdditionalStoryIDs = append([]string{}, t.AdditionalStoryIDs...)
	return &t
}

func (r *MemoryTopicRepo) Save(ctx context.Context, t *Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.topics {
		if id != t.ID && other.URLFragment == t.URLFragment {
			return ErrURLFragmentUsed
		}
	}
	r.topics[t.ID] = *copyTopic(*t)
	return nil
}

func (r *MemoryTopicRepo) Get(ctx context.Context, id string) (*Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[id]
	if !ok {
		return nil, ErrTopicNotFound
	}
	return copyTopic(t), nil
}

func (r *MemoryTopicRepo) GetByURLFragment(ctx context.Context, fragment string) (*Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.topics {
		if t.URLFragment == fragment {
			return copyTopic(t), nil
		}
	}
	return nil, ErrTopicNotFound
}
