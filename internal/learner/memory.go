package learner

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryRepository keeps progress in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*Progress
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: map[string]*Progress{}}
}

func copyProgress(p *Progress) *Progress {
	out := emptyProgress(p.UserID)
	for story, nodes := range p.CompletedNodes {
		out.CompletedNodes[story] = append([]string{}, nodes...)
	}
	out.CompletedStoryIDs = append(out.CompletedStoryIDs, p.CompletedStoryIDs...)
	out.IncompleteStoryIDs = append(out.IncompleteStoryIDs, p.IncompleteStoryIDs...)
	out.LearntTopicIDs = append(out.LearntTopicIDs, p.LearntTopicIDs...)
	out.PartiallyLearntTopicIDs = append(out.PartiallyLearntTopicIDs, p.PartiallyLearntTopicIDs...)
	out.TopicIDsToLearn = append(out.TopicIDsToLearn, p.TopicIDsToLearn...)
	return out
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (*Progress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.users[userID]
	if !ok {
		return emptyProgress(userID), nil
	}
	return copyProgress(p), nil
}

// list returns a pointer to the list stored under field, creating the
// record if needed.
func (r *MemoryRepository) list(userID, field string) (*[]string, error) {
	p, ok := r.users[userID]
	if !ok {
		p = emptyProgress(userID)
		r.users[userID] = p
	}
	if story, ok := strings.CutPrefix(field, completedNodesPrefix); ok {
		nodes := p.CompletedNodes[story]
		ptr := &nodes
		return ptr, nil
	}
	switch field {
	case FieldCompletedStories:
		return &p.CompletedStoryIDs, nil
	case FieldIncompleteStories:
		return &p.IncompleteStoryIDs, nil
	case FieldLearntTopics:
		return &p.LearntTopicIDs, nil
	case FieldPartiallyLearntTopics:
		return &p.PartiallyLearntTopicIDs, nil
	case FieldTopicsToLearn:
		return &p.TopicIDsToLearn, nil
	}
	return nil, fmt.Errorf("unknown progress field %q", field)
}

// store writes back lists that live inside the completed nodes map.
func (r *MemoryRepository) store(userID, field string, list []string) {
	if story, ok := strings.CutPrefix(field, completedNodesPrefix); ok {
		r.users[userID].CompletedNodes[story] = list
	}
}

func (r *MemoryRepository) Add(ctx context.Context, userID, field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.list(userID, field)
	if err != nil {
		return err
	}
	if !contains(*l, value) {
		*l = append(*l, value)
	}
	r.store(userID, field, *l)
	return nil
}

func (r *MemoryRepository) Remove(ctx context.Context, userID, field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.list(userID, field)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(*l))
	for _, v := range *l {
		if v != value {
			out = append(out, v)
		}
	}
	*l = out
	r.store(userID, field, out)
	return nil
}
