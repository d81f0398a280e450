// Package learner records what each user has completed: story nodes,
// stories and topics, plus the topics they want to learn.
package learner

import (
	"context"
	"errors"
	"strings"

	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

// Progress field names. CompletedNodes is addressed per story as
// "completed_nodes.<story id>".
const (
	FieldCompletedNodes        = "completed_nodes"
	FieldCompletedStories      = "completed_story_ids"
	FieldIncompleteStories     = "incomplete_story_ids"
	FieldLearntTopics          = "learnt_topic_ids"
	FieldPartiallyLearntTopics = "partially_learnt_topic_ids"
	FieldTopicsToLearn         = "topic_ids_to_learn"
	completedNodesPrefix       = FieldCompletedNodes + "."
)

var ErrInvalidID = errors.New("ids must be non-empty and must not contain '.' or '$'")

// Progress is one user's learning record.
type Progress struct {
	UserID                  string              `json:"user_id" bson:"_id"`
	CompletedNodes          map[string][]string `json:"completed_nodes" bson:"completed_nodes"`
	CompletedStoryIDs       []string            `json:"completed_story_ids" bson:"completed_story_ids"`
	IncompleteStoryIDs      []string            `json:"incomplete_story_ids" bson:"incomplete_story_ids"`
	LearntTopicIDs          []string            `json:"learnt_topic_ids" bson:"learnt_topic_ids"`
	PartiallyLearntTopicIDs []string            `json:"partially_learnt_topic_ids" bson:"partially_learnt_topic_ids"`
	TopicIDsToLearn         []string            `json:"topic_ids_to_learn" bson:"topic_ids_to_learn"`
}

func emptyProgress(userID string) *Progress {
	return &Progress{
		UserID:                  userID,
		CompletedNodes:          map[string][]string{},
		CompletedStoryIDs:       []string{},
		IncompleteStoryIDs:      []string{},
		LearntTopicIDs:          []string{},
		PartiallyLearntTopicIDs: []string{},
		TopicIDsToLearn:         []string{},
	}
}

// Repository stores one progress document per user. Add and Remove behave
// like set insertion and removal on a list field and create the document as
// needed. Get returns an empty record for unknown users.
type Repository interface {
	Get(ctx context.Context, userID string) (*Progress, error)
	Add(ctx context.Context, userID, field, value string) error
	Remove(ctx context.Context, userID, field, value string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validID(ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, ".$") {
			return ErrInvalidID
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (s *Service) Progress(ctx context.Context, userID string) (*Progress, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) RecordCompletedNode(ctx context.Context, userID, storyID, nodeID string) error {
	if err := validID(userID, storyID, nodeID); err != nil {
		return err
	}
	return s.repo.Add(ctx, userID, completedNodesPrefix+storyID, nodeID)
}

// CompletedNodes returns the node ids of storyID the user completed, in
// completion order.
func (s *Service) CompletedNodes(ctx context.Context, userID, storyID string) ([]string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	nodes := p.CompletedNodes[storyID]
	if nodes == nil {
		nodes = []string{}
	}
	return nodes, nil
}

// MarkStoryCompleted moves storyID from incomplete to completed.
func (s *Service) MarkStoryCompleted(ctx context.Context, userID, storyID string) error {
	if err := validID(userID, storyID); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, userID, FieldCompletedStories, storyID); err != nil {
		return err
	}
	logger.With("user", userID, "story", storyID).Debugf("story completed")
	return s.repo.Remove(ctx, userID, FieldIncompleteStories, storyID)
}

// RecordStoryStarted marks storyID as incomplete unless it is already
// completed.
func (s *Service) RecordStoryStarted(ctx context.Context, userID, storyID string) error {
	if err := validID(userID, storyID); err != nil {
		return err
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if contains(p.CompletedStoryIDs, storyID) {
		return nil
	}
	return s.repo.Add(ctx, userID, FieldIncompleteStories, storyID)
}

// MarkTopicLearnt records topicID as learnt and drops it from the partially
// learnt topics and the learn goals.
func (s *Service) MarkTopicLearnt(ctx context.Context, userID, topicID string) error {
	if err := validID(userID, topicID); err != nil {
		return err
	}
	if err := s.repo.Add(ctx, userID, FieldLearntTopics, topicID); err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, userID, FieldPartiallyLearntTopics, topicID); err != nil {
		return err
	}
	return s.RemoveTopicFromLearnGoal(ctx, userID, topicID)
}

// MarkTopicPartiallyLearnt is a no-op for learnt topics.
func (s *Service) MarkTopicPartiallyLearnt(ctx context.Context, userID, topicID string) error {
	if err := validID(userID, topicID); err != nil {
		return err
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if contains(p.LearntTopicIDs, topicID) {
		return nil
	}
	return s.repo.Add(ctx, userID, FieldPartiallyLearntTopics, topicID)
}

func (s *Service) AddTopicToLearnGoal(ctx context.Context, userID, topicID string) error {
	if err := validID(userID, topicID); err != nil {
		return err
	}
	return s.repo.Add(ctx, userID, FieldTopicsToLearn, topicID)
}

func (s *Service) RemoveTopicFromLearnGoal(ctx context.Context, userID, topicID string) error {
	if err := validID(userID, topicID); err != nil {
		return err
	}
	return s.repo.Remove(ctx, userID, FieldTopicsToLearn, topicID)
}

func (s *Service) CompletedStoryIDs(ctx context.Context, userID string) ([]string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.CompletedStoryIDs, nil
}

func (s *Service) LearntTopicIDs(ctx context.Context, userID string) ([]string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.LearntTopicIDs, nil
}

func (s *Service) TopicIDsToLearn(ctx context.Context, userID string) ([]string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.TopicIDsToLearn, nil
}
