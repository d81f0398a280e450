package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/changes"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/internal/learner"
	"github.com/openlearn/openlearn/backend/go-services/internal/skill"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

const (
	FeatureNewStructureViewerUpdates = "ENABLE_NEW_STRUCTURE_VIEWER_UPDATES"

	// A review test is offered after every this many completed chapters.
	NumExplorationsPerReviewTest = 3
)

// FlagChecker answers server-side feature flag queries.
type FlagChecker interface {
	IsFeatureEnabled(ctx context.Context, name string) (bool, error)
}

// SummarySource returns exploration summaries, skipping unknown ids.
type SummarySource interface {
	Summaries(ctx context.Context, ids []string) ([]*exploration.Summary, error)
}

type Service struct {
	stories   Repository
	topics    TopicRepository
	snapshots snapshot.Store
	progress  *learner.Service
	summaries SummarySource
	questions skill.QuestionIndex
	flags     FlagChecker
	now       func() time.Time
}

func NewService(stories Repository, topics TopicRepository, snapshots snapshot.Store, progress *learner.Service,
	summaries SummarySource, questions skill.QuestionIndex, flags FlagChecker) *Service {
	return &Service{
		stories:   stories,
		topics:    topics,
		snapshots: snapshots,
		progress:  progress,
		summaries: summaries,
		questions: questions,
		flags:     flags,
		now:       time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Story, error) {
	m, err := s.stories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(m)
}

func (s *Service) GetByURLFragment(ctx context.Context, fragment string) (*Story, error) {
	m, err := s.stories.GetByURLFragment(ctx, fragment)
	if err != nil {
		return nil, err
	}
	return FromModel(m)
}

func (s *Service) record(ctx context.Context, st *Story, committerID, commitType, message string, cmds []map[string]interface{}) error {
	content, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.snapshots.Record(ctx, snapshot.Commit{
		Kind:        snapshot.KindStory,
		EntityID:    st.ID,
		Version:     st.Version,
		CommitterID: committerID,
		CommitType:  commitType,
		Message:     message,
		Cmds:        cmds,
		Content:     content,
	})
}

// Create saves a new story as version 1.
func (s *Service) Create(ctx context.Context, committerID string, st *Story) error {
	if err := st.Validate(); err != nil {
		return err
	}
	st.Version = 1
	st.CreatedOn = s.now()
	st.LastUpdated = st.CreatedOn
	m, err := st.ToModel()
	if err != nil {
		return err
	}
	if err := s.stories.Create(ctx, m); err != nil {
		return err
	}
	cmds := []map[string]interface{}{{"cmd": CmdCreateNew, "title": st.Title}}
	return s.record(ctx, st, committerID, snapshot.CommitTypeCreate, "New story created with title '"+st.Title+"'.", cmds)
}

// Update applies changeList to the latest version of the story.
func (s *Service) Update(ctx context.Context, id, committerID string, changeList []map[string]interface{}, message string) (*Story, error) {
	if message == "" {
		return nil, validationErrorf("Expected a commit message but received none.")
	}
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applied, err := st.ApplyChanges(changeList)
	if err != nil {
		return nil, err
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	prev := st.Version
	st.Version++
	st.LastUpdated = s.now()
	m, err := st.ToModel()
	if err != nil {
		return nil, err
	}
	if err := s.stories.Update(ctx, m, prev); err != nil {
		return nil, err
	}
	if err := s.record(ctx, st, committerID, snapshot.CommitTypeEdit, message, changes.ToMaps(applied)); err != nil {
		return nil, err
	}
	logger.With("story", id, "user", committerID).Infof("updated to version %d", st.Version)
	return st, nil
}

func (s *Service) SaveTopic(ctx context.Context, t *Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.topics.Save(ctx, t)
}

func (s *Service) Topic(ctx context.Context, id string) (*Topic, error) {
	return s.topics.Get(ctx, id)
}

// UpdateTopic loads topic id, applies fn and saves the result.
func (s *Service) UpdateTopic(ctx context.Context, id string, fn func(*Topic) error) (*Topic, error) {
	t, err := s.topics.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.SaveTopic(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolve finds the story page addressed by the url fragments. Unpublished
// topics and stories are only visible to curriculum admins.
func (s *Service) resolve(ctx context.Context, topicFrag, storyFrag string, curriculumAdmin bool) (*Story, *Topic, error) {
	t, err := s.topics.GetByURLFragment(ctx, topicFrag)
	if errors.Is(err, ErrTopicNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	st, err := s.GetByURLFragment(ctx, storyFrag)
	if err != nil {
		return nil, nil, err
	}
	if st.TopicID != t.ID {
		return nil, nil, ErrNotFound
	}
	if !curriculumAdmin && (!t.Published || !t.StoryPublished(st.ID)) {
		return nil, nil, ErrNotFound
	}
	return st, t, nil
}

// CheckAccess reports ErrNotFound when the story page is not visible.
func (s *Service) CheckAccess(ctx context.Context, topicFrag, storyFrag string, curriculumAdmin bool) error {
	_, _, err := s.resolve(ctx, topicFrag, storyFrag, curriculumAdmin)
	return err
}

func (s *Service) summaryDicts(ctx context.Context, expIDs []string) (map[string]map[string]interface{}, error) {
	sums, err := s.summaries.Summaries(ctx, expIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]interface{}, len(sums))
	for _, sum := range sums {
		if sum.IsPrivate() {
			continue
		}
		out[sum.ID] = sum.ToDict()
	}
	return out, nil
}

func nodeExplorationIDs(nodes []Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.ExplorationID != nil {
			ids = append(ids, *n.ExplorationID)
		}
	}
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// StoryData returns the story viewer payload: the ordered nodes, each marked
// completed for userID and carrying its exploration summary.
func (s *Service) StoryData(ctx context.Context, topicFrag, storyFrag, userID string, curriculumAdmin bool) (map[string]interface{}, error) {
	st, t, err := s.resolve(ctx, topicFrag, storyFrag, curriculumAdmin)
	if err != nil {
		return nil, err
	}
	completed := []string{}
	if userID != "" {
		if completed, err = s.progress.CompletedNodes(ctx, userID, st.ID); err != nil {
			return nil, err
		}
	}
	ordered := st.Contents.OrderedNodes()
	sums, err := s.summaryDicts(ctx, nodeExplorationIDs(ordered))
	if err != nil {
		return nil, err
	}
	nodes := make([]map[string]interface{}, 0, len(ordered))
	for _, n := range ordered {
		d := n.ToMap()
		d["completed"] = containsID(completed, n.ID)
		d["exp_summary_dict"] = nil
		if n.ExplorationID != nil {
			if sum, ok := sums[*n.ExplorationID]; ok {
				d["exp_summary_dict"] = sum
			}
		}
		nodes = append(nodes, d)
	}
	return map[string]interface{}{
		"story_id":          st.ID,
		"story_title":       st.Title,
		"story_description": st.Description,
		"story_nodes":       nodes,
		"topic_name":        t.Name,
		"meta_tag_content":  st.MetaTagContent,
	}, nil
}

// ProgressResult is returned when a learner finishes a chapter.
type ProgressResult struct {
	Summaries          []map[string]interface{} `json:"summaries"`
	NextNodeID         *string                  `json:"next_node_id"`
	ReadyForReviewTest bool                     `json:"ready_for_review_test"`
}

// recordNodeCompletion marks nodeID completed unless it already was and
// returns the first uncompleted node in story order.
func (s *Service) recordNodeCompletion(ctx context.Context, userID string, st *Story, nodeID string, completed []string, ordered []Node) ([]string, *string, []string, error) {
	enabled, err := s.flags.IsFeatureEnabled(ctx, FeatureNewStructureViewerUpdates)
	if err != nil {
		return nil, nil, nil, err
	}
	if !enabled {
		return nil, nil, nil, ErrNotFound
	}
	if _, ok := st.Contents.Node(nodeID); !ok {
		return nil, nil, nil, ErrNotFound
	}
	if containsID(completed, nodeID) {
		return []string{}, nil, completed, nil
	}
	if err := s.progress.RecordCompletedNode(ctx, userID, st.ID, nodeID); err != nil {
		return nil, nil, nil, err
	}
	metrics.StoryProgressEvents.WithLabelValues("node_completed").Inc()
	completed, err = s.progress.CompletedNodes(ctx, userID, st.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, n := range ordered {
		if containsID(completed, n.ID) {
			continue
		}
		id := n.ID
		expIDs := []string{}
		if n.ExplorationID != nil {
			expIDs = append(expIDs, *n.ExplorationID)
		}
		return expIDs, &id, completed, nil
	}
	return []string{}, nil, completed, nil
}

// RecordProgress marks nodeID of the story completed for userID and updates
// the story and topic progress that follows from it.
func (s *Service) RecordProgress(ctx context.Context, userID, topicFrag, storyFrag, nodeID string, curriculumAdmin bool) (*ProgressResult, error) {
	st, t, err := s.resolve(ctx, topicFrag, storyFrag, curriculumAdmin)
	if err != nil {
		return nil, err
	}
	completed, err := s.progress.CompletedNodes(ctx, userID, st.ID)
	if err != nil {
		return nil, err
	}
	ordered := st.Contents.OrderedNodes()
	nextExpIDs, nextNodeID, completed, err := s.recordNodeCompletion(ctx, userID, st, nodeID, completed, ordered)
	if err != nil {
		return nil, err
	}

	sums, err := s.summaries.Summaries(ctx, nextExpIDs)
	if err != nil {
		return nil, err
	}
	res := &ProgressResult{Summaries: []map[string]interface{}{}, NextNodeID: nextNodeID}
	for _, sum := range sums {
		res.Summaries = append(res.Summaries, sum.ToDict())
	}

	questionsAvailable, err := skill.QuestionsAvailable(ctx, s.questions, st.AcquiredSkillIDs(completed))
	if err != nil {
		return nil, err
	}
	completedStory := len(completed) == len(ordered)
	atReviewPoint := len(res.Summaries) != 0 && len(completed)%NumExplorationsPerReviewTest == 0
	res.ReadyForReviewTest = questionsAvailable && (atReviewPoint || completedStory)

	if completedStory {
		err = s.progress.MarkStoryCompleted(ctx, userID, st.ID)
		metrics.StoryProgressEvents.WithLabelValues("story_completed").Inc()
	} else {
		err = s.progress.RecordStoryStarted(ctx, userID, st.ID)
	}
	if err != nil {
		return nil, err
	}

	completedStories, err := s.existingCompletedStories(ctx, userID)
	if err != nil {
		return nil, err
	}
	topicCompleted := false
	for _, id := range t.CanonicalStoryIDs() {
		if containsID(completedStories, id) {
			topicCompleted = true
			break
		}
	}
	if topicCompleted {
		err = s.progress.MarkTopicLearnt(ctx, userID, t.ID)
	} else {
		err = s.progress.MarkTopicPartiallyLearnt(ctx, userID, t.ID)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// existingCompletedStories drops completed story ids whose story no longer
// exists.
func (s *Service) existingCompletedStories(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.progress.CompletedStoryIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		_, err := s.stories.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logger.Errorf("Could not find a story corresponding to %s id.", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// StoryPagePath is the learner page of a story.
func StoryPagePath(classroom, topicFrag, storyFrag string) string {
	return fmt.Sprintf("/learn/%s/%s/story/%s", classroom, topicFrag, storyFrag)
}

func explorationPath(expID, classroom, topicFrag, storyFrag, nodeID string) string {
	params := []string{
		"topic_url_fragment=" + url.QueryEscape(topicFrag),
		"story_url_fragment=" + url.QueryEscape(storyFrag),
		"node_id=" + url.QueryEscape(nodeID),
		"classroom_url_fragment=" + url.QueryEscape(classroom),
	}
	return "/explore/" + url.PathEscape(expID) + "?" + strings.Join(params, "&")
}

// ProgressRedirect starts a story from its first node. Returning learners and
// requests for any other node go back to the story page; otherwise the
// first node is recorded and the learner is sent to the next chapter.
func (s *Service) ProgressRedirect(ctx context.Context, userID, classroom, topicFrag, storyFrag, nodeID string, curriculumAdmin bool) (string, error) {
	st, _, err := s.resolve(ctx, topicFrag, storyFrag, curriculumAdmin)
	if err != nil {
		return "", err
	}
	completed, err := s.progress.CompletedNodes(ctx, userID, st.ID)
	if err != nil {
		return "", err
	}
	ordered := st.Contents.OrderedNodes()
	storyPage := StoryPagePath(classroom, topicFrag, storyFrag)
	metrics.StoryProgressEvents.WithLabelValues("redirect").Inc()
	if len(completed) > 0 || len(ordered) == 0 || nodeID != ordered[0].ID {
		return storyPage, nil
	}
	nextExpIDs, nextNodeID, _, err := s.recordNodeCompletion(ctx, userID, st, nodeID, completed, ordered)
	if err != nil {
		return "", err
	}
	if nextNodeID == nil || len(nextExpIDs) == 0 {
		return storyPage, nil
	}
	return explorationPath(nextExpIDs[0], classroom, topicFrag, storyFrag, *nextNodeID), nil
}
