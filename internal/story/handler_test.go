package story

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/internal/learner"
	"github.com/openlearn/openlearn/backend/go-services/internal/skill"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

type staticFlags struct{ enabled bool }

func (f *staticFlags) IsFeatureEnabled(ctx context.Context, name string) (bool, error) {
	return name == FeatureNewStructureViewerUpdates && f.enabled, nil
}

type fakeSummaries map[string]*exploration.Summary

func (f fakeSummaries) Summaries(ctx context.Context, ids []string) ([]*exploration.Summary, error) {
	out := []*exploration.Summary{}
	for _, id := range ids {
		if s, ok := f[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// forgetfulRepo finds stories by url fragment but not by id.
type forgetfulRepo struct{ Repository }

func (forgetfulRepo) Get(ctx context.Context, id string) (*Model, error) { return nil, ErrNotFound }

func headerAuth(c *gin.Context) {
	user := c.GetHeader("X-User")
	if user == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}
	c.Set(middleware.ClaimsKey, map[string]interface{}{"sub": user, "roles": []interface{}{c.GetHeader("X-Roles")}})
	c.Next()
}

func optionalHeaderAuth(c *gin.Context) {
	if c.GetHeader("X-User") != "" {
		c.Set(middleware.ClaimsKey, map[string]interface{}{"sub": c.GetHeader("X-User"), "roles": []interface{}{c.GetHeader("X-Roles")}})
	}
	c.Next()
}

type fixture struct {
	svc       *Service
	stories   *MemoryRepo
	topics    *MemoryTopicRepo
	progress  *learner.Service
	questions *skill.MemoryQuestionIndex
	flags     *staticFlags
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	f := &fixture{
		stories:   NewMemoryRepo(),
		topics:    NewMemoryTopicRepo(),
		progress:  learner.NewService(learner.NewMemoryRepository()),
		questions: skill.NewMemoryQuestionIndex(),
		flags:     &staticFlags{enabled: true},
	}
	sums := fakeSummaries{}
	for id, title := range map[string]string{"0": "Title 1", "1": "Title 2", "7": "Title 3", "exp_3": "Title 3"} {
		sums[id] = &exploration.Summary{ID: id, Title: title, Status: exploration.StatusPublic, Ratings: exploration.DefaultRatings()}
	}
	f.svc = NewService(f.stories, f.topics, snapshot.NewMemoryStore(), f.progress, sums, f.questions, f.flags)

	st := NewDefault("story_id", "Title", "Description", "topic_id", "title-one")
	st.MetaTagContent = "story meta content"
	n1 := NewNode("node_1", "Title 1")
	n1.DestinationNodeIDs = []string{"node_3"}
	n1.ExplorationID = strPtr("1")
	n2 := NewNode("node_2", "Title 2")
	n2.DestinationNodeIDs = []string{"node_1"}
	n2.ExplorationID = strPtr("0")
	n3 := NewNode("node_3", "Title 3")
	n3.ExplorationID = strPtr("7")
	st.Contents = Contents{Nodes: []Node{n1, n2, n3}, InitialNodeID: "node_2", NextNodeID: "node_4"}
	require.NoError(t, f.svc.Create(ctx, "admin", st))

	tp := NewTopic("topic_id", "Topic", "topic")
	require.NoError(t, tp.AddCanonicalStory("story_id"))
	require.NoError(t, tp.PublishStory("story_id"))
	tp.Published = true
	require.NoError(t, f.svc.SaveTopic(ctx, tp))

	require.NoError(t, f.progress.RecordCompletedNode(ctx, "viewer", "story_id", "node_2"))

	f.router = gin.New()
	RegisterRoutes(f.router, f.svc, headerAuth, optionalHeaderAuth)
	return f
}

func (f *fixture) do(method, path, user, roles, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
		req.Header.Set("X-Roles", roles)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) postProgress(t *testing.T, user, storyFrag, nodeID string) ProgressResult {
	t.Helper()
	w := f.do(http.MethodPost, "/story_progress_handler/staging/topic/"+storyFrag+"/"+nodeID, user, "", "{}")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res ProgressResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestStoryPageAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/learn/staging/topic/story/title-one", "", "", "").Code)

	_, err := f.svc.UpdateTopic(ctx, "topic_id", func(tp *Topic) error { return tp.UnpublishStory("story_id") })
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/learn/staging/topic/story/title-one", "", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/learn/staging/topic/story/title-one", "admin", "curriculum_admin", "").Code)

	_, err = f.svc.UpdateTopic(ctx, "topic_id", func(tp *Topic) error {
		tp.Published = false
		return tp.PublishStory("story_id")
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/learn/staging/topic/story/title-one", "", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/learn/staging/topic/story/title-one", "admin", "curriculum_admin", "").Code)
}

func TestStoryData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a story that is not referenced by its topic
	require.NoError(t, f.svc.Create(ctx, "admin", NewDefault("new_story_id", "Title", "Description", "topic_id", "title-two")))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/story_data_handler/staging/topic/title-two", "viewer", "", "").Code)

	// a published story in an unpublished topic
	other := NewTopic("topic_id_1", "Topic 2", "topics")
	require.NoError(t, other.AddCanonicalStory("other_story"))
	require.NoError(t, other.PublishStory("other_story"))
	require.NoError(t, f.svc.SaveTopic(ctx, other))
	require.NoError(t, f.svc.Create(ctx, "admin", NewDefault("other_story", "Title", "Description", "topic_id_1", "title-three")))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/story_data_handler/staging/topics/title-three", "viewer", "", "").Code)

	// the story exists but belongs to another topic
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/story_data_handler/staging/topic/title-three", "viewer", "", "").Code)

	w := f.do(http.MethodGet, "/story_data_handler/staging/topic/title-one", "viewer", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		StoryID        string                   `json:"story_id"`
		StoryTitle     string                   `json:"story_title"`
		TopicName      string                   `json:"topic_name"`
		MetaTagContent string                   `json:"meta_tag_content"`
		Nodes          []map[string]interface{} `json:"story_nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "story_id", got.StoryID)
	assert.Equal(t, "Title", got.StoryTitle)
	assert.Equal(t, "Topic", got.TopicName)
	assert.Equal(t, "story meta content", got.MetaTagContent)
	require.Len(t, got.Nodes, 3)
	var ids []string
	for _, n := range got.Nodes {
		ids = append(ids, n["id"].(string))
	}
	assert.Equal(t, []string{"node_2", "node_1", "node_3"}, ids)
	assert.Equal(t, true, got.Nodes[0]["completed"])
	assert.Equal(t, false, got.Nodes[1]["completed"])
	assert.Equal(t, "0", got.Nodes[0]["exp_summary_dict"].(map[string]interface{})["id"])
	assert.Equal(t, "7", got.Nodes[2]["exp_summary_dict"].(map[string]interface{})["id"])
}

func TestProgressRedirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := f.do(http.MethodGet, "/story_progress_handler/staging/topic/title-one/node_3", "new_user", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/learn/staging/topic/story/title-one", w.Header().Get("Location"))

	// returning learners go back to the story page
	w = f.do(http.MethodGet, "/story_progress_handler/staging/topic/title-one/node_2", "viewer", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/learn/staging/topic/story/title-one", w.Header().Get("Location"))

	w = f.do(http.MethodGet, "/story_progress_handler/staging/topic/title-one/node_2", "new_user", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t,
		"/explore/1?topic_url_fragment=topic&story_url_fragment=title-one&node_id=node_1&classroom_url_fragment=staging",
		w.Header().Get("Location"))

	// single node story
	single := NewDefault("new_story_id", "Title", "Description", "new_topic_id", "story-two")
	n1 := NewNode("node_1", "Title 1")
	n1.ExplorationID = strPtr("0")
	single.Contents = Contents{Nodes: []Node{n1}, InitialNodeID: "node_1", NextNodeID: "node_2"}
	require.NoError(t, f.svc.Create(ctx, "admin", single))
	tp := NewTopic("new_topic_id", "new topic", "topic-frag")
	require.NoError(t, tp.AddCanonicalStory("new_story_id"))
	require.NoError(t, tp.PublishStory("new_story_id"))
	tp.Published = true
	require.NoError(t, f.svc.SaveTopic(ctx, tp))

	w = f.do(http.MethodGet, "/story_progress_handler/staging/topic-frag/story-two/node_1", "new_user", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/learn/staging/topic-frag/story/story-two", w.Header().Get("Location"))

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/story_progress_handler/staging/topic/title-one/node_2", "", "", "").Code)
}

func TestRecordProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.flags.enabled = false
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/story_progress_handler/staging/topic/title-one/node_2", "viewer", "", "{}").Code)
	f.flags.enabled = true

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/story_progress_handler/staging/topic/invalid-story/node_2", "viewer", "", "{}").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/story_progress_handler/staging/topic/title-one/invalid_node", "viewer", "", "{}").Code)

	res := f.postProgress(t, "viewer", "title-one", "node_1")
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, "7", res.Summaries[0]["id"])
	require.NotNil(t, res.NextNodeID)
	assert.Equal(t, "node_3", *res.NextNodeID)
	assert.False(t, res.ReadyForReviewTest)

	learnt, err := f.progress.LearntTopicIDs(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, learnt)
	p, err := f.progress.Progress(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"topic_id"}, p.PartiallyLearntTopicIDs)
	assert.Equal(t, []string{"story_id"}, p.IncompleteStoryIDs)

	// an already completed chapter yields nothing new
	res = f.postProgress(t, "viewer", "title-one", "node_2")
	assert.Empty(t, res.Summaries)
	assert.Nil(t, res.NextNodeID)
	assert.False(t, res.ReadyForReviewTest)
}

func TestRecordProgress_RepostedChapterKeepsStoryIncomplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// viewer finished node_2 of three chapters
	res := f.postProgress(t, "viewer", "title-one", "node_2")
	assert.Empty(t, res.Summaries)
	assert.Nil(t, res.NextNodeID)
	assert.False(t, res.ReadyForReviewTest)

	completed, err := f.progress.CompletedNodes(ctx, "viewer", "story_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"node_2"}, completed)

	p, err := f.progress.Progress(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, p.CompletedStoryIDs)
	assert.Empty(t, p.LearntTopicIDs)
	assert.Equal(t, []string{"story_id"}, p.IncompleteStoryIDs)
	assert.Equal(t, []string{"topic_id"}, p.PartiallyLearntTopicIDs)
}

func TestRecordProgress_CompletesStoryAndTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.progress.AddTopicToLearnGoal(ctx, "viewer", "topic_id"))
	require.NoError(t, f.progress.RecordCompletedNode(ctx, "viewer", "story_id", "node_1"))

	res := f.postProgress(t, "viewer", "title-one", "node_3")
	assert.Empty(t, res.Summaries)
	assert.Nil(t, res.NextNodeID)
	assert.False(t, res.ReadyForReviewTest)

	p, err := f.progress.Progress(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"topic_id"}, p.LearntTopicIDs)
	assert.Empty(t, p.TopicIDsToLearn)
	assert.Equal(t, []string{"story_id"}, p.CompletedStoryIDs)
}

func TestRecordProgress_ReadyForReviewTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.questions.Link(ctx, "skill_1", "question_1"))
	_, err := f.svc.Update(ctx, "story_id", "admin", []map[string]interface{}{{
		"cmd":           "update_story_node_property",
		"property_name": "acquired_skill_ids",
		"node_id":       "node_1",
		"old_value":     []interface{}{},
		"new_value":     []interface{}{"skill_1"},
	}}, "Added acquired skill.")
	require.NoError(t, err)

	require.NoError(t, f.progress.RecordCompletedNode(ctx, "viewer", "story_id", "node_1"))
	res := f.postProgress(t, "viewer", "title-one", "node_3")
	assert.Empty(t, res.Summaries)
	assert.Nil(t, res.NextNodeID)
	assert.True(t, res.ReadyForReviewTest)
}

func TestRecordProgress_LogsMissingCompletedStory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.progress.RecordCompletedNode(ctx, "viewer", "story_id", "node_1"))
	f.postProgress(t, "viewer", "title-one", "node_3")

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stdout)

	f.svc.stories = forgetfulRepo{f.stories}
	f.postProgress(t, "viewer", "title-one", "node_3")
	assert.Contains(t, buf.String(), "Could not find a story corresponding to story_id id.")
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/stories", "viewer", "", `{"title":"New","topic_id":"topic_id","url_fragment":"new-story"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/v1/stories", "admin", "curriculum_admin", `{"title":"New","topic_id":"topic_id","url_fragment":"new-story"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["story_id"]

	tp, err := f.svc.Topic(context.Background(), "topic_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"story_id", id}, tp.CanonicalStoryIDs())

	w = f.do(http.MethodPut, "/api/v1/stories/"+id, "admin", "curriculum_admin",
		`{"version":1,"commit_message":"Add node","change_dicts":[{"cmd":"add_story_node","node_id":"node_1","title":"First"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPut, "/api/v1/stories/"+id, "admin", "curriculum_admin", `{"version":1,"commit_message":"again","change_dicts":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/v1/topics/topic_id/stories/"+id+"/publish", "admin", "curriculum_admin", `{"published":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/learn/staging/topic/story/new-story", "", "", "").Code)

	w = f.do(http.MethodPost, "/api/v1/topics", "admin", "curriculum_admin", `{"name":"","url_fragment":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
