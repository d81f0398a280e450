package learner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_StoriesAndNodes(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	nodes, err := svc.CompletedNodes(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	require.NoError(t, svc.RecordCompletedNode(ctx, "u1", "s1", "node_2"))
	require.NoError(t, svc.RecordCompletedNode(ctx, "u1", "s1", "node_1"))
	require.NoError(t, svc.RecordCompletedNode(ctx, "u1", "s1", "node_2"))
	nodes, err = svc.CompletedNodes(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"node_2", "node_1"}, nodes)

	require.NoError(t, svc.RecordStoryStarted(ctx, "u1", "s1"))
	p, err := svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, p.IncompleteStoryIDs)

	require.NoError(t, svc.MarkStoryCompleted(ctx, "u1", "s1"))
	require.NoError(t, svc.RecordStoryStarted(ctx, "u1", "s1"))
	p, err = svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, p.CompletedStoryIDs)
	assert.Empty(t, p.IncompleteStoryIDs)

	require.ErrorIs(t, svc.RecordCompletedNode(ctx, "u1", "bad.story", "n"), ErrInvalidID)
	require.ErrorIs(t, svc.MarkStoryCompleted(ctx, "", "s1"), ErrInvalidID)
}

func TestService_Topics(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	require.NoError(t, svc.AddTopicToLearnGoal(ctx, "u1", "t1"))
	require.NoError(t, svc.AddTopicToLearnGoal(ctx, "u1", "t2"))
	require.NoError(t, svc.MarkTopicPartiallyLearnt(ctx, "u1", "t1"))

	p, err := svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, p.PartiallyLearntTopicIDs)

	require.NoError(t, svc.MarkTopicLearnt(ctx, "u1", "t1"))
	learnt, err := svc.LearntTopicIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, learnt)
	goals, err := svc.TopicIDsToLearn(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, goals)

	p, err = svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.PartiallyLearntTopicIDs)

	// learnt topics never go back to partially learnt
	require.NoError(t, svc.MarkTopicPartiallyLearnt(ctx, "u1", "t1"))
	p, err = svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.PartiallyLearntTopicIDs)

	require.NoError(t, svc.RemoveTopicFromLearnGoal(ctx, "u1", "t2"))
	goals, err = svc.TopicIDsToLearn(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, "u1", FieldCompletedStories, "s1"))

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	p.CompletedStoryIDs[0] = "mutated"

	p, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, p.CompletedStoryIDs)

	require.Error(t, repo.Add(ctx, "u1", "nonsense", "x"))
}
