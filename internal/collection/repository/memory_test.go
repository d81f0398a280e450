package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
)

func TestMemoryRepo_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	c := collection.NewDefault("c1", "A title", "A category", "")
	c.Version = 1
	require.NoError(t, c.AddNode("e1"))

	require.NoError(t, r.Create(ctx, c.ToModel()))
	require.ErrorIs(t, r.Create(ctx, c.ToModel()), ErrAlreadyExists)

	m, err := r.Get(ctx, "c1")
	require.NoError(t, err)
	got, err := collection.FromModel(m)
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, got.ExplorationIDs())

	got.Version = 2
	require.ErrorIs(t, r.Update(ctx, got.ToModel(), 5), ErrVersionConflict)
	require.NoError(t, r.Update(ctx, got.ToModel(), 1))
	m, err = r.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 2, m.Version)

	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Update(ctx, &collection.Model{ID: "missing"}, 0), ErrNotFound)
}

func TestMemoryRepo_Summaries(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	require.NoError(t, r.SaveSummary(ctx, &collection.Summary{ID: "b", Status: collection.StatusPublic}))
	require.NoError(t, r.SaveSummary(ctx, &collection.Summary{ID: "a", Status: collection.StatusPrivate}))

	list, err := r.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].ID)

	s, err := r.GetSummary(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, collection.StatusPublic, s.Status)
	_, err = r.GetSummary(ctx, "zzz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepo_MigratesOldContents(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	old := &collection.Model{
		ID:            "old",
		Title:         "Old",
		LanguageCode:  "en",
		SchemaVersion: 3,
		Version:       4,
		Contents: map[string]interface{}{"nodes": []interface{}{
			map[string]interface{}{"exploration_id": "e1", "acquired_skills": []interface{}{"b", "a"}, "prerequisite_skills": []interface{}{}},
		}},
	}
	require.NoError(t, r.Create(ctx, old))

	m, err := r.Get(ctx, "old")
	require.NoError(t, err)
	c, err := collection.FromModel(m)
	require.NoError(t, err)
	require.Equal(t, collection.CurrentSchemaVersion, c.SchemaVersion)
	require.Equal(t, []string{"e1"}, c.ExplorationIDs())
	require.Equal(t, 4, c.Version)
}
