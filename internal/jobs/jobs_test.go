package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

func TestRunner_RecordsSuccess(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store)
	before := testutil.ToFloat64(metrics.CronRuns.WithLabelValues("test_ok", StatusSucceeded))

	run, err := r.Start(context.Background(), "test_ok", func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"processed": 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, run.Status)
	require.NotEmpty(t, run.JobID)

	got, err := store.Load(context.Background(), run.JobID)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, got.Status)
	require.Equal(t, 3, got.Output["processed"])
	require.Equal(t, before+1, testutil.ToFloat64(metrics.CronRuns.WithLabelValues("test_ok", StatusSucceeded)))
}

func TestRunner_RecordsFailure(t *testing.T) {
	store := NewMemoryStore()
	r := NewRunner(store)
	boom := errors.New("boom")

	run, err := r.Start(context.Background(), "test_fail", func(ctx context.Context) (map[string]interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, StatusFailed, run.Status)
	require.Equal(t, "boom", run.Error)

	list, err := store.List(context.Background(), "test_fail")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMemoryStore_DeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, s.Save(ctx, &Run{JobID: "a", Type: "x", Status: StatusSucceeded, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, s.Save(ctx, &Run{JobID: "b", Type: "x", Status: StatusRunning, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, s.Save(ctx, &Run{JobID: "c", Type: "y", Status: StatusFailed, CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	n, err := s.DeleteFinishedBefore(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Load(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "c", all[0].JobID)
}
