package featureflag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const enableDummyInDev = `
features:
  DUMMY_FEATURE:
    commit_message: enable in dev
    rules:
      - filters:
          - type: server_mode
            conditions: [["=", "dev"]]
        value_when_matched: true
`

const disableDummy = `
features:
  DUMMY_FEATURE:
    rules: []
`

func TestFileLoaderLoad(t *testing.T) {
	svc := NewService(NewRegistry(NewMemoryRuleStore(), DefaultFeatures()...), NewMemoryValueCache(time.Minute), ServerModeDev)
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(enableDummyInDev), 0o644))
	ctx := context.Background()

	l := NewFileLoader(path, svc)
	updated, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{FeatureDummy}, updated)

	on, err := svc.IsFeatureEnabled(ctx, FeatureDummy)
	require.NoError(t, err)
	assert.True(t, on)

	// unchanged rules are not committed again
	updated, err = l.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, updated)

	commits, err := svc.History(ctx, FeatureDummy)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, FileCommitterID, commits[0].CommitterID)
	assert.Equal(t, "enable in dev", commits[0].CommitMessage)
}

func TestFileLoaderReportsBadEntries(t *testing.T) {
	svc := NewService(NewRegistry(NewMemoryRuleStore(), DefaultFeatures()...), nil, ServerModeDev)
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(enableDummyInDev+`
  UNKNOWN_FEATURE:
    rules: []
`), 0o644))

	updated, err := NewFileLoader(path, svc).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN_FEATURE: Unknown feature flag: UNKNOWN_FEATURE.")
	assert.Equal(t, []string{FeatureDummy}, updated)

	require.NoError(t, os.WriteFile(path, []byte("features: [oops"), 0o644))
	_, err = NewFileLoader(path, svc).Load(context.Background())
	require.Error(t, err)
}

func TestFileLoaderWatch(t *testing.T) {
	svc := NewService(NewRegistry(NewMemoryRuleStore(), DefaultFeatures()...), NewMemoryValueCache(time.Minute), ServerModeDev)
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(disableDummy), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewFileLoader(path, svc).WithDebounce(20 * time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	require.Eventually(t, func() bool {
		// rewrite until the watcher has been set up and picked the change up
		_ = os.WriteFile(path, []byte(enableDummyInDev), 0o644)
		on, err := svc.IsFeatureEnabled(context.Background(), FeatureDummy)
		return err == nil && on
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
