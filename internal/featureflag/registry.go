package featureflag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

const (
	FeatureNewStructureViewerUpdates = "ENABLE_NEW_STRUCTURE_VIEWER_UPDATES"
	FeatureDummy                     = "DUMMY_FEATURE"
)

var ErrUnknownFeature = errors.New("unknown feature flag")

// DefaultFeatures lists the features known to the server.
func DefaultFeatures() []Feature {
	return []Feature{
		NewFeature(FeatureNewStructureViewerUpdates, "Enables the new story viewer progress updates.", ServerModeProd),
		NewFeature(FeatureDummy, "This is a dummy feature flag.", ServerModeDev),
	}
}

// Registry holds the definitions of all known features and overlays the
// rules persisted in a RuleStore.
type Registry struct {
	mu       sync.RWMutex
	features map[string]Feature
	store    RuleStore
}

func NewRegistry(store RuleStore, features ...Feature) *Registry {
	r := &Registry{features: map[string]Feature{}, store: store}
	for _, f := range features {
		r.features[f.Name] = f
	}
	return r
}

// Names returns the registered feature names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.features))
	for n := range r.features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.features[name]
	return ok
}

// Get returns the feature with its current stored rules.
func (r *Registry) Get(ctx context.Context, name string) (*Feature, error) {
	r.mu.RLock()
	f, ok := r.features[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}
	set, err := r.store.Load(ctx, name)
	switch {
	case errors.Is(err, ErrNoRules):
	case err != nil:
		return nil, err
	default:
		f.Rules = set.Rules
		f.RuleSchemaVersion = set.RuleSchemaVersion
	}
	if f.Rules == nil {
		f.Rules = []Rule{}
	}
	return &f, nil
}

// Update validates rules against the feature's stage and persists them.
func (r *Registry) Update(ctx context.Context, name, committerID, message string, rules []Rule) (*Feature, error) {
	f, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	f.Rules = rules
	f.RuleSchemaVersion = RuleSchemaVersion
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.store.Save(ctx, name, rules, committerID, message); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Registry) History(ctx context.Context, name string) ([]RuleCommit, error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}
	return r.store.History(ctx, name)
}
