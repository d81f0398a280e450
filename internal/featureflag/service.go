package featureflag

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/openlearn/openlearn/backend/go-services/internal/objects"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/metrics"
)

// NotFoundError is returned when unregistered flag names are requested.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }
func (e *NotFoundError) Unwrap() error { return ErrUnknownFeature }

type Service struct {
	registry *Registry
	cache    ValueCache
	mode     ServerMode
}

// NewService evaluates flags from registry for a server running in mode.
// cache may be nil.
func NewService(registry *Registry, cache ValueCache, mode ServerMode) *Service {
	if mode == "" {
		mode = ServerModeDev
	}
	return &Service{registry: registry, cache: cache, mode: mode}
}

func (s *Service) ServerMode() ServerMode { return s.mode }

// CreateEvaluationContextForClient builds the evaluation context for a client
// request, using the server's own mode.
func (s *Service) CreateEvaluationContextForClient(client map[string]interface{}) (*EvaluationContext, error) {
	ec := ContextFromMap(client, map[string]interface{}{"server_mode": string(s.mode)})
	if err := ec.Validate(); err != nil {
		return nil, err
	}
	return ec, nil
}

func (s *Service) serverContext() *EvaluationContext {
	return &EvaluationContext{Platform: "Backend", ServerMode: s.mode}
}

// GetAllFeatureFlagDicts returns the admin dicts of every registered feature.
func (s *Service) GetAllFeatureFlagDicts(ctx context.Context) ([]map[string]interface{}, error) {
	out := []map[string]interface{}{}
	for _, name := range s.registry.Names() {
		f, err := s.registry.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, f.ToMap())
	}
	return out, nil
}

// EvaluateAllForClient evaluates every registered feature for ec.
func (s *Service) EvaluateAllForClient(ctx context.Context, ec *EvaluationContext) (map[string]bool, error) {
	return s.Evaluate(ctx, s.registry.Names(), ec)
}

// IsFeatureEnabled evaluates name against the server context.
func (s *Service) IsFeatureEnabled(ctx context.Context, name string) (bool, error) {
	values, err := s.Evaluate(ctx, []string{name}, s.serverContext())
	if err != nil {
		return false, err
	}
	return values[name], nil
}

// Evaluate returns the values of names for ec. Unregistered names fail the
// whole call.
func (s *Service) Evaluate(ctx context.Context, names []string, ec *EvaluationContext) (map[string]bool, error) {
	var unknown []string
	for _, n := range names {
		if !s.registry.Has(n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &NotFoundError{Msg: fmt.Sprintf("Unknown feature flag(s): %s.", objects.Repr(unknown))}
	}

	sorted := append([]string{}, names...)
	sort.Strings(sorted)
	key := CacheKey(ec, sorted)
	// the generation is read before the rules so a concurrent rule update
	// leaves these values in a generation nobody reads any more
	cache := s.cache
	var gen int64
	if cache != nil {
		var err error
		if gen, err = cache.Generation(ctx); err != nil {
			logger.Warnf("feature flag cache generation lookup failed: %v", err)
			cache = nil
		}
	}
	if cache != nil {
		cached, err := cache.Get(ctx, gen, key)
		if err != nil {
			logger.Warnf("feature flag cache read failed: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	values := make(map[string]bool, len(sorted))
	for _, n := range sorted {
		f, err := s.registry.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		v := f.DefaultValue
		if ec.IsValid() {
			v = f.Evaluate(ec)
		}
		values[n] = v
		metrics.FeatureFlagEvaluations.WithLabelValues(n, strconv.FormatBool(v)).Inc()
	}
	if cache != nil {
		if err := cache.Set(ctx, gen, key, values); err != nil {
			logger.Warnf("feature flag cache write failed: %v", err)
		}
	}
	return values, nil
}

// UpdateFeatureFlagRules replaces the rules of name. Every rule must pin the
// server modes it applies to. All cached values are dropped afterwards.
func (s *Service) UpdateFeatureFlagRules(ctx context.Context, name, committerID, message string, rules []Rule) (*Feature, error) {
	if !s.registry.Has(name) {
		return nil, &NotFoundError{Msg: fmt.Sprintf("Unknown feature flag: %s.", name)}
	}
	for _, r := range rules {
		if !r.HasServerModeFilter() {
			return nil, validationErrorf("All rules must have a server_mode filter.")
		}
	}
	f, err := s.registry.Update(ctx, name, committerID, message, rules)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			return nil, err
		}
	}
	logger.With("flag", name, "committer", committerID).Infof("updated %d rule(s)", len(rules))
	return f, nil
}

func (s *Service) History(ctx context.Context, name string) ([]RuleCommit, error) {
	return s.registry.History(ctx, name)
}
