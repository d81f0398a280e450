package recommendations

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

const (
	JobRecommendations = "exploration_recommendations"
	JobSearchRanks     = "exploration_search_ranks"
)

// SummarySource lists published exploration summaries and stores ranks.
type SummarySource interface {
	NonPrivateSummaries(ctx context.Context) ([]*exploration.Summary, error)
	SetSearchRank(ctx context.Context, id string, rank int) error
}

type Service struct {
	store     Store
	topics    *TopicSimilarities
	summaries SummarySource
	now       func() time.Time
}

func NewService(store Store, summaries SummarySource) *Service {
	return &Service{store: store, topics: NewTopicSimilarities(), summaries: summaries, now: time.Now}
}

func (s *Service) Topics() *TopicSimilarities { return s.topics }

// LoadTopicSimilarities restores the stored matrix, then applies the CSV
// file at path when one is given.
func (s *Service) LoadTopicSimilarities(ctx context.Context, path string) error {
	m, err := s.store.LoadSimilarities(ctx)
	if err != nil {
		return err
	}
	if m != nil {
		s.topics.Replace(m)
	}
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.UpdateTopicSimilarities(ctx, string(b))
}

func (s *Service) UpdateTopicSimilarities(ctx context.Context, data string) error {
	if err := s.topics.Update(data); err != nil {
		return err
	}
	return s.store.SaveSimilarities(ctx, s.topics.Matrix())
}

func (s *Service) TopicSimilaritiesCSV() string { return s.topics.CSV() }

// Get returns the stored recommendations for expID.
func (s *Service) Get(ctx context.Context, expID string) ([]string, error) {
	return s.store.Get(ctx, expID)
}

func valid(sum *exploration.Summary) bool {
	return sum != nil && sum.Validate() == nil
}

type scored struct {
	id    string
	score float64
}

// Recommend ranks candidates as follow-ups to ref, best first, keeping at
// most MaxRecommendations.
func (s *Service) Recommend(ref *exploration.Summary, candidates []*exploration.Summary) []string {
	now := s.now()
	var all []scored
	for _, c := range candidates {
		if !valid(c) || c.ID == ref.ID || c.IsPrivate() {
			continue
		}
		all = append(all, scored{id: c.ID, score: ItemSimilarity(s.topics, ref, c, now)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})
	if len(all) > MaxRecommendations {
		all = all[:MaxRecommendations]
	}
	ids := make([]string, 0, len(all))
	for _, sc := range all {
		ids = append(ids, sc.id)
	}
	return ids
}

// ComputeRecommendations recomputes and stores the recommendations of every
// published exploration. Invalid summaries are skipped.
func (s *Service) ComputeRecommendations(ctx context.Context) (map[string]interface{}, error) {
	sums, err := s.summaries.NonPrivateSummaries(ctx)
	if err != nil {
		return nil, err
	}
	computed, skipped := 0, 0
	for _, ref := range sums {
		if !valid(ref) {
			skipped++
			continue
		}
		if err := s.store.Set(ctx, ref.ID, s.Recommend(ref, sums)); err != nil {
			return nil, err
		}
		computed++
	}
	if skipped > 0 {
		logger.With("job", JobRecommendations).Warnf("skipped %d invalid exploration summaries", skipped)
	}
	return map[string]interface{}{"computed": computed, "skipped": skipped}, nil
}

// UpdateSearchRanks stores the SearchRank of every published exploration.
func (s *Service) UpdateSearchRanks(ctx context.Context) (map[string]interface{}, error) {
	sums, err := s.summaries.NonPrivateSummaries(ctx)
	if err != nil {
		return nil, err
	}
	updated := 0
	for _, sum := range sums {
		if !valid(sum) {
			continue
		}
		rank := SearchRank(sum)
		if rank == sum.SearchRank {
			continue
		}
		if err := s.summaries.SetSearchRank(ctx, sum.ID, rank); err != nil {
			return nil, err
		}
		updated++
	}
	return map[string]interface{}{"updated": updated, "total": len(sums)}, nil
}
