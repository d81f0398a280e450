package recommendations

import (
	"sort"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
)

const (
	MaxRecommendations = 10
	defaultRank        = 20
	// updates at most this many whole days old get a small boost
	recentDays = 7
)

var ratingWeights = map[string]int{"1": -5, "2": -2, "3": 2, "4": 5, "5": 10}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string{}, a...)
	y := append([]string{}, b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// ItemSimilarity scores how good cmp is as a follow-up to ref. Private
// explorations always score zero.
func ItemSimilarity(topics *TopicSimilarities, ref, cmp *exploration.Summary, now time.Time) float64 {
	if cmp.IsPrivate() {
		return 0
	}
	score := 2 * topics.Similarity(ref.Category, cmp.Category)
	if sameSet(ref.OwnerIDs, cmp.OwnerIDs) {
		score++
	}
	if ref.LanguageCode == cmp.LanguageCode {
		score++
	}
	if int(now.Sub(cmp.LastUpdated)/(24*time.Hour)) <= recentDays {
		score += 0.1
	}
	return score
}

// SearchRank weighs the rating counts of s on top of a base rank. Ranks
// never go below zero.
func SearchRank(s *exploration.Summary) int {
	rank := defaultRank
	for k, n := range s.Ratings {
		rank += n * ratingWeights[k]
	}
	if rank < 0 {
		return 0
	}
	return rank
}
