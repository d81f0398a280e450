package users

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DashboardStats is the creator dashboard summary computed by the daily
// cron job.
type DashboardStats struct {
	UserID          string    `bson:"_id" json:"user_id"`
	NumCollections  int       `bson:"num_collections" json:"num_collections"`
	NumExplorations int       `bson:"num_explorations" json:"num_explorations"`
	ComputedAt      time.Time `bson:"computed_at" json:"computed_at"`
}

// StatsRepository stores one DashboardStats per user. Get returns
// (nil, nil) for users without stats.
type StatsRepository interface {
	Save(ctx context.Context, s *DashboardStats) error
	Get(ctx context.Context, userID string) (*DashboardStats, error)
}

type MongoStatsRepository struct {
	col *mongo.Collection
}

func NewMongoStatsRepository(col *mongo.Collection) *MongoStatsRepository {
	return &MongoStatsRepository{col: col}
}

func (r *MongoStatsRepository) Save(ctx context.Context, s *DashboardStats) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.UserID}, s, options.Replace().SetUpsert(true))
	return err
}

func (r *MongoStatsRepository) Get(ctx context.Context, userID string) (*DashboardStats, error) {
	var s DashboardStats
	err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type MemoryStatsRepository struct {
	mu    sync.RWMutex
	stats map[string]DashboardStats
}

func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{stats: map[string]DashboardStats{}}
}

func (r *MemoryStatsRepository) Save(ctx context.Context, s *DashboardStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[s.UserID] = *s
	return nil
}

func (r *MemoryStatsRepository) Get(ctx context.Context, userID string) (*DashboardStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// RecordDashboardStats merges per-owner collection and exploration counts
// into one DashboardStats per user and saves them.
func RecordDashboardStats(ctx context.Context, repo StatsRepository, collections, explorations map[string]int, now time.Time) (int, error) {
	merged := map[string]*DashboardStats{}
	get := func(id string) *DashboardStats {
		s, ok := merged[id]
		if !ok {
			s = &DashboardStats{UserID: id, ComputedAt: now}
			merged[id] = s
		}
		return s
	}
	for id, n := range collections {
		get(id).NumCollections = n
	}
	for id, n := range explorations {
		get(id).NumExplorations = n
	}
	for _, s := range merged {
		if err := repo.Save(ctx, s); err != nil {
			return 0, err
		}
	}
	return len(merged), nil
}
