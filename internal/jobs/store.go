// Package jobs records runs of background and cron jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("job run not found")

// Run is the persisted record of one job execution.
type Run struct {
	JobID     string                 `bson:"jobId" json:"jobId"`
	Type      string                 `bson:"type" json:"type"`
	Status    string                 `bson:"status" json:"status"`
	CreatedAt time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time              `bson:"updatedAt" json:"updatedAt"`
	Output    map[string]interface{} `bson:"output,omitempty" json:"output,omitempty"`
	Error     string                 `bson:"error,omitempty" json:"error,omitempty"`
}

func (r *Run) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

type Store interface {
	Save(ctx context.Context, r *Run) error
	Load(ctx context.Context, jobID string) (*Run, error)
	// List returns runs of jobType, newest first. An empty jobType lists all.
	List(ctx context.Context, jobType string) ([]*Run, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MongoStore upserts run records keyed by jobId.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true)}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoStore{col: col}
}

func (m *MongoStore) Save(ctx context.Context, r *Run) error {
	filter := bson.M{"jobId": r.JobID}
	opts := options.Update().SetUpsert(true)
	rec := bson.M{"$set": r}
	if _, err := m.col.UpdateOne(ctx, filter, rec, opts); err != nil {
		return fmt.Errorf("save job run: %w", err)
	}
	return nil
}

func (m *MongoStore) Load(ctx context.Context, jobID string) (*Run, error) {
	var r Run
	if err := m.col.FindOne(ctx, bson.M{"jobId": jobID}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m *MongoStore) List(ctx context.Context, jobType string) ([]*Run, error) {
	filter := bson.M{}
	if jobType != "" {
		filter["type"] = jobType
	}
	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Run{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	filter := bson.M{
		"status":    bson.M{"$in": []string{StatusSucceeded, StatusFailed}},
		"updatedAt": bson.M{"$lt": cutoff},
	}
	res, err := m.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete job runs: %w", err)
	}
	return int(res.DeletedCount), nil
}

// MemoryStore is used when MongoDB is not configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

func (m *MemoryStore) Save(ctx context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.runs[r.JobID] = &cp
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, jobID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, jobType string) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Run{}
	for _, r := range m.runs {
		if jobType == "" || r.Type == jobType {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.runs {
		if r.Finished() && r.UpdatedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}
