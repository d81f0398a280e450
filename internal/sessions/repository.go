package sessions

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists refresh sessions. Take removes the session it returns
// so a refresh token can be redeemed once; it returns (nil, nil) for unknown
// tokens.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Take(ctx context.Context, refresh string) (*Session, error)
	DeleteByRefresh(ctx context.Context, refresh string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository indexes refresh tokens and lets Mongo expire sessions
// at expiresAt.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "refreshToken", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) Take(ctx context.Context, refresh string) (*Session, error) {
	var s Session
	if err := r.col.FindOneAndDelete(ctx, bson.M{"refreshToken": refresh}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"refreshToken": refresh})
	return err
}

// MemoryRepository keeps sessions in process; used when neither Redis nor
// MongoDB is configured.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	r.sessions[s.RefreshToken] = *s
	return nil
}

func (r *MemoryRepository) Take(ctx context.Context, refresh string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[refresh]
	if !ok {
		return nil, nil
	}
	delete(r.sessions, refresh)
	return &s, nil
}

func (r *MemoryRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, refresh)
	return nil
}
