package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("user not found")

// UserRepository defines persistence operations for users. Lookups return
// (nil, nil) when no user matches.
type UserRepository interface {
	UpsertBySub(ctx context.Context, u *models.User) (*models.User, error)
	GetBySub(ctx context.Context, sub string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	AddRole(ctx context.Context, sub, role string) error
	SetTranslationTutorialStarted(ctx context.Context, sub string) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sub", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}},
	}
	col.Indexes().CreateMany(context.Background(), idx)
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	filter := bson.M{"sub": u.Sub}
	repl := bson.M{
		"$set": bson.M{
			"email":     u.Email,
			"name":      u.Name,
			"username":  u.Username,
			"updatedAt": u.UpdatedAt,
		},
		"$setOnInsert": bson.M{"createdAt": u.CreatedAt, "roles": []string{}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, repl, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			// Shouldn't happen because of upsert, but handle gracefully
			return u, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"sub": sub})
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) update(ctx context.Context, sub string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"sub": sub}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) AddRole(ctx context.Context, sub, role string) error {
	return r.update(ctx, sub, bson.M{"$addToSet": bson.M{"roles": role}})
}

func (r *MongoUserRepository) SetTranslationTutorialStarted(ctx context.Context, sub string) error {
	return r.update(ctx, sub, bson.M{"$set": bson.M{"translationTutorialStarted": true}})
}

// MemoryUserRepository keeps users in a map keyed by sub.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := r.users[u.Sub]
	if !ok {
		cur = models.User{ID: u.Sub, Sub: u.Sub, Roles: append([]string{}, u.Roles...), CreatedAt: now}
	}
	cur.Email = u.Email
	cur.Name = u.Name
	cur.Username = u.Username
	cur.UpdatedAt = now
	r.users[u.Sub] = cur
	out := cur
	return &out, nil
}

func (r *MemoryUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[sub]
	if !ok {
		return nil, nil
	}
	u.Roles = append([]string{}, u.Roles...)
	return &u, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			u.Roles = append([]string{}, u.Roles...)
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) AddRole(ctx context.Context, sub, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sub]
	if !ok {
		return ErrNotFound
	}
	if !u.HasRole(role) {
		u.Roles = append(append([]string{}, u.Roles...), role)
	}
	r.users[sub] = u
	return nil
}

func (r *MemoryUserRepository) SetTranslationTutorialStarted(ctx context.Context, sub string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sub]
	if !ok {
		return ErrNotFound
	}
	u.TranslationTutorialStarted = true
	r.users[sub] = u
	return nil
}
