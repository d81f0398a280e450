package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openlearn/openlearn/backend/go-services/internal/collection"
	"github.com/openlearn/openlearn/backend/go-services/internal/database"
)

// MongoRepo stores models in one Mongo collection and summaries in another.
type MongoRepo struct {
	col       *mongo.Collection
	summaries *mongo.Collection
}

func NewMongoRepo(col, summaries *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}}
	summaries.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepo{col: col, summaries: summaries}
}

func (r *MongoRepo) Create(ctx context.Context, m *collection.Model) error {
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*collection.Model, error) {
	var m collection.Model
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Contents = database.PlainMap(m.Contents)
	return &m, nil
}

func (r *MongoRepo) Update(ctx context.Context, m *collection.Model, prevVersion int) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": m.ID, "version": prevVersion}, m)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if n, cerr := r.col.CountDocuments(ctx, bson.M{"_id": m.ID}); cerr == nil && n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *MongoRepo) SaveSummary(ctx context.Context, s *collection.Summary) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.summaries.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, opts)
	return err
}

func (r *MongoRepo) GetSummary(ctx context.Context, id string) (*collection.Summary, error) {
	var s collection.Summary
	if err := r.summaries.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepo) ListSummaries(ctx context.Context) ([]*collection.Summary, error) {
	cur, err := r.summaries.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*collection.Summary{}
	for cur.Next(ctx) {
		var s collection.Summary
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
