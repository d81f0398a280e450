package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration"
)

// MongoRepo stores explorations, rights and summaries in three collections
// of db.
type MongoRepo struct {
	col       *mongo.Collection
	rights    *mongo.Collection
	summaries *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	r := &MongoRepo{
		col:       db.Collection("explorations"),
		rights:    db.Collection("exploration_rights"),
		summaries: db.Collection("exploration_summaries"),
	}
	// non-private summaries are scanned by recommendation and ranking jobs
	idx := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}}
	r.summaries.Indexes().CreateOne(context.Background(), idx)
	return r
}

func (m *MongoRepo) Create(ctx context.Context, e *exploration.Exploration, r *exploration.Rights) error {
	if _, err := m.col.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	_, err := m.rights.InsertOne(ctx, r)
	return err
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*exploration.Exploration, error) {
	var e exploration.Exploration
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (m *MongoRepo) Update(ctx context.Context, e *exploration.Exploration, prevVersion int) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": e.ID, "version": prevVersion}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if n, cerr := m.col.CountDocuments(ctx, bson.M{"_id": e.ID}); cerr == nil && n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (m *MongoRepo) GetRights(ctx context.Context, id string) (*exploration.Rights, error) {
	var r exploration.Rights
	if err := m.rights.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m *MongoRepo) SaveRights(ctx context.Context, r *exploration.Rights) error {
	res, err := m.rights.ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) GetSummary(ctx context.Context, id string) (*exploration.Summary, error) {
	var s exploration.Summary
	if err := m.summaries.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (m *MongoRepo) SaveSummary(ctx context.Context, s *exploration.Summary) error {
	_, err := m.summaries.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoRepo) ListSummaries(ctx context.Context) ([]*exploration.Summary, error) {
	cur, err := m.summaries.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*exploration.Summary{}
	for cur.Next(ctx) {
		var s exploration.Summary
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}
