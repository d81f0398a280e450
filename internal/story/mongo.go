package story

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openlearn/openlearn/backend/go-services/internal/database"
)

type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "url_fragment", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepo{col: col}
}

func (r *MongoRepo) Create(ctx context.Context, m *Model) error {
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *MongoRepo) findOne(ctx context.Context, filter bson.M) (*Model, error) {
	var m Model
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Contents = database.PlainMap(m.Contents)
	return &m, nil
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*Model, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepo) GetByURLFragment(ctx context.Context, fragment string) (*Model, error) {
	return r.findOne(ctx, bson.M{"url_fragment": fragment})
}

func (r *MongoRepo) Update(ctx context.Context, m *Model, prevVersion int) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": m.ID, "version": prevVersion}, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrURLFragmentUsed
		}
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

type MongoTopicRepo struct {
	col *mongo.Collection
}

func NewMongoTopicRepo(col *mongo.Collection) *MongoTopicRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "url_fragment", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoTopicRepo{col: col}
}

func (r *MongoTopicRepo) Save(ctx context.Context, t *Topic) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": t.ID}, t, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return ErrURLFragmentUsed
	}
	return err
}

func (r *MongoTopicRepo) findOne(ctx context.Context, filter bson.M) (*Topic, error) {
	var t Topic
	if err := r.col.FindOne(ctx, filter).Decode(&t); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *MongoTopicRepo) Get(ctx context.Context, id string) (*Topic, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoTopicRepo) GetByURLFragment(ctx context.Context, fragment string) (*Topic, error) {
	return r.findOne(ctx, bson.M{"url_fragment": fragment})
}
