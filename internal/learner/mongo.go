package learner

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores one document per user and updates list fields with
// $addToSet and $pull so concurrent requests never drop entries.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Get(ctx context.Context, userID string) (*Progress, error) {
	p := emptyProgress(userID)
	err := r.col.FindOne(ctx, bson.M{"_id": userID}).Decode(p)
	if err == mongo.ErrNoDocuments {
		return emptyProgress(userID), nil
	}
	if err != nil {
		return nil, err
	}
	if p.CompletedNodes == nil {
		p.CompletedNodes = map[string][]string{}
	}
	return p, nil
}

func (r *MongoRepository) Add(ctx context.Context, userID, field, value string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{field: value}},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) Remove(ctx context.Context, userID, field, value string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{field: value}})
	return err
}
