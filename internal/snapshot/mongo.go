package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type persistedSnapshot struct {
	ID       string         `bson:"_id"`
	Metadata Metadata       `bson:"metadata"`
	Log      CommitLogEntry `bson:"commit_log"`
	Content  []byte         `bson:"content,omitempty"`
}

// MongoStore keeps one document per committed version.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "metadata.entity_kind", Value: 1}, {Key: "metadata.created_on", Value: 1}}}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoStore{col: col}
}

func (m *MongoStore) Record(ctx context.Context, c Commit) error {
	blob, err := Compress(c.Content)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := persistedSnapshot{
		ID:       CommitLogID(c.Kind, c.EntityID, c.Version),
		Metadata: c.metadata(now),
		Log:      c.logEntry(now),
		Content:  blob,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

func (m *MongoStore) Content(ctx context.Context, kind, entityID string, version int) ([]byte, error) {
	var doc persistedSnapshot
	err := m.col.FindOne(ctx, bson.M{"_id": CommitLogID(kind, entityID, version)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.Content == nil {
		return nil, ErrNotFound
	}
	return Decompress(doc.Content)
}

func (m *MongoStore) find(ctx context.Context, kind string) ([]persistedSnapshot, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "metadata.entity_id", Value: 1}, {Key: "metadata.version", Value: 1}}).
		SetProjection(bson.M{"content": 0})
	cur, err := m.col.Find(ctx, bson.M{"metadata.entity_kind": kind}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []persistedSnapshot
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) MetadataFor(ctx context.Context, kind string) ([]Metadata, error) {
	docs, err := m.find(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Metadata)
	}
	return out, nil
}

func (m *MongoStore) CommitLogFor(ctx context.Context, kind string) ([]CommitLogEntry, error) {
	docs, err := m.find(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]CommitLogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Log)
	}
	return out, nil
}

func (m *MongoStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	filter := bson.M{
		"metadata.created_on": bson.M{"$lt": cutoff},
		"content":             bson.M{"$exists": true},
	}
	res, err := m.col.UpdateMany(ctx, filter, bson.M{"$unset": bson.M{"content": ""}})
	if err != nil {
		return 0, fmt.Errorf("delete snapshot content: %w", err)
	}
	return int(res.ModifiedCount), nil
}
