package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cacheDoc struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
	ExpireAt  time.Time `bson:"expireAt"`
}

// Mongo keeps entries in a collection with a TTL index on expireAt. The TTL
// monitor runs about once a minute, so reads re-check expiry themselves.
type Mongo struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongo(client *mongo.Client, dbName, collectionName string) *Mongo {
	return &Mongo{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

func ConnectMongo(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	if m == nil || m.collection == nil {
		return nil
	}
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expireAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc, ok, err := m.find(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return doc.Value, true, nil
}

func (m *Mongo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now().UTC()
	doc := cacheDoc{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
		ExpireAt:  now.Add(ttl),
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	doc, ok, err := m.find(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	return doc.ExpireAt.Sub(m.now()), true, nil
}

func (m *Mongo) find(ctx context.Context, key string) (cacheDoc, bool, error) {
	var doc cacheDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return cacheDoc{}, false, nil
		}
		return cacheDoc{}, false, err
	}
	if !m.now().Before(doc.ExpireAt) {
		return cacheDoc{}, false, nil
	}
	return doc, true, nil
}
