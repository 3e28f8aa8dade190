package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/cadence/core/signal"
)

var (
	// ErrEmptyConnectionURL is returned when no connection string is configured.
	ErrEmptyConnectionURL = errors.New("empty mongo connection URL")

	// ErrHealthcheckFailed wraps ping failures.
	ErrHealthcheckFailed = errors.New("mongo healthcheck failed")
)

// Defaults for database and collection names.
const (
	DefaultDatabase   = "cadence"
	DefaultCollection = "signals"
)

// Config holds Mongo signal store settings.
type Config struct {
	ConnectionURL string `env:"MONGO_URL,required"`
	Database      string `env:"MONGO_DATABASE" envDefault:"cadence"`
	Collection    string `env:"MONGO_COLLECTION" envDefault:"signals"`
}

// signalDoc is the persisted shape: the signal's JSON encoding plus the
// bookkeeping fields the store needs for ordering and acking.
type signalDoc struct {
	ID       string `bson:"_id"`
	Data     string `bson:"data"`
	Acked    bool   `bson:"acked"`
	Position int64  `bson:"position"`
}

var _ signal.SignalStore = (*Store)(nil)

// Store is a Mongo-backed signal.SignalStore. Save order is preserved via
// a per-process monotonic position derived from the save timestamp.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	lastPos    atomic.Int64
}

// New creates a signal store on top of an existing Mongo client.
func New(client *mongo.Client, database, collection string) *Store {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	return &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

// NewFromConfig connects a Mongo client from configuration and verifies it
// with a ping.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.ConnectionURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return New(client, cfg.Database, cfg.Collection), nil
}

// nextPosition returns a strictly increasing save position.
func (s *Store) nextPosition() int64 {
	for {
		now := time.Now().UnixNano()
		last := s.lastPos.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastPos.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Save records the signal as unacked. Re-saving an existing ID overwrites
// the record without disturbing its position.
func (s *Store) Save(ctx context.Context, sig signal.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal %s: %w", sig.ID, err)
	}

	filter := bson.M{"_id": sig.ID}
	update := bson.M{
		"$set":         bson.M{"data": string(data)},
		"$setOnInsert": bson.M{"acked": false, "position": s.nextPosition()},
	}

	if _, err := s.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// MarkAcked flags the signal as delivered. Unknown IDs are a no-op.
func (s *Store) MarkAcked(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"acked": true}}

	if _, err := s.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to ack signal %s: %w", id, err)
	}
	return nil
}

// GetUnacked returns all unacked signals in save order.
func (s *Store) GetUnacked(ctx context.Context) ([]signal.Signal, error) {
	filter := bson.M{"acked": false}
	cursor, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list unacked signals: %w", err)
	}
	defer cursor.Close(ctx)

	var out []signal.Signal
	for cursor.Next(ctx) {
		var doc signalDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode signal document: %w", err)
		}
		var sig signal.Signal
		if err := json.Unmarshal([]byte(doc.Data), &sig); err != nil {
			return nil, fmt.Errorf("failed to decode signal %s: %w", doc.ID, err)
		}
		out = append(out, sig)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signal documents: %w", err)
	}
	return out, nil
}

// Healthcheck validates Mongo connectivity.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
