package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/cadence/core/signal"
)

// Domain-specific errors for consistent handling across the application.
// Use errors.Is() to check error types for retry logic and user-facing messages.
var (
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")
	ErrEmptyConnectionURL      = errors.New("empty redis connection URL")
	ErrHealthcheckFailed       = errors.New("redis healthcheck failed")
)

// DefaultKeyPrefix namespaces the store's keys when no prefix is configured.
const DefaultKeyPrefix = "cadence"

// Config holds Redis signal store settings.
type Config struct {
	ConnectionURL string `env:"REDIS_URL,required"`
	KeyPrefix     string `env:"REDIS_KEY_PREFIX" envDefault:"cadence"`
}

var _ signal.SignalStore = (*Store)(nil)

// Store is a Redis-backed signal.SignalStore. Signals are kept as JSON in
// a hash keyed by signal ID; save order is tracked in a separate list so
// GetUnacked preserves it.
type Store struct {
	client *redis.Client
	prefix string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix overrides the default key namespace.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a signal store on top of an existing Redis client.
func New(client *redis.Client, opts ...StoreOption) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewFromConfig connects a Redis client from configuration and wraps it in
// a signal store. The connection is verified with a ping.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrEmptyConnectionURL
	}

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, WithKeyPrefix(cfg.KeyPrefix)), nil
}

func (s *Store) dataKey() string    { return s.prefix + ":signals:data" }
func (s *Store) pendingKey() string { return s.prefix + ":signals:pending" }

// Save records the signal as unacked. Re-saving an existing ID overwrites
// the record without disturbing its position in the pending list.
func (s *Store) Save(ctx context.Context, sig signal.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal %s: %w", sig.ID, err)
	}

	exists, err := s.client.HExists(ctx, s.dataKey(), sig.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check signal %s: %w", sig.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dataKey(), sig.ID, data)
	if !exists {
		pipe.RPush(ctx, s.pendingKey(), sig.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}

	return nil
}

// MarkAcked removes the signal from the unacked set. Unknown IDs are a
// no-op so re-acking during replay is harmless.
func (s *Store) MarkAcked(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.LRem(ctx, s.pendingKey(), 1, id)
	pipe.HDel(ctx, s.dataKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack signal %s: %w", id, err)
	}

	return nil
}

// GetUnacked returns all unacked signals in save order.
func (s *Store) GetUnacked(ctx context.Context) ([]signal.Signal, error) {
	ids, err := s.client.LRange(ctx, s.pendingKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list unacked signals: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.client.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load unacked signals: %w", err)
	}

	out := make([]signal.Signal, 0, len(raw))
	for i, v := range raw {
		data, ok := v.(string)
		if !ok {
			// Pending entry without a data record; skip rather than fail
			// the whole replay.
			continue
		}
		var sig signal.Signal
		if err := json.Unmarshal([]byte(data), &sig); err != nil {
			return nil, fmt.Errorf("failed to decode signal %s: %w", ids[i], err)
		}
		out = append(out, sig)
	}

	return out, nil
}

// Healthcheck validates Redis connectivity.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
