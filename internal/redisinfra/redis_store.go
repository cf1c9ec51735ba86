// Package redisinfra adapts a Redis-compatible server to the cache.Store
// protocol using go-redis.
package redisinfra

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-query-cache/cache"
)

// Config holds the connection options for the Redis adapter.
type Config struct {
	// Addrs lists server addresses. One address yields a single-node
	// client; more than one yields a cluster client.
	Addrs    []string
	Username string
	Password string

	// DB selects the logical database. Ignored in cluster mode.
	DB int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config pointing at a local single-node server.
func DefaultConfig() Config {
	return Config{
		Addrs:       []string{"127.0.0.1:6379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addrs, validation.Required, validation.Length(1, 0)),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.PoolSize, validation.Min(0)),
	)
}

// Store implements cache.Store over a Redis-compatible server.
type Store struct {
	client redis.UniversalClient
	db     int
}

var _ cache.Store = (*Store)(nil)
var _ cache.DatabaseScoped = (*Store)(nil)

// NewStore validates the configuration and connects a client. The Store owns
// the client; call Close to release it.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &Store{client: client, db: cfg.DB}, nil
}

// NewStoreFromClient wraps an existing client whose lifecycle the caller
// owns; Close becomes a no-op. db must name the logical database the client
// is connected to.
func NewStoreFromClient(client redis.UniversalClient, db int) *Store {
	return &Store{client: client, db: db}
}

// LogicalDB implements cache.DatabaseScoped.
func (s *Store) LogicalDB() int { return s.db }

// Close releases the owned client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get implements cache.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrNotFound
	}
	return val, err
}

// Set implements cache.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements cache.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// SetAdd implements cache.Store.
func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, key, toAnySlice(members)...).Err()
}

// SetRemove implements cache.Store.
func (s *Store) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.SRem(ctx, key, toAnySlice(members)...).Err()
}

// SetMembers implements cache.Store.
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

// TTL implements cache.Store, normalizing the Redis sentinel replies to
// cache.ErrNotFound and cache.NoExpiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis reports the TTL sentinels as bare -1/-2 durations.
	switch d {
	case -2, -2 * time.Second: // key does not exist
		return 0, cache.ErrNotFound
	case -1, -1 * time.Second: // key exists without expiry
		return cache.NoExpiry, nil
	}
	return d, nil
}

// Expire implements cache.Store.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// Scan implements cache.Store. In cluster mode every master is scanned, as
// keys are spread across nodes.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	if cc, ok := s.client.(*redis.ClusterClient); ok {
		var keys []string
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			nodeKeys, err := scanNode(ctx, node, pattern)
			if err != nil {
				return err
			}
			keys = append(keys, nodeKeys...)
			return nil
		})
		return keys, err
	}
	return scanNode(ctx, s.client, pattern)
}

// FlushDB implements cache.Store.
func (s *Store) FlushDB(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

type scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

func scanNode(ctx context.Context, client scanner, pattern string) ([]string, error) {
	var keys []string
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func toAnySlice(members []string) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
