// Package cachecfg selects and configures a backing store. It sits above
// both store adapters, so the cache package itself stays import-free of its
// implementations.
package cachecfg

import (
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/internal/redisinfra"
)

// Config exposes backing-store configuration. Exactly one backend is used:
// Redis when Redis is non-nil, otherwise the in-process store described by
// Memory.
type Config struct {
	// KeyPrefix namespaces every storage key, so multiple caches can share
	// one backing store.
	KeyPrefix string

	Redis  *RedisConfig
	Memory *MemoryConfig
}

// RedisConfig mirrors the Redis adapter options.
type RedisConfig struct {
	// Addrs lists the server addresses. A single address selects a plain
	// client; multiple addresses select a cluster client.
	Addrs    []string
	Username string
	Password string

	// DB is the logical database index. Ignored in cluster mode.
	DB int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MemoryConfig mirrors the in-process adapter options.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config backed by the in-process store with its
// default sizing.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "qc:",
		Memory:    convertMemoryFromInternal(cacheinfra.DefaultConfig()),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.Redis != nil {
		return c.Redis.toInternal().Validate()
	}
	return c.memoryInternal().Validate()
}

// NewStore constructs the backing store selected by the configuration.
func NewStore(cfg Config) (cache.Store, error) {
	if cfg.Redis != nil {
		return redisinfra.NewStore(cfg.Redis.toInternal())
	}
	return cacheinfra.NewMemoryStore(cfg.memoryInternal())
}

func (c Config) memoryInternal() cacheinfra.Config {
	if c.Memory != nil {
		return c.Memory.toInternal()
	}
	return cacheinfra.DefaultConfig()
}

func (c *RedisConfig) toInternal() redisinfra.Config {
	return redisinfra.Config{
		Addrs:        c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

func (c *MemoryConfig) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertMemoryFromInternal(cfg cacheinfra.Config) *MemoryConfig {
	return &MemoryConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
