// Package di wires the query cache's components together: policy resolution,
// the backing store, the entry store, and the invalidator.
package di

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/cachecfg"
	"github.com/goliatone/go-query-cache/policy"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/sqlparse"
)

// Config collects everything the container needs. The zero value is usable:
// in-process backing store, directive-only policy resolution, default
// extractor.
type Config struct {
	// Cache selects and configures the backing store.
	Cache cachecfg.Config

	// Policy configures the resolution engine.
	Policy policy.Settings

	// Extractor overrides the statement parser. Nil selects sqlparse.New.
	Extractor policy.Extractor

	// TagAliases configures the invalidator's bidirectional alias pairs.
	TagAliases map[string]string

	// Logger is shared by every component. Nil selects slog.Default.
	Logger *slog.Logger
}

// Container holds singleton instances of the cache components.
type Container struct {
	resolver    *policy.Resolver
	store       cache.Store
	entries     *querycache.EntryStore
	invalidator *querycache.Invalidator
	keys        cache.KeyBuilder
	instanceID  string
	logger      *slog.Logger
}

// NewContainer builds the component graph. Construction fails fast on
// invalid configuration; nothing in the container performs I/O until used.
func NewContainer(cfg Config) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	instanceID := uuid.NewString()
	logger = logger.With("cache_instance", instanceID)

	extractor := cfg.Extractor
	if extractor == nil {
		extractor = sqlparse.New()
	}

	if cfg.Policy.Logger == nil {
		cfg.Policy.Logger = logger
	}
	resolver, err := policy.NewResolver(cfg.Policy, extractor)
	if err != nil {
		return nil, err
	}

	cacheCfg := cfg.Cache
	if cacheCfg.KeyPrefix == "" && cacheCfg.Redis == nil && cacheCfg.Memory == nil {
		cacheCfg = cachecfg.DefaultConfig()
	}
	store, err := cachecfg.NewStore(cacheCfg)
	if err != nil {
		return nil, err
	}

	entries, err := querycache.NewEntryStore(querycache.StoreConfig{
		Store:     store,
		KeyPrefix: cacheCfg.KeyPrefix,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	invalidator, err := querycache.NewInvalidator(querycache.InvalidatorConfig{
		Store:      store,
		KeyPrefix:  cacheCfg.KeyPrefix,
		TagAliases: cfg.TagAliases,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		resolver:    resolver,
		store:       store,
		entries:     entries,
		invalidator: invalidator,
		keys:        cache.NewDefaultKeyBuilder(),
		instanceID:  instanceID,
		logger:      logger,
	}, nil
}

// Resolver returns the policy resolution engine.
func (c *Container) Resolver() *policy.Resolver { return c.resolver }

// Store returns the backing store, for advanced use cases.
func (c *Container) Store() cache.Store { return c.store }

// Entries returns the entry store.
func (c *Container) Entries() *querycache.EntryStore { return c.entries }

// Invalidator returns the invalidator.
func (c *Container) Invalidator() *querycache.Invalidator { return c.invalidator }

// KeyBuilder returns the logical-key builder.
func (c *Container) KeyBuilder() cache.KeyBuilder { return c.keys }

// InstanceID returns the identifier stamped on this container's log lines.
func (c *Container) InstanceID() string { return c.instanceID }
