package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-query-cache/cache"
)

// InvalidatorConfig configures an Invalidator.
type InvalidatorConfig struct {
	// Store is the backing store. Required; must be the same store (and
	// prefix) the EntryStore writes through.
	Store cache.Store

	// KeyPrefix namespaces storage keys and tag-set keys.
	KeyPrefix string

	// TagAliases maps legacy table names to their current names (or the
	// reverse). Each pair is expanded bidirectionally, so invalidating
	// either name also invalidates the other.
	TagAliases map[string]string

	// Logger receives best-effort failure reports. Nil selects slog.Default.
	Logger *slog.Logger

	// DetachTimeout bounds each fire-and-forget store call. Zero selects
	// five seconds.
	DetachTimeout time.Duration
}

// Invalidator performs cascading, set-based invalidation over the
// dependency index.
type Invalidator struct {
	store   cache.Store
	prefix  string
	aliases map[string][]string
	logger  *slog.Logger

	detach        func(op string, fn func(context.Context) error)
	detachTimeout time.Duration
}

// NewInvalidator constructs an Invalidator.
func NewInvalidator(cfg InvalidatorConfig) (*Invalidator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("querycache: InvalidatorConfig.Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.DetachTimeout
	if timeout <= 0 {
		timeout = defaultDetachTimeout
	}

	inv := &Invalidator{
		store:         cfg.Store,
		prefix:        cfg.KeyPrefix,
		aliases:       expandAliases(cfg.TagAliases),
		logger:        logger,
		detachTimeout: timeout,
	}
	inv.detach = inv.detached
	return inv, nil
}

// InvalidateSets removes every cache entry depending on any of the given
// tags. The tag set is first widened with configured aliases; each expanded
// tag's index membership is read and its index set deleted, then every
// collected member entry is invalidated. Tags with no members are a safe
// no-op. Per-tag read failures are logged and skipped so one unreachable
// set does not abort the rest of the cascade.
func (inv *Invalidator) InvalidateSets(ctx context.Context, tags []string) error {
	pending := make(map[string]struct{})

	for _, tag := range inv.expandTags(tags) {
		setKey := tagKey(inv.prefix, tag)

		members, err := inv.store.SetMembers(ctx, setKey)
		if err != nil {
			inv.logger.Warn("dependency set unreadable, skipping", "tag", tag, "error", err)
			continue
		}
		for _, member := range members {
			pending[member] = struct{}{}
		}

		if err := inv.store.Delete(ctx, setKey); err != nil {
			inv.logger.Warn("dependency set delete failed", "tag", tag, "error", err)
		}
	}

	keys := make([]string, 0, len(pending))
	for key := range pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var firstErr error
	for _, key := range keys {
		if err := inv.InvalidateItem(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// InvalidateItem removes the entry at the given storage key and cleans this
// key out of every tag set the entry was registered under. A missing entry
// is a no-op: the index member was stale, which the design tolerates. The
// entry delete is awaited; the index cleanup is fire-and-forget.
func (inv *Invalidator) InvalidateItem(ctx context.Context, storageKey string) error {
	raw, err := inv.store.Get(ctx, storageKey)
	if err == cache.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querycache: read entry for invalidation: %w", err)
	}

	var entry Entry
	decodeErr := msgpack.Unmarshal(raw, &entry)
	if decodeErr != nil {
		// A corrupt entry still has to go; only its index links are lost.
		inv.logger.Warn("corrupt entry during invalidation",
			"key_hash", cache.Fingerprint(storageKey), "error", decodeErr)
	}

	if err := inv.store.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("querycache: delete entry: %w", err)
	}

	for _, tag := range entry.EntitySets {
		setKey := tagKey(inv.prefix, tag)
		inv.detach("clean-dependency-set", func(ctx context.Context) error {
			return inv.store.SetRemove(ctx, setKey, storageKey)
		})
	}

	return nil
}

// ClearAll removes cached state wholesale. With a pattern, every matching
// key goes. Without one, a store on the default logical database is cleared
// by prefix so unrelated keys survive; a store on a dedicated database is
// flushed outright. Best effort: failures are logged, and the returned
// error is informational.
func (inv *Invalidator) ClearAll(ctx context.Context, pattern string) error {
	err := inv.clearAll(ctx, pattern)
	if err != nil {
		inv.logger.Warn("cache clear failed", "pattern", pattern, "error", err)
	}
	return err
}

func (inv *Invalidator) clearAll(ctx context.Context, pattern string) error {
	if pattern == "" {
		if scoped, ok := inv.store.(cache.DatabaseScoped); ok && scoped.LogicalDB() != 0 {
			return inv.store.FlushDB(ctx)
		}
		// The prefix is data, not a pattern; escape it so a prefix carrying
		// glob metacharacters cannot over- or under-match.
		pattern = escapeGlob(inv.prefix) + "*"
	}

	keys, err := inv.store.Scan(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return inv.store.Delete(ctx, keys...)
}

// expandTags normalizes the requested tags and widens them with aliases.
func (inv *Invalidator) expandTags(tags []string) []string {
	normalized := normalizeTags(tags)
	out := make([]string, 0, len(normalized)*2)
	seen := make(map[string]struct{}, len(normalized)*2)

	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, tag := range normalized {
		add(tag)
		for _, alias := range inv.aliases[tag] {
			add(alias)
		}
	}
	return out
}

func (inv *Invalidator) detached(op string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), inv.detachTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			inv.logger.Warn("detached cache operation failed", "op", op, "error", err)
		}
	}()
}

// escapeGlob backslash-escapes the glob metacharacters Redis MATCH honors.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// expandAliases normalizes the configured pairs and makes them
// bidirectional.
func expandAliases(pairs map[string]string) map[string][]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string][]string, len(pairs)*2)
	for from, to := range pairs {
		a, b := NormalizeTag(from), NormalizeTag(to)
		if a == "" || b == "" || a == b {
			continue
		}
		out[a] = append(out[a], b)
		out[b] = append(out[b], a)
	}
	return out
}
