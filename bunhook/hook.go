// Package bunhook wires the query cache's invalidation path into the bun
// ORM: after a successful mutating statement, the tables it touched are
// invalidated as dependency tags.
//
// Read-path interception is intentionally not provided; consult the policy
// resolver and EntryStore directly where results are materialized.
package bunhook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/policy"
	"github.com/goliatone/go-query-cache/querycache"
)

// InvalidationHook implements bun.QueryHook.
type InvalidationHook struct {
	invalidator *querycache.Invalidator
	extractor   policy.Extractor
	logger      *slog.Logger
}

var _ bun.QueryHook = (*InvalidationHook)(nil)

// New constructs a hook. Both collaborators are required; construction fails
// rather than the first mutating query.
func New(invalidator *querycache.Invalidator, extractor policy.Extractor, logger *slog.Logger) (*InvalidationHook, error) {
	if invalidator == nil {
		return nil, fmt.Errorf("bunhook: invalidator is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("bunhook: extractor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationHook{
		invalidator: invalidator,
		extractor:   extractor,
		logger:      logger,
	}, nil
}

// BeforeQuery implements bun.QueryHook.
func (h *InvalidationHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook. Invalidation failures are logged, not
// surfaced: the mutation already committed, and entry TTL bounds how long a
// missed invalidation can serve stale data.
func (h *InvalidationHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || !h.extractor.IsMutatingCommand(event.Query) {
		return
	}

	tags := h.extractor.TableNames(event.Query)
	if len(tags) == 0 {
		return
	}

	if err := h.invalidator.InvalidateSets(ctx, tags); err != nil {
		h.logger.Warn("post-mutation invalidation failed", "tables", tags, "error", err)
	}
}
