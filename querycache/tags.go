package querycache

import (
	"context"
	"strings"
	"unicode"
)

// tagKey builds the storage key of a tag's dependency-index set.
func tagKey(prefix, tag string) string {
	return prefix + "tag:" + NormalizeTag(tag)
}

// normalizeTags normalizes and de-duplicates dependency tags, preserving
// first-occurrence order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := NormalizeTag(tag)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// NormalizeTag converts a dependency tag to snake_case using ASCII-aware
// rules. Tags come from table names, entity type names, and alias tables
// written by hand; aggressively stripping punctuation (pointers, package
// qualifiers, generic suffixes in reflected names) keeps the tag namespace
// consistent between registration and invalidation and produces keys
// Redis accepts.
func NormalizeTag(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if (unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower) && !lastUnderscore {
					b.WriteByte('_')
					lastUnderscore = true
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				if !unicode.IsDigit(prev) && prev != '_' && !lastUnderscore {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r)
			lastUnderscore = false

		case r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}

		case r == '-' || unicode.IsSpace(r):
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}

		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.Trim(b.String(), "_")
}

type dependencyTagsContextKey struct{}

// WithDependencyTags attaches additional dependency tags to the context.
// EntryStore.Put unions them with the tags passed explicitly, so callers a
// few layers above the cache can widen an entry's invalidation scope.
func WithDependencyTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := normalizeTags(append(DependencyTagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, dependencyTagsContextKey{}, combined)
}

// DependencyTagsFromContext returns the tags attached with
// WithDependencyTags. The returned slice is a copy.
func DependencyTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(dependencyTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}
