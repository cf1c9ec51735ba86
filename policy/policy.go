package policy

import (
	"fmt"
	"strings"
	"time"
)

// ExpirationMode selects how a cached entry's time-to-live behaves.
type ExpirationMode int

const (
	// Absolute entries expire a fixed duration after they are stored.
	Absolute ExpirationMode = iota
	// Sliding entries have their expiration re-armed on every read.
	Sliding
)

// String returns the canonical directive spelling of the mode.
func (m ExpirationMode) String() string {
	switch m {
	case Absolute:
		return "Absolute"
	case Sliding:
		return "Sliding"
	default:
		return fmt.Sprintf("ExpirationMode(%d)", int(m))
	}
}

// ParseExpirationMode parses a mode name case-insensitively.
func ParseExpirationMode(s string) (ExpirationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "absolute":
		return Absolute, nil
	case "sliding":
		return Sliding, nil
	default:
		return Absolute, fmt.Errorf("policy: unknown expiration mode %q", s)
	}
}

// Policy is the effective caching decision for one statement. It is
// immutable once built; construct one through Builder.
type Policy struct {
	mode               ExpirationMode
	timeout            time.Duration
	saltKey            string
	dependencies       []string
	isDefaultCacheable bool
}

// Mode returns the expiration mode.
func (p Policy) Mode() ExpirationMode { return p.mode }

// Timeout returns the cache duration.
func (p Policy) Timeout() time.Duration { return p.timeout }

// SaltKey returns the salt that disambiguates otherwise identical statement
// text, e.g. the same query shape executed with different tenant scoping.
func (p Policy) SaltKey() string { return p.saltKey }

// Dependencies returns the logical tags this policy's entries depend on, in
// declaration order. The returned slice is a copy.
func (p Policy) Dependencies() []string {
	return append([]string(nil), p.dependencies...)
}

// IsDefaultCacheable reports whether the policy came from a
// default-cacheable-method marker rather than an explicit per-statement
// choice. Global rules may override the mode and timeout of such policies.
func (p Policy) IsDefaultCacheable() bool { return p.isDefaultCacheable }

// Builder assembles a Policy incrementally. The zero Builder produces an
// Absolute policy with a zero timeout; chain the With methods to fill it in.
type Builder struct {
	p Policy
}

// NewBuilder returns a Builder seeded with mode and timeout, the two fields
// every policy needs.
func NewBuilder(mode ExpirationMode, timeout time.Duration) *Builder {
	return &Builder{p: Policy{mode: mode, timeout: timeout}}
}

// WithMode sets the expiration mode.
func (b *Builder) WithMode(mode ExpirationMode) *Builder {
	b.p.mode = mode
	return b
}

// WithTimeout sets the cache duration.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.p.timeout = timeout
	return b
}

// WithSaltKey sets the salt key.
func (b *Builder) WithSaltKey(salt string) *Builder {
	b.p.saltKey = salt
	return b
}

// WithDependencies sets the dependency tags. Duplicates are dropped, first
// occurrence wins, original order is preserved.
func (b *Builder) WithDependencies(deps ...string) *Builder {
	b.p.dependencies = dedupe(deps)
	return b
}

// WithDefaultCacheable flags the policy as coming from a
// default-cacheable-method marker.
func (b *Builder) WithDefaultCacheable(v bool) *Builder {
	b.p.isDefaultCacheable = v
	return b
}

// Build returns the assembled Policy.
func (b *Builder) Build() Policy {
	p := b.p
	p.dependencies = append([]string(nil), b.p.dependencies...)
	return p
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
