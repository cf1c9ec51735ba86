package policy

import (
	"log/slog"
	"strings"

	"github.com/goliatone/go-query-cache/cache"
)

// Resolver is the policy resolution engine. It is side-effect-free apart
// from diagnostic logging and performs no I/O, so it can be consulted for
// every statement before the cache store is touched.
type Resolver struct {
	settings Settings
	parser   *DirectiveParser
	ext      Extractor
	logger   *slog.Logger

	denylist []string // pre-folded for case-insensitive search
	marker   string
}

// NewResolver constructs a Resolver. The extractor is required; settings are
// validated up front so misconfiguration fails at construction, not per
// statement.
func NewResolver(settings Settings, ext Extractor) (*Resolver, error) {
	if ext == nil {
		return nil, &SettingsError{Field: "Extractor", Message: "is required"}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}

	denylist := make([]string, len(settings.denylist()))
	for i, entry := range settings.denylist() {
		denylist[i] = strings.ToLower(entry)
	}

	return &Resolver{
		settings: settings,
		parser:   NewDirectiveParser(settings.DirectiveTag),
		ext:      ext,
		logger:   logger,
		denylist: denylist,
		marker:   settings.notCacheableMarker(),
	}, nil
}

// DirectiveParser returns the parser the resolver uses, so callers can strip
// directive lines before handing statements to the database.
func (r *Resolver) DirectiveParser() *DirectiveParser {
	return r.parser
}

// Resolve produces the effective caching policy for a statement, or nil when
// the statement must not be cached. Precedence, first match wins:
//
//  1. the statement contains a deny-listed volatile construct: nil
//  2. the configured skip predicate vetoes the statement: nil
//  3. a valid embedded directive: its policy, with global-rule overrides
//     applied when the directive is flagged default-cacheable
//  4. the specific-inclusion rule matches: the rule's policy
//  5. the specific-exclusion rule: nil on match, otherwise the rule's policy
//  6. the catch-all rule is enabled: the rule's policy
//  7. otherwise nil
//
// Mutating commands and statements carrying the not-cacheable marker are
// ineligible for rules 4-6 but can still be cached by a directive.
func (r *Resolver) Resolve(text string, known []EntityDescriptor) *Policy {
	if r.containsDenylisted(text) {
		r.logger.Debug("statement contains non-deterministic construct", "statement_hash", cache.Fingerprint(text))
		return nil
	}

	if r.settings.SkipStatement != nil && r.settings.SkipStatement(text) {
		return nil
	}

	if p := r.parser.Parse(text); p != nil {
		return r.applyDefaultCacheableOverrides(p)
	}

	if r.ext.IsMutatingCommand(text) || strings.Contains(text, r.marker) {
		return nil
	}

	names, descriptors := r.extract(text, known)

	if rule := r.settings.CacheSpecific; rule != nil && rule.Enabled {
		if rule.matches(names, descriptors) {
			p := NewBuilder(rule.Mode, rule.Timeout).Build()
			return &p
		}
	}

	if rule := r.settings.SkipSpecific; rule != nil && rule.Enabled {
		if rule.matches(names, descriptors) {
			return nil
		}
		p := NewBuilder(rule.Mode, rule.Timeout).Build()
		return &p
	}

	if rule := r.settings.CacheAll; rule != nil && rule.Enabled {
		p := NewBuilder(rule.Mode, rule.Timeout).Build()
		return &p
	}

	return nil
}

// applyDefaultCacheableOverrides implements the global-rule override for
// directives produced by a default-cacheable-method marker: an active
// catch-all rule's mode and timeout win, else an active specific-inclusion
// rule's values win. Directive dependencies and salt key survive either way.
func (r *Resolver) applyDefaultCacheableOverrides(p *Policy) *Policy {
	if !p.IsDefaultCacheable() {
		return p
	}

	var source *QueryRule
	if rule := r.settings.CacheAll; rule != nil && rule.Enabled {
		source = rule
	} else if rule := r.settings.CacheSpecific; rule != nil && rule.Enabled {
		source = rule
	}
	if source == nil {
		return p
	}

	overridden := NewBuilder(source.Mode, source.Timeout).
		WithSaltKey(p.SaltKey()).
		WithDependencies(p.Dependencies()...).
		WithDefaultCacheable(true).
		Build()
	return &overridden
}

func (r *Resolver) containsDenylisted(text string) bool {
	folded := strings.ToLower(text)
	for _, entry := range r.denylist {
		if strings.Contains(folded, entry) {
			return true
		}
	}
	return false
}

// extract consults the extractor only for the signals an enabled rule will
// actually test.
func (r *Resolver) extract(text string, known []EntityDescriptor) ([]string, []EntityDescriptor) {
	var names []string
	var descriptors []EntityDescriptor

	if r.settings.CacheSpecific.wantsTables() || r.settings.SkipSpecific.wantsTables() {
		names = r.ext.TableNames(text)
	}
	if r.settings.CacheSpecific.wantsEntities() || r.settings.SkipSpecific.wantsEntities() {
		descriptors = r.ext.EntityDescriptors(text, known)
	}

	return names, descriptors
}
