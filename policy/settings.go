package policy

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultNotCacheableMarker is the sentinel substring that suppresses
// rule-based caching for a statement. An explicit directive still wins.
const DefaultNotCacheableMarker = "IsNotCacheable"

// DefaultDenylist lists volatile constructs whose presence makes a statement
// non-deterministic and therefore never cacheable, plus the migration-history
// tables of common tooling. Matching is case-insensitive substring search.
var DefaultDenylist = []string{
	"NEWID()",
	"NEWSEQUENTIALID()",
	"GETDATE()",
	"GETUTCDATE()",
	"SYSDATETIME()",
	"SYSUTCDATETIME()",
	"SYSDATETIMEOFFSET()",
	"CURRENT_TIMESTAMP",
	"NOW()",
	"RAND()",
	"RANDOM()",
	"UUID()",
	"GEN_RANDOM_UUID()",
	"__EFMigrationsHistory",
	"schema_migrations",
	"goose_db_version",
}

// QueryRule configures one rule-based policy source. The same shape serves
// the catch-all rule (matchers ignored), the specific-inclusion rule (match
// means cache), and the specific-exclusion rule (match means never cache).
// When both matchers are set they are tried in order: tables, then entities.
type QueryRule struct {
	Enabled bool

	// Mode and Timeout become the policy values when the rule decides to
	// cache. Rule-produced policies carry no dependencies and no salt.
	Mode    ExpirationMode
	Timeout time.Duration

	// TableNames matches against the table names the statement references.
	TableNames *NameMatcher

	// EntityTypes matches against the fully qualified names of the entity
	// descriptors the statement references.
	EntityTypes *NameMatcher
}

func (r *QueryRule) matches(names []string, descriptors []EntityDescriptor) bool {
	if r.TableNames != nil && r.TableNames.Match(names) {
		return true
	}
	if r.EntityTypes != nil {
		typeNames := make([]string, len(descriptors))
		for i, d := range descriptors {
			typeNames[i] = d.Name
		}
		return r.EntityTypes.Match(typeNames)
	}
	return false
}

func (r *QueryRule) wantsTables() bool {
	return r != nil && r.Enabled && r.TableNames != nil
}

func (r *QueryRule) wantsEntities() bool {
	return r != nil && r.Enabled && r.EntityTypes != nil
}

// Settings configures the resolution engine.
type Settings struct {
	// DirectiveTag overrides the directive marker. Empty selects
	// DefaultDirectiveTag.
	DirectiveTag string

	// NotCacheableMarker overrides the rule-suppressing sentinel. Empty
	// selects DefaultNotCacheableMarker.
	NotCacheableMarker string

	// Denylist overrides the volatile-construct list. Nil selects
	// DefaultDenylist; an explicit empty slice disables the check.
	Denylist []string

	// SkipStatement, when set, vetoes caching for any statement it returns
	// true for. It runs after the deny-list and before the directive parse.
	SkipStatement func(text string) bool

	// CacheAll caches every non-mutating, unmarked statement.
	CacheAll *QueryRule

	// CacheSpecific caches statements whose referenced names match.
	CacheSpecific *QueryRule

	// SkipSpecific caches by default but never caches statements whose
	// referenced names match.
	SkipSpecific *QueryRule

	// Logger receives debug output from resolution. Nil selects
	// slog.Default.
	Logger *slog.Logger
}

// DefaultSettings returns Settings with every rule disabled: only explicit
// directives produce policies.
func DefaultSettings() Settings {
	return Settings{
		DirectiveTag:       DefaultDirectiveTag,
		NotCacheableMarker: DefaultNotCacheableMarker,
		Denylist:           DefaultDenylist,
	}
}

// Validate checks the settings for construction-time errors: an enabled rule
// must carry a positive timeout, and specific rules need at least one
// matcher.
func (s Settings) Validate() error {
	for _, rule := range []struct {
		name string
		r    *QueryRule
	}{
		{"CacheAll", s.CacheAll},
		{"CacheSpecific", s.CacheSpecific},
		{"SkipSpecific", s.SkipSpecific},
	} {
		if rule.r == nil || !rule.r.Enabled {
			continue
		}
		if err := validation.Validate(int64(rule.r.Timeout), validation.Required, validation.Min(int64(1))); err != nil {
			return &SettingsError{Field: rule.name + ".Timeout", Message: "must be a positive duration"}
		}
		if rule.name != "CacheAll" && rule.r.TableNames == nil && rule.r.EntityTypes == nil {
			return &SettingsError{Field: rule.name, Message: "needs a TableNames or EntityTypes matcher"}
		}
	}
	return nil
}

func (s Settings) denylist() []string {
	if s.Denylist == nil {
		return DefaultDenylist
	}
	return s.Denylist
}

func (s Settings) notCacheableMarker() string {
	if s.NotCacheableMarker == "" {
		return DefaultNotCacheableMarker
	}
	return s.NotCacheableMarker
}

// SettingsError reports an invalid Settings field at construction time.
type SettingsError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *SettingsError) Error() string {
	return "policy settings error in field " + e.Field + ": " + e.Message
}
