package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Directive wire format. A directive is a single comment line embedded in
// statement text:
//
//	-- <tag> => <mode>||<timeout>[||<saltKey>][||<dep1>,<dep2>...][||<bool>]
//
// A third field that contains the dependency separator is read as the
// dependency list with an empty salt key, so the common short form
// "Absolute||00:30:00||Users,Orders" works without spelling out the salt.
const (
	// DefaultDirectiveTag marks a policy directive line. The tag is kept
	// compatible with the EF Core second-level-cache comment format so
	// mixed-stack deployments can share statements.
	DefaultDirectiveTag = "EFCoreCachePolicy"

	directiveSeparator  = "=>"
	partsSeparator      = "||"
	dependencySeparator = ","
)

// DirectiveParser detects, strips, and parses an embedded policy directive.
type DirectiveParser struct {
	tag string
}

// NewDirectiveParser creates a parser for the given tag marker. An empty tag
// selects DefaultDirectiveTag.
func NewDirectiveParser(tag string) *DirectiveParser {
	if tag == "" {
		tag = DefaultDirectiveTag
	}
	return &DirectiveParser{tag: tag}
}

// Tag returns the configured tag marker.
func (p *DirectiveParser) Tag() string { return p.tag }

// HasDirective reports whether the tag marker appears anywhere in text.
func (p *DirectiveParser) HasDirective(text string) bool {
	return strings.Contains(text, p.tag)
}

// StripDirective removes the directive line, its line terminator, and one
// immediately following blank line if present (ORMs that inject the tag
// comment tend to leave a double line break behind). It is a no-op when the
// marker is absent, which also makes it idempotent.
func (p *DirectiveParser) StripDirective(text string) string {
	idx := strings.Index(text, p.tag)
	if idx < 0 {
		return text
	}

	lineStart := strings.LastIndexByte(text[:idx], '\n') + 1

	lineEnd := strings.IndexByte(text[idx:], '\n')
	if lineEnd < 0 {
		return text[:lineStart]
	}
	lineEnd += idx + 1 // keep nothing of the terminator

	rest := text[lineEnd:]
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}

	return text[:lineStart] + rest
}

// Parse extracts the first directive line from text and parses it into a
// Policy. It returns nil whenever the line is absent or malformed; a broken
// directive falls back to rule-based resolution rather than failing the
// statement.
func (p *DirectiveParser) Parse(text string) *Policy {
	idx := strings.Index(text, p.tag)
	if idx < 0 {
		return nil
	}

	line := text[idx:]
	if end := strings.IndexAny(line, "\r\n"); end >= 0 {
		line = line[:end]
	}

	// Exactly tag and options; a stray separator inside the options blob
	// makes the directive ambiguous and therefore invalid.
	halves := strings.Split(line, directiveSeparator)
	if len(halves) != 2 {
		return nil
	}

	fields := strings.Split(strings.TrimSpace(halves[1]), partsSeparator)
	if len(fields) < 2 {
		return nil
	}

	mode, err := ParseExpirationMode(fields[0])
	if err != nil {
		return nil
	}

	timeout, err := ParseTimeout(fields[1])
	if err != nil {
		return nil
	}

	salt := ""
	var deps []string
	if len(fields) >= 3 {
		third := strings.TrimSpace(fields[2])
		if len(fields) == 3 && strings.Contains(third, dependencySeparator) {
			deps = splitDependencies(third)
		} else {
			salt = third
		}
	}
	if len(fields) >= 4 {
		deps = splitDependencies(fields[3])
	}

	isDefault := false
	if len(fields) >= 5 {
		if v, err := strconv.ParseBool(strings.TrimSpace(fields[4])); err == nil {
			isDefault = v
		}
	}

	return buildPolicy(mode, timeout, salt, deps, isDefault)
}

func buildPolicy(mode ExpirationMode, timeout time.Duration, salt string, deps []string, isDefault bool) *Policy {
	p := NewBuilder(mode, timeout).
		WithSaltKey(salt).
		WithDependencies(deps...).
		WithDefaultCacheable(isDefault).
		Build()
	return &p
}

func splitDependencies(s string) []string {
	parts := strings.Split(s, dependencySeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseTimeout parses a directive timeout. Both the invariant "[d.]HH:MM:SS"
// form and Go duration strings ("30m", "1h30m") are accepted.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("policy: empty timeout")
	}

	if strings.Contains(s, ":") {
		return parseClockTimeout(s)
	}
	return time.ParseDuration(s)
}

func parseClockTimeout(s string) (time.Duration, error) {
	days := int64(0)
	rest := s

	if dot := strings.IndexByte(s, '.'); dot > 0 && strings.Contains(s[dot:], ":") {
		d, err := strconv.ParseInt(s[:dot], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("policy: invalid timeout %q", s)
		}
		days = d
		rest = s[dot+1:]
	}

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("policy: invalid timeout %q", s)
	}

	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, fmt.Errorf("policy: invalid timeout %q", s)
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}
