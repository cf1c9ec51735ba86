// Package sqlparse provides the default entity-reference extractor: a
// token-scanning implementation of policy.Extractor that needs no SQL
// dialect knowledge beyond where table names appear.
package sqlparse

import (
	"regexp"
	"strings"

	"github.com/goliatone/go-query-cache/policy"
)

var (
	// tableRefs captures the identifier following the clauses that
	// introduce a table reference.
	tableRefs = regexp.MustCompile(`(?is)\b(?:from|join|into|update|delete\s+from|truncate\s+table)\s+([\w."\x60\[\]]+)`)

	// firstKeyword finds the first word of each statement line so comment
	// lines can be skipped when classifying the command.
	firstKeyword = regexp.MustCompile(`(?i)^[\s(]*([a-z]+)`)

	// cteMutation matches a top-level mutating keyword after a CTE body.
	cteMutation = regexp.MustCompile(`(?is)\)\s*(?:insert|update|delete|merge|replace|truncate)\b`)
)

var mutatingKeywords = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"merge":    {},
	"replace":  {},
	"truncate": {},
}

// Extractor implements policy.Extractor over raw statement text.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

var _ policy.Extractor = (*Extractor)(nil)

// IsMutatingCommand classifies text as a create/update/delete command by its
// leading keyword, ignoring comment lines and a leading CTE.
func (e *Extractor) IsMutatingCommand(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		m := firstKeyword.FindStringSubmatch(trimmed)
		if m == nil {
			return false
		}
		keyword := strings.ToLower(m[1])

		// WITH introduces a CTE; the statement kind is decided by the
		// keyword after the CTE body.
		if keyword == "with" {
			return e.cteIsMutating(text)
		}

		_, ok := mutatingKeywords[keyword]
		return ok
	}
	return false
}

// cteIsMutating looks for a mutating keyword at the top level after a CTE
// prefix. A full parse is out of scope; matching ") <keyword>" covers the
// common data-modifying CTE shapes.
func (e *Extractor) cteIsMutating(text string) bool {
	return cteMutation.MatchString(text)
}

// TableNames returns the referenced table names in order of first
// appearance, unquoted, without duplicates. Schema qualifiers are dropped so
// names line up with entity table names and dependency tags.
func (e *Extractor) TableNames(text string) []string {
	matches := tableRefs.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := normalizeIdentifier(m[1])
		if name == "" {
			continue
		}
		folded := strings.ToLower(name)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		names = append(names, name)
	}
	return names
}

// EntityDescriptors returns the known descriptors whose table names the
// statement references.
func (e *Extractor) EntityDescriptors(text string, known []policy.EntityDescriptor) []policy.EntityDescriptor {
	names := e.TableNames(text)
	if len(names) == 0 || len(known) == 0 {
		return nil
	}

	referenced := make(map[string]struct{}, len(names))
	for _, n := range names {
		referenced[strings.ToLower(n)] = struct{}{}
	}

	var out []policy.EntityDescriptor
	for _, d := range known {
		if _, ok := referenced[strings.ToLower(d.TableName)]; ok {
			out = append(out, d)
		}
	}
	return out
}

// normalizeIdentifier strips quoting characters and schema qualifiers from a
// captured table reference.
func normalizeIdentifier(raw string) string {
	cleaned := strings.Trim(raw, "`\"[]")
	if dot := strings.LastIndexByte(cleaned, '.'); dot >= 0 {
		cleaned = cleaned[dot+1:]
	}
	return strings.Trim(cleaned, "`\"[]")
}
