package policy

import "strings"

// PredicateKind selects how a rule's configured names are tested against the
// names a statement references. All comparisons are case-insensitive.
type PredicateKind int

const (
	// Contains matches when any configured name is present in the
	// referenced set.
	Contains PredicateKind = iota
	// DoesNotContain matches when any configured name is absent from the
	// referenced set.
	DoesNotContain
	// EndsWith matches when any referenced name has a configured suffix.
	EndsWith
	// StartsWith matches when any referenced name has a configured prefix.
	StartsWith
	// ContainsEvery matches when the referenced set equals the configured
	// set, independent of order.
	ContainsEvery
	// DoesNotContainEvery is the negation of ContainsEvery.
	DoesNotContainEvery
	// ContainsOnly matches when every referenced name is present in the
	// configured set; the referenced set may be a subset.
	ContainsOnly
)

// NameMatcher pairs a predicate kind with the configured names it tests.
type NameMatcher struct {
	Kind  PredicateKind
	Names []string
}

// Match tests the referenced names against the matcher. An empty referenced
// set or an empty configured set never matches: the rules never decide to
// cache, or not to, based on an empty signal.
func (m NameMatcher) Match(referenced []string) bool {
	if len(m.Names) == 0 || len(referenced) == 0 {
		return false
	}

	have := foldSet(referenced)
	want := foldSet(m.Names)

	switch m.Kind {
	case Contains:
		for name := range want {
			if _, ok := have[name]; ok {
				return true
			}
		}
		return false

	case DoesNotContain:
		for name := range want {
			if _, ok := have[name]; !ok {
				return true
			}
		}
		return false

	case EndsWith:
		return anyAffix(referenced, m.Names, strings.HasSuffix)

	case StartsWith:
		return anyAffix(referenced, m.Names, strings.HasPrefix)

	case ContainsEvery:
		return setEqual(have, want)

	case DoesNotContainEvery:
		return !setEqual(have, want)

	case ContainsOnly:
		for name := range have {
			if _, ok := want[name]; !ok {
				return false
			}
		}
		return true
	}

	return false
}

func foldSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func anyAffix(referenced, configured []string, test func(s, affix string) bool) bool {
	for _, ref := range referenced {
		folded := strings.ToLower(ref)
		for _, cfg := range configured {
			if test(folded, strings.ToLower(cfg)) {
				return true
			}
		}
	}
	return false
}
