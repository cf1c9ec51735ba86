// Package policy decides, per executed statement, whether its result should
// be cached and for how long.
//
// Resolution is pure computation over the statement text: it performs no I/O
// and has no side effects beyond diagnostic logging, so it is cheap to
// consult before touching the cache store.
//
// A statement can opt in explicitly by embedding a directive comment:
//
//	-- EFCoreCachePolicy => Absolute||00:30:00||Users,Orders
//	SELECT * FROM users JOIN orders ON ...
//
// Absent a directive, configurable rule sets decide: a deny-list of volatile
// constructs always wins, then a caller-supplied skip predicate, then
// specific-inclusion and specific-exclusion rules matched against the tables
// or entity types the statement references, then an optional catch-all rule.
// See Resolver.Resolve for the exact precedence.
package policy
