package policy

// EntityDescriptor identifies a mapped entity. Name is fully qualified
// (package path plus type name) so descriptors order and compare
// deterministically; TableName is the relation the entity maps to.
type EntityDescriptor struct {
	Name      string
	TableName string
}

// Extractor is the black-box statement parser the resolver consults. The
// sqlparse package provides a token-scanning implementation; callers with a
// real SQL parser at hand can substitute their own.
type Extractor interface {
	// IsMutatingCommand reports whether text creates, updates, or deletes
	// data. Mutating commands are never cached by rule-based resolution.
	IsMutatingCommand(text string) bool

	// TableNames returns the table names text references, in order of first
	// appearance, without duplicates.
	TableNames(text string) []string

	// EntityDescriptors returns the descriptors from known whose tables text
	// references.
	EntityDescriptors(text string, known []EntityDescriptor) []EntityDescriptor
}
