// Package quality scores how complete customer records are and aggregates
// those scores across a population.
//
// Every scoreable attribute is declared once in a Catalog as a FieldDescriptor
// with a typed key and an explicit accessor. The score denominator is always
// derived from the same Catalog used for presence checks, so adding a field
// is a single registry edit.
//
// Functions in this package are pure and safe for concurrent use; a Catalog is
// immutable after construction.
package quality
