// Package capture holds the Capture catalog: the append-only, indexable
// list of capture descriptors produced as a side effect of query
// compilation. A capture's position in the catalog is its identifier
// ("@N") in the emitted structural query.
package capture

import (
	"math/big"
	"regexp"
)

// Kind discriminates the variant a Capture holds.
type Kind int

const (
	// Display marks a node for rendering; it carries no predicate.
	Display Kind = iota
	// Check requires the captured node's text to equal a literal string.
	Check
	// Variable binds or enforces a metavariable, with an optional regex
	// constraint.
	Variable
	// Number requires the captured node to parse as the given integer.
	Number
	// Subquery makes the captured node the root of a nested compiled query.
	Subquery
)

// RegexConstraint restricts a Variable capture: the captured text must
// (Negated == false) or must not (Negated == true) match Regex.
type RegexConstraint struct {
	Negated bool
	Regex   *regexp.Regexp
}

// Query is the minimal surface Subquery captures need from a compiled
// query, expressed as an interface to avoid an import cycle between
// capture and the package that defines compiled queries.
type Query interface {
	ID() int
}

// Capture is a tagged capture descriptor. Only the fields relevant to Kind
// are populated; this mirrors the Rust source's enum but as a flat struct,
// which is the idiomatic Go shape for a small closed set of variants that
// differ mostly in a single payload field.
type Capture struct {
	Kind Kind

	// Check
	Text string

	// Variable
	Name  string
	Regex *RegexConstraint

	// Number
	Value *big.Int

	// Subquery
	Sub Query
}

// Catalog is an append-only list of captures. The index returned by Add is
// the capture's identifier in the emitted s-expression.
type Catalog struct {
	items []Capture
}

// Add appends c and returns its index.
func (c *Catalog) Add(cap Capture) int {
	c.items = append(c.items, cap)
	return len(c.items) - 1
}

// Len returns the number of captures in the catalog.
func (c *Catalog) Len() int { return len(c.items) }

// At returns the capture at index i.
func (c *Catalog) At(i int) Capture { return c.items[i] }

// Slice returns the underlying captures. Callers must not mutate the
// returned slice's capture values in place.
func (c *Catalog) Slice() []Capture { return c.items }
