// Package triple holds the in-memory subject-predicate-object graph that
// condawatch accumulates. Objects are either literals or references; subjects
// and predicates are always references.
package triple

import "strings"

// Kind distinguishes the two shapes a Term can take.
type Kind int

const (
	KindReference Kind = iota // IRI such as urn:numpy or cw:command
	KindLiteral               // plain string value
)

// Term is a node in the graph: Literal(string) | Reference(iri).
// The zero value is an empty reference and matches nothing in a Graph.
type Term struct {
	kind  Kind
	value string
}

// Ref returns a reference term for iri.
func Ref(iri string) Term { return Term{kind: KindReference, value: iri} }

// Lit returns a literal term holding s.
func Lit(s string) Term { return Term{kind: KindLiteral, value: s} }

// URN builds the urn:<id> reference used for observations, environments and
// packages. Spaces in id become underscores.
func URN(id string) Term {
	return Ref("urn:" + strings.ReplaceAll(id, " ", "_"))
}

// Kind reports whether t is a literal or a reference.
func (t Term) Kind() Kind { return t.kind }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.kind == KindLiteral }

// Value returns the IRI of a reference or the lexical form of a literal.
func (t Term) Value() string { return t.value }

// String returns the textual form used for sorting and display. Literals and
// references with the same text print identically.
func (t Term) String() string { return t.value }

// IsZero reports whether t is the zero Term.
func (t Term) IsZero() bool { return t == Term{} }

// Triple is one statement in the graph.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Less orders triples by the textual form of subject, predicate and object.
// Kind breaks ties so that the order is total.
func (t Triple) Less(o Triple) bool {
	if t.Subject.value != o.Subject.value {
		return t.Subject.value < o.Subject.value
	}
	if t.Predicate.value != o.Predicate.value {
		return t.Predicate.value < o.Predicate.value
	}
	if t.Object.value != o.Object.value {
		return t.Object.value < o.Object.value
	}
	return t.Object.kind < o.Object.kind
}
