// Package tagquery implements the boolean tag-query algebra: its
// expression tree and an evaluation engine with three strategies
// (Matches, FindIn, QuickCount) against a tagstore.Store. The text
// grammar is parsed into this tree by lib/tagparser.
package tagquery

// Kind discriminates the variants of a Query expression tree.
type Kind int

const (
	KindOr Kind = iota
	KindAnd
	KindXor
	KindNot
	KindHasChild
	KindHasDescendant
	KindHasChildWithQuery
	KindHasDescendantWithQuery
)

// Query is the tagged-variant AST node for the tag-query grammar. Which
// fields are meaningful depends on Kind:
//
//	KindOr/KindAnd/KindXor:        Operands
//	KindNot:                       Operands[0]
//	KindHasChild/KindHasDescendant: Name
//	KindHasChildWithQuery/KindHasDescendantWithQuery: Name, Operands[0]
type Query struct {
	Kind     Kind
	Name     string
	Operands []*Query
}

func Or(operands ...*Query) *Query  { return &Query{Kind: KindOr, Operands: operands} }
func And(operands ...*Query) *Query { return &Query{Kind: KindAnd, Operands: operands} }
func Xor(operands ...*Query) *Query { return &Query{Kind: KindXor, Operands: operands} }
func Not(q *Query) *Query           { return &Query{Kind: KindNot, Operands: []*Query{q}} }
func HasChild(name string) *Query   { return &Query{Kind: KindHasChild, Name: name} }
func HasDescendant(name string) *Query {
	return &Query{Kind: KindHasDescendant, Name: name}
}
func HasChildWithQuery(name string, q *Query) *Query {
	return &Query{Kind: KindHasChildWithQuery, Name: name, Operands: []*Query{q}}
}
func HasDescendantWithQuery(name string, q *Query) *Query {
	return &Query{Kind: KindHasDescendantWithQuery, Name: name, Operands: []*Query{q}}
}
