// Package ast defines the abstract syntax tree shared by the gateway and the
// compute units.
//
// The node set is closed: every variant implements Node through an unexported
// marker method, so only this package can add variants. Consumers dispatch with
// a type switch and report anything else as an UnsupportedNodeError.
//
// Trees cross process boundaries as JSON. Every node object carries a "$type"
// discriminator and the root carries the wire version:
//
//	{"$type":"query","version":1,
//	 "select":{"$type":"select","columns":[{"$type":"column","identifier":"*"}],
//	           "from":{"$type":"from","table":"pets"}},
//	 "where":{"$type":"where","node":{"$type":"comparison","operation":"Equal",
//	          "column":{"$type":"column","identifier":"owner"},
//	          "value":{"$type":"string","value":"bob"}}}}
package ast

// WireVersion is the version of the JSON contract between gateway and units.
// Bump it whenever a variant or field changes.
const WireVersion = 1

// Wildcard is the column identifier that selects every key.
const Wildcard = "*"

// Kind is the discriminator of a node variant.
type Kind string

// Node kinds. These are the "$type" values of the wire format.
const (
	KindQuery      Kind = "query"
	KindSelect     Kind = "select"
	KindFrom       Kind = "from"
	KindColumn     Kind = "column"
	KindWhere      Kind = "where"
	KindLogical    Kind = "logical"
	KindComparison Kind = "comparison"
	KindString     Kind = "string"
	KindNumber     Kind = "number"
)

// Kinds lists every node kind.
var Kinds = []Kind{
	KindQuery, KindSelect, KindFrom, KindColumn, KindWhere,
	KindLogical, KindComparison, KindString, KindNumber,
}

// Node is any AST node.
type Node interface {
	Kind() Kind
	node()
}

// Condition is a boolean-producing node: *Logical or *Comparison.
type Condition interface {
	Node
	condition()
}

// Value is a literal operand: *StringValue or *NumberValue.
type Value interface {
	Node
	value()
}

// Query is the root of every tree.
type Query struct {
	Select *Select
	Where  *Where // nil when the query has no WHERE clause
}

// Select holds the projected columns and the source table.
type Select struct {
	Columns []*Column
	From    *From
}

// From names the logical container being queried.
type From struct {
	Table string
}

// Column references a document key, or Wildcard.
type Column struct {
	Identifier string
}

// IsWildcard reports whether the column is "*".
func (c *Column) IsWildcard() bool {
	return c.Identifier == Wildcard
}

// Where wraps the filter condition.
type Where struct {
	Condition Condition
}

// LogicalOp is the operator of a Logical node.
type LogicalOp string

// Logical operators.
const (
	And LogicalOp = "And"
	Or  LogicalOp = "Or"
)

// Logical combines two conditions.
type Logical struct {
	Op    LogicalOp
	Left  Condition
	Right Condition
}

// ComparisonOp is the operator of a Comparison node.
type ComparisonOp string

// Comparison operators.
const (
	Equal       ComparisonOp = "Equal"
	GreaterThan ComparisonOp = "GreaterThan"
	LessThan    ComparisonOp = "LessThan"
)

// Comparison compares a document key against a literal.
type Comparison struct {
	Op     ComparisonOp
	Column *Column
	Value  Value
}

// StringValue is a quoted literal.
type StringValue struct {
	Value string
}

// NumberValue is an integer literal.
type NumberValue struct {
	Value int64
}

func (*Query) Kind() Kind       { return KindQuery }
func (*Select) Kind() Kind      { return KindSelect }
func (*From) Kind() Kind        { return KindFrom }
func (*Column) Kind() Kind      { return KindColumn }
func (*Where) Kind() Kind       { return KindWhere }
func (*Logical) Kind() Kind     { return KindLogical }
func (*Comparison) Kind() Kind  { return KindComparison }
func (*StringValue) Kind() Kind { return KindString }
func (*NumberValue) Kind() Kind { return KindNumber }

func (*Query) node()       {}
func (*Select) node()      {}
func (*From) node()        {}
func (*Column) node()      {}
func (*Where) node()       {}
func (*Logical) node()     {}
func (*Comparison) node()  {}
func (*StringValue) node() {}
func (*NumberValue) node() {}

func (*Logical) condition()    {}
func (*Comparison) condition() {}

func (*StringValue) value() {}
func (*NumberValue) value() {}

// ColumnNames returns the identifiers of the selected columns in order.
func (s *Select) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Identifier
	}
	return names
}
