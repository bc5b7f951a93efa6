package ast

import (
	"strconv"
	"strings"
)

// Format renders a node back to query text. Logical nodes are printed without
// parentheses, which matches how the parser splits conditions, so parsing the
// output of Format yields the same tree.
func Format(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Query:
		writeNode(b, n.Select)
		if n.Where != nil {
			b.WriteByte(' ')
			writeNode(b, n.Where)
		}
	case *Select:
		b.WriteString("SELECT ")
		for i, c := range n.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, c)
		}
		if n.From != nil {
			b.WriteByte(' ')
			writeNode(b, n.From)
		}
	case *From:
		b.WriteString("FROM ")
		b.WriteString(n.Table)
	case *Column:
		b.WriteString(n.Identifier)
	case *Where:
		b.WriteString("WHERE ")
		writeNode(b, n.Condition)
	case *Logical:
		writeNode(b, n.Left)
		if n.Op == And {
			b.WriteString(" AND ")
		} else {
			b.WriteString(" OR ")
		}
		writeNode(b, n.Right)
	case *Comparison:
		writeNode(b, n.Column)
		b.WriteByte(' ')
		b.WriteString(opSymbols[n.Op])
		b.WriteByte(' ')
		writeNode(b, n.Value)
	case *StringValue:
		b.WriteByte('\'')
		b.WriteString(n.Value)
		b.WriteByte('\'')
	case *NumberValue:
		b.WriteString(strconv.FormatInt(n.Value, 10))
	}
}

var opSymbols = map[ComparisonOp]string{
	Equal:       "=",
	GreaterThan: ">",
	LessThan:    "<",
}

// Symbol returns the query-language symbol of the operator.
func (op ComparisonOp) Symbol() string {
	return opSymbols[op]
}
