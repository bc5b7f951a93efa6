// Package routing decides which compute unit a request belongs to.
package routing

import (
	"github.com/leapstack-labs/partql/pkg/ast"
)

// ExtractPartitionKey finds the value a query pins the partition-key column
// to. Only `column = 'literal'` counts; numeric equality never yields a key.
//
// Logical nodes return the left result when it has one and the right result
// otherwise, whether the operator is AND or OR. Under AND this may pick a key
// the other side excludes, and under OR a single matching branch is enough.
// Callers rely on this, so it is kept as is.
//
// It returns an UnsupportedNodeError when node is not a query or has no WHERE
// clause.
func ExtractPartitionKey(node ast.Node, column string) (string, bool, error) {
	q, ok := node.(*ast.Query)
	if !ok || q == nil {
		return "", false, ast.Unsupported(node, "partition key lookup")
	}
	if q.Where == nil {
		return "", false, &ast.UnsupportedNodeError{Kind: ast.KindWhere, Context: "query without where clause"}
	}
	return extract(q.Where.Condition, column)
}

func extract(cond ast.Condition, column string) (string, bool, error) {
	switch c := cond.(type) {
	case *ast.Comparison:
		if c.Op != ast.Equal || c.Column == nil || c.Column.Identifier != column {
			return "", false, nil
		}
		if s, ok := c.Value.(*ast.StringValue); ok {
			return s.Value, true, nil
		}
		return "", false, nil
	case *ast.Logical:
		if key, found, err := extract(c.Left, column); err != nil || found {
			return key, found, err
		}
		return extract(c.Right, column)
	default:
		return "", false, ast.Unsupported(cond, "partition key lookup")
	}
}
