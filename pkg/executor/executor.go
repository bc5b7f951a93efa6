// Package executor evaluates a query tree against JSON documents.
//
// Filter is what a compute unit runs for every query: it keeps the documents
// matching the WHERE condition and then prunes keys that were not selected.
// Pruning mutates the documents in place, so a result set must not be fed to
// another query.
package executor

import (
	"bytes"
	"encoding/json"

	"github.com/leapstack-labs/partql/pkg/ast"
)

// Document is a stored JSON object. Values stay encoded until a comparison
// needs them.
type Document map[string]json.RawMessage

// Filter returns the documents of docs that satisfy node's WHERE condition,
// projected to its selected columns.
//
// The key set of the first matching document decides which keys are removed;
// every other document loses the same keys regardless of its own shape.
// An empty input yields an empty result without looking at node.
func Filter(docs []Document, node ast.Node) ([]Document, error) {
	result := make([]Document, 0, len(docs))
	if len(docs) == 0 {
		return result, nil
	}

	q, ok := node.(*ast.Query)
	if !ok || q == nil {
		return nil, ast.Unsupported(node, "query root")
	}
	if q.Select == nil {
		return nil, &ast.UnsupportedNodeError{Kind: ast.KindQuery, Context: "query without select"}
	}

	for _, doc := range docs {
		if q.Where != nil {
			keep, err := evaluate(doc, q.Where.Condition)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		result = append(result, doc)
	}

	project(result, q.Select.Columns)
	return result, nil
}

func evaluate(doc Document, cond ast.Condition) (bool, error) {
	switch c := cond.(type) {
	case *ast.Logical:
		left, err := evaluate(doc, c.Left)
		if err != nil {
			return false, err
		}
		switch c.Op {
		case ast.And:
			if !left {
				return false, nil
			}
		case ast.Or:
			if left {
				return true, nil
			}
		default:
			return false, &ast.UnsupportedNodeError{Kind: ast.KindLogical, Context: "operator " + string(c.Op)}
		}
		return evaluate(doc, c.Right)
	case *ast.Comparison:
		return compare(doc, c)
	default:
		return false, ast.Unsupported(cond, "where condition")
	}
}

func compare(doc Document, c *ast.Comparison) (bool, error) {
	if c.Column == nil || c.Value == nil {
		return false, &ast.UnsupportedNodeError{Kind: ast.KindComparison, Context: "incomplete comparison"}
	}
	field := c.Column.Identifier

	raw, ok := doc[field]
	if !ok {
		return false, &FieldError{Field: field, Want: c.Value.Kind(), Reason: ReasonMissing}
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, &FieldError{Field: field, Want: c.Value.Kind(), Reason: ReasonNull}
	}

	switch v := c.Value.(type) {
	case *ast.NumberValue:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return false, &FieldError{Field: field, Want: ast.KindNumber, Reason: ReasonType, Err: err}
		}
		switch c.Op {
		case ast.Equal:
			return n == v.Value, nil
		case ast.GreaterThan:
			return n > v.Value, nil
		case ast.LessThan:
			return n < v.Value, nil
		}
	case *ast.StringValue:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, &FieldError{Field: field, Want: ast.KindString, Reason: ReasonType, Err: err}
		}
		if c.Op == ast.Equal {
			return s == v.Value, nil
		}
	default:
		return false, ast.Unsupported(c.Value, "comparison value")
	}
	return false, &ast.UnsupportedNodeError{
		Kind:    ast.KindComparison,
		Context: "operator " + string(c.Op) + " on " + string(c.Value.Kind()),
	}
}

// project removes unselected keys from every document, using the key set of
// docs[0] as the reference.
func project(docs []Document, columns []*ast.Column) {
	if len(docs) == 0 {
		return
	}

	selected := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.IsWildcard() {
			return
		}
		selected[c.Identifier] = struct{}{}
	}

	var drop []string
	for key := range docs[0] {
		if _, ok := selected[key]; !ok {
			drop = append(drop, key)
		}
	}
	for _, doc := range docs {
		for _, key := range drop {
			delete(doc, key)
		}
	}
}
