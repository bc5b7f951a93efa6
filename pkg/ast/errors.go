package ast

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch is returned by Decode when the wire version of a tree
// differs from WireVersion.
var ErrVersionMismatch = errors.New("ast wire version mismatch")

// UnsupportedNodeError reports a node a consumer does not know how to handle.
// Between gateway and unit this means the two sides disagree on the contract.
type UnsupportedNodeError struct {
	Kind    Kind   // offending kind, empty if unknown
	Context string // where the node was met, e.g. "query root"
}

func (e *UnsupportedNodeError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if e.Context == "" {
		return fmt.Sprintf("unsupported node %q", kind)
	}
	return fmt.Sprintf("unsupported node %q in %s", kind, e.Context)
}

// Unsupported builds an UnsupportedNodeError for n, which may be nil.
func Unsupported(n Node, context string) *UnsupportedNodeError {
	var kind Kind
	if n != nil {
		kind = n.Kind()
	}
	return &UnsupportedNodeError{Kind: kind, Context: context}
}
