package executor

import (
	"fmt"

	"github.com/leapstack-labs/partql/pkg/ast"
)

// Reasons a document field cannot be compared.
const (
	ReasonMissing = "missing"
	ReasonNull    = "null"
	ReasonType    = "wrong type"
)

// FieldError reports a comparison against a field that is absent, null or of
// the wrong JSON type. Such a document is an error, never a non-match.
type FieldError struct {
	Field  string
	Want   ast.Kind // KindString or KindNumber
	Reason string
	Err    error // decode error for ReasonType
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: expected %s, %s", e.Field, e.Want, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
