package parser

import "fmt"

// SyntaxError reports malformed query text.
type SyntaxError struct {
	Pos      int    // byte offset of the offending token, or len(input) at end of input
	Expected string // what the parser was looking for
	Found    string // what it got instead
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

// Found descriptions.
const (
	foundEOF = "end of input"
)

// Expected descriptions.
const (
	ExpectSelect     = "SELECT"
	ExpectColumn     = "column name or *"
	ExpectFrom       = "FROM"
	ExpectTable      = "table name"
	ExpectWhere      = "WHERE"
	ExpectIdentifier = "identifier"
	ExpectOperator   = "one of =, >, <"
	ExpectLiteral    = "string or number"
	ExpectEndOfWhere = "AND, OR or end of input"
	ExpectStringOp   = "= for string comparison"
	ExpectInt64      = "integer within 64-bit range"
)
