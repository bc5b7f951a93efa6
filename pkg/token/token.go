// Package token defines the lexical tokens of the partql query language.
package token

import "fmt"

// Kind is the lexical category of a token.
type Kind int

const (
	Keyword Kind = iota
	Identifier
	String
	Number
	Operator
	Null
)

var kindNames = map[Kind]string{
	Keyword:    "Keyword",
	Identifier: "Identifier",
	String:     "String",
	Number:     "Number",
	Operator:   "Operator",
	Null:       "Null",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Reserved words. Matching is case-sensitive.
const (
	SELECT = "SELECT"
	FROM   = "FROM"
	WHERE  = "WHERE"
	AND    = "AND"
	OR     = "OR"
	NULL   = "NULL"
)

var keywords = map[string]struct{}{
	SELECT: {},
	FROM:   {},
	WHERE:  {},
	AND:    {},
	OR:     {},
}

// Lookup classifies an identifier-shaped word as Keyword, Null or Identifier.
func Lookup(word string) Kind {
	if _, ok := keywords[word]; ok {
		return Keyword
	}
	if word == NULL {
		return Null
	}
	return Identifier
}

// Token is a single lexical token.
type Token struct {
	Kind  Kind
	Value string
	Pos   int // byte offset of the token in the input
}

// Is reports whether the token has the given kind and value.
func (t Token) Is(kind Kind, value string) bool {
	return t.Kind == kind && t.Value == value
}

// IsKeyword reports whether the token is the given keyword.
func (t Token) IsKeyword(word string) bool {
	return t.Is(Keyword, word)
}

func (t Token) String() string {
	switch t.Kind {
	case String:
		return fmt.Sprintf("string '%s'", t.Value)
	case Number:
		return "number " + t.Value
	default:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	}
}
