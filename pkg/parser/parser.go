// Package parser compiles partql query text into an AST.
//
// # Grammar
//
//	query      → SELECT columns FROM identifier [WHERE condition]
//	columns    → ( "*" | identifier ) { "," ( "*" | identifier ) }
//	condition  → comparison { ( AND | OR ) comparison }
//	comparison → identifier ( "=" | ">" | "<" ) ( number | string )
//
// Conditions do not follow the usual AND-before-OR precedence. The token span
// of a condition is split at its last AND or OR keyword and both halves are
// parsed recursively, so the rightmost operator in the text becomes the root:
//
//	a = 1 AND b = 2 OR c = 3   →   Or(And(a = 1, b = 2), c = 3)
//	a = 1 OR b = 2 AND c = 3   →   And(Or(a = 1, b = 2), c = 3)
//
// Existing clients depend on this shape, so it must not be "fixed".
package parser

import (
	"strconv"

	"github.com/leapstack-labs/partql/pkg/ast"
	"github.com/leapstack-labs/partql/pkg/token"
)

// Parser parses a token stream into an AST.
type Parser struct {
	tokens []token.Token
	pos    int // index of the current token
	end    int // byte length of the input, reported for errors at end of input
}

// NewParser creates a parser for the given query text.
func NewParser(input string) *Parser {
	return &Parser{
		tokens: Tokenize(input),
		end:    len(input),
	}
}

// Parse parses query text. On failure it returns a *SyntaxError and no tree.
func Parse(input string) (*ast.Query, error) {
	return NewParser(input).ParseQuery()
}

// ---------- Token Helpers ----------

func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

// check returns true if the current token has the given kind and value.
func (p *Parser) check(kind token.Kind, value string) bool {
	return !p.atEnd() && p.tokens[p.pos].Is(kind, value)
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(kind token.Kind, value string) bool {
	if p.check(kind, value) {
		p.pos++
		return true
	}
	return false
}

// errorAt builds a SyntaxError describing the token at index i.
func (p *Parser) errorAt(i int, expected string) *SyntaxError {
	if i >= len(p.tokens) {
		return &SyntaxError{Pos: p.end, Expected: expected, Found: foundEOF}
	}
	return &SyntaxError{Pos: p.tokens[i].Pos, Expected: expected, Found: p.tokens[i].String()}
}

// ---------- Statement ----------

// ParseQuery parses a complete query.
func (p *Parser) ParseQuery() (*ast.Query, error) {
	if !p.match(token.Keyword, token.SELECT) {
		return nil, p.errorAt(p.pos, ExpectSelect)
	}

	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}

	if p.atEnd() {
		return &ast.Query{Select: sel}, nil
	}
	if !p.match(token.Keyword, token.WHERE) {
		return nil, p.errorAt(p.pos, ExpectWhere)
	}

	cond, err := p.parseCondition(p.pos, len(p.tokens))
	if err != nil {
		return nil, err
	}
	p.pos = len(p.tokens)

	return &ast.Query{Select: sel, Where: &ast.Where{Condition: cond}}, nil
}

// parseSelect parses the column list and the FROM clause.
func (p *Parser) parseSelect() (*ast.Select, error) {
	var columns []*ast.Column
	for {
		col, err := p.parseColumn()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)

		if !p.match(token.Operator, ",") {
			break
		}
	}

	from, err := p.parseFrom()
	if err != nil {
		return nil, err
	}
	return &ast.Select{Columns: columns, From: from}, nil
}

func (p *Parser) parseColumn() (*ast.Column, error) {
	if p.atEnd() {
		return nil, p.errorAt(p.pos, ExpectColumn)
	}
	tok := p.tokens[p.pos]
	if tok.Kind != token.Identifier && !tok.Is(token.Operator, ast.Wildcard) {
		return nil, p.errorAt(p.pos, ExpectColumn)
	}
	p.pos++
	return &ast.Column{Identifier: tok.Value}, nil
}

func (p *Parser) parseFrom() (*ast.From, error) {
	if !p.match(token.Keyword, token.FROM) {
		return nil, p.errorAt(p.pos, ExpectFrom)
	}
	if p.atEnd() || p.tokens[p.pos].Kind != token.Identifier {
		return nil, p.errorAt(p.pos, ExpectTable)
	}
	table := p.tokens[p.pos].Value
	p.pos++
	return &ast.From{Table: table}, nil
}

// ---------- Conditions ----------

// parseCondition parses tokens[start:end], splitting at the last AND/OR.
func (p *Parser) parseCondition(start, end int) (ast.Condition, error) {
	split := -1
	for i := start; i < end; i++ {
		if p.tokens[i].IsKeyword(token.AND) || p.tokens[i].IsKeyword(token.OR) {
			split = i
		}
	}
	if split < 0 {
		return p.parseComparison(start, end)
	}

	left, err := p.parseCondition(start, split)
	if err != nil {
		return nil, err
	}
	right, err := p.parseCondition(split+1, end)
	if err != nil {
		return nil, err
	}

	op := ast.Or
	if p.tokens[split].Value == token.AND {
		op = ast.And
	}
	return &ast.Logical{Op: op, Left: left, Right: right}, nil
}

// parseComparison parses exactly one comparison spanning tokens[start:end].
func (p *Parser) parseComparison(start, end int) (*ast.Comparison, error) {
	i := start
	if i >= end || p.tokens[i].Kind != token.Identifier {
		return nil, p.errorAt(i, ExpectIdentifier)
	}
	column := &ast.Column{Identifier: p.tokens[i].Value}

	i++
	if i >= end || p.tokens[i].Kind != token.Operator {
		return nil, p.errorAt(i, ExpectOperator)
	}
	opTok := p.tokens[i]
	var op ast.ComparisonOp
	switch opTok.Value {
	case "=":
		op = ast.Equal
	case ">":
		op = ast.GreaterThan
	case "<":
		op = ast.LessThan
	default:
		return nil, p.errorAt(i, ExpectOperator)
	}

	i++
	if i >= end {
		return nil, p.errorAt(i, ExpectLiteral)
	}
	var value ast.Value
	switch lit := p.tokens[i]; lit.Kind {
	case token.String:
		if op != ast.Equal {
			return nil, p.errorAt(i-1, ExpectStringOp)
		}
		value = &ast.StringValue{Value: lit.Value}
	case token.Number:
		n, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return nil, p.errorAt(i, ExpectInt64)
		}
		value = &ast.NumberValue{Value: n}
	default:
		return nil, p.errorAt(i, ExpectLiteral)
	}

	i++
	if i < end {
		return nil, p.errorAt(i, ExpectEndOfWhere)
	}
	return &ast.Comparison{Op: op, Column: column, Value: value}, nil
}
