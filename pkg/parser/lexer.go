package parser

import (
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/partql/pkg/token"
)

// Lexer turns query text into tokens in a single left-to-right pass.
// Characters that start no token are skipped rather than reported.
type Lexer struct {
	input   string
	pos     int  // byte offset of ch
	readPos int  // byte offset after ch
	ch      rune // current rune, 0 at end of input
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize returns every token of input. It never fails.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok, ok := l.NextToken()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// readChar advances to the next rune.
func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.readPos += size
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token, or false once the input is exhausted.
func (l *Lexer) NextToken() (token.Token, bool) {
	for !l.atEOF() {
		start := l.pos

		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case unicode.IsLetter(l.ch):
			word := l.readWhile(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
			return token.Token{Kind: token.Lookup(word), Value: word, Pos: start}, true
		case unicode.IsDigit(l.ch):
			digits := l.readWhile(unicode.IsDigit)
			return token.Token{Kind: token.Number, Value: digits, Pos: start}, true
		case isOperator(l.ch):
			op := string(l.ch)
			l.readChar()
			return token.Token{Kind: token.Operator, Value: op, Pos: start}, true
		case l.ch == '\'':
			return token.Token{Kind: token.String, Value: l.readString(), Pos: start}, true
		default:
			l.readChar()
		}
	}
	return token.Token{}, false
}

func (l *Lexer) readWhile(pred func(rune) bool) string {
	start := l.pos
	for !l.atEOF() && pred(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readString reads a quoted literal. There are no escapes: the next quote ends
// the string, and a missing closing quote runs to the end of the input.
func (l *Lexer) readString() string {
	l.readChar() // opening quote
	start := l.pos
	for !l.atEOF() && l.ch != '\'' {
		l.readChar()
	}
	value := l.input[start:l.pos]
	if !l.atEOF() {
		l.readChar() // closing quote
	}
	return value
}

func isOperator(ch rune) bool {
	switch ch {
	case '=', '*', ',', '>', '<':
		return true
	}
	return false
}
