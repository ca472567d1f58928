package compiler

import (
	"strconv"
	"unicode"
)

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

// Lexer scans normalized source in one forward pass. It never fails:
// unrecognized characters are skipped.
type Lexer struct {
	input  []rune
	pos    int
	line   int
	column int
}

// NewLexer prepares a lexer over a normalized source text.
func NewLexer(source string) *Lexer {
	return &Lexer{input: []rune(source), line: 1, column: 1}
}

// Tokenize produces the full ordered token list.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		start := l.here()

		switch {
		case isSpace(ch):
			l.advance()

		case symbolsByGlyph[ch] != nil:
			sym := symbolsByGlyph[ch]
			tokens = append(tokens, Token{
				Type:    TokenRune,
				Literal: string(ch),
				Pos:     start,
				Sym:     sym,
			})
			l.advance()

		case ch == typeLeadGlyph:
			word := l.readWordUntilBoundary()
			tok := Token{Type: TokenIdentifier, Literal: word, Pos: start}
			if prim, ok := typeWords[word]; ok {
				tok.Type = TokenTypeName
				tok.Prim = prim
			}
			tokens = append(tokens, tok)

		case unicode.IsDigit(ch):
			lit := l.readNumber()
			n, _ := strconv.ParseFloat(lit, 64)
			tokens = append(tokens, Token{
				Type:    TokenNumber,
				Literal: lit,
				Pos:     start,
				Number:  n,
			})

		case isDelimiter(ch):
			tokens = append(tokens, Token{Type: TokenDelimiter, Literal: string(ch), Pos: start})
			l.advance()

		case isOperator(ch):
			tokens = append(tokens, Token{Type: TokenOperator, Literal: string(ch), Pos: start})
			l.advance()

		case isWordStart(ch):
			word := l.readWord()
			tok := Token{Type: TokenIdentifier, Literal: word, Pos: start}
			if keywords[word] {
				tok.Type = TokenKeyword
			}
			tokens = append(tokens, tok)

		default:
			// Unrecognized character: skip and keep scanning.
			l.advance()
		}
	}
	return tokens
}

func (l *Lexer) here() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) && l.input[l.pos] == '\n' {
		l.line++
		l.column = 0
	}
	l.pos++
	l.column++
}

// readNumber consumes a maximal digit run with at most one decimal point.
func (l *Lexer) readNumber() string {
	start := l.pos
	sawDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '.' && !sawDot {
			sawDot = true
		} else if !unicode.IsDigit(ch) {
			break
		}
		l.advance()
	}
	return string(l.input[start:l.pos])
}

// readWord consumes a maximal alphanumeric/underscore run.
func (l *Lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.input) && isWordPart(l.input[l.pos]) {
		l.advance()
	}
	return string(l.input[start:l.pos])
}

// readWordUntilBoundary consumes everything up to whitespace or a delimiter,
// for type words led by the type glyph.
func (l *Lexer) readWordUntilBoundary() string {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isSpace(ch) || isDelimiter(ch) {
			break
		}
		l.advance()
	}
	return string(l.input[start:l.pos])
}

func isSpace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch rune) bool {
	switch ch {
	case '(', ')', '{', '}', '[', ']', ',':
		return true
	}
	return false
}

func isOperator(ch rune) bool {
	switch ch {
	case '+', '-', '*', '/', '=':
		return true
	}
	return false
}

func isWordStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isWordPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
