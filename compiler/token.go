package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token set
// ---------------------------------------------------------------------------

// TokenType classifies a lexeme.
type TokenType int

const (
	TokenRune       TokenType = iota // operation glyph with a resolved descriptor
	TokenTypeName                    // composite type word (⟪qubit⟫ ...)
	TokenIdentifier                  // user-defined name
	TokenNumber                      // numeric literal
	TokenDelimiter                   // ( ) { } [ ] ,
	TokenOperator                    // + - * / =
	TokenKeyword                     // function return loop parallel let
)

var tokenNames = map[TokenType]string{
	TokenRune:       "RUNE",
	TokenTypeName:   "TYPE",
	TokenIdentifier: "IDENTIFIER",
	TokenNumber:     "NUMBER",
	TokenDelimiter:  "DELIMITER",
	TokenOperator:   "OPERATOR",
	TokenKeyword:    "KEYWORD",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Position locates a token in the source text. Offset counts runes, not
// bytes, since glyphs are multi-byte.
type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexeme. Sym is set for RUNE tokens, Prim for TYPE
// tokens, Number for NUMBER tokens; tokens are immutable once produced.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	Sym     *OpSymbol
	Prim    string
	Number  float64
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
