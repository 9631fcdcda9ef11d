package trace

import "fmt"

// TokenType defines the kinds of tokens produced by the lexer.
type TokenType int

const (
	TokenWord    TokenType = iota // keywords, names and version numbers
	TokenArrow                    // '->'
	TokenAmp                      // '&'
	TokenAssign                   // '='
	TokenCaret                    // '^'
	TokenLBrace                   // '{'
	TokenRBrace                   // '}'
	TokenComment                  // '#' up to the end of the line
	TokenNewline                  // '\n'
	TokenIllegal                  // any other character
	TokenEOF                      // end of input
)

var tokenNames = [...]string{
	TokenWord:    "word",
	TokenArrow:   "'->'",
	TokenAmp:     "'&'",
	TokenAssign:  "'='",
	TokenCaret:   "'^'",
	TokenLBrace:  "'{'",
	TokenRBrace:  "'}'",
	TokenComment: "comment",
	TokenNewline: "end of line",
	TokenIllegal: "illegal character",
	TokenEOF:     "end of input",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a single lexical token. Line and Column are 1-based.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	if t.Type == TokenWord || t.Type == TokenIllegal {
		return fmt.Sprintf("%q", t.Value)
	}
	return t.Type.String()
}
