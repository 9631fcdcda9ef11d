package trace

// Lexer scans trace source and produces tokens.
type Lexer struct {
	input    string // the entire input to tokenize
	position int    // current reading position in input
	line     int
	lineHead int // offset of the first byte of the current line
	tokens   []Token
}

// NewLexer returns a new Lexer for input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		tokens: make([]Token, 0, len(input)/4),
	}
}

// Tokenize processes the entire input and returns its tokens, always
// terminated by TokenEOF.
func (l *Lexer) Tokenize() []Token {
	for l.position < len(l.input) {
		start := l.position
		switch c := l.input[l.position]; {
		case c == '\n':
			l.addToken(TokenNewline, "\n", start)
			l.position++
			l.line++
			l.lineHead = l.position

		case c == ' ' || c == '\t' || c == '\r':
			l.position++

		case c == '#':
			l.lexComment(start)

		case c == '-' && l.peek(1) == '>':
			l.addToken(TokenArrow, "->", start)
			l.position += 2

		case c == '&':
			l.addToken(TokenAmp, "&", start)
			l.position++

		case c == '=':
			l.addToken(TokenAssign, "=", start)
			l.position++

		case c == '^':
			l.addToken(TokenCaret, "^", start)
			l.position++

		case c == '{':
			l.addToken(TokenLBrace, "{", start)
			l.position++

		case c == '}':
			l.addToken(TokenRBrace, "}", start)
			l.position++

		case isWordByte(c):
			l.lexWord(start)

		default:
			l.addToken(TokenIllegal, string(c), start)
			l.position++
		}
	}

	l.addToken(TokenEOF, "", l.position)
	return l.tokens
}

func (l *Lexer) peek(n int) byte {
	if l.position+n >= len(l.input) {
		return 0
	}
	return l.input[l.position+n]
}

// lexComment consumes '#' and the rest of the line, excluding the newline.
func (l *Lexer) lexComment(start int) {
	for l.position < len(l.input) && l.input[l.position] != '\n' {
		l.position++
	}
	l.addToken(TokenComment, l.input[start:l.position], start)
}

func (l *Lexer) lexWord(start int) {
	for l.position < len(l.input) && isWordByte(l.input[l.position]) {
		l.position++
	}
	l.addToken(TokenWord, l.input[start:l.position], start)
}

func (l *Lexer) addToken(tokenType TokenType, value string, pos int) {
	l.tokens = append(l.tokens, Token{
		Type:   tokenType,
		Value:  value,
		Line:   l.line,
		Column: pos - l.lineHead + 1,
	})
}

// isWordByte reports whether c may appear in a name. Dots are allowed so that
// version numbers lex as one word.
func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '\'' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
