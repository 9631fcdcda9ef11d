package trace

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"github.com/gnoswap-labs/borrowck"
)

// Parser turns the tokens of a text trace into operations. It recovers at the
// end of every malformed line so that all syntax errors are reported at once.
type Parser struct {
	filename string
	tokens   []Token
	pos      int
	trace    *Trace
	errs     error
}

// NewParser returns a new Parser for the given tokens.
func NewParser(filename string, tokens []Token) *Parser {
	return &Parser{
		filename: filename,
		tokens:   tokens,
		trace:    &Trace{Filename: filename},
	}
}

// Parse lexes and parses a text trace. The returned error combines every
// syntax error found; use multierr.Errors to split it.
func Parse(filename string, src []byte) (*Trace, error) {
	return NewParser(filename, NewLexer(string(src)).Tokenize()).Parse()
}

// Parse consumes all tokens.
func (p *Parser) Parse() (*Trace, error) {
	for p.peek().Type != TokenEOF {
		p.parseLine()
	}
	if p.errs != nil {
		return nil, p.errs
	}
	return p.trace, nil
}

func (p *Parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) loc(tok Token) borrowck.Location {
	return borrowck.Location{File: p.filename, Line: tok.Line, Column: tok.Column}
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.errs = multierr.Append(p.errs, &SyntaxError{
		Loc: p.loc(tok),
		Msg: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) wrapError(tok Token, err error) {
	p.errs = multierr.Append(p.errs, &SyntaxError{Loc: p.loc(tok), Msg: err.Error(), Err: err})
}

// skipLine discards tokens up to and including the next newline, unless the
// newline was already consumed.
func (p *Parser) skipLine() {
	if p.pos > 0 && p.tokens[p.pos-1].Type == TokenNewline {
		return
	}
	for {
		switch p.next().Type {
		case TokenNewline, TokenEOF:
			return
		}
	}
}

func (p *Parser) parseLine() {
	tok := p.peek()
	switch tok.Type {
	case TokenNewline:
		p.next()
		return
	case TokenComment:
		p.next()
		p.addComment(tok, false)
		return
	}

	if !p.parseStatement() {
		p.skipLine()
		return
	}

	if c := p.peek(); c.Type == TokenComment {
		p.next()
		p.addComment(c, true)
	}
	switch end := p.next(); end.Type {
	case TokenNewline, TokenEOF:
	default:
		p.errorf(end, "unexpected %s after statement", end)
		p.skipLine()
	}
}

func (p *Parser) addComment(tok Token, trailing bool) {
	p.trace.Comments = append(p.trace.Comments, Comment{
		Text:     tok.Value,
		Line:     tok.Line,
		Column:   tok.Column,
		Trailing: trailing,
	})
}

func (p *Parser) emit(op borrowck.Operation, at Token) {
	p.trace.Ops = append(p.trace.Ops, op.At(p.loc(at)))
}

// parseStatement parses one statement and reports whether it succeeded.
func (p *Parser) parseStatement() bool {
	tok := p.next()
	switch tok.Type {
	case TokenLBrace:
		p.emit(borrowck.EnterScope(), tok)
		return true
	case TokenRBrace:
		p.emit(borrowck.ExitScope(), tok)
		return true
	case TokenWord:
	default:
		p.errorf(tok, "expected a statement, found %s", tok)
		return false
	}

	switch tok.Value {
	case "version":
		return p.parseVersion(tok)
	case "let":
		return p.parseLet(tok)
	case "move", "clone":
		return p.parseTransfer(tok)
	case "ref":
		return p.parseRef(tok)
	case "end", "use", "drop", "mutate":
		name, ok := p.expectName()
		if !ok {
			return false
		}
		p.emit(unary(tok.Value, name), tok)
		return true
	default:
		p.errorf(tok, "unknown statement %q", tok.Value)
		return false
	}
}

func unary(keyword, name string) borrowck.Operation {
	switch keyword {
	case "end":
		return borrowck.EndBorrow(name)
	case "use":
		return borrowck.Use(name)
	case "drop":
		return borrowck.Drop(name)
	default:
		return borrowck.Mutate(name)
	}
}

func (p *Parser) parseVersion(kw Token) bool {
	tok := p.next()
	if tok.Type != TokenWord {
		p.errorf(tok, "expected a version number, found %s", tok)
		return false
	}
	if len(p.trace.Ops) > 0 || p.trace.Version != nil {
		p.errorf(kw, "version header must be the first statement")
		return false
	}
	v, err := checkVersion(tok.Value)
	if err != nil {
		p.wrapError(tok, err)
		return false
	}
	p.trace.Version = v
	return true
}

// parseLet parses `let [mut|copy] name`.
func (p *Parser) parseLet(kw Token) bool {
	op := borrowck.Operation{Kind: borrowck.OpBind}
	if mod := p.peek(); mod.Type == TokenWord && p.tokens[p.pos+1].Type == TokenWord {
		switch mod.Value {
		case "mut":
			op.Mutable = true
		case "copy":
			op.Copy = true
		default:
			p.errorf(mod, "unknown modifier %q", mod.Value)
			return false
		}
		p.next()
	}
	name, ok := p.expectName()
	if !ok {
		return false
	}
	op.Name = name
	p.emit(op, kw)
	return true
}

// parseTransfer parses `move src [-> [mut] dst]` and `clone src -> [mut] dst`.
func (p *Parser) parseTransfer(kw Token) bool {
	src, ok := p.expectName()
	if !ok {
		return false
	}
	op := borrowck.Move(src, "")
	if kw.Value == "clone" {
		op = borrowck.Clone(src, "")
	}

	if p.peek().Type != TokenArrow {
		if kw.Value == "clone" {
			p.errorf(p.peek(), "expected '->' after clone source, found %s", p.peek())
			return false
		}
		p.emit(op, kw)
		return true
	}
	p.next()

	op.Mutable = p.acceptMut()
	if op.Target, ok = p.expectName(); !ok {
		return false
	}
	p.emit(op, kw)
	return true
}

// parseRef parses `ref[^n] name = &[mut] target`.
func (p *Parser) parseRef(kw Token) bool {
	hoist := 0
	if p.peek().Type == TokenCaret {
		p.next()
		tok := p.next()
		n, err := strconv.Atoi(tok.Value)
		if tok.Type != TokenWord || err != nil || n < 0 {
			p.errorf(tok, "expected a frame count after '^', found %s", tok)
			return false
		}
		hoist = n
	}

	ref, ok := p.expectName()
	if !ok {
		return false
	}
	if !p.expect(TokenAssign) || !p.expect(TokenAmp) {
		return false
	}
	mutable := p.acceptMut()
	target, ok := p.expectName()
	if !ok {
		return false
	}

	op := borrowck.BorrowShared(target, ref)
	if mutable {
		op = borrowck.BorrowExclusive(target, ref)
	}
	op.Hoist = hoist
	p.emit(op, kw)
	return true
}

// acceptMut consumes a `mut` modifier that is followed by a name.
func (p *Parser) acceptMut() bool {
	tok := p.peek()
	if tok.Type == TokenWord && tok.Value == "mut" && p.tokens[p.pos+1].Type == TokenWord {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType) bool {
	tok := p.next()
	if tok.Type != tt {
		p.errorf(tok, "expected %s, found %s", tt, tok)
		return false
	}
	return true
}

func (p *Parser) expectName() (string, bool) {
	tok := p.next()
	if tok.Type != TokenWord || !isName(tok.Value) {
		p.errorf(tok, "expected a name, found %s", tok)
		return "", false
	}
	return tok.Value, true
}

func isName(s string) bool {
	if s == "" || ('0' <= s[0] && s[0] <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return false
		}
	}
	return true
}
