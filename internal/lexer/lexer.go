// Package lexer tokenizes Upp source text into the immutable
// line-indexed token.LineBuffer consumed by internal/parser (§2 step 1,
// §3 Lexical layer). Grounded on breadchris-yaegi/interp's hand-rolled
// scanner shape (a single forward-scanning cursor producing one token
// at a time, no external scanner-generator dependency) generalized to
// Upp's keyword/punctuation set.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/upplang/upp/internal/ident"
	tok "github.com/upplang/upp/internal/token"
)

var keywords = map[string]tok.Tag{
	"struct": tok.KeywordStruct, "union": tok.KeywordUnion, "enum": tok.KeywordEnum,
	"if": tok.KeywordIf, "else": tok.KeywordElse, "while": tok.KeywordWhile,
	"for": tok.KeywordFor, "switch": tok.KeywordSwitch, "case": tok.KeywordCase,
	"default": tok.KeywordDefault, "return": tok.KeywordReturn, "break": tok.KeywordBreak,
	"continue": tok.KeywordContinue, "defer": tok.KeywordDefer, "context": tok.KeywordContext,
	"import": tok.KeywordImport, "as": tok.KeywordAs,
	"bake": tok.KeywordBake, "module": tok.KeywordModule,
	"true": tok.BoolLiteral, "false": tok.BoolLiteral,
}

// Error reports a lexical failure at a source position (§7 LexError).
type Error struct {
	Line, Char int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line+1, e.Char, e.Message)
}

type lexer struct {
	src   []rune
	pos   int
	line  int
	char  int
	pool  *ident.Pool
	lines [][]tok.Token
}

// Lex scans the whole of src into a LineBuffer, interning every
// identifier/keyword spelling through pool (§2 step 1: "load source
// files into immutable line-indexed buffers").
func Lex(src string, pool *ident.Pool) (*tok.LineBuffer, error) {
	l := &lexer{src: []rune(src), pool: pool}
	for {
		l.skipSpaceAndComments()
		if l.atEOF() {
			break
		}
		startLine, startChar := l.line, l.char
		t, err := l.scanOne()
		if err != nil {
			return nil, err
		}
		t.Range.Start = tok.Point{Line: startLine, Char: startChar}
		t.Range.End = tok.Point{Line: l.line, Char: l.char}
		l.place(t)
	}
	return &tok.LineBuffer{Lines: l.lines}, nil
}

func (l *lexer) place(t tok.Token) {
	for len(l.lines) <= t.Range.Start.Line {
		l.lines = append(l.lines, nil)
	}
	l.lines[t.Range.Start.Line] = append(l.lines[t.Range.Start.Line], t)
}

func (l *lexer) atEOF() bool { return l.pos >= len(l.src) }

func (l *lexer) peek() rune {
	if l.atEOF() {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.char = 0
	} else {
		l.char++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() {
	for !l.atEOF() {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for !l.atEOF() && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			l.advance()
			l.advance()
			for !l.atEOF() && !(l.peek() == '*' && l.peekAt(1) == '/') {
				l.advance()
			}
			if !l.atEOF() {
				l.advance()
				l.advance()
			}
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentCont(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func (l *lexer) scanOne() (tok.Token, error) {
	r := l.peek()
	switch {
	case isIdentStart(r):
		return l.scanIdentOrKeyword(), nil
	case unicode.IsDigit(r):
		return l.scanNumber(), nil
	case r == '"':
		return l.scanString()
	case r == '\'':
		return l.scanChar()
	default:
		return l.scanPunct()
	}
}

func (l *lexer) scanIdentOrKeyword() tok.Token {
	var b strings.Builder
	for !l.atEOF() && isIdentCont(l.peek()) {
		b.WriteRune(l.advance())
	}
	s := b.String()
	if tag, ok := keywords[s]; ok {
		if tag == tok.BoolLiteral {
			return tok.Token{Tag: tok.BoolLiteral, Attr: tok.Attribute{Bool: s == "true"}}
		}
		return tok.Token{Tag: tag}
	}
	return tok.Token{Tag: tok.Identifier, Attr: tok.Attribute{Ident: l.pool.Add(s)}}
}

func (l *lexer) scanNumber() tok.Token {
	var b strings.Builder
	isFloat := false
	for !l.atEOF() && (unicode.IsDigit(l.peek()) || l.peek() == '.' && !isFloat && unicode.IsDigit(l.peekAt(1))) {
		if l.peek() == '.' {
			isFloat = true
		}
		b.WriteRune(l.advance())
	}
	if isFloat {
		f, _ := strconv.ParseFloat(b.String(), 64)
		return tok.Token{Tag: tok.FloatLiteral, Attr: tok.Attribute{Float: f}}
	}
	n, _ := strconv.ParseInt(b.String(), 10, 64)
	return tok.Token{Tag: tok.IntLiteral, Attr: tok.Attribute{Int: n}}
}

func (l *lexer) scanString() (tok.Token, error) {
	startLine, startChar := l.line, l.char
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.atEOF() {
			return tok.Token{}, &Error{Line: startLine, Char: startChar, Message: "unterminated string literal"}
		}
		r := l.advance()
		if r == '"' {
			break
		}
		if r == '\\' && !l.atEOF() {
			b.WriteRune(decodeEscape(l.advance()))
			continue
		}
		b.WriteRune(r)
	}
	return tok.Token{Tag: tok.StringLiteral, Attr: tok.Attribute{String: b.String()}}, nil
}

func (l *lexer) scanChar() (tok.Token, error) {
	startLine, startChar := l.line, l.char
	l.advance() // opening quote
	if l.atEOF() {
		return tok.Token{}, &Error{Line: startLine, Char: startChar, Message: "unterminated char literal"}
	}
	r := l.advance()
	if r == '\\' && !l.atEOF() {
		r = decodeEscape(l.advance())
	}
	if l.atEOF() || l.peek() != '\'' {
		return tok.Token{}, &Error{Line: startLine, Char: startChar, Message: "unterminated char literal"}
	}
	l.advance()
	return tok.Token{Tag: tok.IntLiteral, Attr: tok.Attribute{Int: int64(r)}}, nil
}

func decodeEscape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return r
	}
}

func (l *lexer) scanPunct() (tok.Token, error) {
	startLine, startChar := l.line, l.char
	r := l.advance()
	two := func(next rune, tag2, tag1 tok.Tag) tok.Token {
		if l.peek() == next {
			l.advance()
			return tok.Token{Tag: tag2}
		}
		return tok.Token{Tag: tag1}
	}
	switch r {
	case '(':
		return tok.Token{Tag: tok.LParen}, nil
	case ')':
		return tok.Token{Tag: tok.RParen}, nil
	case '{':
		return tok.Token{Tag: tok.LBrace}, nil
	case '}':
		return tok.Token{Tag: tok.RBrace}, nil
	case '[':
		return tok.Token{Tag: tok.LBracket}, nil
	case ']':
		return tok.Token{Tag: tok.RBracket}, nil
	case ',':
		return tok.Token{Tag: tok.Comma}, nil
	case ';':
		return tok.Token{Tag: tok.Semicolon}, nil
	case '.':
		return tok.Token{Tag: tok.Dot}, nil
	case ':':
		return two(':', tok.DoubleColon, tok.Colon), nil
	case '-':
		if l.peek() == '>' {
			l.advance()
			return tok.Token{Tag: tok.Arrow}, nil
		}
		return tok.Token{Tag: tok.Minus}, nil
	case '+':
		return tok.Token{Tag: tok.Plus}, nil
	case '*':
		return tok.Token{Tag: tok.Star}, nil
	case '/':
		return tok.Token{Tag: tok.Slash}, nil
	case '%':
		return tok.Token{Tag: tok.Percent}, nil
	case '?':
		return tok.Token{Tag: tok.Question}, nil
	case '~':
		return tok.Token{Tag: tok.Tilde}, nil
	case '$':
		return tok.Token{Tag: tok.Dollar}, nil
	case '^':
		return tok.Token{Tag: tok.Caret}, nil
	case '&':
		return two('&', tok.AndAnd, tok.Amp), nil
	case '|':
		return two('|', tok.OrOr, tok.Pipe), nil
	case '=':
		return two('=', tok.EqEq, tok.Assign), nil
	case '!':
		return two('=', tok.NotEq, tok.Bang), nil
	case '<':
		return two('=', tok.LessEq, tok.Less), nil
	case '>':
		return two('=', tok.GreaterEq, tok.Greater), nil
	default:
		return tok.Token{}, &Error{Line: startLine, Char: startChar, Message: fmt.Sprintf("unexpected character %q", r)}
	}
}
