// Package token defines the minimal token model later compiler stages
// refer to when they need a source position: a tag, an attribute, and
// the two coordinate systems source ranges are expressed in.
package token

import "github.com/upplang/upp/internal/ident"

// Tag classifies a token. The set is closed at the lexical layer; later
// stages pattern-match on it exhaustively.
type Tag int

const (
	Invalid Tag = iota
	Identifier
	IntLiteral
	FloatLiteral
	BoolLiteral
	StringLiteral
	CharLiteral

	// Keywords
	KeywordStruct
	KeywordUnion
	KeywordEnum
	KeywordIf
	KeywordElse
	KeywordWhile
	KeywordFor
	KeywordSwitch
	KeywordCase
	KeywordDefault
	KeywordReturn
	KeywordBreak
	KeywordContinue
	KeywordDefer
	KeywordContext
	KeywordImport
	KeywordAs
	KeywordCast
	KeywordBake
	KeywordModule

	// Punctuation and operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Semicolon
	Colon
	DoubleColon
	Dot
	Arrow
	Assign
	Plus
	Minus
	Star
	Slash
	Percent
	Question
	Bang
	Amp
	Pipe
	Caret
	Tilde
	EqEq
	NotEq
	Less
	Greater
	LessEq
	GreaterEq
	AndAnd
	OrOr
	Dollar

	EOF
)

// Attribute carries the decoded literal payload of a token, when it has
// one. Exactly one field is meaningful per Tag; zero value otherwise.
type Attribute struct {
	Int    int64
	Float  float64
	Bool   bool
	Ident  *ident.Identifier
	String string
}

// Point is one half of a Text_Range: a (line, character) position.
type Point struct {
	Line int
	Char int
}

// TokenPoint is one half of a Token_Range: a (line, token index) position.
type TokenPoint struct {
	Line  int
	Index int
}

// TextRange is a pair of character positions, start inclusive, end
// exclusive (§3).
type TextRange struct {
	Start Point
	End   Point
}

// TokenRange is a pair of token-index positions, start inclusive, end
// exclusive.
type TokenRange struct {
	Start TokenPoint
	End   TokenPoint
}

// Token is tag + attribute + the character range it occupies on its
// line. The token-index axis is assigned by LineBuffer once tokens are
// laid out per line, so Token itself only carries the character range;
// converting to a TokenRange requires the owning LineBuffer (see
// LineBuffer.TextRangeToTokenRange).
type Token struct {
	Tag   Tag
	Attr  Attribute
	Range TextRange
}

// LineBuffer is an immutable, line-indexed view of one source file's
// token stream (§2 step 1: "load source files into immutable
// line-indexed buffers"). Lines[i] holds every token whose Range.Start.Line
// == i.
type LineBuffer struct {
	Lines [][]Token
}

// TextRangeToTokenRange performs the total conversion from a character
// range to a token-index range by locating, on each endpoint's line,
// the first token whose start is not before the given character.
func (lb *LineBuffer) TextRangeToTokenRange(r TextRange) TokenRange {
	return TokenRange{
		Start: lb.pointToTokenPoint(r.Start, false),
		End:   lb.pointToTokenPoint(r.End, true),
	}
}

func (lb *LineBuffer) pointToTokenPoint(p Point, preferAfter bool) TokenPoint {
	if p.Line < 0 || p.Line >= len(lb.Lines) {
		return TokenPoint{Line: p.Line, Index: 0}
	}
	toks := lb.Lines[p.Line]
	idx := 0
	for i, tk := range toks {
		if preferAfter {
			if tk.Range.End.Char <= p.Char {
				idx = i + 1
				continue
			}
			break
		}
		if tk.Range.Start.Char < p.Char {
			idx = i + 1
			continue
		}
		break
	}
	if idx > len(toks) {
		idx = len(toks)
	}
	return TokenPoint{Line: p.Line, Index: idx}
}

// TokenRangeToTextRange is the inverse conversion, total given a valid
// TokenRange into this buffer.
func (lb *LineBuffer) TokenRangeToTextRange(r TokenRange) TextRange {
	return TextRange{
		Start: lb.tokenPointToPoint(r.Start, false),
		End:   lb.tokenPointToPoint(r.End, true),
	}
}

func (lb *LineBuffer) tokenPointToPoint(tp TokenPoint, isEnd bool) Point {
	if tp.Line < 0 || tp.Line >= len(lb.Lines) {
		return Point{Line: tp.Line, Char: 0}
	}
	toks := lb.Lines[tp.Line]
	if len(toks) == 0 {
		return Point{Line: tp.Line, Char: 0}
	}
	idx := tp.Index
	if isEnd {
		idx--
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(toks) {
		idx = len(toks) - 1
	}
	if isEnd {
		return toks[idx].Range.End
	}
	return toks[idx].Range.Start
}
