// Package parser builds the immutable AST of internal/ast from a
// token.LineBuffer (§2 step 2, §3 AST Model). Grounded on
// breadchris-yaegi/interp's hand-written recursive-descent parser
// shape (no parser-generator dependency; one method per grammar
// production, a single token cursor) generalized to Upp's grammar.
package parser

import (
	"fmt"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/ident"
	tok "github.com/upplang/upp/internal/token"
)

// Error reports a parse failure at a token position (§7 ParseError).
type Error struct {
	Line, Index int
	Message     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at line %d token %d: %s", e.Line+1, e.Index, e.Message)
}

type posTok struct {
	t           tok.Token
	line, index int
}

// Parser walks one unit's token stream, mapping tokens into
// arena-owned ast.Node values.
type Parser struct {
	toks  []posTok
	pos   int
	arena *ast.Arena
	pool  *ident.Pool

	// restrictBrace suppresses struct-literal parsing of `Ident{...}`
	// while parsing an if/while condition or a switch subject, where `{` instead opens the
	// statement block (a yaegi-style ambiguity resolved the same way
	// Go itself resolves it).
	restrictBrace bool
}

// parseCondExpr parses an expression in a position immediately
// followed by a block, where a bare `{` must end the condition rather
// than start a struct literal.
func (p *Parser) parseCondExpr() (*ast.Node, error) {
	prev := p.restrictBrace
	p.restrictBrace = true
	defer func() { p.restrictBrace = prev }()
	return p.parseExpr()
}

// New builds a Parser over lb's flattened token stream.
func New(lb *tok.LineBuffer, arena *ast.Arena, pool *ident.Pool) *Parser {
	var toks []posTok
	for line, ts := range lb.Lines {
		for i, t := range ts {
			toks = append(toks, posTok{t: t, line: line, index: i})
		}
	}
	return &Parser{toks: toks, arena: arena, pool: pool}
}

func (p *Parser) cur() tok.Token {
	if p.pos >= len(p.toks) {
		return tok.Token{Tag: tok.EOF}
	}
	return p.toks[p.pos].t
}

func (p *Parser) curPoint() tok.TokenPoint {
	if p.pos >= len(p.toks) {
		if len(p.toks) == 0 {
			return tok.TokenPoint{}
		}
		last := p.toks[len(p.toks)-1]
		return tok.TokenPoint{Line: last.line, Index: last.index + 1}
	}
	pt := p.toks[p.pos]
	return tok.TokenPoint{Line: pt.line, Index: pt.index}
}

func (p *Parser) at(tag tok.Tag) bool { return p.cur().Tag == tag }

func (p *Parser) advance() tok.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(tag tok.Tag, what string) (tok.Token, error) {
	if !p.at(tag) {
		return tok.Token{}, &Error{Line: p.curPoint().Line, Index: p.curPoint().Index, Message: "expected " + what}
	}
	return p.advance(), nil
}

func (p *Parser) rangeFrom(start tok.TokenPoint) tok.TokenRange {
	return tok.TokenRange{Start: start, End: p.curPoint()}
}

// ParseModule parses a whole unit: a flat sequence of top-level items
// (§3 AST Model: module root).
func (p *Parser) ParseModule() (*ast.Node, error) {
	start := p.curPoint()
	var items []*ast.Node
	for !p.at(tok.EOF) {
		item, err := p.parseModuleItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return p.arena.New(ast.KindModule, p.rangeFrom(start), items...), nil
}

func (p *Parser) parseModuleItem() (*ast.Node, error) {
	switch {
	case p.at(tok.KeywordImport):
		return p.parseImport()
	case p.at(tok.KeywordContext):
		return p.parseContextChange()
	case p.at(tok.Identifier):
		return p.parseNamedDecl()
	default:
		return nil, &Error{Line: p.curPoint().Line, Index: p.curPoint().Index, Message: "expected a module-level item"}
	}
}

func (p *Parser) parseImport() (*ast.Node, error) {
	start := p.curPoint()
	p.advance()
	var path []*ident.Identifier
	for {
		idt, err := p.expect(tok.Identifier, "identifier")
		if err != nil {
			return nil, err
		}
		path = append(path, idt.Attr.Ident)
		if p.at(tok.Dot) {
			p.advance()
			continue
		}
		break
	}
	n := p.arena.New(ast.KindImport, tok.TokenRange{})
	n.ImportPath = path
	if p.at(tok.KeywordAs) {
		p.advance()
		alias, err := p.expect(tok.Identifier, "alias identifier")
		if err != nil {
			return nil, err
		}
		n.Ident = alias.Attr.Ident
	}
	if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
		return nil, err
	}
	n.Range = p.rangeFrom(start)
	return n, nil
}

// parseContextChange handles `context cast( f :: (params) -> Type Block );`
// (§8 S4): the sole context form this parser supports is a single
// inline function literal installed as a custom operator.
func (p *Parser) parseContextChange() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // context
	kind, err := p.expect(tok.Identifier, "operator kind (e.g. cast)")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.LParen, "'('"); err != nil {
		return nil, err
	}
	fn, err := p.parseFunctionLiteral()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.RParen, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
		return nil, err
	}
	n := p.arena.New(ast.KindOperatorContextChange, p.rangeFrom(start), fn)
	n.Ident = kind.Attr.Ident
	return n, nil
}

func (p *Parser) parseFunctionLiteral() (*ast.Node, error) {
	start := p.curPoint()
	name, err := p.expect(tok.Identifier, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.DoubleColon, "'::'"); err != nil {
		return nil, err
	}
	return p.parseFunctionAfterName(start, name.Attr.Ident)
}

// parseNamedDecl parses `IDENT :: ...` into either a FunctionDef,
// StructDef/union, EnumDef, or a comptime Definition (§3).
func (p *Parser) parseNamedDecl() (*ast.Node, error) {
	start := p.curPoint()
	name, err := p.expect(tok.Identifier, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.DoubleColon, "'::'"); err != nil {
		return nil, err
	}
	switch {
	case p.at(tok.LParen):
		return p.parseFunctionAfterName(start, name.Attr.Ident)
	case p.at(tok.KeywordStruct), p.at(tok.KeywordUnion):
		return p.parseStructAfterName(start, name.Attr.Ident)
	case p.at(tok.KeywordEnum):
		return p.parseEnumAfterName(start, name.Attr.Ident)
	default:
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
			return nil, err
		}
		n := p.arena.New(ast.KindDefinition, p.rangeFrom(start), val)
		n.Ident = name.Attr.Ident
		return n, nil
	}
}

// parseFunctionAfterName parses the `(params) -> Type Block`
// tail of a function definition; polymorphic (comptime) parameters are
// written `$Ident: Type` inside the ordinary parameter list (§4.6 Poly_Header).
func (p *Parser) parseFunctionAfterName(start tok.TokenPoint, name *ident.Identifier) (*ast.Node, error) {
	if _, err := p.expect(tok.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []*ast.Node
	for !p.at(tok.RParen) {
		pstart := p.curPoint()
		isPoly := false
		if p.at(tok.Dollar) {
			isPoly = true
			p.advance()
		}
		pname, err := p.expect(tok.Identifier, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Colon, "':'"); err != nil {
			return nil, err
		}
		ptype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		param := p.arena.New(ast.KindParameter, p.rangeFrom(pstart), ptype)
		param.Ident = pname.Attr.Ident
		param.BoolValue = isPoly
		params = append(params, param)
		if p.at(tok.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tok.RParen, "')'"); err != nil {
		return nil, err
	}
	var retType *ast.Node
	if p.at(tok.Arrow) {
		p.advance()
		rt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		retType = rt
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	children := append(append([]*ast.Node{}, params...), retType, body)
	n := p.arena.New(ast.KindFunctionDef, p.rangeFrom(start), children...)
	n.Ident = name
	return n, nil
}

func (p *Parser) parseStructAfterName(start tok.TokenPoint, name *ident.Identifier) (*ast.Node, error) {
	isUnion := p.at(tok.KeywordUnion)
	p.advance() // struct | union
	var params []*ast.Node
	if p.at(tok.LParen) {
		p.advance()
		for !p.at(tok.RParen) {
			pstart := p.curPoint()
			pname, err := p.expect(tok.Identifier, "template parameter name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tok.Colon, "':'"); err != nil {
				return nil, err
			}
			ptype, err := p.parseType()
			if err != nil {
				return nil, err
			}
			param := p.arena.New(ast.KindParameter, p.rangeFrom(pstart), ptype)
			param.Ident = pname.Attr.Ident
			param.BoolValue = true // every struct-header parameter is comptime
			params = append(params, param)
			if p.at(tok.Comma) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tok.RParen, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tok.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var members []*ast.Node
	for !p.at(tok.RBrace) {
		if p.at(tok.Identifier) && p.peekIsSubtypeHeader() {
			sub, err := p.parseSubtypeDecl()
			if err != nil {
				return nil, err
			}
			members = append(members, sub)
			continue
		}
		mstart := p.curPoint()
		mname, err := p.expect(tok.Identifier, "member name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Colon, "':'"); err != nil {
			return nil, err
		}
		mtype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
			return nil, err
		}
		member := p.arena.New(ast.KindParameter, p.rangeFrom(mstart), mtype)
		member.Ident = mname.Attr.Ident
		members = append(members, member)
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	children := append(append([]*ast.Node{}, params...), members...)
	n := p.arena.New(ast.KindStructDef, p.rangeFrom(start), children...)
	n.Ident = name
	n.IsUnion = isUnion
	n.IntValue = int64(len(params)) // how many leading children are template params
	return n, nil
}

// peekIsSubtypeHeader reports whether the upcoming tokens look like a
// nested `Name :: struct { ... }` subtype declaration inside a struct
// or union body.
func (p *Parser) peekIsSubtypeHeader() bool {
	if p.pos+2 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].t.Tag == tok.DoubleColon && p.toks[p.pos+2].t.Tag == tok.KeywordStruct
}

func (p *Parser) parseSubtypeDecl() (*ast.Node, error) {
	start := p.curPoint()
	name, err := p.expect(tok.Identifier, "subtype name")
	if err != nil {
		return nil, err
	}
	p.advance() // ::
	def, err := p.parseStructAfterName(start, name.Attr.Ident)
	if err != nil {
		return nil, err
	}
	n := p.arena.New(ast.KindSubtypeDecl, p.rangeFrom(start), def)
	n.Ident = name.Attr.Ident
	return n, nil
}

func (p *Parser) parseEnumAfterName(start tok.TokenPoint, name *ident.Identifier) (*ast.Node, error) {
	p.advance() // enum
	if _, err := p.expect(tok.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var members []*ast.Node
	for !p.at(tok.RBrace) {
		mstart := p.curPoint()
		mname, err := p.expect(tok.Identifier, "enum member name")
		if err != nil {
			return nil, err
		}
		member := p.arena.New(ast.KindParameter, p.rangeFrom(mstart))
		member.Ident = mname.Attr.Ident
		if p.at(tok.Assign) {
			p.advance()
			v, err := p.expect(tok.IntLiteral, "integer value")
			if err != nil {
				return nil, err
			}
			member.IntValue = v.Attr.Int
			member.BoolValue = true // explicit value given
		}
		members = append(members, member)
		if p.at(tok.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	n := p.arena.New(ast.KindEnumDef, p.rangeFrom(start), members...)
	n.Ident = name
	return n, nil
}

// parseType parses a type expression into a KindTypeExpr node whose
// shape internal/sema's type-evaluator walks directly rather than
// producing a Datatype here (types require the live *types.System).
func (p *Parser) parseType() (*ast.Node, error) {
	start := p.curPoint()
	switch {
	case p.at(tok.Star):
		p.advance()
		optional := false
		if p.at(tok.Question) {
			optional = true
			p.advance()
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		n := p.arena.New(ast.KindTypeExpr, p.rangeFrom(start), elem)
		n.StringValue = "pointer"
		n.BoolValue = optional
		return n, nil
	case p.at(tok.Question):
		p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		n := p.arena.New(ast.KindTypeExpr, p.rangeFrom(start), elem)
		n.StringValue = "optional"
		return n, nil
	case p.at(tok.LBracket):
		p.advance()
		var sizeExpr *ast.Node
		if !p.at(tok.RBracket) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sizeExpr = e
		}
		if _, err := p.expect(tok.RBracket, "']'"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		var children []*ast.Node
		if sizeExpr != nil {
			children = []*ast.Node{sizeExpr, elem}
		} else {
			children = []*ast.Node{nil, elem}
		}
		n := p.arena.New(ast.KindTypeExpr, p.rangeFrom(start), children...)
		n.StringValue = "array"
		return n, nil
	case p.at(tok.Identifier):
		name, _ := p.expect(tok.Identifier, "type name")
		var args []*ast.Node
		if p.at(tok.LParen) {
			p.advance()
			for !p.at(tok.RParen) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(tok.Comma) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(tok.RParen, "')'"); err != nil {
				return nil, err
			}
		}
		n := p.arena.New(ast.KindTypeExpr, p.rangeFrom(start), args...)
		n.StringValue = "named"
		n.Ident = name.Attr.Ident
		return n, nil
	default:
		return nil, &Error{Line: p.curPoint().Line, Index: p.curPoint().Index, Message: "expected a type"}
	}
}

func (p *Parser) parseBlock() (*ast.Node, error) {
	start := p.curPoint()
	if _, err := p.expect(tok.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.at(tok.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return p.arena.New(ast.KindBlock, p.rangeFrom(start), stmts...), nil
}
