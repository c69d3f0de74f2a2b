package parser

import (
	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/ident"
	tok "github.com/upplang/upp/internal/token"
)

// precedence climbing over ast.BinaryOp, lowest to highest.
var binPrec = map[tok.Tag]int{
	tok.OrOr: 1,
	tok.AndAnd: 2,
	tok.EqEq: 3, tok.NotEq: 3,
	tok.Less: 4, tok.Greater: 4, tok.LessEq: 4, tok.GreaterEq: 4,
	tok.Pipe: 5, tok.Caret: 5, tok.Amp: 6,
	tok.Plus: 7, tok.Minus: 7,
	tok.Star: 8, tok.Slash: 8, tok.Percent: 8,
}

var binOpOf = map[tok.Tag]ast.BinaryOp{
	tok.Plus: ast.OpAdd, tok.Minus: ast.OpSub, tok.Star: ast.OpMul, tok.Slash: ast.OpDiv, tok.Percent: ast.OpMod,
	tok.EqEq: ast.OpEq, tok.NotEq: ast.OpNotEq, tok.Less: ast.OpLess, tok.Greater: ast.OpGreater,
	tok.LessEq: ast.OpLessEq, tok.GreaterEq: ast.OpGreaterEq, tok.AndAnd: ast.OpAnd, tok.OrOr: ast.OpOr,
	tok.Amp: ast.OpBitAnd, tok.Pipe: ast.OpBitOr, tok.Caret: ast.OpBitXor,
}

// parseExpr parses a full expression via precedence climbing (§4.6
// Expression analysis operates over exactly this shape of tree).
func (p *Parser) parseExpr() (*ast.Node, error) {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) (*ast.Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.cur().Tag]
		if !ok || prec < minPrec {
			return lhs, nil
		}
		opTag := p.cur().Tag
		start := lhs.Range.Start
		p.advance()
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		n := p.arena.New(ast.KindBinaryExpr, p.rangeFrom(start), lhs, rhs)
		n.BinOp = binOpOf[opTag]
		lhs = n
	}
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	start := p.curPoint()
	var op ast.UnaryOp
	has := true
	switch p.cur().Tag {
	case tok.Minus:
		op = ast.OpNeg
	case tok.Bang:
		op = ast.OpNot
	case tok.Tilde:
		op = ast.OpBitNot
	case tok.Amp:
		op = ast.OpAddressOf
	case tok.Star:
		op = ast.OpDeref
	default:
		has = false
	}
	if has {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.arena.New(ast.KindUnaryExpr, p.rangeFrom(start), operand)
		n.UnOp = op
		return n, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		start := expr.Range.Start
		switch {
		case p.at(tok.Dot):
			p.advance()
			name, err := p.expect(tok.Identifier, "member name")
			if err != nil {
				return nil, err
			}
			n := p.arena.New(ast.KindMemberAccessExpr, p.rangeFrom(start), expr)
			n.Ident = name.Attr.Ident
			expr = n
		case p.at(tok.LBracket):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tok.RBracket, "']'"); err != nil {
				return nil, err
			}
			expr = p.arena.New(ast.KindIndexExpr, p.rangeFrom(start), expr, idx)
		case p.at(tok.LParen):
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			children := append([]*ast.Node{expr}, args...)
			expr = p.arena.New(ast.KindCallExpr, p.rangeFrom(start), children...)
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgList() ([]*ast.Node, error) {
	if _, err := p.expect(tok.LParen, "'('"); err != nil {
		return nil, err
	}
	var args []*ast.Node
	for !p.at(tok.RParen) {
		astart := p.curPoint()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arg := p.arena.New(ast.KindArgument, p.rangeFrom(astart), v)
		args = append(args, arg)
		if p.at(tok.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tok.RParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	start := p.curPoint()
	switch p.cur().Tag {
	case tok.IntLiteral:
		v := p.advance()
		n := p.arena.New(ast.KindIntLiteralExpr, p.rangeFrom(start))
		n.IntValue = v.Attr.Int
		return n, nil
	case tok.FloatLiteral:
		v := p.advance()
		n := p.arena.New(ast.KindFloatLiteralExpr, p.rangeFrom(start))
		n.FloatValue = v.Attr.Float
		return n, nil
	case tok.BoolLiteral:
		v := p.advance()
		n := p.arena.New(ast.KindBoolLiteralExpr, p.rangeFrom(start))
		n.BoolValue = v.Attr.Bool
		return n, nil
	case tok.StringLiteral:
		v := p.advance()
		n := p.arena.New(ast.KindStringLiteralExpr, p.rangeFrom(start))
		n.StringValue = v.Attr.String
		return n, nil
	case tok.KeywordBake:
		p.advance()
		if _, err := p.expect(tok.LParen, "'('"); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.RParen, "')'"); err != nil {
			return nil, err
		}
		return p.arena.New(ast.KindBakeExpr, p.rangeFrom(start), inner), nil
	case tok.LParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.RParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tok.Identifier:
		name := p.advance()
		if name.Attr.Ident.String() == "cast_raw" || name.Attr.Ident.String() == "cast" {
			return p.parseCastExpr(start, name.Attr.Ident.String() == "cast_raw")
		}
		if p.at(tok.LBrace) && p.looksLikeStructLiteral() {
			return p.parseStructLiteral(start, name.Attr.Ident)
		}
		n := p.arena.New(ast.KindIdentifierExpr, p.rangeFrom(start))
		n.Ident = name.Attr.Ident
		return n, nil
	default:
		return nil, &Error{Line: start.Line, Index: start.Index, Message: "expected an expression"}
	}
}

// parseCastExpr parses `cast{Type}(expr)` / `cast_raw{Type}(expr)`:
// Children[0] is the target-type TypeExpr, Children[1] the value
// (§4.6 Cast_Info; §3 AST Model CastExpr contract).
func (p *Parser) parseCastExpr(start tok.TokenPoint, raw bool) (*ast.Node, error) {
	if _, err := p.expect(tok.LBrace, "'{'"); err != nil {
		return nil, err
	}
	target, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.LParen, "'('"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.RParen, "')'"); err != nil {
		return nil, err
	}
	n := p.arena.New(ast.KindCastExpr, p.rangeFrom(start), target, val)
	n.BoolValue = raw
	return n, nil
}

// looksLikeStructLiteral disambiguates `Ident{` as a struct literal
// from a following block belonging to something else: a `{` after a
// bare identifier is a struct literal except while restrictBrace is
// set (an if/while/switch condition), where it opens the block.
func (p *Parser) looksLikeStructLiteral() bool { return !p.restrictBrace }

// parseStructLiteral parses `TypeName{ field: expr, ... }` into a
// KindStructLiteralExpr whose children are KindArgument nodes carrying
// the field name in Ident and the value as their sole child (§3 AST
// Model StructLiteralExpr).
func (p *Parser) parseStructLiteral(start tok.TokenPoint, typeName *ident.Identifier) (*ast.Node, error) {
	p.advance() // '{'
	var fields []*ast.Node
	for !p.at(tok.RBrace) {
		fstart := p.curPoint()
		fname, err := p.expect(tok.Identifier, "field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Colon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		field := p.arena.New(ast.KindArgument, p.rangeFrom(fstart), val)
		field.Ident = fname.Attr.Ident
		fields = append(fields, field)
		if p.at(tok.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	n := p.arena.New(ast.KindStructLiteralExpr, p.rangeFrom(start), fields...)
	n.Ident = typeName
	return n, nil
}
