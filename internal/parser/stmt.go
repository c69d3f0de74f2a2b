package parser

import (
	"github.com/upplang/upp/internal/ast"
	tok "github.com/upplang/upp/internal/token"
)

func (p *Parser) parseStatement() (*ast.Node, error) {
	switch p.cur().Tag {
	case tok.LBrace:
		return p.parseBlock()
	case tok.KeywordIf:
		return p.parseIf()
	case tok.KeywordWhile:
		return p.parseWhile()
	case tok.KeywordReturn:
		return p.parseReturn()
	case tok.KeywordBreak:
		return p.parseSimpleKeywordStmt(ast.KindBreakStmt)
	case tok.KeywordContinue:
		return p.parseSimpleKeywordStmt(ast.KindContinueStmt)
	case tok.KeywordDefer:
		return p.parseDefer()
	case tok.KeywordSwitch:
		return p.parseSwitch()
	default:
		return p.parseSimpleOrDeclStmt()
	}
}

func (p *Parser) parseSimpleKeywordStmt(kind ast.Kind) (*ast.Node, error) {
	start := p.curPoint()
	p.advance()
	if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return p.arena.New(kind, p.rangeFrom(start)), nil
}

func (p *Parser) parseIf() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // if
	cond, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	thenBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	children := []*ast.Node{cond, thenBlock}
	if p.at(tok.KeywordElse) {
		p.advance()
		var elseNode *ast.Node
		if p.at(tok.KeywordIf) {
			elseNode, err = p.parseIf()
		} else {
			elseNode, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
		children = append(children, elseNode)
	}
	return p.arena.New(ast.KindIfStmt, p.rangeFrom(start), children...), nil
}

func (p *Parser) parseWhile() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // while
	cond, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return p.arena.New(ast.KindWhileStmt, p.rangeFrom(start), cond, body), nil
}

func (p *Parser) parseSwitch() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // switch
	subject, err := p.parseCondExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tok.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var cases []*ast.Node
	for !p.at(tok.RBrace) {
		cstart := p.curPoint()
		isDefault := false
		var value *ast.Node
		if p.at(tok.KeywordDefault) {
			isDefault = true
			p.advance()
		} else {
			if _, err := p.expect(tok.KeywordCase, "'case'"); err != nil {
				return nil, err
			}
			value, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tok.Colon, "':'"); err != nil {
			return nil, err
		}
		var stmts []*ast.Node
		if value != nil {
			stmts = append(stmts, value)
		}
		for !p.at(tok.KeywordCase) && !p.at(tok.KeywordDefault) && !p.at(tok.RBrace) {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		c := p.arena.New(ast.KindCaseClause, p.rangeFrom(cstart), stmts...)
		c.IsDefaultCase = isDefault
		cases = append(cases, c)
	}
	if _, err := p.expect(tok.RBrace, "'}'"); err != nil {
		return nil, err
	}
	children := append([]*ast.Node{subject}, cases...)
	return p.arena.New(ast.KindSwitchStmt, p.rangeFrom(start), children...), nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // return
	var val *ast.Node
	if !p.at(tok.Semicolon) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
		return nil, err
	}
	if val != nil {
		return p.arena.New(ast.KindReturnStmt, p.rangeFrom(start), val), nil
	}
	return p.arena.New(ast.KindReturnStmt, p.rangeFrom(start)), nil
}

func (p *Parser) parseDefer() (*ast.Node, error) {
	start := p.curPoint()
	p.advance() // defer
	inner, err := p.parseSimpleOrDeclStmt()
	if err != nil {
		return nil, err
	}
	return p.arena.New(ast.KindDeferStmt, p.rangeFrom(start), inner), nil
}

// parseSimpleOrDeclStmt parses `ident : Type [= expr];`,
// `ident := expr;`, an assignment `lhs = expr;`, or a bare expression
// statement, disambiguating on lookahead (§3 AST Model VarDecl /
// AssignStmt / ExprStmt).
func (p *Parser) parseSimpleOrDeclStmt() (*ast.Node, error) {
	start := p.curPoint()
	if p.at(tok.Identifier) && p.peekTag(1) == tok.Colon {
		name := p.advance()
		p.advance() // ':'
		var declType *ast.Node
		if !p.at(tok.Assign) {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			declType = t
		}
		var initExpr *ast.Node
		if p.at(tok.Assign) {
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			initExpr = v
		}
		if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
			return nil, err
		}
		var children []*ast.Node
		if declType != nil {
			children = append(children, declType)
		}
		if initExpr != nil {
			children = append(children, initExpr)
		}
		n := p.arena.New(ast.KindVarDecl, p.rangeFrom(start), children...)
		n.Ident = name.Attr.Ident
		n.BoolValue = declType == nil // true when type is inferred from initExpr
		return n, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(tok.Assign) {
		p.advance()
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return p.arena.New(ast.KindAssignStmt, p.rangeFrom(start), expr, rhs), nil
	}
	if _, err := p.expect(tok.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return p.arena.New(ast.KindExprStmt, p.rangeFrom(start), expr), nil
}

func (p *Parser) peekTag(offset int) tok.Tag {
	if p.pos+offset >= len(p.toks) {
		return tok.EOF
	}
	return p.toks[p.pos+offset].t.Tag
}
