package parser

import (
	"path"
	"strings"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/witsrc/ast"
	"github.com/wippyai/wasm-pack/witsrc/internal/token"
)

// primitives maps every built-in type keyword to its canonical spelling.
var primitives = map[string]string{
	"bool":    "bool",
	"u8":      "u8",
	"u16":     "u16",
	"u32":     "u32",
	"u64":     "u64",
	"s8":      "s8",
	"s16":     "s16",
	"s32":     "s32",
	"s64":     "s64",
	"f32":     "f32",
	"f64":     "f64",
	"float32": "f32",
	"float64": "f64",
	"char":    "char",
	"string":  "string",
}

var keywords = map[string]bool{
	"interface": true, "record": true, "variant": true, "enum": true,
	"flags": true, "resource": true, "type": true, "func": true,
	"use": true, "list": true, "option": true, "tuple": true,
	"result": true, "handle": true, "own": true, "borrow": true,
	"union": true, "world": true, "package": true,
}

// IsKeyword reports whether name must be %-escaped to be used as an identifier.
func IsKeyword(name string) bool {
	_, prim := primitives[name]
	return prim || keywords[name]
}

type Parser struct {
	filename string
	tokens   []token.Token
	pos      int
}

func New(tokens []token.Token, filename string) *Parser {
	return &Parser{tokens: tokens, filename: filename}
}

// Parse reads the whole token stream. Items outside an interface block form
// an implicit interface named after the file.
func (p *Parser) Parse() (*ast.File, error) {
	file := &ast.File{Filename: p.filename}
	implicit := &ast.Interface{Name: StemName(p.filename), Implicit: true, Pos: p.peek().Pos}
	explicit := 0

	for p.peek().Type != token.EOF {
		t := p.peek()
		if p.isKeyword(t, "interface") {
			if explicit > 0 {
				return nil, p.failAt(t, "at most one interface per file")
			}
			iface, err := p.parseInterface()
			if err != nil {
				return nil, err
			}
			file.Interfaces = append(file.Interfaces, iface)
			explicit++
			continue
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		implicit.Items = append(implicit.Items, item)
	}

	if len(implicit.Items) > 0 {
		if explicit > 0 {
			return nil, p.failAt(p.peek(), "top-level items mixed with an interface block")
		}
		file.Interfaces = append(file.Interfaces, implicit)
	}
	if len(file.Interfaces) == 0 {
		file.Interfaces = append(file.Interfaces, implicit)
	}
	return file, nil
}

// StemName derives an interface name from a file name: the base name up to
// the first dot.
func StemName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "/" {
		return "interface"
	}
	return base
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) next() token.Token {
	t := p.tokens[p.pos]
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) accept(typ token.Type) bool {
	if p.peek().Type == typ {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(typ token.Type) (token.Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, p.fail(t, typ.String())
	}
	return t, nil
}

func (p *Parser) isKeyword(t token.Token, kw string) bool {
	return t.Type == token.Ident && !t.Escaped && t.Value == kw
}

func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	t := p.next()
	if !p.isKeyword(t, kw) {
		return t, p.fail(t, "'"+kw+"'")
	}
	return t, nil
}

// expectName reads a declaration name. Keywords are only accepted when escaped.
func (p *Parser) expectName(what string) (token.Token, error) {
	t := p.next()
	if t.Type != token.Ident {
		return t, p.fail(t, what)
	}
	if !t.Escaped && IsKeyword(t.Value) {
		return t, p.fail(t, what+" (escape keywords with '%')")
	}
	return t, nil
}

func (p *Parser) position(t token.Token) errors.Position {
	return errors.Position{
		Filename: p.filename,
		Offset:   t.Pos.Offset,
		Line:     t.Pos.Line,
		Column:   t.Pos.Column,
	}
}

func (p *Parser) fail(t token.Token, expected string) error {
	return errors.Syntax(p.position(t), expected, t.Describe())
}

func (p *Parser) failAt(t token.Token, detail string) error {
	return errors.New(errors.PhaseParse, errors.KindSyntax).
		At(p.position(t)).
		Detail("%s", detail).
		Build()
}

func (p *Parser) parseInterface() (*ast.Interface, error) {
	kw := p.next()
	name, err := p.expectName("interface name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	iface := &ast.Interface{Name: name.Value, Docs: kw.Docs, Pos: kw.Pos}
	for !p.accept(token.RBrace) {
		if p.peek().Type == token.EOF {
			return nil, p.fail(p.peek(), "'}'")
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		iface.Items = append(iface.Items, item)
	}
	p.accept(token.Semicolon)
	return iface, nil
}

func (p *Parser) parseItem() (ast.Item, error) {
	t := p.peek()
	if t.Type != token.Ident {
		return nil, p.fail(t, "type or function declaration")
	}

	var (
		item ast.Item
		err  error
	)
	switch {
	case p.isKeyword(t, "record"):
		item, err = p.parseRecord()
	case p.isKeyword(t, "variant"):
		item, err = p.parseVariant()
	case p.isKeyword(t, "enum"):
		item, err = p.parseNames(ast.DeclEnum)
	case p.isKeyword(t, "flags"):
		item, err = p.parseNames(ast.DeclFlags)
	case p.isKeyword(t, "resource"):
		item, err = p.parseResource()
	case p.isKeyword(t, "type"):
		item, err = p.parseAlias()
	case p.isKeyword(t, "use"):
		return nil, p.failAt(t, "use statements are not supported; declare the types locally")
	case !t.Escaped && IsKeyword(t.Value):
		return nil, p.fail(t, "type or function declaration")
	default:
		item, err = p.parseFunc()
	}
	if err != nil {
		return nil, err
	}
	p.accept(token.Semicolon)
	return item, nil
}

// parseList reads `open elem (',' elem)* ','? close`.
func (p *Parser) parseList(open, close token.Type, elem func() error) error {
	if _, err := p.expect(open); err != nil {
		return err
	}
	for !p.accept(close) {
		if err := elem(); err != nil {
			return err
		}
		if p.accept(close) {
			return nil
		}
		if _, err := p.expect(token.Comma); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseRecord() (*ast.TypeDecl, error) {
	kw := p.next()
	name, err := p.expectName("record name")
	if err != nil {
		return nil, err
	}
	decl := &ast.TypeDecl{Kind: ast.DeclRecord, Name: name.Value, Docs: kw.Docs, Pos: kw.Pos}
	err = p.parseList(token.LBrace, token.RBrace, func() error {
		field, err := p.parseField("field name")
		if err != nil {
			return err
		}
		decl.Fields = append(decl.Fields, field)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseField(what string) (*ast.Field, error) {
	name, err := p.expectName(what)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ast.Field{Name: name.Value, Docs: name.Docs, Type: typ, Pos: name.Pos}, nil
}

func (p *Parser) parseVariant() (*ast.TypeDecl, error) {
	kw := p.next()
	name, err := p.expectName("variant name")
	if err != nil {
		return nil, err
	}
	decl := &ast.TypeDecl{Kind: ast.DeclVariant, Name: name.Value, Docs: kw.Docs, Pos: kw.Pos}
	err = p.parseList(token.LBrace, token.RBrace, func() error {
		caseName, err := p.expectName("case name")
		if err != nil {
			return err
		}
		c := &ast.Case{Name: caseName.Value, Docs: caseName.Docs, Pos: caseName.Pos}
		if p.accept(token.LParen) {
			if c.Type, err = p.parseType(); err != nil {
				return err
			}
			if _, err := p.expect(token.RParen); err != nil {
				return err
			}
		}
		decl.Cases = append(decl.Cases, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseNames(kind ast.DeclKind) (*ast.TypeDecl, error) {
	kw := p.next()
	name, err := p.expectName(kind.String() + " name")
	if err != nil {
		return nil, err
	}
	decl := &ast.TypeDecl{Kind: kind, Name: name.Value, Docs: kw.Docs, Pos: kw.Pos}
	err = p.parseList(token.LBrace, token.RBrace, func() error {
		n, err := p.expectName("case name")
		if err != nil {
			return err
		}
		decl.Names = append(decl.Names, &ast.Name{Name: n.Value, Docs: n.Docs, Pos: n.Pos})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseResource() (*ast.TypeDecl, error) {
	kw := p.next()
	name, err := p.expectName("resource name")
	if err != nil {
		return nil, err
	}
	if p.accept(token.LBrace) {
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
	}
	return &ast.TypeDecl{Kind: ast.DeclResource, Name: name.Value, Docs: kw.Docs, Pos: kw.Pos}, nil
}

func (p *Parser) parseAlias() (*ast.TypeDecl, error) {
	kw := p.next()
	name, err := p.expectName("type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Equals); err != nil {
		return nil, err
	}
	target, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ast.TypeDecl{Kind: ast.DeclAlias, Name: name.Value, Docs: kw.Docs, Target: target, Pos: kw.Pos}, nil
}

func (p *Parser) parseFunc() (*ast.FuncDecl, error) {
	name := p.next()
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("func"); err != nil {
		return nil, err
	}
	fn := &ast.FuncDecl{Name: name.Value, Docs: name.Docs, Pos: name.Pos}

	err := p.parseList(token.LParen, token.RParen, func() error {
		param, err := p.parseField("parameter name")
		if err != nil {
			return err
		}
		fn.Params = append(fn.Params, param)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !p.accept(token.Arrow) {
		return fn, nil
	}
	if p.peek().Type != token.LParen {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fn.Results = []*ast.Field{{Type: typ, Pos: typ.Position()}}
		return fn, nil
	}

	err = p.parseList(token.LParen, token.RParen, func() error {
		res, err := p.parseResult()
		if err != nil {
			return err
		}
		fn.Results = append(fn.Results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fn, nil
}

// parseResult reads either `name: type` or a bare type inside a result list.
func (p *Parser) parseResult() (*ast.Field, error) {
	t := p.peek()
	if t.Type == token.Ident && p.tokens[p.pos+1].Type == token.Colon {
		return p.parseField("result name")
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ast.Field{Type: typ, Pos: typ.Position()}, nil
}

func (p *Parser) parseType() (ast.Type, error) {
	t := p.next()
	if t.Type != token.Ident {
		return nil, p.fail(t, "type")
	}
	if t.Escaped {
		return &ast.Named{Name: t.Value, Pos: t.Pos}, nil
	}
	if prim, ok := primitives[t.Value]; ok {
		return &ast.Primitive{Name: prim, Pos: t.Pos}, nil
	}

	switch t.Value {
	case "list", "option":
		elem, err := p.parseGeneric1()
		if err != nil {
			return nil, err
		}
		if t.Value == "list" {
			return &ast.List{Elem: elem, Pos: t.Pos}, nil
		}
		return &ast.Option{Elem: elem, Pos: t.Pos}, nil

	case "tuple":
		tup := &ast.Tuple{Pos: t.Pos}
		err := p.parseList(token.LAngle, token.RAngle, func() error {
			elem, err := p.parseType()
			if err != nil {
				return err
			}
			tup.Elems = append(tup.Elems, elem)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return tup, nil

	case "result":
		return p.parseResultType(t)

	case "handle", "own", "borrow":
		if _, err := p.expect(token.LAngle); err != nil {
			return nil, err
		}
		res, err := p.expectName("resource name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RAngle); err != nil {
			return nil, err
		}
		kind := ast.HandleOwn
		if t.Value == "borrow" {
			kind = ast.HandleBorrow
		}
		return &ast.Handle{Resource: res.Value, Kind: kind, Pos: t.Pos}, nil
	}

	if IsKeyword(t.Value) {
		return nil, p.fail(t, "type")
	}
	return &ast.Named{Name: t.Value, Pos: t.Pos}, nil
}

func (p *Parser) parseGeneric1() (ast.Type, error) {
	if _, err := p.expect(token.LAngle); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return elem, nil
}

func (p *Parser) parseResultType(kw token.Token) (ast.Type, error) {
	res := &ast.Result{Pos: kw.Pos}
	if !p.accept(token.LAngle) {
		return res, nil
	}

	if !p.accept(token.Underscore) {
		ok, err := p.parseType()
		if err != nil {
			return nil, err
		}
		res.OK = ok
	}
	if p.accept(token.Comma) {
		errType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		res.Err = errType
	} else if res.OK == nil {
		return nil, p.fail(p.peek(), "','")
	}
	if _, err := p.expect(token.RAngle); err != nil {
		return nil, err
	}
	return res, nil
}
