package token

import (
	"strings"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/witsrc/ast"
)

type Type int

const (
	EOF Type = iota
	Ident
	LBrace
	RBrace
	LParen
	RParen
	LAngle
	RAngle
	Comma
	Colon
	Semicolon
	Equals
	Arrow
	Underscore
)

func (t Type) String() string {
	switch t {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case LAngle:
		return "'<'"
	case RAngle:
		return "'>'"
	case Comma:
		return "','"
	case Colon:
		return "':'"
	case Semicolon:
		return "';'"
	case Equals:
		return "'='"
	case Arrow:
		return "'->'"
	case Underscore:
		return "'_'"
	}
	return "unknown"
}

// Token is a lexeme. Docs holds the `///` comment lines immediately
// preceding the token. Escaped is set for %-prefixed identifiers, which
// are never treated as keywords.
type Token struct {
	Value   string
	Docs    string
	Pos     ast.Pos
	Type    Type
	Escaped bool
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	if t.Type == Ident {
		return "'" + t.Value + "'"
	}
	return t.Type.String()
}

var punct = map[byte]Type{
	'{': LBrace,
	'}': RBrace,
	'(': LParen,
	')': RParen,
	'<': LAngle,
	'>': RAngle,
	',': Comma,
	':': Colon,
	';': Semicolon,
	'=': Equals,
}

type lexer struct {
	src      string
	filename string
	docs     []string
	tokens   []Token
	off      int
	line     int
	col      int
}

// Tokenize splits WIT source into tokens terminated by an EOF token.
func Tokenize(src, filename string) ([]Token, error) {
	lx := &lexer{src: src, filename: filename, line: 1, col: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) pos() ast.Pos {
	return ast.Pos{Offset: lx.off, Line: lx.line, Column: lx.col}
}

func (lx *lexer) fail(pos ast.Pos, expected, found string) error {
	return errors.Syntax(errors.Position{
		Filename: lx.filename,
		Offset:   pos.Offset,
		Line:     pos.Line,
		Column:   pos.Column,
	}, expected, found)
}

func (lx *lexer) advance(n int) {
	for i := 0; i < n && lx.off < len(lx.src); i++ {
		if lx.src[lx.off] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.off++
	}
}

func (lx *lexer) emit(tok Token) {
	if len(lx.docs) > 0 {
		tok.Docs = strings.Join(lx.docs, "\n")
		lx.docs = nil
	}
	lx.tokens = append(lx.tokens, tok)
}

func (lx *lexer) run() error {
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		start := lx.pos()

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			lx.advance(1)

		case strings.HasPrefix(lx.src[lx.off:], "///"):
			end := strings.IndexByte(lx.src[lx.off:], '\n')
			if end < 0 {
				end = len(lx.src) - lx.off
			}
			lx.docs = append(lx.docs, strings.TrimSpace(lx.src[lx.off+3:lx.off+end]))
			lx.advance(end)

		case strings.HasPrefix(lx.src[lx.off:], "//"):
			end := strings.IndexByte(lx.src[lx.off:], '\n')
			if end < 0 {
				end = len(lx.src) - lx.off
			}
			lx.advance(end)

		case strings.HasPrefix(lx.src[lx.off:], "/*"):
			end := strings.Index(lx.src[lx.off+2:], "*/")
			if end < 0 {
				return lx.fail(start, "'*/'", "end of input")
			}
			lx.advance(end + 4)

		case strings.HasPrefix(lx.src[lx.off:], "->"):
			lx.emit(Token{Value: "->", Type: Arrow, Pos: start})
			lx.advance(2)

		case c == '%' || isLetter(c):
			if err := lx.ident(start); err != nil {
				return err
			}

		case c == '_':
			lx.emit(Token{Value: "_", Type: Underscore, Pos: start})
			lx.advance(1)

		default:
			typ, ok := punct[c]
			if !ok {
				return lx.fail(start, "", quoteChar(lx.src[lx.off:]))
			}
			lx.emit(Token{Value: string(c), Type: typ, Pos: start})
			lx.advance(1)
		}
	}
	lx.tokens = append(lx.tokens, Token{Type: EOF, Pos: lx.pos()})
	return nil
}

func (lx *lexer) ident(start ast.Pos) error {
	escaped := lx.src[lx.off] == '%'
	if escaped {
		lx.advance(1)
		if lx.off >= len(lx.src) || !isLetter(lx.src[lx.off]) {
			return lx.fail(lx.pos(), "identifier after '%'", "'%'")
		}
	}

	begin := lx.off
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		if !isLetter(c) && !isDigit(c) && c != '-' {
			break
		}
		// "->" always ends an identifier
		if c == '-' && strings.HasPrefix(lx.src[lx.off:], "->") {
			break
		}
		lx.advance(1)
	}
	word := lx.src[begin:lx.off]
	if !ValidIdent(word) {
		return lx.fail(start, "kebab-case identifier", "'"+word+"'")
	}
	lx.emit(Token{Value: word, Type: Ident, Pos: start, Escaped: escaped})
	return nil
}

// ValidIdent reports whether s is a kebab-case identifier: one or more
// words joined by single dashes, each word starting with a letter.
func ValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, word := range strings.Split(s, "-") {
		if word == "" || !isLetter(word[0]) {
			return false
		}
		for i := 1; i < len(word); i++ {
			if !isLetter(word[i]) && !isDigit(word[i]) {
				return false
			}
		}
	}
	return true
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

func quoteChar(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return "end of input"
	}
	return "'" + string(r[0]) + "'"
}
