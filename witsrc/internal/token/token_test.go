package token

import (
	"errors"
	"testing"

	werrors "github.com/wippyai/wasm-pack/errors"
)

func types(toks []Token) []Type {
	out := make([]Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		values []string
		types  []Type
	}{
		{"empty", "", []string{""}, []Type{EOF}},
		{"func", "add: func(a: u32) -> u32;",
			[]string{"add", ":", "func", "(", "a", ":", "u32", ")", "->", "u32", ";", ""},
			[]Type{Ident, Colon, Ident, LParen, Ident, Colon, Ident, RParen, Arrow, Ident, Semicolon, EOF}},
		{"kebab", "hello-world", []string{"hello-world", ""}, []Type{Ident, EOF}},
		{"kebab arrow", "f: func() ->string", []string{"f", ":", "func", "(", ")", "->", "string", ""},
			[]Type{Ident, Colon, Ident, LParen, RParen, Arrow, Ident, EOF}},
		{"generic", "result<_, string>", []string{"result", "<", "_", ",", "string", ">", ""},
			[]Type{Ident, LAngle, Underscore, Comma, Ident, RAngle, EOF}},
		{"comments", "// line\n/* block\n */ record", []string{"record", ""}, []Type{Ident, EOF}},
		{"digits", "http2-server", []string{"http2-server", ""}, []Type{Ident, EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize(tt.input, "test.wit")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(toks) != len(tt.values) {
				t.Fatalf("got %d tokens, want %d: %v", len(toks), len(tt.values), toks)
			}
			got := types(toks)
			for i := range toks {
				if toks[i].Value != tt.values[i] {
					t.Errorf("token %d value: got %q, want %q", i, toks[i].Value, tt.values[i])
				}
				if got[i] != tt.types[i] {
					t.Errorf("token %d type: got %v, want %v", i, got[i], tt.types[i])
				}
			}
		})
	}
}

func TestTokenize_Positions(t *testing.T) {
	toks, err := Tokenize("record\n  point", "")
	if err != nil {
		t.Fatal(err)
	}
	if toks[1].Pos.Line != 2 || toks[1].Pos.Column != 3 || toks[1].Pos.Offset != 9 {
		t.Errorf("pos: got %+v, want line 2 col 3 offset 9", toks[1].Pos)
	}
}

func TestTokenize_DocsAndEscapes(t *testing.T) {
	toks, err := Tokenize("/// Adds numbers.\n/// Twice.\n%record", "")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Docs != "Adds numbers.\nTwice." {
		t.Errorf("docs: got %q", toks[0].Docs)
	}
	if !toks[0].Escaped || toks[0].Value != "record" {
		t.Errorf("escape: got %+v", toks[0])
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"bad char", "record $x", 1, 8},
		{"trailing dash", "\nfoo-", 2, 1},
		{"double dash", "foo--bar", 1, 1},
		{"unterminated block", "/* never", 1, 1},
		{"bare percent", "% x", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input, "bad.wit")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, werrors.ErrSyntax) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			var se *werrors.Error
			if !errors.As(err, &se) || se.Pos == nil {
				t.Fatalf("expected positioned error, got %v", err)
			}
			if se.Pos.Line != tt.line || se.Pos.Column != tt.col {
				t.Errorf("pos: got %d:%d, want %d:%d", se.Pos.Line, se.Pos.Column, tt.line, tt.col)
			}
		})
	}
}

func TestValidIdent(t *testing.T) {
	for ident, want := range map[string]bool{
		"a": true, "hello-world": true, "HTTP-server": true, "x1": true,
		"": false, "1x": false, "a--b": false, "-a": false, "a-1": false,
	} {
		if got := ValidIdent(ident); got != want {
			t.Errorf("ValidIdent(%q): got %v, want %v", ident, got, want)
		}
	}
}
