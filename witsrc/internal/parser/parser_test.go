package parser

import (
	"errors"
	"testing"

	werrors "github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/witsrc/ast"
	"github.com/wippyai/wasm-pack/witsrc/internal/token"
)

func parse(t *testing.T, src, filename string) (*ast.File, error) {
	t.Helper()
	tokens, err := token.Tokenize(src, filename)
	if err != nil {
		return nil, err
	}
	return New(tokens, filename).Parse()
}

func mustParse(t *testing.T, src string) *ast.Interface {
	t.Helper()
	file, err := parse(t, src, "calc.exports.wit")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(file.Interfaces) != 1 {
		t.Fatalf("expected 1 interface, got %d", len(file.Interfaces))
	}
	return file.Interfaces[0]
}

func TestParseEmpty(t *testing.T) {
	iface := mustParse(t, "")
	if iface.Name != "calc" || !iface.Implicit {
		t.Errorf("got %q implicit=%v, want implicit calc", iface.Name, iface.Implicit)
	}
	if len(iface.Items) != 0 {
		t.Errorf("expected no items, got %d", len(iface.Items))
	}
}

func TestParseInterfaceBlock(t *testing.T) {
	iface := mustParse(t, "/// Greets.\ninterface greeter { hello-world: func() -> string; }")
	if iface.Name != "greeter" || iface.Implicit {
		t.Errorf("got %q implicit=%v", iface.Name, iface.Implicit)
	}
	if iface.Docs != "Greets." {
		t.Errorf("docs: got %q", iface.Docs)
	}
	fn, ok := iface.Items[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", iface.Items[0])
	}
	if fn.Name != "hello-world" || len(fn.Params) != 0 || len(fn.Results) != 1 {
		t.Errorf("unexpected func %+v", fn)
	}
	if fn.Results[0].Type.String() != "string" {
		t.Errorf("result: got %s", fn.Results[0].Type)
	}
}

func TestParseFunc(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		numParams  int
		numResults int
		results    []string
	}{
		{"no results", "f: func(a: u32, b: u32)", 2, 0, nil},
		{"single result", "f: func(a: u32) -> u64", 1, 1, []string{"u64"}},
		{"trailing comma", "f: func(a: u32,) -> u64;", 1, 1, []string{"u64"}},
		{"named results", "f: func() -> (a: u32, b: string)", 0, 2, []string{"u32", "string"}},
		{"unnamed results", "f: func() -> (u32, list<u8>)", 0, 2, []string{"u32", "list<u8>"}},
		{"empty results", "f: func() -> ()", 0, 0, nil},
		{"float aliases", "f: func(x: float32) -> float64", 1, 1, []string{"f64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iface := mustParse(t, tt.input)
			fn := iface.Items[0].(*ast.FuncDecl)
			if len(fn.Params) != tt.numParams {
				t.Errorf("params: got %d, want %d", len(fn.Params), tt.numParams)
			}
			if len(fn.Results) != tt.numResults {
				t.Fatalf("results: got %d, want %d", len(fn.Results), tt.numResults)
			}
			for i, want := range tt.results {
				if got := fn.Results[i].Type.String(); got != want {
					t.Errorf("result %d: got %s, want %s", i, got, want)
				}
			}
		})
	}
}

func TestParseTypeDecls(t *testing.T) {
	src := `
		record point { x: s32, y: s32 }
		variant shape { circle(f32), square(tuple<f32, f32>), empty }
		enum color { red, green, blue, }
		flags perms { read, write }
		resource file
		resource dir {}
		type bytes = list<u8>
		type maybe = option<result<_, string>>
		type node-ref = handle<file>
	`
	iface := mustParse(t, src)
	if len(iface.Items) != 9 {
		t.Fatalf("expected 9 items, got %d", len(iface.Items))
	}

	wantKinds := []ast.DeclKind{
		ast.DeclRecord, ast.DeclVariant, ast.DeclEnum, ast.DeclFlags,
		ast.DeclResource, ast.DeclResource, ast.DeclAlias, ast.DeclAlias, ast.DeclAlias,
	}
	for i, want := range wantKinds {
		decl, ok := iface.Items[i].(*ast.TypeDecl)
		if !ok {
			t.Fatalf("item %d: expected TypeDecl, got %T", i, iface.Items[i])
		}
		if decl.Kind != want {
			t.Errorf("item %d: got %v, want %v", i, decl.Kind, want)
		}
	}

	point := iface.Items[0].(*ast.TypeDecl)
	if len(point.Fields) != 2 || point.Fields[0].Name != "x" || point.Fields[1].Name != "y" {
		t.Errorf("point fields out of order: %+v", point.Fields)
	}

	shape := iface.Items[1].(*ast.TypeDecl)
	if shape.Cases[2].Type != nil {
		t.Errorf("empty case should have no payload")
	}
	if got := shape.Cases[1].Type.String(); got != "tuple<f32, f32>" {
		t.Errorf("square payload: got %s", got)
	}

	maybe := iface.Items[7].(*ast.TypeDecl)
	if got := maybe.Target.String(); got != "option<result<_, string>>" {
		t.Errorf("maybe: got %s", got)
	}
	ref := iface.Items[8].(*ast.TypeDecl)
	if got := ref.Target.String(); got != "own<file>" {
		t.Errorf("handle: got %s", got)
	}
}

func TestParseEscapedKeywords(t *testing.T) {
	iface := mustParse(t, "record %record { %type: u8 }\n%list: func(%string: %record)")
	rec := iface.Items[0].(*ast.TypeDecl)
	if rec.Name != "record" || rec.Fields[0].Name != "type" {
		t.Errorf("unexpected record %+v", rec)
	}
	fn := iface.Items[1].(*ast.FuncDecl)
	if fn.Name != "list" || fn.Params[0].Name != "string" {
		t.Errorf("unexpected func %+v", fn)
	}
	if named, ok := fn.Params[0].Type.(*ast.Named); !ok || named.Name != "record" {
		t.Errorf("escaped type reference: got %#v", fn.Params[0].Type)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"missing brace", "record point x: u32 }", 1, 14},
		{"missing colon", "f func()", 1, 3},
		{"keyword as name", "record type { }", 1, 8},
		{"unterminated interface", "interface a {\n f: func()", 2, 11},
		{"use rejected", "use foo", 1, 1},
		{"two interfaces", "interface a {}\ninterface b {}", 2, 1},
		{"bad result", "f: func() -> result<_>", 1, 22},
		{"keyword type", "type x = func", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.input, "bad.wit")
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
				t.Errorf("pos: got %d:%d, want %d:%d (%v)", se.Pos.Line, se.Pos.Column, tt.line, tt.col, err)
			}
		})
	}
}

func TestStemName(t *testing.T) {
	for in, want := range map[string]string{
		"calc.wit":                    "calc",
		"dir/wasmer-pack.exports.wit": "wasmer-pack",
		`C:\wit\geo.wit`:              "geo",
		"":                            "interface",
	} {
		if got := StemName(in); got != want {
			t.Errorf("StemName(%q): got %q, want %q", in, got, want)
		}
	}
}
