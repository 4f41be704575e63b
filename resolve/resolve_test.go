package resolve_test

import (
	"errors"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	werrors "github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/resolve"
	"github.com/wippyai/wasm-pack/witsrc"
)

func load(t *testing.T, src string) (*model.Interface, error) {
	t.Helper()
	file, err := witsrc.Parse(src, "test.wit")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ifaces, err := resolve.File(file)
	if err != nil {
		return nil, err
	}
	return ifaces[0], nil
}

func TestResolve_Order(t *testing.T) {
	iface, err := load(t, `
		record point { y: s32, x: s32 }
		enum color { red, green }
		sub: func(b: u32, a: u32) -> u32
		add: func(a: u32, b: u32) -> u32
	`)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if iface.Name != "test" {
		t.Errorf("name: got %q, want test", iface.Name)
	}
	if len(iface.Types) != 2 || iface.Types[0].Name != "point" || iface.Types[1].Name != "color" {
		t.Fatalf("types out of order: %v", iface.Types)
	}
	rec := iface.Types[0].Def.Kind.(*wit.Record)
	if rec.Fields[0].Name != "y" || rec.Fields[1].Name != "x" {
		t.Errorf("fields reordered: %v", rec.Fields)
	}
	if iface.Funcs[0].Name != "sub" || iface.Funcs[1].Name != "add" {
		t.Errorf("functions reordered")
	}
	if iface.Funcs[0].Params[0].Name != "b" {
		t.Errorf("params reordered")
	}
	if *iface.Types[0].Def.Name != "point" {
		t.Errorf("wit name not set")
	}
}

func TestResolve_References(t *testing.T) {
	iface, err := load(t, `
		record point { x: s32, y: s32 }
		type points = list<point>
		resource file
		open: func(path: string) -> result<file, string>
		centroid: func(p: points) -> option<point>
	`)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	point, _ := iface.Type("point")
	points, _ := iface.Type("points")
	list, ok := points.Def.Kind.(*wit.TypeDef).Kind.(*wit.List)
	if !ok {
		t.Fatalf("points: expected list, got %T", points.Def.Kind)
	}
	if list.Type != point.Def {
		t.Errorf("list element should be the point definition")
	}

	open, _ := iface.Function("open")
	res := open.Results[0].Type.(*wit.TypeDef).Kind.(*wit.Result)
	own, ok := res.OK.(*wit.TypeDef).Kind.(*wit.Own)
	if !ok {
		t.Fatalf("bare resource name should resolve to own handle, got %T", res.OK)
	}
	file, _ := iface.Type("file")
	if own.Type != file.Def {
		t.Errorf("own should point at the resource")
	}
	if !iface.HasResources() {
		t.Errorf("HasResources should be true")
	}
	if iface.TypeName(point.Def) != "point" {
		t.Errorf("TypeName: got %q", iface.TypeName(point.Def))
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		sentinel error
		contains string
	}{
		{"duplicate type", "record a { x: u8 }\nenum a { b }", werrors.ErrDuplicateName, `type "a"`},
		{"duplicate function", "f: func()\nf: func(x: u8)", werrors.ErrDuplicateName, `function "f"`},
		{"type and function", "record f { x: u8 }\nf: func()", werrors.ErrDuplicateName, `"f"`},
		{"duplicate field", "record a { x: u8, x: u16 }", werrors.ErrDuplicateName, `field "x"`},
		{"duplicate case", "variant v { a, a(u8) }", werrors.ErrDuplicateName, `case "a"`},
		{"duplicate param", "f: func(a: u8, a: u8)", werrors.ErrDuplicateName, `parameter "a"`},
		{"unknown field type", "record a { x: coord }", werrors.ErrUnknownType, `"coord"`},
		{"unknown param type", "f: func(x: list<nope>)", werrors.ErrUnknownType, `"nope"`},
		{"unknown handle", "f: func(x: handle<nope>)", werrors.ErrUnknownType, `"nope"`},
		{"self cycle", "record node { next: option<node> }", werrors.ErrCyclicType, "node -> node"},
		{"mutual cycle", "record a { b: b }\nrecord b { a: list<a> }", werrors.ErrCyclicType, "a -> b -> a"},
		{"alias cycle", "type a = b\ntype b = tuple<a>", werrors.ErrCyclicType, "a -> b -> a"},
		{"empty variant", "variant v { }", werrors.New(werrors.PhaseResolve, werrors.KindInvalidInput).Build(), "no cases"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestResolve_TooManyFlags(t *testing.T) {
	names := make([]string, 65)
	for i := range names {
		names[i] = "f" + strings.Repeat("a", i+1)
	}
	_, err := load(t, "flags big { "+strings.Join(names, ", ")+" }")
	if !errors.Is(err, werrors.ErrTooManyFlags) {
		t.Fatalf("expected too many flags, got %v", err)
	}

	_, err = load(t, "flags ok { "+strings.Join(names[:64], ", ")+" }")
	if err != nil {
		t.Fatalf("64 flags should resolve: %v", err)
	}
}

func TestResolve_AllErrorsReported(t *testing.T) {
	_, err := load(t, `
		record a { x: missing }
		record a { y: u8 }
		record node { next: node }
	`)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sentinel := range []error{werrors.ErrUnknownType, werrors.ErrDuplicateName, werrors.ErrCyclicType} {
		if !errors.Is(err, sentinel) {
			t.Errorf("missing %v in %v", sentinel, err)
		}
	}
}

func TestResolve_HandleBreaksCycle(t *testing.T) {
	iface, err := load(t, `
		record node { value: u32, next: option<handle<node>> }
		walk: func(start: node) -> list<node>
	`)
	if err != nil {
		t.Fatalf("handle should break the cycle: %v", err)
	}
	node, _ := iface.Type("node")
	next := node.Def.Kind.(*wit.Record).Fields[1].Type.(*wit.TypeDef).Kind.(*wit.Option)
	own := next.Type.(*wit.TypeDef).Kind.(*wit.Own)
	if own.Type != node.Def {
		t.Errorf("handle should point back at node")
	}
}

func TestResolve_Docs(t *testing.T) {
	iface, err := load(t, `
		/// A point.
		record point {
			/// Horizontal.
			x: s32,
		}
		/// Adds.
		add: func(a: u32) -> u32
	`)
	if err != nil {
		t.Fatal(err)
	}
	if iface.Types[0].Docs != "A point." || iface.Types[0].MemberDocs["x"] != "Horizontal." {
		t.Errorf("type docs: %+v", iface.Types[0])
	}
	if iface.Funcs[0].Docs != "Adds." {
		t.Errorf("func docs: %q", iface.Funcs[0].Docs)
	}
}
