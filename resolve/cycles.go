package resolve

import (
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/witsrc/ast"
)

// valueRefs lists the named types t contains by value. Handles are opaque
// indices and contribute nothing.
func valueRefs(t ast.Type, out []string) []string {
	switch tt := t.(type) {
	case *ast.Named:
		return append(out, tt.Name)
	case *ast.List:
		return valueRefs(tt.Elem, out)
	case *ast.Option:
		return valueRefs(tt.Elem, out)
	case *ast.Tuple:
		for _, e := range tt.Elems {
			out = valueRefs(e, out)
		}
	case *ast.Result:
		if tt.OK != nil {
			out = valueRefs(tt.OK, out)
		}
		if tt.Err != nil {
			out = valueRefs(tt.Err, out)
		}
	}
	return out
}

func declRefs(d *ast.TypeDecl) []string {
	var out []string
	switch d.Kind {
	case ast.DeclRecord:
		for _, f := range d.Fields {
			out = valueRefs(f.Type, out)
		}
	case ast.DeclVariant:
		for _, c := range d.Cases {
			if c.Type != nil {
				out = valueRefs(c.Type, out)
			}
		}
	case ast.DeclAlias:
		out = valueRefs(d.Target, out)
	}
	return out
}

const (
	white = iota
	grey
	black
)

// checkCycles reports each by-value cycle once, naming its members in
// declaration order starting from the first declared member.
func (r *resolver) checkCycles() {
	color := make(map[string]int, len(r.order))
	var stack []string

	var visit func(name string)
	visit = func(name string) {
		color[name] = grey
		stack = append(stack, name)

		for _, ref := range declRefs(r.decls[name]) {
			if _, ok := r.decls[ref]; !ok {
				continue
			}
			switch color[ref] {
			case white:
				visit(ref)
			case grey:
				start := len(stack) - 1
				for stack[start] != ref {
					start--
				}
				cycle := append(append([]string(nil), stack[start:]...), ref)
				r.fail(errors.CyclicType(cycle))
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
	}

	for _, d := range r.order {
		if color[d.Name] == white {
			visit(d.Name)
		}
	}
}
