package resolve

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc/ast"
)

func primitive(name string) wit.Type {
	switch name {
	case "bool":
		return wit.Bool{}
	case "u8":
		return wit.U8{}
	case "u16":
		return wit.U16{}
	case "u32":
		return wit.U32{}
	case "u64":
		return wit.U64{}
	case "s8":
		return wit.S8{}
	case "s16":
		return wit.S16{}
	case "s32":
		return wit.S32{}
	case "s64":
		return wit.S64{}
	case "f32":
		return wit.F32{}
	case "f64":
		return wit.F64{}
	case "char":
		return wit.Char{}
	case "string":
		return wit.String{}
	}
	return nil
}

// uniqueMembers reports member names that appear more than once.
func (r *resolver) uniqueMembers(owner, what string, names []string) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			r.fail(errors.DuplicateName(r.path(owner), what, n))
		}
		seen[n] = true
	}
}

func (r *resolver) buildType(d *ast.TypeDecl) *model.TypeDef {
	def := r.defs[d.Name]
	td := &model.TypeDef{Name: d.Name, Docs: d.Docs, Def: def}
	docs := make(map[string]string)

	switch d.Kind {
	case ast.DeclRecord:
		rec := &wit.Record{}
		names := make([]string, 0, len(d.Fields))
		for _, f := range d.Fields {
			names = append(names, f.Name)
			rec.Fields = append(rec.Fields, wit.Field{
				Name: f.Name,
				Type: r.convert(f.Type, d.Name, f.Name),
			})
			if f.Docs != "" {
				docs[f.Name] = f.Docs
			}
		}
		r.uniqueMembers(d.Name, "field", names)
		def.Kind = rec

	case ast.DeclVariant:
		if len(d.Cases) == 0 {
			r.fail(r.empty(d))
		}
		v := &wit.Variant{}
		names := make([]string, 0, len(d.Cases))
		for _, c := range d.Cases {
			names = append(names, c.Name)
			var payload wit.Type
			if c.Type != nil {
				payload = r.convert(c.Type, d.Name, c.Name)
			}
			v.Cases = append(v.Cases, wit.Case{Name: c.Name, Type: payload})
			if c.Docs != "" {
				docs[c.Name] = c.Docs
			}
		}
		r.uniqueMembers(d.Name, "case", names)
		def.Kind = v

	case ast.DeclEnum:
		if len(d.Names) == 0 {
			r.fail(r.empty(d))
		}
		e := &wit.Enum{}
		for _, n := range d.Names {
			e.Cases = append(e.Cases, wit.EnumCase{Name: n.Name})
			if n.Docs != "" {
				docs[n.Name] = n.Docs
			}
		}
		r.uniqueMembers(d.Name, "case", nameList(d.Names))
		def.Kind = e

	case ast.DeclFlags:
		if len(d.Names) > MaxFlags {
			r.fail(errors.New(errors.PhaseResolve, errors.KindTooManyFlags).
				Path(r.path(d.Name)...).
				Detail("%d flags declared, at most %d supported", len(d.Names), MaxFlags).
				Build())
		}
		f := &wit.Flags{}
		for _, n := range d.Names {
			f.Flags = append(f.Flags, wit.Flag{Name: n.Name})
			if n.Docs != "" {
				docs[n.Name] = n.Docs
			}
		}
		r.uniqueMembers(d.Name, "flag", nameList(d.Names))
		def.Kind = f

	case ast.DeclResource:
		def.Kind = &wit.Resource{}

	case ast.DeclAlias:
		def.Kind = r.convert(d.Target, d.Name)
	}

	if len(docs) > 0 {
		td.MemberDocs = docs
	}
	return td
}

func (r *resolver) empty(d *ast.TypeDecl) error {
	return errors.New(errors.PhaseResolve, errors.KindInvalidInput).
		Path(r.path(d.Name)...).
		Detail("%s %q declares no cases", d.Kind, d.Name).
		Build()
}

func nameList(names []*ast.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.Name
	}
	return out
}

func (r *resolver) buildFunc(d *ast.FuncDecl) *model.Function {
	fn := &model.Function{Name: d.Name, Docs: d.Docs}

	params := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		params = append(params, p.Name)
		fn.Params = append(fn.Params, model.Param{Name: p.Name, Type: r.convert(p.Type, d.Name, p.Name)})
	}
	r.uniqueMembers(d.Name, "parameter", params)

	var named []string
	for i, res := range d.Results {
		elem := res.Name
		if elem == "" {
			elem = fmt.Sprintf("result%d", i)
		} else {
			named = append(named, res.Name)
		}
		fn.Results = append(fn.Results, model.Param{Name: res.Name, Type: r.convert(res.Type, d.Name, elem)})
	}
	r.uniqueMembers(d.Name, "result", named)
	return fn
}

// convert builds the wit type for a type expression. Unknown names are
// reported and replaced by u8 so that building can continue.
func (r *resolver) convert(t ast.Type, path ...string) wit.Type {
	switch tt := t.(type) {
	case *ast.Primitive:
		return primitive(tt.Name)

	case *ast.Named:
		def, ok := r.defs[tt.Name]
		if !ok {
			r.fail(errors.UnknownType(r.path(path...), tt.Name))
			return wit.U8{}
		}
		if r.decls[tt.Name].Kind == ast.DeclResource {
			return &wit.TypeDef{Kind: &wit.Own{Type: def}}
		}
		return def

	case *ast.List:
		return &wit.TypeDef{Kind: &wit.List{Type: r.convert(tt.Elem, path...)}}

	case *ast.Option:
		return &wit.TypeDef{Kind: &wit.Option{Type: r.convert(tt.Elem, path...)}}

	case *ast.Tuple:
		tup := &wit.Tuple{}
		for _, e := range tt.Elems {
			tup.Types = append(tup.Types, r.convert(e, path...))
		}
		return &wit.TypeDef{Kind: tup}

	case *ast.Result:
		res := &wit.Result{}
		if tt.OK != nil {
			res.OK = r.convert(tt.OK, path...)
		}
		if tt.Err != nil {
			res.Err = r.convert(tt.Err, path...)
		}
		return &wit.TypeDef{Kind: res}

	case *ast.Handle:
		def, ok := r.defs[tt.Resource]
		if !ok {
			r.fail(errors.UnknownType(r.path(path...), tt.Resource))
			return wit.U32{}
		}
		if tt.Kind == ast.HandleBorrow {
			return &wit.TypeDef{Kind: &wit.Borrow{Type: def}}
		}
		return &wit.TypeDef{Kind: &wit.Own{Type: def}}
	}
	return nil
}
