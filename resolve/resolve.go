// Package resolve turns parsed WIT syntax into a model.Interface.
//
// Resolution runs in three passes over an interface: collect declarations
// (duplicate names), find by-value cycles between named types, then build
// the wit type graph (unknown names, malformed members). Every problem
// found is reported; the returned error combines them and matches each
// individual kind with errors.Is.
package resolve

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc/ast"
)

// MaxFlags is the largest flags declaration representable in one integer.
const MaxFlags = 64

// File resolves every interface in a parsed file.
func File(file *ast.File) ([]*model.Interface, error) {
	var (
		out  []*model.Interface
		errs error
	)
	for _, decl := range file.Interfaces {
		iface, err := Interface(decl)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, iface)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

type resolver struct {
	decl  *ast.Interface
	decls map[string]*ast.TypeDecl
	defs  map[string]*wit.TypeDef
	errs  error
	order []*ast.TypeDecl
	funcs []*ast.FuncDecl
}

// Interface resolves a single interface declaration.
func Interface(decl *ast.Interface) (*model.Interface, error) {
	r := &resolver{
		decl:  decl,
		decls: make(map[string]*ast.TypeDecl),
		defs:  make(map[string]*wit.TypeDef),
	}
	r.collect()
	r.checkCycles()

	types := make([]*model.TypeDef, 0, len(r.order))
	for _, td := range r.order {
		types = append(types, r.buildType(td))
	}
	funcs := make([]*model.Function, 0, len(r.funcs))
	for _, fn := range r.funcs {
		funcs = append(funcs, r.buildFunc(fn))
	}

	if r.errs != nil {
		return nil, r.errs
	}
	return model.NewInterface(decl.Name, decl.Docs, types, funcs), nil
}

func (r *resolver) fail(err error) {
	r.errs = multierr.Append(r.errs, err)
}

func (r *resolver) path(elems ...string) []string {
	return append([]string{r.decl.Name}, elems...)
}

// collect registers every declaration name. Types and functions share one
// namespace.
func (r *resolver) collect() {
	seen := make(map[string]bool)
	for _, item := range r.decl.Items {
		name := item.ItemName()
		if seen[name] {
			what := "function"
			if _, ok := item.(*ast.TypeDecl); ok {
				what = "type"
			}
			r.fail(errors.DuplicateName(r.path(), what, name))
			continue
		}
		seen[name] = true

		switch it := item.(type) {
		case *ast.TypeDecl:
			n := it.Name
			r.decls[n] = it
			r.defs[n] = &wit.TypeDef{Name: &n}
			r.order = append(r.order, it)
		case *ast.FuncDecl:
			r.funcs = append(r.funcs, it)
		}
	}
}
