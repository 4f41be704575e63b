package codegen

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/model"
)

// Type kinds as they appear in descriptors.
const (
	KindRecord   = "record"
	KindTuple    = "tuple"
	KindVariant  = "variant"
	KindEnum     = "enum"
	KindFlags    = "flags"
	KindOption   = "option"
	KindResult   = "result"
	KindList     = "list"
	KindOwn      = "own"
	KindBorrow   = "borrow"
	KindResource = "resource"
	KindAlias    = "alias"
)

// TypeEntry is one row of a TypeTable.
type TypeEntry struct {
	Type wit.Type
	// Decl is the declaration for named types, nil otherwise.
	Decl   *model.TypeDef
	Kind   string
	Name   string
	Layout abi.Layout
	Index  int
}

// Named reports whether the interface declares this type.
func (e *TypeEntry) Named() bool {
	return e.Decl != nil
}

// TypeTable lists every type reachable from an interface, each once, with
// its canonical ABI layout. Declared types come first in declaration
// order, followed by anonymous and primitive types in the order a
// depth-first walk of the declarations and then the functions meets them.
// Handles record their resource but are not walked into.
type TypeTable struct {
	calc    *abi.Calculator
	index   map[any]int
	entries []*TypeEntry
}

// NewTypeTable builds the table for iface.
func NewTypeTable(iface *model.Interface, calc *abi.Calculator) (*TypeTable, error) {
	if calc == nil {
		calc = abi.NewCalculator()
	}
	t := &TypeTable{calc: calc, index: make(map[any]int)}

	for _, td := range iface.Types {
		if _, err := t.add(td.Def, td); err != nil {
			return nil, err
		}
	}
	for _, td := range iface.Types {
		if err := t.walk(td.Def); err != nil {
			return nil, err
		}
	}
	for _, fn := range iface.Funcs {
		for _, p := range fn.Params {
			if err := t.visit(p.Type); err != nil {
				return nil, err
			}
		}
		for _, r := range fn.Results {
			if err := t.visit(r.Type); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func key(t wit.Type) any {
	if td, ok := t.(*wit.TypeDef); ok {
		return td
	}
	return abi.TypeName(t)
}

// add appends t unless present and reports whether it was new.
func (t *TypeTable) add(typ wit.Type, decl *model.TypeDef) (bool, error) {
	k := key(typ)
	if _, ok := t.index[k]; ok {
		return false, nil
	}
	l, err := t.calc.Layout(typ)
	if err != nil {
		return false, err
	}
	e := &TypeEntry{
		Type:   typ,
		Decl:   decl,
		Kind:   kindOf(typ),
		Name:   abi.TypeName(typ),
		Layout: l,
		Index:  len(t.entries),
	}
	if decl != nil {
		e.Name = decl.Name
	}
	t.index[k] = e.Index
	t.entries = append(t.entries, e)
	return true, nil
}

func (t *TypeTable) visit(typ wit.Type) error {
	if typ == nil {
		return nil
	}
	fresh, err := t.add(typ, nil)
	if err != nil || !fresh {
		return err
	}
	return t.walk(typ)
}

// walk visits the types directly referenced by typ.
func (t *TypeTable) walk(typ wit.Type) error {
	td, ok := typ.(*wit.TypeDef)
	if !ok {
		return nil
	}
	for _, child := range Children(td) {
		if err := t.visit(child); err != nil {
			return err
		}
	}
	return nil
}

// Children returns the types a definition refers to, in member order.
// Handles yield their resource, whose definition has no children.
func Children(td *wit.TypeDef) []wit.Type {
	switch k := td.Kind.(type) {
	case *wit.Record:
		out := make([]wit.Type, len(k.Fields))
		for i, f := range k.Fields {
			out[i] = f.Type
		}
		return out
	case *wit.Tuple:
		return k.Types
	case *wit.Variant:
		var out []wit.Type
		for _, c := range k.Cases {
			if c.Type != nil {
				out = append(out, c.Type)
			}
		}
		return out
	case *wit.Option:
		return []wit.Type{k.Type}
	case *wit.Result:
		var out []wit.Type
		if k.OK != nil {
			out = append(out, k.OK)
		}
		if k.Err != nil {
			out = append(out, k.Err)
		}
		return out
	case *wit.List:
		return []wit.Type{k.Type}
	case *wit.Own:
		return []wit.Type{k.Type}
	case *wit.Borrow:
		return []wit.Type{k.Type}
	case wit.Type:
		return []wit.Type{k}
	}
	return nil
}

func kindOf(typ wit.Type) string {
	td, ok := typ.(*wit.TypeDef)
	if !ok {
		return abi.TypeName(typ)
	}
	switch td.Kind.(type) {
	case *wit.Record:
		return KindRecord
	case *wit.Tuple:
		return KindTuple
	case *wit.Variant:
		return KindVariant
	case *wit.Enum:
		return KindEnum
	case *wit.Flags:
		return KindFlags
	case *wit.Option:
		return KindOption
	case *wit.Result:
		return KindResult
	case *wit.List:
		return KindList
	case *wit.Own:
		return KindOwn
	case *wit.Borrow:
		return KindBorrow
	case *wit.Resource:
		return KindResource
	case wit.Type:
		return KindAlias
	}
	return "unknown"
}

// Entries returns the table rows in order.
func (t *TypeTable) Entries() []*TypeEntry {
	return t.entries
}

// Index returns the row of typ, or -1 for nil and unknown types.
func (t *TypeTable) Index(typ wit.Type) int {
	if typ == nil {
		return -1
	}
	if i, ok := t.index[key(typ)]; ok {
		return i
	}
	return -1
}

// Entry returns the row of typ, or nil.
func (t *TypeTable) Entry(typ wit.Type) *TypeEntry {
	if i := t.Index(typ); i >= 0 {
		return t.entries[i]
	}
	return nil
}

// Calculator returns the layout calculator the table was built with.
func (t *TypeTable) Calculator() *abi.Calculator {
	return t.calc
}

// Unalias follows alias definitions to the underlying type.
func Unalias(typ wit.Type) wit.Type {
	for {
		td, ok := typ.(*wit.TypeDef)
		if !ok {
			return typ
		}
		inner, ok := td.Kind.(wit.Type)
		if !ok {
			return typ
		}
		switch td.Kind.(type) {
		case *wit.Record, *wit.Tuple, *wit.Variant, *wit.Enum, *wit.Flags,
			*wit.Option, *wit.Result, *wit.List, *wit.Own, *wit.Borrow, *wit.Resource:
			return typ
		}
		typ = inner
	}
}
