package model

import (
	"go.bytecodealliance.org/wit"
)

// Interface is a resolved WIT interface: named types and functions in
// declaration order. It is immutable once returned by the resolver.
type Interface struct {
	byType map[*wit.TypeDef]*TypeDef
	byName map[string]*TypeDef
	funcs  map[string]*Function
	Name   string
	Docs   string
	Types  []*TypeDef
	Funcs  []*Function
}

// TypeDef is a named type declared by an interface. Def.Kind holds the
// structure: a wit record, variant, enum, flags, resource, or for aliases
// the aliased type itself.
type TypeDef struct {
	Def  *wit.TypeDef
	Name string
	Docs string
	// Member docs keyed by field, case or flag name.
	MemberDocs map[string]string
}

// Function is an interface function.
type Function struct {
	Name    string
	Docs    string
	Params  []Param
	Results []Param
}

// Param is a function parameter or result. Result names are empty unless
// the function declares a named result list.
type Param struct {
	Type wit.Type
	Name string
}

// NewInterface indexes types and functions. The slices are kept in the
// order given.
func NewInterface(name, docs string, types []*TypeDef, funcs []*Function) *Interface {
	iface := &Interface{
		Name:   name,
		Docs:   docs,
		Types:  types,
		Funcs:  funcs,
		byType: make(map[*wit.TypeDef]*TypeDef, len(types)),
		byName: make(map[string]*TypeDef, len(types)),
		funcs:  make(map[string]*Function, len(funcs)),
	}
	for _, td := range types {
		iface.byType[td.Def] = td
		iface.byName[td.Name] = td
	}
	for _, fn := range funcs {
		iface.funcs[fn.Name] = fn
	}
	return iface
}

// Type looks up a declared type by its WIT name.
func (i *Interface) Type(name string) (*TypeDef, bool) {
	td, ok := i.byName[name]
	return td, ok
}

// Function looks up a function by its WIT name.
func (i *Interface) Function(name string) (*Function, bool) {
	fn, ok := i.funcs[name]
	return fn, ok
}

// Declared returns the named declaration behind a wit type, if any.
func (i *Interface) Declared(td *wit.TypeDef) (*TypeDef, bool) {
	d, ok := i.byType[td]
	return d, ok
}

// TypeName returns the WIT name of a declared type, or "" for anonymous ones.
func (i *Interface) TypeName(td *wit.TypeDef) string {
	if d, ok := i.byType[td]; ok {
		return d.Name
	}
	return ""
}

// HasResources reports whether the interface declares a resource.
func (i *Interface) HasResources() bool {
	for _, td := range i.Types {
		if _, ok := td.Def.Kind.(*wit.Resource); ok {
			return true
		}
	}
	return false
}
