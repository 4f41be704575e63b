// Package ast defines the syntax tree produced by the WIT parser.
//
// Nodes keep source order and source positions; they carry no resolved
// type information. The resolver turns a tree into a model.Interface.
package ast

// Pos is a location in WIT source text. Offset is a byte offset, Line and
// Column are 1-based.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// File is one parsed WIT document.
type File struct {
	Filename   string
	Interfaces []*Interface
}

// Interface is an `interface name { ... }` block, or the implicit interface
// formed by items declared at the top level of a file.
type Interface struct {
	Name     string
	Docs     string
	Items    []Item
	Pos      Pos
	Implicit bool
}

// Item is a TypeDecl or a FuncDecl.
type Item interface {
	ItemName() string
	Position() Pos
}

// DeclKind names the form of a type declaration.
type DeclKind int

const (
	DeclRecord DeclKind = iota
	DeclVariant
	DeclEnum
	DeclFlags
	DeclResource
	DeclAlias
)

var declKindNames = [...]string{"record", "variant", "enum", "flags", "resource", "type"}

func (k DeclKind) String() string {
	if int(k) < len(declKindNames) {
		return declKindNames[k]
	}
	return "unknown"
}

// TypeDecl declares a named type. Which of the member slices is populated
// depends on Kind: Fields for records, Cases for variants, Names for enums
// and flags, Target for aliases.
type TypeDecl struct {
	Target Type
	Name   string
	Docs   string
	Fields []*Field
	Cases  []*Case
	Names  []*Name
	Pos    Pos
	Kind   DeclKind
}

func (d *TypeDecl) ItemName() string { return d.Name }
func (d *TypeDecl) Position() Pos    { return d.Pos }

// Field is a named, typed record member or function parameter.
type Field struct {
	Type Type
	Name string
	Docs string
	Pos  Pos
}

// Case is a variant case with an optional payload.
type Case struct {
	Type Type // nil when the case carries no payload
	Name string
	Docs string
	Pos  Pos
}

// Name is an enum case or flag.
type Name struct {
	Name string
	Docs string
	Pos  Pos
}

// FuncDecl declares a function. Results have empty names unless the
// function uses the named result list form.
type FuncDecl struct {
	Name    string
	Docs    string
	Params  []*Field
	Results []*Field
	Pos     Pos
}

func (d *FuncDecl) ItemName() string { return d.Name }
func (d *FuncDecl) Position() Pos    { return d.Pos }

// Type is a type expression.
type Type interface {
	Position() Pos
	String() string
}

// Primitive is a built-in scalar or string type.
type Primitive struct {
	Name string
	Pos  Pos
}

// Named refers to a type declared elsewhere in the interface.
type Named struct {
	Name string
	Pos  Pos
}

// List is list<T>.
type List struct {
	Elem Type
	Pos  Pos
}

// Option is option<T>.
type Option struct {
	Elem Type
	Pos  Pos
}

// Tuple is tuple<T...>.
type Tuple struct {
	Elems []Type
	Pos   Pos
}

// Result is result<T, E>; either side may be nil.
type Result struct {
	OK  Type
	Err Type
	Pos Pos
}

// HandleKind distinguishes the handle spellings.
type HandleKind int

const (
	HandleOwn HandleKind = iota
	HandleBorrow
)

// Handle is handle<R>, own<R> or borrow<R>. A handle is an opaque index
// and never contains its referent by value.
type Handle struct {
	Resource string
	Pos      Pos
	Kind     HandleKind
}

func (t *Primitive) Position() Pos { return t.Pos }
func (t *Named) Position() Pos     { return t.Pos }
func (t *List) Position() Pos      { return t.Pos }
func (t *Option) Position() Pos    { return t.Pos }
func (t *Tuple) Position() Pos     { return t.Pos }
func (t *Result) Position() Pos    { return t.Pos }
func (t *Handle) Position() Pos    { return t.Pos }

func (t *Primitive) String() string { return t.Name }
func (t *Named) String() string     { return t.Name }
func (t *List) String() string      { return "list<" + t.Elem.String() + ">" }
func (t *Option) String() string    { return "option<" + t.Elem.String() + ">" }

func (t *Tuple) String() string {
	s := "tuple<"
	for i, e := range t.Elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + ">"
}

func (t *Result) String() string {
	switch {
	case t.OK == nil && t.Err == nil:
		return "result"
	case t.Err == nil:
		return "result<" + t.OK.String() + ">"
	case t.OK == nil:
		return "result<_, " + t.Err.String() + ">"
	}
	return "result<" + t.OK.String() + ", " + t.Err.String() + ">"
}

func (t *Handle) String() string {
	if t.Kind == HandleBorrow {
		return "borrow<" + t.Resource + ">"
	}
	return "own<" + t.Resource + ">"
}
