package witsrc

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/model"
)

// Format prints an interface as canonical WIT: an interface block with one
// declaration per line in model order. Loading the output yields an
// equivalent interface.
func Format(iface *model.Interface) string {
	var b strings.Builder
	writeDocs(&b, "", iface.Docs)
	b.WriteString("interface ")
	b.WriteString(Ident(iface.Name))
	b.WriteString(" {\n")

	for i, td := range iface.Types {
		if i > 0 {
			b.WriteByte('\n')
		}
		formatTypeDef(&b, td)
	}
	if len(iface.Types) > 0 && len(iface.Funcs) > 0 {
		b.WriteByte('\n')
	}
	for _, fn := range iface.Funcs {
		writeDocs(&b, "  ", fn.Docs)
		b.WriteString("  ")
		b.WriteString(FuncSignature(fn))
		b.WriteString(";\n")
	}

	b.WriteString("}\n")
	return b.String()
}

// Ident escapes keywords with '%'.
func Ident(name string) string {
	if IsKeyword(name) {
		return "%" + name
	}
	return name
}

func writeDocs(b *strings.Builder, indent, docs string) {
	if docs == "" {
		return
	}
	for _, line := range strings.Split(docs, "\n") {
		b.WriteString(indent)
		b.WriteString("/// ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func formatTypeDef(b *strings.Builder, td *model.TypeDef) {
	writeDocs(b, "  ", td.Docs)
	name := Ident(td.Name)
	member := func(n string) {
		writeDocs(b, "    ", td.MemberDocs[n])
		b.WriteString("    ")
		b.WriteString(Ident(n))
	}

	switch k := td.Def.Kind.(type) {
	case *wit.Record:
		b.WriteString("  record " + name + " {\n")
		for _, f := range k.Fields {
			member(f.Name)
			b.WriteString(": " + TypeString(f.Type) + ",\n")
		}
		b.WriteString("  }\n")
	case *wit.Variant:
		b.WriteString("  variant " + name + " {\n")
		for _, c := range k.Cases {
			member(c.Name)
			if c.Type != nil {
				b.WriteString("(" + TypeString(c.Type) + ")")
			}
			b.WriteString(",\n")
		}
		b.WriteString("  }\n")
	case *wit.Enum:
		b.WriteString("  enum " + name + " {\n")
		for _, c := range k.Cases {
			member(c.Name)
			b.WriteString(",\n")
		}
		b.WriteString("  }\n")
	case *wit.Flags:
		b.WriteString("  flags " + name + " {\n")
		for _, f := range k.Flags {
			member(f.Name)
			b.WriteString(",\n")
		}
		b.WriteString("  }\n")
	case *wit.Resource:
		b.WriteString("  resource " + name + ";\n")
	default:
		b.WriteString("  type " + name + " = " + kindString(td.Def.Kind) + ";\n")
	}
}

// FuncSignature renders `name: func(params) -> results`.
func FuncSignature(fn *model.Function) string {
	var b strings.Builder
	b.WriteString(Ident(fn.Name))
	b.WriteString(": func(")
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Ident(p.Name))
		b.WriteString(": ")
		b.WriteString(TypeString(p.Type))
	}
	b.WriteByte(')')

	switch {
	case len(fn.Results) == 1 && fn.Results[0].Name == "":
		b.WriteString(" -> ")
		b.WriteString(TypeString(fn.Results[0].Type))
	case len(fn.Results) > 0:
		b.WriteString(" -> (")
		for i, r := range fn.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			if r.Name != "" {
				b.WriteString(Ident(r.Name))
				b.WriteString(": ")
			}
			b.WriteString(TypeString(r.Type))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// TypeString renders a type reference: named types by name, anonymous
// types structurally.
func TypeString(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok {
		if td.Name != nil {
			return Ident(*td.Name)
		}
		return kindString(td.Kind)
	}
	return primitiveName(t)
}

func kindString(k wit.TypeDefKind) string {
	switch k := k.(type) {
	case *wit.List:
		return "list<" + TypeString(k.Type) + ">"
	case *wit.Option:
		return "option<" + TypeString(k.Type) + ">"
	case *wit.Tuple:
		parts := make([]string, len(k.Types))
		for i, e := range k.Types {
			parts[i] = TypeString(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case *wit.Result:
		switch {
		case k.OK == nil && k.Err == nil:
			return "result"
		case k.Err == nil:
			return "result<" + TypeString(k.OK) + ">"
		case k.OK == nil:
			return "result<_, " + TypeString(k.Err) + ">"
		}
		return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
	case *wit.Own:
		return "own<" + handleTarget(k.Type) + ">"
	case *wit.Borrow:
		return "borrow<" + handleTarget(k.Type) + ">"
	case wit.Type:
		return TypeString(k)
	}
	return "<unknown>"
}

func handleTarget(td *wit.TypeDef) string {
	if td == nil || td.Name == nil {
		return "<anonymous>"
	}
	return Ident(*td.Name)
}

func primitiveName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.S8:
		return "s8"
	case wit.S16:
		return "s16"
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	}
	return "<unknown>"
}
