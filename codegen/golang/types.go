package golang

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/errors"
)

var primitives = map[string]string{
	"bool":   "bool",
	"u8":     "uint8",
	"u16":    "uint16",
	"u32":    "uint32",
	"u64":    "uint64",
	"s8":     "int8",
	"s16":    "int16",
	"s32":    "int32",
	"s64":    "int64",
	"f32":    "float32",
	"f64":    "float64",
	"char":   "rune",
	"string": "string",
}

// typeExpr renders the Go type of t. Declared types use their identifier;
// anonymous types are spelled out.
func (l *library) typeExpr(t wit.Type) (string, error) {
	if t == nil {
		return "struct{}", nil
	}
	td, ok := t.(*wit.TypeDef)
	if !ok {
		if s, ok := primitives[abi.TypeName(t)]; ok {
			return s, nil
		}
		return "", errors.UnsupportedType("go", abi.TypeName(t), "no Go equivalent")
	}
	if name, ok := l.names[td]; ok {
		return name, nil
	}
	return l.kindExpr(td)
}

// kindExpr spells out the structure of td, ignoring any identifier it was
// declared under. Aliases use it for their right-hand side.
func (l *library) kindExpr(td *wit.TypeDef) (string, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return "[]byte", nil
		}
		elem, err := l.typeExpr(k.Type)
		return "[]" + elem, err
	case *wit.Option:
		elem, err := l.typeExpr(k.Type)
		return "*" + elem, err
	case *wit.Result:
		okT, err := l.typeExpr(k.OK)
		if err != nil {
			return "", err
		}
		errT, err := l.typeExpr(k.Err)
		if err != nil {
			return "", err
		}
		return "intrinsics.Result[" + okT + ", " + errT + "]", nil
	case *wit.Tuple:
		var b strings.Builder
		b.WriteString("struct {")
		for i, elem := range k.Types {
			et, err := l.typeExpr(elem)
			if err != nil {
				return "", err
			}
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteString(" F" + strconv.Itoa(i) + " " + et)
		}
		b.WriteString(" }")
		return b.String(), nil
	case *wit.Own:
		return l.handleExpr(k.Type)
	case *wit.Borrow:
		return l.handleExpr(k.Type)
	case wit.Type:
		return l.typeExpr(k)
	}
	return "", errors.UnsupportedType("go", abi.TypeName(td), "no Go equivalent")
}

func (l *library) handleExpr(res *wit.TypeDef) (string, error) {
	if _, ok := res.Kind.(*wit.Resource); ok {
		if name, ok := l.names[res]; ok {
			return name, nil
		}
	}
	return "uint32", nil
}

// uintFor is the smallest unsigned type holding size bytes.
func uintFor(size uint32) string {
	switch {
	case size <= 1:
		return "uint8"
	case size == 2:
		return "uint16"
	case size <= 4:
		return "uint32"
	}
	return "uint64"
}
