package abi

import (
	"math"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Layout is the canonical ABI placement of a type: its byte size and
// alignment in linear memory and its flattened core value sequence.
// Layouts are shared by the Calculator cache and must not be modified.
type Layout struct {
	Flat []Slot
	// Offsets holds record field or tuple element offsets, in order.
	Offsets []uint32
	Size    uint32
	Align   uint32
	// Discriminant is the tag width in bytes for variant, enum, option and
	// result types.
	Discriminant uint32
	// PayloadOffset is where variant-like payloads start.
	PayloadOffset uint32
}

// Calculator computes layouts, memoized per type definition. It is not
// safe for concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Layout
	busy  map[*wit.TypeDef]bool
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Layout),
		busy:  make(map[*wit.TypeDef]bool),
	}
}

var (
	scalar1 = Layout{Size: 1, Align: 1, Flat: []Slot{I32}}
	scalar2 = Layout{Size: 2, Align: 2, Flat: []Slot{I32}}
	scalar4 = Layout{Size: 4, Align: 4, Flat: []Slot{I32}}
	float4  = Layout{Size: 4, Align: 4, Flat: []Slot{F32}}
	scalar8 = Layout{Size: 8, Align: 8, Flat: []Slot{I64}}
	float8  = Layout{Size: 8, Align: 8, Flat: []Slot{F64}}
	// string and list<T>: [ptr: u32, len: u32]
	pointerPair = Layout{Size: 8, Align: 4, Flat: []Slot{Pointer, I32}, Offsets: []uint32{0, 4}}
	handle      = Layout{Size: 4, Align: 4, Flat: []Slot{I32}}
	empty       = Layout{Size: 0, Align: 1}
)

// Layout returns the layout of t.
func (c *Calculator) Layout(t wit.Type) (Layout, error) {
	switch typ := t.(type) {
	case nil:
		return empty, nil
	case wit.Bool, wit.U8, wit.S8:
		return scalar1, nil
	case wit.U16, wit.S16:
		return scalar2, nil
	case wit.U32, wit.S32, wit.Char:
		return scalar4, nil
	case wit.F32:
		return float4, nil
	case wit.U64, wit.S64:
		return scalar8, nil
	case wit.F64:
		return float8, nil
	case wit.String:
		return pointerPair, nil
	case *wit.TypeDef:
		return c.typeDef(typ)
	}
	return Layout{}, unsupported(t)
}

func (c *Calculator) typeDef(t *wit.TypeDef) (Layout, error) {
	if cached, ok := c.cache[t]; ok {
		return cached, nil
	}
	if c.busy[t] {
		return Layout{}, errors.New(errors.PhaseLayout, errors.KindCyclicType).
			WitType(TypeName(t)).
			Detail("type contains itself by value").
			Build()
	}
	c.busy[t] = true
	defer delete(c.busy, t)

	var (
		l   Layout
		err error
	)
	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		l, err = c.sequence(t, types)
	case *wit.Tuple:
		l, err = c.sequence(t, kind.Types)
	case *wit.Variant:
		payloads := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			payloads[i] = cs.Type
		}
		l, err = c.variant(t, payloads)
	case *wit.Option:
		l, err = c.variant(t, []wit.Type{nil, kind.Type})
	case *wit.Result:
		l, err = c.variant(t, []wit.Type{kind.OK, kind.Err})
	case *wit.Enum:
		size := DiscriminantSize(len(kind.Cases))
		l = Layout{Size: size, Align: size, Flat: []Slot{I32}, Discriminant: size}
	case *wit.Flags:
		l, err = flags(t, len(kind.Flags))
	case *wit.List:
		if _, err = c.Layout(kind.Type); err == nil {
			l = pointerPair
		}
	case *wit.Own, *wit.Borrow, *wit.Resource:
		l = handle
	case wit.Type:
		l, err = c.Layout(kind)
	default:
		err = unsupported(t)
	}
	if err != nil {
		return Layout{}, err
	}

	c.cache[t] = l
	return l, nil
}

// sequence lays out fields one after another with C struct rules.
func (c *Calculator) sequence(owner *wit.TypeDef, types []wit.Type) (Layout, error) {
	l := Layout{Align: 1, Offsets: make([]uint32, len(types))}
	offset := uint64(0)
	for i, typ := range types {
		fl, err := c.Layout(typ)
		if err != nil {
			return Layout{}, err
		}
		offset = alignTo64(offset, fl.Align)
		l.Offsets[i] = uint32(offset)
		offset += uint64(fl.Size)
		if offset > math.MaxUint32 {
			return Layout{}, errors.TypeTooLarge(TypeName(owner), offset)
		}
		if fl.Align > l.Align {
			l.Align = fl.Align
		}
		l.Flat = append(l.Flat, fl.Flat...)
	}
	size := alignTo64(offset, l.Align)
	if size > math.MaxUint32 {
		return Layout{}, errors.TypeTooLarge(TypeName(owner), size)
	}
	l.Size = uint32(size)
	return l, nil
}

// variant lays out a discriminant followed by the largest payload; nil
// payloads are empty cases.
func (c *Calculator) variant(owner *wit.TypeDef, payloads []wit.Type) (Layout, error) {
	disc := DiscriminantSize(len(payloads))
	l := Layout{Align: disc, Discriminant: disc}
	var (
		maxSize uint64
		joined  []Slot
	)
	for _, p := range payloads {
		if p == nil {
			continue
		}
		pl, err := c.Layout(p)
		if err != nil {
			return Layout{}, err
		}
		if pl.Align > l.Align {
			l.Align = pl.Align
		}
		if uint64(pl.Size) > maxSize {
			maxSize = uint64(pl.Size)
		}
		for i, s := range pl.Flat {
			if i < len(joined) {
				joined[i] = Join(joined[i], s)
			} else {
				joined = append(joined, s)
			}
		}
	}

	payloadOffset := alignTo64(uint64(disc), l.Align)
	size := alignTo64(payloadOffset+maxSize, l.Align)
	if size > math.MaxUint32 {
		return Layout{}, errors.TypeTooLarge(TypeName(owner), size)
	}
	l.PayloadOffset = uint32(payloadOffset)
	l.Size = uint32(size)
	l.Flat = append([]Slot{I32}, joined...)
	return l, nil
}

func flags(owner *wit.TypeDef, n int) (Layout, error) {
	switch {
	case n == 0:
		return empty, nil
	case n <= 8:
		return Layout{Size: 1, Align: 1, Flat: []Slot{I32}}, nil
	case n <= 16:
		return Layout{Size: 2, Align: 2, Flat: []Slot{I32}}, nil
	case n <= 32:
		return Layout{Size: 4, Align: 4, Flat: []Slot{I32}}, nil
	case n <= 64:
		return Layout{Size: 8, Align: 8, Flat: []Slot{I64}}, nil
	}
	return Layout{}, errors.New(errors.PhaseLayout, errors.KindTooManyFlags).
		WitType(TypeName(owner)).
		Detail("%d flags do not fit in 64 bits", n).
		Build()
}

func unsupported(t wit.Type) error {
	return errors.New(errors.PhaseLayout, errors.KindUnsupportedType).
		WitType(TypeName(t)).
		Detail("no canonical ABI layout for %T", t).
		Build()
}

// DiscriminantSize is 1 byte for up to 256 cases, 2 for up to 65536, else 4.
func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	return uint32(alignTo64(uint64(offset), align))
}

func alignTo64(offset uint64, align uint32) uint64 {
	if align <= 1 {
		return offset
	}
	a := uint64(align)
	return (offset + a - 1) / a * a
}

// TypeName describes t for diagnostics: its declared name when it has one.
func TypeName(t wit.Type) string {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		if t == nil {
			return "<none>"
		}
		return primitiveName(t)
	}
	if td.Name != nil {
		return *td.Name
	}
	switch td.Kind.(type) {
	case *wit.Record:
		return "record"
	case *wit.Tuple:
		return "tuple"
	case *wit.Variant:
		return "variant"
	case *wit.Option:
		return "option"
	case *wit.Result:
		return "result"
	case *wit.Enum:
		return "enum"
	case *wit.Flags:
		return "flags"
	case *wit.List:
		return "list"
	case *wit.Own:
		return "own"
	case *wit.Borrow:
		return "borrow"
	case wit.Type:
		return TypeName(td.Kind.(wit.Type))
	}
	return "type"
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
	return "unknown"
}
