package abi

import (
	"math"
	"reflect"
	"unicode/utf8"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Codec converts Go values to and from canonical ABI representations:
// flat core values ([]uint64, one entry per Slot) and linear memory.
type Codec struct {
	calc *Calculator
}

// NewCodec creates a codec sharing calc's layout cache; nil makes a new one.
func NewCodec(calc *Calculator) *Codec {
	if calc == nil {
		calc = NewCalculator()
	}
	return &Codec{calc: calc}
}

// Calculator returns the layout calculator backing the codec.
func (c *Codec) Calculator() *Calculator {
	return c.calc
}

// Lower flattens v into core values, allocating guest memory for strings
// and lists.
func (c *Codec) Lower(mem Memory, alloc Allocator, t wit.Type, v any) ([]uint64, error) {
	e := &encoder{calc: c.calc, mem: mem, alloc: alloc}
	return e.lower(t, reflect.ValueOf(v), nil, nil)
}

// Store writes v into linear memory at ptr.
func (c *Codec) Store(mem Memory, alloc Allocator, t wit.Type, ptr uint32, v any) error {
	e := &encoder{calc: c.calc, mem: mem, alloc: alloc}
	return e.store(t, ptr, reflect.ValueOf(v), nil)
}

type encoder struct {
	calc  *Calculator
	mem   Memory
	alloc Allocator
}

func (e *encoder) lower(t wit.Type, rv reflect.Value, path []string, out []uint64) ([]uint64, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		if !isOption(td) {
			rv = indirect(rv)
		}
		return e.lowerDef(td, rv, path, out)
	}

	rv = indirect(rv)
	if !rv.IsValid() {
		return nil, errors.InvalidData(errors.PhaseEncode, path, "nil value for "+TypeName(t))
	}

	switch typ := t.(type) {
	case wit.Bool:
		if rv.Kind() != reflect.Bool {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "bool")
		}
		if rv.Bool() {
			return append(out, 1), nil
		}
		return append(out, 0), nil

	case wit.F32:
		if !isFloat(rv) {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "f32")
		}
		return append(out, uint64(math.Float32bits(float32(rv.Float())))), nil

	case wit.F64:
		if !isFloat(rv) {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "f64")
		}
		return append(out, math.Float64bits(rv.Float())), nil

	case wit.Char:
		r, err := e.char(rv, path)
		if err != nil {
			return nil, err
		}
		return append(out, r), nil

	case wit.String:
		ptr, n, err := e.string(rv, path)
		if err != nil {
			return nil, err
		}
		return append(out, uint64(ptr), uint64(n)), nil

	default:
		ii, ok := integerInfo(typ)
		if !ok {
			return nil, unsupported(t)
		}
		raw, err := rawInt(rv, ii, path, TypeName(t))
		if err != nil {
			return nil, err
		}
		return append(out, raw), nil
	}
}

// isOption reports whether td is an option, following aliases. Option
// values keep their pointer so nil can mean none.
func isOption(td *wit.TypeDef) bool {
	for {
		switch kind := td.Kind.(type) {
		case *wit.Option:
			return true
		case *wit.TypeDef:
			td = kind
		default:
			return false
		}
	}
}

func isFloat(rv reflect.Value) bool {
	return rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64
}

func (e *encoder) char(rv reflect.Value, path []string) (uint64, error) {
	raw, err := rawInt(rv, intInfo{bits: 32}, path, "char")
	if err != nil {
		return 0, err
	}
	if !validChar(raw) {
		return 0, errors.InvalidData(errors.PhaseEncode, path, "invalid Unicode scalar value")
	}
	return raw, nil
}

func (e *encoder) string(rv reflect.Value, path []string) (uint32, uint32, error) {
	if rv.Kind() != reflect.String {
		return 0, 0, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "string")
	}
	s := rv.String()
	if !utf8.ValidString(s) {
		return 0, 0, errors.InvalidUTF8(errors.PhaseEncode, path, []byte(s))
	}
	if len(s) == 0 {
		return 0, 0, nil
	}
	if uint64(len(s)) > math.MaxUint32 {
		return 0, 0, errors.Overflow(errors.PhaseEncode, path, len(s), "string")
	}
	ptr, err := e.alloc.Alloc(uint32(len(s)), 1)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindAllocation).Path(path...).Cause(err).Build()
	}
	if err := e.mem.Write(ptr, []byte(s)); err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

// list stores the elements in a fresh allocation and returns (ptr, len).
func (e *encoder) list(l *wit.List, rv reflect.Value, path []string) (uint32, uint32, error) {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, 0, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "list")
	}
	n := rv.Len()
	if n == 0 {
		return 0, 0, nil
	}
	el, err := e.calc.Layout(l.Type)
	if err != nil {
		return 0, 0, err
	}
	total := uint64(n) * uint64(el.Size)
	if total > math.MaxUint32 {
		return 0, 0, errors.Overflow(errors.PhaseEncode, path, total, "list")
	}
	ptr, err := e.alloc.Alloc(uint32(total), el.Align)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindAllocation).Path(path...).Cause(err).Build()
	}

	if _, isU8 := l.Type.(wit.U8); isU8 && rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		if err := e.mem.Write(ptr, rv.Bytes()); err != nil {
			return 0, 0, err
		}
		return ptr, uint32(n), nil
	}

	for i := 0; i < n; i++ {
		if err := e.store(l.Type, ptr+uint32(i)*el.Size, rv.Index(i), path); err != nil {
			return 0, 0, err
		}
	}
	return ptr, uint32(n), nil
}

func (e *encoder) lowerDef(td *wit.TypeDef, rv reflect.Value, path []string, out []uint64) ([]uint64, error) {
	l, err := e.calc.Layout(td)
	if err != nil {
		return nil, err
	}

	switch kind := td.Kind.(type) {
	case *wit.Option:
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		if !rv.IsValid() || ((rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil()) {
			start := len(out)
			return padCase(append(out, 0), start, len(l.Flat)), nil
		}
		if rv.Kind() != reflect.Pointer {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "option (pointer)")
		}
		return e.lowerCase(l, 1, kind.Type, rv.Elem(), path, out)
	case *wit.TypeDef:
		return e.lower(kind, rv, path, out)
	}

	if !rv.IsValid() {
		return nil, errors.InvalidData(errors.PhaseEncode, path, "nil value for "+TypeName(td))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		if rv.Kind() != reflect.Struct {
			return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), TypeName(td))
		}
		for _, f := range kind.Fields {
			idx, ok := fieldIndex(rv.Type(), f.Name)
			if !ok {
				return nil, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
					Path(childPath(path, f.Name)...).
					GoType(rv.Type().String()).
					Detail("no field for %q", f.Name).
					Build()
			}
			if out, err = e.lower(f.Type, rv.Field(idx), childPath(path, f.Name), out); err != nil {
				return nil, err
			}
		}
		return out, nil

	case *wit.Tuple:
		fields, err := tupleFieldsFor(rv, len(kind.Types), path)
		if err != nil {
			return nil, err
		}
		for i, typ := range kind.Types {
			if out, err = e.lower(typ, rv.Field(fields[i]), childPath(path, itoa(i)), out); err != nil {
				return nil, err
			}
		}
		return out, nil

	case *wit.List:
		ptr, n, err := e.list(kind, rv, path)
		if err != nil {
			return nil, err
		}
		return append(out, uint64(ptr), uint64(n)), nil

	case *wit.Result:
		isErr, payload, payloadType, err := resultParts(kind, rv, path)
		if err != nil {
			return nil, err
		}
		disc := 0
		if isErr {
			disc = 1
		}
		return e.lowerCase(l, disc, payloadType, payload, path, out)

	case *wit.Variant:
		disc, payload, err := variantParts(kind, rv, path)
		if err != nil {
			return nil, err
		}
		return e.lowerCase(l, disc, kind.Cases[disc].Type, payload, childPath(path, kind.Cases[disc].Name), out)

	case *wit.Enum:
		raw, err := rawInt(rv, intInfo{bits: 32}, path, TypeName(td))
		if err != nil {
			return nil, err
		}
		if raw >= uint64(len(kind.Cases)) {
			return nil, errors.InvalidDiscriminant(errors.PhaseEncode, path, uint32(raw), uint32(len(kind.Cases)-1))
		}
		return append(out, raw), nil

	case *wit.Flags:
		raw, err := flagBits(kind, rv, path, TypeName(td))
		if err != nil {
			return nil, err
		}
		if len(l.Flat) == 0 {
			return out, nil
		}
		return append(out, raw), nil

	case *wit.Own, *wit.Borrow, *wit.Resource:
		raw, err := rawInt(rv, intInfo{bits: 32}, path, "handle")
		if err != nil {
			return nil, err
		}
		return append(out, raw), nil

	case wit.Type:
		return e.lower(kind, rv, path, out)
	}
	return nil, unsupported(td)
}

func (e *encoder) lowerCase(l Layout, disc int, payloadType wit.Type, payload reflect.Value, path []string, out []uint64) ([]uint64, error) {
	start := len(out)
	out = append(out, uint64(disc))
	if payloadType != nil {
		var err error
		if out, err = e.lower(payloadType, payload, path, out); err != nil {
			return nil, err
		}
	}
	return padCase(out, start, len(l.Flat)), nil
}

// padCase zero-fills the joined payload slots a case does not use, so the
// variant starting at out[start] occupies exactly width values.
func padCase(out []uint64, start, width int) []uint64 {
	for len(out)-start < width {
		out = append(out, 0)
	}
	return out
}

func flagBits(f *wit.Flags, rv reflect.Value, path []string, witName string) (uint64, error) {
	raw, err := rawInt(rv, intInfo{bits: 64}, path, witName)
	if err != nil {
		return 0, err
	}
	if n := len(f.Flags); n < 64 && raw>>uint(n) != 0 {
		return 0, errors.InvalidData(errors.PhaseEncode, path, "flag bits set beyond the declared flags")
	}
	return raw, nil
}

func tupleFieldsFor(rv reflect.Value, n int, path []string) ([]int, error) {
	if rv.Kind() != reflect.Struct {
		return nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "tuple (struct)")
	}
	fields := tupleFields(rv.Type())
	if len(fields) != n {
		return nil, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Path(path...).
			GoType(rv.Type().String()).
			Detail("tuple has %d elements, struct has %d exported fields", n, len(fields)).
			Build()
	}
	return fields, nil
}

func resultParts(r *wit.Result, rv reflect.Value, path []string) (bool, reflect.Value, wit.Type, error) {
	if rv.Kind() != reflect.Struct {
		return false, reflect.Value{}, nil, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "result (struct)")
	}
	isErr := rv.FieldByName(isErrField)
	if !isErr.IsValid() || isErr.Kind() != reflect.Bool {
		return false, reflect.Value{}, nil, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Path(path...).
			GoType(rv.Type().String()).
			Detail("result struct needs a bool %s field", isErrField).
			Build()
	}
	if isErr.Bool() {
		return true, rv.FieldByName(errField), r.Err, nil
	}
	return false, rv.FieldByName(okField), r.OK, nil
}

func variantParts(v *wit.Variant, rv reflect.Value, path []string) (int, reflect.Value, error) {
	if rv.Kind() != reflect.Struct {
		return 0, reflect.Value{}, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "variant (struct)")
	}
	tag := rv.FieldByName(tagField)
	if !tag.IsValid() {
		return 0, reflect.Value{}, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Path(path...).
			GoType(rv.Type().String()).
			Detail("variant struct needs an integer %s field", tagField).
			Build()
	}
	raw, err := rawInt(tag, intInfo{bits: 32}, path, "variant tag")
	if err != nil {
		return 0, reflect.Value{}, err
	}
	if raw >= uint64(len(v.Cases)) {
		return 0, reflect.Value{}, errors.InvalidDiscriminant(errors.PhaseEncode, path, uint32(raw), uint32(len(v.Cases)-1))
	}
	c := v.Cases[raw]
	if c.Type == nil {
		return int(raw), reflect.Value{}, nil
	}
	idx, ok := fieldIndex(rv.Type(), c.Name)
	if !ok {
		return 0, reflect.Value{}, errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
			Path(childPath(path, c.Name)...).
			GoType(rv.Type().String()).
			Detail("no field for case %q", c.Name).
			Build()
	}
	return int(raw), rv.Field(idx), nil
}

func itoa(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return digits[i : i+1]
	}
	return itoa(i/10) + digits[i%10:i%10+1]
}

func (e *encoder) store(t wit.Type, ptr uint32, rv reflect.Value, path []string) error {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		flat, err := e.lower(t, rv, path, nil)
		if err != nil {
			return err
		}
		if _, isString := t.(wit.String); isString {
			return e.pair(ptr, flat[0], flat[1])
		}
		l, err := e.calc.Layout(t)
		if err != nil {
			return err
		}
		return writeUint(e.mem, ptr, l.Size, flat[0])
	}

	l, err := e.calc.Layout(td)
	if err != nil {
		return err
	}

	switch kind := td.Kind.(type) {
	case *wit.Option:
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		if !rv.IsValid() || ((rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil()) {
			return writeUint(e.mem, ptr, l.Discriminant, 0)
		}
		if rv.Kind() != reflect.Pointer {
			return errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), "option (pointer)")
		}
		return e.storeCase(l, ptr, 1, kind.Type, rv.Elem(), path)
	}

	if alias, ok := td.Kind.(*wit.TypeDef); ok {
		return e.store(alias, ptr, rv, path)
	}
	rv = indirect(rv)
	if !rv.IsValid() {
		return errors.InvalidData(errors.PhaseEncode, path, "nil value for "+TypeName(td))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		if rv.Kind() != reflect.Struct {
			return errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), TypeName(td))
		}
		for i, f := range kind.Fields {
			idx, ok := fieldIndex(rv.Type(), f.Name)
			if !ok {
				return errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
					Path(childPath(path, f.Name)...).
					GoType(rv.Type().String()).
					Detail("no field for %q", f.Name).
					Build()
			}
			if err := e.store(f.Type, ptr+l.Offsets[i], rv.Field(idx), childPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil

	case *wit.Tuple:
		fields, err := tupleFieldsFor(rv, len(kind.Types), path)
		if err != nil {
			return err
		}
		for i, typ := range kind.Types {
			if err := e.store(typ, ptr+l.Offsets[i], rv.Field(fields[i]), childPath(path, itoa(i))); err != nil {
				return err
			}
		}
		return nil

	case *wit.List:
		p, n, err := e.list(kind, rv, path)
		if err != nil {
			return err
		}
		return e.pair(ptr, uint64(p), uint64(n))

	case *wit.Result:
		isErr, payload, payloadType, err := resultParts(kind, rv, path)
		if err != nil {
			return err
		}
		disc := 0
		if isErr {
			disc = 1
		}
		return e.storeCase(l, ptr, disc, payloadType, payload, path)

	case *wit.Variant:
		disc, payload, err := variantParts(kind, rv, path)
		if err != nil {
			return err
		}
		return e.storeCase(l, ptr, disc, kind.Cases[disc].Type, payload, childPath(path, kind.Cases[disc].Name))

	case *wit.Enum, *wit.Flags, *wit.Own, *wit.Borrow, *wit.Resource:
		flat, err := e.lowerDef(td, rv, path, nil)
		if err != nil {
			return err
		}
		if len(flat) == 0 {
			return nil
		}
		return writeUint(e.mem, ptr, l.Size, flat[0])

	case wit.Type:
		return e.store(kind, ptr, rv, path)
	}
	return unsupported(td)
}

func (e *encoder) storeCase(l Layout, ptr uint32, disc int, payloadType wit.Type, payload reflect.Value, path []string) error {
	if err := writeUint(e.mem, ptr, l.Discriminant, uint64(disc)); err != nil {
		return err
	}
	if payloadType == nil {
		return nil
	}
	return e.store(payloadType, ptr+l.PayloadOffset, payload, path)
}

func (e *encoder) pair(ptr uint32, a, b uint64) error {
	if err := writeUint(e.mem, ptr, 4, a); err != nil {
		return err
	}
	return writeUint(e.mem, ptr+4, 4, b)
}
