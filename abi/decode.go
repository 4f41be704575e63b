package abi

import (
	"math"
	"reflect"
	"unicode/utf8"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Lift reads a value of type t from flat core values into out, which must
// be a non-nil pointer. Empty interface targets receive the natural Go type
// for scalars, strings, lists, options, enums, flags and handles.
func (c *Codec) Lift(mem Memory, t wit.Type, flat []uint64, out any) error {
	rv, err := target(out)
	if err != nil {
		return err
	}
	d := &decoder{calc: c.calc, mem: mem}
	rest, err := d.lift(t, flat, rv, nil)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.InvalidData(errors.PhaseDecode, nil, "unconsumed core values")
	}
	return nil
}

// Load reads a value of type t stored at ptr into out.
func (c *Codec) Load(mem Memory, t wit.Type, ptr uint32, out any) error {
	rv, err := target(out)
	if err != nil {
		return err
	}
	d := &decoder{calc: c.calc, mem: mem}
	return d.load(t, ptr, rv, nil)
}

func target(out any) (reflect.Value, error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			GoType(goTypeName(rv)).
			Detail("decode target must be a non-nil pointer").
			Build()
	}
	return rv.Elem(), nil
}

type decoder struct {
	calc *Calculator
	mem  Memory
}

func take(flat []uint64, n int, path []string) ([]uint64, []uint64, error) {
	if len(flat) < n {
		return nil, nil, errors.InvalidData(errors.PhaseDecode, path, "not enough core values")
	}
	return flat[:n], flat[n:], nil
}

// settable prepares rv for assignment, allocating through nil pointers.
func settable(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	return rv
}

func isEmptyInterface(rv reflect.Value) bool {
	return rv.Kind() == reflect.Interface && rv.NumMethod() == 0
}

func (d *decoder) lift(t wit.Type, flat []uint64, rv reflect.Value, path []string) ([]uint64, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		return d.liftDef(td, flat, rv, path)
	}
	rv = settable(rv)

	if _, isString := t.(wit.String); isString {
		vals, rest, err := take(flat, 2, path)
		if err != nil {
			return nil, err
		}
		return rest, d.string(uint32(vals[0]), uint32(vals[1]), rv, path)
	}

	vals, rest, err := take(flat, 1, path)
	if err != nil {
		return nil, err
	}
	return rest, d.scalar(t, vals[0], rv, path)
}

// scalar assigns a primitive from its raw bits.
func (d *decoder) scalar(t wit.Type, raw uint64, rv reflect.Value, path []string) error {
	switch t.(type) {
	case wit.Bool:
		v := uint32(raw) != 0
		if rv.Kind() == reflect.Bool {
			rv.SetBool(v)
			return nil
		}
		return setAny(rv, v, path, "bool")

	case wit.F32:
		v := math.Float32frombits(uint32(raw))
		if isFloat(rv) {
			rv.SetFloat(float64(v))
			return nil
		}
		return setAny(rv, v, path, "f32")

	case wit.F64:
		v := math.Float64frombits(raw)
		if isFloat(rv) {
			rv.SetFloat(v)
			return nil
		}
		return setAny(rv, v, path, "f64")

	case wit.Char:
		r := uint64(uint32(raw))
		if !validChar(r) {
			return errors.InvalidData(errors.PhaseDecode, path, "invalid Unicode scalar value")
		}
		if isEmptyInterface(rv) {
			rv.Set(reflect.ValueOf(rune(r)))
			return nil
		}
		return setInt(rv, r, intInfo{bits: 32}, path, "char")
	}

	ii, ok := integerInfo(t)
	if !ok {
		return unsupported(t)
	}
	return setInt(rv, raw, ii, path, TypeName(t))
}

func (d *decoder) bytes(ptr, n uint32, path []string) ([]byte, error) {
	if uint64(ptr)+uint64(n) > math.MaxUint32 {
		return nil, errors.OutOfBounds(errors.PhaseDecode, path, ptr, n)
	}
	if n == 0 {
		return nil, nil
	}
	return d.mem.Read(ptr, n)
}

func (d *decoder) string(ptr, n uint32, rv reflect.Value, path []string) error {
	b, err := d.bytes(ptr, n, path)
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return errors.InvalidUTF8(errors.PhaseDecode, path, b)
	}
	if rv.Kind() == reflect.String {
		rv.SetString(string(b))
		return nil
	}
	return setAny(rv, string(b), path, "string")
}

func (d *decoder) list(l *wit.List, ptr, n uint32, rv reflect.Value, path []string) error {
	el, err := d.calc.Layout(l.Type)
	if err != nil {
		return err
	}
	if n > 0 && el.Align > 1 && ptr%el.Align != 0 {
		return errors.InvalidData(errors.PhaseDecode, path, "misaligned list pointer")
	}
	total := uint64(n) * uint64(el.Size)
	if uint64(ptr)+total > math.MaxUint32 {
		return errors.OutOfBounds(errors.PhaseDecode, path, ptr, n)
	}

	_, isU8 := l.Type.(wit.U8)
	if isEmptyInterface(rv) {
		if isU8 {
			b, err := d.bytes(ptr, n, path)
			if err != nil {
				return err
			}
			rv.Set(reflect.ValueOf(append([]byte{}, b...)))
			return nil
		}
		items := reflect.ValueOf(make([]any, n))
		for i := 0; i < int(n); i++ {
			if err := d.load(l.Type, ptr+uint32(i)*el.Size, items.Index(i), childPath(path, itoa(i))); err != nil {
				return err
			}
		}
		rv.Set(items)
		return nil
	}

	switch rv.Kind() {
	case reflect.Slice:
		if isU8 && rv.Type().Elem().Kind() == reflect.Uint8 {
			b, err := d.bytes(ptr, n, path)
			if err != nil {
				return err
			}
			s := reflect.MakeSlice(rv.Type(), int(n), int(n))
			reflect.Copy(s, reflect.ValueOf(b))
			rv.Set(s)
			return nil
		}
		if rv.Len() != int(n) || rv.IsNil() {
			rv.Set(reflect.MakeSlice(rv.Type(), int(n), int(n)))
		}
	case reflect.Array:
		if rv.Len() != int(n) {
			return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
				Path(path...).
				GoType(rv.Type().String()).
				Detail("list has %d elements", n).
				Build()
		}
	default:
		return errors.TypeMismatch(errors.PhaseDecode, path, rv.Type().String(), "list")
	}

	for i := 0; i < int(n); i++ {
		if err := d.load(l.Type, ptr+uint32(i)*el.Size, rv.Index(i), childPath(path, itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) liftDef(td *wit.TypeDef, flat []uint64, rv reflect.Value, path []string) ([]uint64, error) {
	l, err := d.calc.Layout(td)
	if err != nil {
		return nil, err
	}
	switch kind := td.Kind.(type) {
	case *wit.Record:
		st, err := structTarget(rv, path, TypeName(td))
		if err != nil {
			return nil, err
		}
		for _, f := range kind.Fields {
			idx, err := fieldFor(st, f.Name, path)
			if err != nil {
				return nil, err
			}
			if flat, err = d.lift(f.Type, flat, st.Field(idx), childPath(path, f.Name)); err != nil {
				return nil, err
			}
		}
		return flat, nil

	case *wit.Tuple:
		st, err := structTarget(rv, path, "tuple")
		if err != nil {
			return nil, err
		}
		fields, err := tupleFieldsFor(st, len(kind.Types), path)
		if err != nil {
			return nil, err
		}
		for i, typ := range kind.Types {
			if flat, err = d.lift(typ, flat, st.Field(fields[i]), childPath(path, itoa(i))); err != nil {
				return nil, err
			}
		}
		return flat, nil

	case *wit.List:
		vals, rest, err := take(flat, 2, path)
		if err != nil {
			return nil, err
		}
		return rest, d.list(kind, uint32(vals[0]), uint32(vals[1]), settable(rv), path)

	case *wit.Option, *wit.Result, *wit.Variant:
		vals, rest, err := take(flat, len(l.Flat), path)
		if err != nil {
			return nil, err
		}
		disc := uint32(vals[0])
		// Joined slots the case does not use are ignored.
		return rest, d.setCase(td, disc, rv, path, func(t wit.Type, rv reflect.Value, path []string) error {
			_, err := d.lift(t, vals[1:], rv, path)
			return err
		})

	case *wit.Enum, *wit.Flags, *wit.Own, *wit.Borrow, *wit.Resource:
		vals, rest, err := take(flat, len(l.Flat), path)
		if err != nil {
			return nil, err
		}
		raw := uint64(0)
		if len(vals) > 0 {
			raw = vals[0]
		}
		return rest, d.setScalarDef(td, raw, settable(rv), path)

	case wit.Type:
		return d.lift(kind, flat, rv, path)
	}
	return nil, unsupported(td)
}

func (d *decoder) load(t wit.Type, ptr uint32, rv reflect.Value, path []string) error {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		rv = settable(rv)
		if _, isString := t.(wit.String); isString {
			p, n, err := d.pair(ptr)
			if err != nil {
				return err
			}
			return d.string(p, n, rv, path)
		}
		l, err := d.calc.Layout(t)
		if err != nil {
			return err
		}
		raw, err := readUint(d.mem, ptr, l.Size)
		if err != nil {
			return err
		}
		return d.scalar(t, raw, rv, path)
	}

	l, err := d.calc.Layout(td)
	if err != nil {
		return err
	}
	switch kind := td.Kind.(type) {
	case *wit.Record:
		st, err := structTarget(rv, path, TypeName(td))
		if err != nil {
			return err
		}
		for i, f := range kind.Fields {
			idx, err := fieldFor(st, f.Name, path)
			if err != nil {
				return err
			}
			if err := d.load(f.Type, ptr+l.Offsets[i], st.Field(idx), childPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil

	case *wit.Tuple:
		st, err := structTarget(rv, path, "tuple")
		if err != nil {
			return err
		}
		fields, err := tupleFieldsFor(st, len(kind.Types), path)
		if err != nil {
			return err
		}
		for i, typ := range kind.Types {
			if err := d.load(typ, ptr+l.Offsets[i], st.Field(fields[i]), childPath(path, itoa(i))); err != nil {
				return err
			}
		}
		return nil

	case *wit.List:
		p, n, err := d.pair(ptr)
		if err != nil {
			return err
		}
		return d.list(kind, p, n, settable(rv), path)

	case *wit.Option, *wit.Result, *wit.Variant:
		disc, err := readUint(d.mem, ptr, l.Discriminant)
		if err != nil {
			return err
		}
		return d.setCase(td, uint32(disc), rv, path, func(t wit.Type, rv reflect.Value, path []string) error {
			return d.load(t, ptr+l.PayloadOffset, rv, path)
		})

	case *wit.Enum, *wit.Flags, *wit.Own, *wit.Borrow, *wit.Resource:
		raw, err := readUint(d.mem, ptr, l.Size)
		if err != nil {
			return err
		}
		return d.setScalarDef(td, raw, settable(rv), path)

	case wit.Type:
		return d.load(kind, ptr, rv, path)
	}
	return unsupported(td)
}

func (d *decoder) pair(ptr uint32) (uint32, uint32, error) {
	a, err := readUint(d.mem, ptr, 4)
	if err != nil {
		return 0, 0, err
	}
	b, err := readUint(d.mem, ptr+4, 4)
	if err != nil {
		return 0, 0, err
	}
	return uint32(a), uint32(b), nil
}

type payloadFunc func(t wit.Type, rv reflect.Value, path []string) error

// setCase validates disc and decodes the matching payload with fn.
func (d *decoder) setCase(td *wit.TypeDef, disc uint32, rv reflect.Value, path []string, fn payloadFunc) error {
	switch kind := td.Kind.(type) {
	case *wit.Option:
		if disc > 1 {
			return errors.InvalidDiscriminant(errors.PhaseDecode, path, disc, 1)
		}
		if isEmptyInterface(rv) {
			if disc == 0 {
				rv.Set(reflect.Zero(rv.Type()))
				return nil
			}
			var v any
			if err := fn(kind.Type, reflect.ValueOf(&v).Elem(), path); err != nil {
				return err
			}
			rv.Set(reflect.ValueOf(v))
			return nil
		}
		if rv.Kind() != reflect.Pointer {
			return errors.TypeMismatch(errors.PhaseDecode, path, rv.Type().String(), "option (pointer)")
		}
		if disc == 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		v := reflect.New(rv.Type().Elem())
		if err := fn(kind.Type, v.Elem(), path); err != nil {
			return err
		}
		rv.Set(v)
		return nil

	case *wit.Result:
		if disc > 1 {
			return errors.InvalidDiscriminant(errors.PhaseDecode, path, disc, 1)
		}
		st, err := structTarget(rv, path, "result")
		if err != nil {
			return err
		}
		isErr := st.FieldByName(isErrField)
		if !isErr.IsValid() || isErr.Kind() != reflect.Bool {
			return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
				Path(path...).
				GoType(st.Type().String()).
				Detail("result struct needs a bool %s field", isErrField).
				Build()
		}
		isErr.SetBool(disc == 1)
		payloadType, name := kind.OK, okField
		if disc == 1 {
			payloadType, name = kind.Err, errField
		}
		if payloadType == nil {
			return nil
		}
		field := st.FieldByName(name)
		if !field.IsValid() {
			return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
				Path(path...).
				GoType(st.Type().String()).
				Detail("result struct has no %s field", name).
				Build()
		}
		return fn(payloadType, field, path)

	case *wit.Variant:
		if int(disc) >= len(kind.Cases) {
			return errors.InvalidDiscriminant(errors.PhaseDecode, path, disc, uint32(len(kind.Cases)-1))
		}
		st, err := structTarget(rv, path, TypeName(td))
		if err != nil {
			return err
		}
		tag := st.FieldByName(tagField)
		if !tag.IsValid() {
			return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
				Path(path...).
				GoType(st.Type().String()).
				Detail("variant struct needs an integer %s field", tagField).
				Build()
		}
		if err := setInt(tag, uint64(disc), intInfo{bits: 32}, path, "variant tag"); err != nil {
			return err
		}
		c := kind.Cases[disc]
		if c.Type == nil {
			return nil
		}
		idx, err := fieldFor(st, c.Name, path)
		if err != nil {
			return err
		}
		return fn(c.Type, st.Field(idx), childPath(path, c.Name))
	}
	return unsupported(td)
}

func (d *decoder) setScalarDef(td *wit.TypeDef, raw uint64, rv reflect.Value, path []string) error {
	switch kind := td.Kind.(type) {
	case *wit.Enum:
		disc := uint32(raw)
		if int(disc) >= len(kind.Cases) {
			return errors.InvalidDiscriminant(errors.PhaseDecode, path, disc, uint32(len(kind.Cases)-1))
		}
		return setInt(rv, uint64(disc), intInfo{bits: 32}, path, TypeName(td))

	case *wit.Flags:
		n := len(kind.Flags)
		if n < 64 && raw>>uint(n) != 0 {
			return errors.InvalidData(errors.PhaseDecode, path, "flag bits set beyond the declared flags")
		}
		return setInt(rv, raw, intInfo{bits: 64}, path, TypeName(td))

	default:
		return setInt(rv, uint64(uint32(raw)), intInfo{bits: 32}, path, "handle")
	}
}

func structTarget(rv reflect.Value, path []string, witName string) (reflect.Value, error) {
	rv = settable(rv)
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseDecode, path, goTypeName(rv), witName)
	}
	return rv, nil
}

func fieldFor(st reflect.Value, witName string, path []string) (int, error) {
	idx, ok := fieldIndex(st.Type(), witName)
	if !ok {
		return 0, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Path(childPath(path, witName)...).
			GoType(st.Type().String()).
			Detail("no field for %q", witName).
			Build()
	}
	return idx, nil
}
