package abi

import (
	"math"
	"reflect"
	"strings"
	"sync"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Go value mapping used by Codec:
//
//	bool, integers, floats   bool, any integer kind, float32/float64
//	char                     rune (any integer kind)
//	string                   string
//	list<T>                  []T ([]byte for list<u8>)
//	record                   struct; fields matched by `wit:"name"` tag, then by name
//	tuple<...>               struct; exported fields in order
//	option<T>                *T
//	result<T, E>             struct with fields OK, Err and IsErr
//	variant                  struct with an integer Tag field and one field per
//	                         payload case, matched like record fields
//	enum                     integer holding the case index
//	flags                    unsigned integer, bit i for flag i
//	own, borrow, resource    uint32 handle

const (
	tagField   = "Tag"
	okField    = "OK"
	errField   = "Err"
	isErrField = "IsErr"
)

type fieldKey struct {
	t    reflect.Type
	name string
}

var fieldCache sync.Map // fieldKey -> int

func normalize(name string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(name))
}

// fieldIndex finds the struct field carrying the WIT member name.
func fieldIndex(st reflect.Type, witName string) (int, bool) {
	key := fieldKey{st, witName}
	if idx, ok := fieldCache.Load(key); ok {
		return idx.(int), idx.(int) >= 0
	}

	idx := -1
	norm := normalize(witName)
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("wit"), ",")
		if tag == witName {
			idx = i
			break
		}
		if idx < 0 && tag == "" && f.Name != tagField && normalize(f.Name) == norm {
			idx = i
		}
	}
	fieldCache.Store(key, idx)
	return idx, idx >= 0
}

// tupleFields lists exported struct fields in declaration order.
func tupleFields(st reflect.Type) []int {
	var out []int
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.IsExported() && f.Tag.Get("wit") != "-" {
			out = append(out, i)
		}
	}
	return out
}

func childPath(path []string, elem string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), elem)
}

func goTypeName(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}
	return rv.Type().String()
}

// indirect unwraps interfaces and non-nil pointers.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

type intInfo struct {
	bits   uint
	signed bool
}

func integerInfo(t wit.Type) (intInfo, bool) {
	switch t.(type) {
	case wit.U8:
		return intInfo{8, false}, true
	case wit.U16:
		return intInfo{16, false}, true
	case wit.U32:
		return intInfo{32, false}, true
	case wit.U64:
		return intInfo{64, false}, true
	case wit.S8:
		return intInfo{8, true}, true
	case wit.S16:
		return intInfo{16, true}, true
	case wit.S32:
		return intInfo{32, true}, true
	case wit.S64:
		return intInfo{64, true}, true
	}
	return intInfo{}, false
}

func (ii intInfo) mask() uint64 {
	if ii.bits == 64 {
		return math.MaxUint64
	}
	return 1<<ii.bits - 1
}

// rawInt range-checks an integer Go value and returns its two's complement
// bits truncated to the WIT width.
func rawInt(rv reflect.Value, ii intInfo, path []string, witName string) (uint64, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := rv.Int()
		if ii.signed {
			lo, hi := -int64(1)<<(ii.bits-1), int64(1)<<(ii.bits-1)-1
			if ii.bits == 64 {
				lo, hi = math.MinInt64, math.MaxInt64
			}
			if v < lo || v > hi {
				return 0, errors.Overflow(errors.PhaseEncode, path, v, witName)
			}
		} else if v < 0 || (ii.bits < 64 && uint64(v) > ii.mask()) {
			return 0, errors.Overflow(errors.PhaseEncode, path, v, witName)
		}
		return uint64(v) & ii.mask(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v := rv.Uint()
		limit := ii.mask()
		if ii.signed {
			limit >>= 1
		}
		if v > limit {
			return 0, errors.Overflow(errors.PhaseEncode, path, v, witName)
		}
		return v, nil
	}
	return 0, errors.TypeMismatch(errors.PhaseEncode, path, goTypeName(rv), witName)
}

// setInt stores raw WIT bits into an integer Go value.
func setInt(rv reflect.Value, raw uint64, ii intInfo, path []string, witName string) error {
	raw &= ii.mask()
	var signedVal int64
	if ii.signed {
		shift := 64 - ii.bits
		signedVal = int64(raw<<shift) >> shift
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := int64(raw)
		if ii.signed {
			v = signedVal
		} else if raw > math.MaxInt64 {
			return errors.Overflow(errors.PhaseDecode, path, raw, rv.Type().String())
		}
		if rv.OverflowInt(v) {
			return errors.Overflow(errors.PhaseDecode, path, v, rv.Type().String())
		}
		rv.SetInt(v)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if ii.signed && signedVal < 0 {
			return errors.Overflow(errors.PhaseDecode, path, signedVal, rv.Type().String())
		}
		if rv.OverflowUint(raw) {
			return errors.Overflow(errors.PhaseDecode, path, raw, rv.Type().String())
		}
		rv.SetUint(raw)
		return nil

	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(naturalInt(raw, ii, signedVal)))
			return nil
		}
	}
	return errors.TypeMismatch(errors.PhaseDecode, path, rv.Type().String(), witName)
}

func naturalInt(raw uint64, ii intInfo, signedVal int64) any {
	switch {
	case ii.signed && ii.bits == 8:
		return int8(signedVal)
	case ii.signed && ii.bits == 16:
		return int16(signedVal)
	case ii.signed && ii.bits == 32:
		return int32(signedVal)
	case ii.signed:
		return signedVal
	case ii.bits == 8:
		return uint8(raw)
	case ii.bits == 16:
		return uint16(raw)
	case ii.bits == 32:
		return uint32(raw)
	}
	return raw
}

// setAny assigns v to rv when rv is the empty interface or v's type.
func setAny(rv reflect.Value, v any, path []string, witName string) error {
	val := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Interface && rv.NumMethod() == 0:
		rv.Set(val)
	case val.Type().ConvertibleTo(rv.Type()) && val.Kind() == rv.Kind():
		rv.Set(val.Convert(rv.Type()))
	default:
		return errors.TypeMismatch(errors.PhaseDecode, path, rv.Type().String(), witName)
	}
	return nil
}

// validChar reports whether r is a Unicode scalar value.
func validChar(r uint64) bool {
	return r <= 0x10FFFF && (r < 0xD800 || r > 0xDFFF)
}
