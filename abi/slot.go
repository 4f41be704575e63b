package abi

import "strings"

// Slot is the core WebAssembly value kind of one flattened component.
type Slot uint8

const (
	I32 Slot = iota
	I64
	F32
	F64
	// Pointer is an i32 holding a linear-memory address. It is kept distinct
	// so generated code can tell addresses from integers.
	Pointer
)

var slotNames = [...]string{"i32", "i64", "f32", "f64", "ptr"}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return "?"
}

// Core returns the WebAssembly value type carrying the slot.
func (s Slot) Core() Slot {
	if s == Pointer {
		return I32
	}
	return s
}

// Join returns the slot able to carry values of either kind. It is used to
// overlay variant payloads: equal kinds stay, i32 and f32 share an i32,
// everything else widens to i64.
func Join(a, b Slot) Slot {
	if a == b {
		return a
	}
	a, b = a.Core(), b.Core()
	if a == b {
		return a
	}
	if (a == I32 && b == F32) || (a == F32 && b == I32) {
		return I32
	}
	return I64
}

// FormatSlots renders slots as a comma separated list.
func FormatSlots(slots []Slot) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}
