// Package witsrc reads and writes WIT interface definitions.
//
// Parse produces a syntax tree; Load resolves it into a model.Interface
// ready for layout and code generation; Format prints an interface back
// as canonical WIT text.
//
//	iface, err := witsrc.Load(`
//	    record point { x: s32, y: s32 }
//	    distance: func(a: point, b: point) -> f64
//	`, "geometry.wit")
//
// Supported syntax covers records, variants, enums, flags, resources,
// type aliases, functions with single or multiple results, list, option,
// tuple, result and handle types, doc comments and %-escaped identifiers.
// `use` statements are rejected: every interface resolves on its own.
package witsrc
