// Package golang generates Go packages. Generated code embeds the wasm
// modules and canonical WIT of every interface and calls into package
// hostrt, which runs the modules on wazero.
//
// Layout of a generated package:
//
//	go.mod
//	<name>.go                      entry point re-exporting everything
//	intrinsics/intrinsics.go       shared runtime and handle helpers
//	bindings/<iface>/<iface>.go    types, Instance and host interfaces
//	bindings/<iface>/<iface>.wit   canonical WIT of the exports
//	bindings/<iface>/<import>.wit  canonical WIT of each import
//	bindings/<iface>/<module>.wasm
//	commands/<name>.go             launcher
//	commands/<name>.wasm
package golang
