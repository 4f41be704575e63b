// Package hostrt is the runtime behind generated Go bindings. It runs
// WebAssembly modules on wazero and moves values across the boundary with
// the canonical ABI codec from package abi.
//
// Generated code embeds the canonical WIT of each interface and the core
// signature the generator computed for every function. NewBinding resolves
// the WIT again and refuses to bind when its own calling convention differs
// from the recorded one, so bindings and runtime can never silently disagree
// about where a value lives.
//
// # Libraries
//
//	rt := hostrt.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	b, err := hostrt.NewBinding(witSource, "calc.wit", signatures)
//	inst, err := rt.Instantiate(ctx, hostrt.Config{Wasm: wasm, Exports: b})
//	var sum uint32
//	err = inst.Call(ctx, "add", []any{uint32(1), uint32(2)}, &sum)
//
// Imported interfaces are served by HostModule values. Each guest import
// module is named after its interface and instantiated once per Runtime;
// calls are dispatched to the HostFunc of the instance that made them.
//
// # Commands
//
// RunCommand instantiates a WASI command, runs _start and reports the exit
// code together with everything written to stdout and stderr.
//
// A Runtime is safe for concurrent use. An Instance is not.
package hostrt
