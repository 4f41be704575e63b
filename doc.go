// Package wasmpack generates host-language packages for WebAssembly modules
// described by WIT interfaces.
//
// Given a WIT interface and the module that exports it (a library), or a
// WASI program with a _start entry (a command), it produces a complete,
// installable source package for Go, Python or JavaScript. Application code
// then calls the module through generated wrappers instead of hand-written
// marshaling.
//
// # Architecture Overview
//
// The pipeline runs leaves first; every stage is pure and deterministic:
//
//	wasmpack/            Generate and the target registry
//	├── witsrc/          WIT lexer and parser, canonical WIT printer
//	├── resolve/         Name resolution, cycle and flags checks
//	├── model/           Package, Library, Command, Interface
//	├── abi/             Canonical ABI layout, flattening and a reference codec
//	├── codegen/         Naming scopes, type tables, descriptors, templates
//	│   ├── golang/      Go modules that run on hostrt
//	│   ├── python/      setuptools projects that run on wasmtime-py
//	│   └── javascript/  npm packages on the WebAssembly API and @wasmer/wasi
//	├── assemble/        Bundle to sorted file set
//	├── hostrt/          wazero runtime imported by generated Go code
//	├── resource/        Resource handle table
//	└── errors/          Structured error types
//
// # Quick Start
//
//	iface, err := wasmpack.LoadInterface(witSource, "greeter.wit")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	meta, err := model.NewMetadata("wasmer/hello-world", "0.1.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pkg := &model.Package{
//	    Metadata: meta,
//	    Libraries: []*model.Library{{
//	        Exports: iface,
//	        Module:  model.Module{Name: "greeter.wasm", Wasm: wasmBytes},
//	    }},
//	}
//
//	files, err := wasmpack.Generate(pkg, "python")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = files.WriteTo("out")
//
// # Determinism
//
// Two runs over the same input produce byte-identical output. Files come
// back sorted by path and wasm bytes are copied verbatim.
//
// # Errors
//
// Failures are *errors.Error values carrying a phase and a kind. Match them
// with the sentinels:
//
//	if errors.Is(err, errors.ErrCyclicType) {
//	    // a record contains itself without a handle in between
//	}
package wasmpack
