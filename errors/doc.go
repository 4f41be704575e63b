// Package errors provides structured error types for wasm-pack.
//
// Errors are categorized by Phase (which pipeline stage failed) and Kind
// (error category). The Error type carries a source position for syntax
// errors, an element path, Go/WIT type names and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindUnknownType).
//		Path("point", "x").
//		Detail("type %q is not defined", "coord").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.CyclicType([]string{"node", "node"})
//	err := errors.NameCollision(path, "Get", "get", "GET")
//
// Every failure the generator pipeline reports matches one of the package
// sentinels with errors.Is:
//
//	if errors.Is(err, errors.ErrCyclicType) { ... }
package errors
