// Package codegen holds what every language back end shares: the
// Generator contract and its options, identifier scopes, the ordered type
// table with canonical ABI layouts, per-function calling conventions and
// the template loader for embedded static text.
//
// Back ends live in the golang, python and javascript subpackages. Each
// turns a validated model.Package into an assemble.Bundle; package
// assemble then fixes the final file paths and order.
//
// Everything here is deterministic: the same package always produces the
// same identifiers, tables and descriptors, byte for byte.
package codegen
