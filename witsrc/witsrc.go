package witsrc

import (
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/resolve"
	"github.com/wippyai/wasm-pack/witsrc/ast"
	"github.com/wippyai/wasm-pack/witsrc/internal/parser"
	"github.com/wippyai/wasm-pack/witsrc/internal/token"
)

// Parse reads WIT source into a syntax tree. filename is used for error
// positions and to name an implicit top-level interface.
func Parse(src, filename string) (*ast.File, error) {
	tokens, err := token.Tokenize(src, filename)
	if err != nil {
		return nil, err
	}
	return parser.New(tokens, filename).Parse()
}

// Load parses and resolves a document holding exactly one interface.
func Load(src, filename string) (*model.Interface, error) {
	ifaces, err := LoadAll(src, filename)
	if err != nil {
		return nil, err
	}
	if len(ifaces) != 1 {
		return nil, errors.InvalidInput(errors.PhaseResolve, "expected exactly one interface in "+filename)
	}
	return ifaces[0], nil
}

// LoadAll parses and resolves every interface in a document.
func LoadAll(src, filename string) ([]*model.Interface, error) {
	file, err := Parse(src, filename)
	if err != nil {
		return nil, err
	}
	return resolve.File(file)
}

// IsKeyword reports whether name needs a '%' escape in WIT source.
func IsKeyword(name string) bool {
	return parser.IsKeyword(name)
}
