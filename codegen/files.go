package codegen

import (
	"path"
	"strings"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/model"
)

// ModuleFilename is the file name a library's wasm module is written under:
// the base name of the module with a .wasm extension.
func ModuleFilename(m model.Module) string {
	name := path.Base(strings.ReplaceAll(m.Name, "\\", "/"))
	name = strings.TrimSuffix(name, ".wasm")
	if name == "" || name == "." || name == "/" {
		name = "module"
	}
	return name + ".wasm"
}

// WasmFile wraps module bytes. The bytes are shared, not copied, and must
// not be modified.
func WasmFile(p string, wasm []byte) assemble.File {
	return assemble.File{Path: p, Contents: wasm, Kind: assemble.KindWasm}
}

// TextFile wraps generated text.
func TextFile(p string, kind assemble.Kind, contents []byte) assemble.File {
	return assemble.File{Path: p, Contents: contents, Kind: kind}
}
