// Package javascript generates npm packages that run modules through the
// WebAssembly JavaScript API, with @wasmer/wasi for WASI modules and
// commands.
package javascript

import (
	"bytes"
	"embed"
	"encoding/json"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

// WASIDependency is the npm range of @wasmer/wasi generated packages need
// for WASI libraries and commands.
const WASIDependency = "^1.2.2"

// NodeEngine is the Node.js range generated packages declare.
const NodeEngine = ">=16"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(codegen.LoadTemplates(templateFS, "templates"))

// Generator is the JavaScript back end.
type Generator struct {
	opts codegen.Options
}

var _ codegen.Generator = (*Generator)(nil)

func New(opts codegen.Options) *Generator {
	return &Generator{opts: opts}
}

// Name returns "javascript".
func (g *Generator) Name() string {
	return "javascript"
}

// Generate produces a CommonJS package with TypeScript declarations under
// package/, the layout npm pack expects.
func (g *Generator) Generate(pkg *model.Package) (*assemble.Bundle, error) {
	g.opts.Logger.Debug("generating JavaScript package",
		zap.String("package", pkg.Metadata.Name.JavaScriptName()),
		zap.Int("libraries", len(pkg.Libraries)),
		zap.Int("commands", len(pkg.Commands)),
		zap.Bool("bigint", g.opts.BigInt))

	b := &assemble.Bundle{
		Layout: assemble.Layout{
			Root:      "package/src",
			Libraries: "package/src/bindings",
			Commands:  "package/src/commands",
		},
	}
	banner := g.opts.Banner()

	exports := codegen.NewScope(codegen.JavaScriptKeywords, pkg.Metadata.Name.JavaScriptName())
	for _, id := range []string{"Trap", "Result", "CommandOptions", "CommandResult"} {
		exports.Reserve(id, "package API")
	}
	dirs := codegen.NewScope(nil, "bindings")
	dirs.Reserve("index.js", "bindings index")
	dirs.Reserve("index.d.ts", "bindings index")
	dirs.Reserve("intrinsics.js", "runtime module")

	index := indexData{Banner: banner, Description: strings.ReplaceAll(pkg.Metadata.Description, "\n", "\n// ")}
	for _, lib := range pkg.Libraries {
		dir, err := dirs.DeclareIdent(lib.InterfaceName(), lib.InterfaceName())
		if err != nil {
			return nil, err
		}
		class, err := exports.Declare(lib.InterfaceName(), codegen.Pascal)
		if err != nil {
			return nil, err
		}
		if len(lib.Imports) > 0 {
			if _, err := exports.DeclareIdent(lib.InterfaceName()+"#imports", class+"Imports"); err != nil {
				return nil, err
			}
		}
		part, err := g.library(lib, dir, class)
		if err != nil {
			return nil, err
		}
		b.Libraries = append(b.Libraries, part)
		index.Libraries = append(index.Libraries, indexLibrary{
			Dir:        dir,
			Module:     dir,
			Class:      class,
			HasImports: len(lib.Imports) > 0,
		})
	}

	files := codegen.NewScope(nil, "commands")
	for _, cmd := range pkg.Commands {
		fn, err := exports.Declare(cmd.Name, codegen.Camel)
		if err != nil {
			return nil, err
		}
		mod, err := files.DeclareIdent(cmd.Name, cmd.Name)
		if err != nil {
			return nil, err
		}
		c := commandData{Banner: banner, Name: cmd.Name, Func: fn, Module: mod, Wasm: mod + ".wasm"}
		js, err := codegen.Render(templates, "command.js", c)
		if err != nil {
			return nil, err
		}
		dts, err := codegen.Render(templates, "command.d.ts", c)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, assemble.Part{
			Name: cmd.Name,
			Files: []assemble.File{
				codegen.TextFile(mod+".js", assemble.KindLauncher, js),
				codegen.TextFile(mod+".d.ts", assemble.KindTypings, dts),
				codegen.WasmFile(c.Wasm, cmd.Wasm),
			},
		})
		index.Commands = append(index.Commands, c)
	}

	manifest, err := packageJSON(pkg)
	if err != nil {
		return nil, err
	}
	b.Manifest = codegen.TextFile("package/package.json", assemble.KindManifest, manifest)

	rendered := make(map[string][]byte)
	for _, name := range []string{"index.js", "index.d.ts", "bindings_index.js", "bindings_index.d.ts", "intrinsics.js"} {
		if rendered[name], err = codegen.Render(templates, name, index); err != nil {
			return nil, err
		}
	}
	b.EntryPoints = []assemble.File{
		codegen.TextFile("index.js", assemble.KindEntryPoint, rendered["index.js"]),
		codegen.TextFile("index.d.ts", assemble.KindTypings, rendered["index.d.ts"]),
	}
	b.Intrinsics = []assemble.File{
		codegen.TextFile("bindings/index.js", assemble.KindIndex, rendered["bindings_index.js"]),
		codegen.TextFile("bindings/index.d.ts", assemble.KindTypings, rendered["bindings_index.d.ts"]),
		codegen.TextFile("bindings/intrinsics.js", assemble.KindIntrinsics, rendered["intrinsics.js"]),
	}
	return b, nil
}

type packageFile struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	Main         string            `json:"main"`
	Types        string            `json:"types"`
	Files        []string          `json:"files"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Engines      map[string]string `json:"engines"`
}

func packageJSON(pkg *model.Package) ([]byte, error) {
	f := packageFile{
		Name:        pkg.Metadata.Name.JavaScriptName(),
		Version:     pkg.Metadata.SemVer().String(),
		Description: pkg.Metadata.Description,
		Main:        "src/index.js",
		Types:       "src/index.d.ts",
		Files:       []string{"src"},
		Engines:     map[string]string{"node": NodeEngine},
	}
	if pkg.RequiresWASI() {
		f.Dependencies = map[string]string{"@wasmer/wasi": WASIDependency}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "encode package.json")
	}
	return buf.Bytes(), nil
}

type indexLibrary struct {
	Dir        string
	Module     string
	Class      string
	HasImports bool
}

type commandData struct {
	Banner string
	Name   string
	Func   string
	Module string
	Wasm   string
}

type indexData struct {
	Banner      string
	Description string
	Libraries   []indexLibrary
	Commands    []commandData
}
