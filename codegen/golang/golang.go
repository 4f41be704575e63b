package golang

import (
	"embed"
	"go/format"
	"path"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

// RuntimeModule is the module generated code depends on.
const RuntimeModule = "github.com/wippyai/wasm-pack"

// GoVersion is the language version of generated modules.
const GoVersion = "1.25"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(codegen.LoadTemplates(templateFS, "templates"))

// Generator is the Go back end.
type Generator struct {
	opts codegen.Options
}

var _ codegen.Generator = (*Generator)(nil)

// New creates a Go generator.
func New(opts codegen.Options) *Generator {
	return &Generator{opts: opts}
}

// Name returns "go".
func (g *Generator) Name() string {
	return "go"
}

// Generate produces a Go module for pkg.
func (g *Generator) Generate(pkg *model.Package) (*assemble.Bundle, error) {
	modPath := g.opts.GoModule
	if modPath == "" {
		modPath = pkg.Metadata.Name.GoModulePath()
	}
	pkgName := pkg.Metadata.Name.GoPackageName()
	if codegen.GoKeywords[pkgName] {
		pkgName += "_"
	}
	if pkgName == "" {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Detail("package name %q has no letters usable in a Go package name", pkg.Metadata.Name).
			Build()
	}

	g.opts.Logger.Debug("generating Go package",
		zap.String("module", modPath),
		zap.Int("libraries", len(pkg.Libraries)),
		zap.Int("commands", len(pkg.Commands)))

	b := &assemble.Bundle{
		Layout: assemble.Layout{Libraries: "bindings", Commands: "commands"},
	}

	manifest, err := goMod(modPath, g.opts.Version)
	if err != nil {
		return nil, err
	}
	b.Manifest = codegen.TextFile("go.mod", assemble.KindManifest, manifest)

	root := codegen.NewScope(codegen.GoKeywords, pkgName)
	entry := entryData{
		Banner:      g.banner(),
		Package:     pkgName,
		Description: pkg.Metadata.Description,
		Module:      modPath,
	}

	dirs := codegen.NewScope(codegen.GoKeywords, "bindings")
	dirs.Reserve("commands", "commands package")
	dirs.Reserve("intrinsics", "intrinsics package")
	for _, lib := range pkg.Libraries {
		dir, err := dirs.Declare(lib.InterfaceName(), codegen.Lower)
		if err != nil {
			return nil, err
		}
		part, err := g.library(lib, dir, modPath)
		if err != nil {
			return nil, err
		}
		b.Libraries = append(b.Libraries, part)

		ident, err := root.Declare(lib.InterfaceName(), codegen.Pascal)
		if err != nil {
			return nil, err
		}
		if _, err := root.DeclareIdent(lib.InterfaceName()+"#new", "New"+ident); err != nil {
			return nil, err
		}
		entry.Libraries = append(entry.Libraries, entryLibrary{
			Ident:      ident,
			Package:    dir,
			HasImports: len(lib.Imports) > 0,
		})
		if len(lib.Imports) > 0 {
			if _, err := root.DeclareIdent(lib.InterfaceName()+"#imports", ident+"Imports"); err != nil {
				return nil, err
			}
		}
	}

	cmdFiles := codegen.NewScope(nil, "commands")
	cmdScope := codegen.NewScope(codegen.GoKeywords, "commands")
	for _, cmd := range pkg.Commands {
		ident, err := cmdScope.DeclareIdent(cmd.Name, "Run"+codegen.Convert(cmd.Name, codegen.Pascal))
		if err != nil {
			return nil, err
		}
		if _, err := root.DeclareIdent(cmd.Name+"#run", ident); err != nil {
			return nil, err
		}
		file, err := cmdFiles.DeclareIdent(cmd.Name, launcherFile(cmd.Name))
		if err != nil {
			return nil, err
		}
		part, err := g.command(cmd, ident, file, modPath)
		if err != nil {
			return nil, err
		}
		b.Commands = append(b.Commands, part)
		entry.Commands = append(entry.Commands, ident)
	}

	src, err := renderGo(pkgName+".go", "entry.go", entry)
	if err != nil {
		return nil, err
	}
	b.EntryPoints = []assemble.File{codegen.TextFile(pkgName+".go", assemble.KindEntryPoint, src)}

	src, err = renderGo("intrinsics/intrinsics.go", "intrinsics.go", struct{ Banner string }{g.banner()})
	if err != nil {
		return nil, err
	}
	b.Intrinsics = []assemble.File{codegen.TextFile("intrinsics/intrinsics.go", assemble.KindIntrinsics, src)}
	return b, nil
}

func (g *Generator) banner() string {
	return "Code generated by wasm-pack v" + g.opts.Version + ". DO NOT EDIT."
}

func goMod(modPath, version string) ([]byte, error) {
	f := &modfile.File{}
	if err := f.AddModuleStmt(modPath); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "go.mod module")
	}
	if err := f.AddGoStmt(GoVersion); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "go.mod go version")
	}
	if err := f.AddRequire(RuntimeModule, "v"+strings.TrimPrefix(version, "v")); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "go.mod require")
	}
	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "format go.mod")
	}
	return out, nil
}

// renderGo executes a template and gofmts the result.
func renderGo(file, name string, data any) ([]byte, error) {
	src, err := codegen.Render(templates, name, data)
	if err != nil {
		return nil, err
	}
	return formatGo(file, src)
}

func formatGo(file string, src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Path(file).
			Cause(err).
			Detail("generated Go source does not parse").
			Build()
	}
	return out, nil
}

func (g *Generator) command(cmd *model.Command, ident, file, modPath string) (assemble.Part, error) {
	wasmName := cmd.Name + ".wasm"
	src, err := renderGo(path.Join("commands", file), "command.go", commandData{
		Banner:  g.banner(),
		Name:    cmd.Name,
		Ident:   ident,
		Var:     codegen.Convert(cmd.Name, codegen.Camel) + "Wasm",
		Wasm:    wasmName,
		Module:  modPath,
		Package: "commands",
	})
	if err != nil {
		return assemble.Part{}, err
	}
	return assemble.Part{
		Name: cmd.Name,
		Files: []assemble.File{
			codegen.TextFile(file, assemble.KindLauncher, src),
			codegen.WasmFile(wasmName, cmd.Wasm),
		},
	}, nil
}

// constrainedSuffixes make the go tool skip or specialize a file.
var constrainedSuffixes = []string{
	"_test", "_aix", "_android", "_darwin", "_dragonfly", "_freebsd", "_hurd",
	"_illumos", "_ios", "_js", "_linux", "_nacl", "_netbsd", "_openbsd", "_plan9",
	"_solaris", "_wasip1", "_windows", "_zos", "_386", "_amd64", "_arm", "_arm64",
	"_loong64", "_mips", "_mips64", "_mips64le", "_mipsle", "_ppc64", "_ppc64le",
	"_riscv64", "_s390x", "_wasm",
}

// launcherFile names a command's Go file after the command, avoiding names
// the go tool treats as build constraints.
func launcherFile(name string) string {
	base := codegen.Convert(name, codegen.Snake)
	for _, s := range constrainedSuffixes {
		if strings.HasSuffix(base, s) {
			return base + "_cmd.go"
		}
	}
	return base + ".go"
}

type entryLibrary struct {
	Ident      string
	Package    string
	HasImports bool
}

type entryData struct {
	Banner      string
	Package     string
	Description string
	Module      string
	Libraries   []entryLibrary
	Commands    []string
}

type commandData struct {
	Banner  string
	Name    string
	Ident   string
	Var     string
	Wasm    string
	Module  string
	Package string
}
