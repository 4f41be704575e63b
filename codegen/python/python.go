package python

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

// WasmtimeRequirement is the runtime dependency of generated packages.
const WasmtimeRequirement = "wasmtime>=14.0.0"

// RequiresPython is the interpreter range generated code supports.
const RequiresPython = ">=3.8"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(codegen.LoadTemplates(templateFS, "templates"))

// Generator is the Python back end. Generated packages run modules with
// wasmtime-py.
type Generator struct {
	opts codegen.Options
}

var _ codegen.Generator = (*Generator)(nil)

func New(opts codegen.Options) *Generator {
	return &Generator{opts: opts}
}

// Name returns "python".
func (g *Generator) Name() string {
	return "python"
}

// Generate produces a setuptools project for pkg.
func (g *Generator) Generate(pkg *model.Package) (*assemble.Bundle, error) {
	name := pkg.Metadata.Name.PythonName()
	if codegen.PythonKeywords[name] {
		name += "_"
	}
	g.opts.Logger.Debug("generating Python package",
		zap.String("package", name),
		zap.Int("libraries", len(pkg.Libraries)),
		zap.Int("commands", len(pkg.Commands)))

	b := &assemble.Bundle{
		Layout: assemble.Layout{
			Root:      name,
			Libraries: path.Join(name, "bindings"),
			Commands:  path.Join(name, "commands"),
		},
	}
	banner := g.opts.Banner()

	root := codegen.NewScope(codegen.PythonKeywords, name)
	for _, id := range []string{"bindings", "commands", "__version__", "CommandResult", "Err", "Ok", "Result", "Trap", "Variant"} {
		root.Reserve(id, "package API")
	}
	modules := codegen.NewScope(codegen.PythonKeywords, name, "bindings")
	modules.Reserve("_intrinsics", "runtime module")

	index := indexData{Banner: banner}
	packages := []string{name, name + ".bindings"}
	for _, lib := range pkg.Libraries {
		mod, err := modules.Declare(lib.InterfaceName(), codegen.Snake)
		if err != nil {
			return nil, err
		}
		class, err := root.Declare(lib.InterfaceName(), codegen.Pascal)
		if err != nil {
			return nil, err
		}
		if len(lib.Imports) > 0 {
			if _, err := root.DeclareIdent(lib.InterfaceName()+"#imports", class+"Imports"); err != nil {
				return nil, err
			}
		}
		part, err := g.library(lib, mod, class)
		if err != nil {
			return nil, err
		}
		b.Libraries = append(b.Libraries, part)
		index.Libraries = append(index.Libraries, indexLibrary{Module: mod, Class: class, HasImports: len(lib.Imports) > 0})
		packages = append(packages, name+".bindings."+mod)
	}

	entry := entryData{
		Banner:      banner,
		Name:        pkg.Metadata.Name.String(),
		Description: pkg.Metadata.Description,
		Version:     pythonVersion(pkg.Metadata),
	}
	if len(pkg.Commands) > 0 {
		files := codegen.NewScope(nil, name, "commands")
		files.Reserve("__init__.py", "launcher module")
		for _, cmd := range pkg.Commands {
			fn, err := root.Declare(cmd.Name, codegen.Snake)
			if err != nil {
				return nil, err
			}
			wasm, err := files.DeclareIdent(cmd.Name, cmd.Name+".wasm")
			if err != nil {
				return nil, err
			}
			entry.Commands = append(entry.Commands, commandData{Name: cmd.Name, Func: fn, Wasm: wasm})
			b.Commands = append(b.Commands, assemble.Part{
				Name:  cmd.Name,
				Files: []assemble.File{codegen.WasmFile(wasm, cmd.Wasm)},
			})
		}
		src, err := codegen.Render(templates, "commands.py", entry)
		if err != nil {
			return nil, err
		}
		b.Extra = append(b.Extra, codegen.TextFile(path.Join(name, "commands", "__init__.py"), assemble.KindLauncher, src))
		packages = append(packages, name+".commands")
	}

	manifest, err := pyproject(pkg.Metadata, packages)
	if err != nil {
		return nil, err
	}
	b.Manifest = codegen.TextFile("pyproject.toml", assemble.KindManifest, manifest)

	manifestIn, err := codegen.Render(templates, "MANIFEST.in", struct{ Package string }{name})
	if err != nil {
		return nil, err
	}
	b.Extra = append(b.Extra, codegen.TextFile("MANIFEST.in", assemble.KindMetadata, manifestIn))

	src, err := codegen.Render(templates, "entry.py", entry)
	if err != nil {
		return nil, err
	}
	b.EntryPoints = []assemble.File{
		codegen.TextFile("__init__.py", assemble.KindEntryPoint, src),
		codegen.TextFile("py.typed", assemble.KindMetadata, nil),
	}

	src, err = codegen.Render(templates, "bindings_init.py", index)
	if err != nil {
		return nil, err
	}
	intrinsics, err := codegen.Render(templates, "intrinsics.py", struct{ Banner string }{banner})
	if err != nil {
		return nil, err
	}
	b.Intrinsics = []assemble.File{
		codegen.TextFile("bindings/__init__.py", assemble.KindIndex, src),
		codegen.TextFile("bindings/_intrinsics.py", assemble.KindIntrinsics, intrinsics),
	}
	return b, nil
}

type pyprojectFile struct {
	BuildSystem struct {
		Requires []string `toml:"requires"`
		Backend  string   `toml:"build-backend"`
	} `toml:"build-system"`
	Project struct {
		Name           string   `toml:"name"`
		Version        string   `toml:"version"`
		Description    string   `toml:"description,omitempty"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Setuptools struct {
			Packages    []string            `toml:"packages"`
			PackageData map[string][]string `toml:"package-data"`
		} `toml:"setuptools"`
	} `toml:"tool"`
}

func pyproject(meta model.Metadata, packages []string) ([]byte, error) {
	var f pyprojectFile
	f.BuildSystem.Requires = []string{"setuptools>=61"}
	f.BuildSystem.Backend = "setuptools.build_meta"
	f.Project.Name = meta.Name.Name
	f.Project.Version = pythonVersion(meta)
	f.Project.Description = meta.Description
	f.Project.RequiresPython = RequiresPython
	f.Project.Dependencies = []string{WasmtimeRequirement}
	f.Tool.Setuptools.Packages = packages
	f.Tool.Setuptools.PackageData = map[string][]string{"*": {"*.wasm", "py.typed"}}

	out, err := toml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "encode pyproject.toml")
	}
	return out, nil
}

// pythonVersion renders the package version in PEP 440 form: semver
// pre-releases alpha.N, beta.N and rc.N become aN, bN and rcN, anything
// else becomes a dev release.
func pythonVersion(meta model.Metadata) string {
	v := meta.SemVer()
	base := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if v.Prerelease() == "" {
		return base
	}
	label, num, _ := strings.Cut(v.Prerelease(), ".")
	if num == "" {
		num = "0"
	}
	switch label {
	case "alpha", "a":
		return base + "a" + num
	case "beta", "b":
		return base + "b" + num
	case "rc":
		return base + "rc" + num
	}
	return base + ".dev0"
}

type indexLibrary struct {
	Module     string
	Class      string
	HasImports bool
}

type indexData struct {
	Banner    string
	Libraries []indexLibrary
}

type commandData struct {
	Name string
	Func string
	Wasm string
}

type entryData struct {
	Banner      string
	Name        string
	Description string
	Version     string
	Commands    []commandData
}
