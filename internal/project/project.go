// Package project loads wasm-pack.yaml project files into packages ready
// for generation.
package project

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

// DefaultFile is the project file looked up in a project directory.
const DefaultFile = "wasm-pack.yaml"

// ABIAuto asks Package to inspect the module's imports.
const ABIAuto = "auto"

// File is the decoded project file. Paths are relative to the directory
// holding it.
type File struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Description string    `yaml:"description,omitempty"`
	Libraries   []Library `yaml:"libraries,omitempty"`
	Commands    []Command `yaml:"commands,omitempty"`
}

// Library describes one bindings library.
type Library struct {
	Module  string   `yaml:"module"`
	Exports string   `yaml:"exports"`
	Imports []string `yaml:"imports,omitempty"`
	// ABI is none, wasi or auto. Empty means auto.
	ABI string `yaml:"abi,omitempty"`
}

// Command describes one WASI command.
type Command struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`
}

// Parse decodes a project file. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r, yaml.DisallowUnknownField())
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "decode project file")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads the project file at p. A directory means its DefaultFile.
func Load(p string) (*File, error) {
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		p = filepath.Join(p, DefaultFile)
	}
	root, err := os.OpenRoot(filepath.Dir(p))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "open project directory")
	}
	defer func() {
		_ = root.Close()
	}()

	file, err := root.Open(filepath.Base(p))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "open project file")
	}
	defer func() {
		_ = file.Close()
	}()
	return Parse(file)
}

// Validate checks that every entry names its inputs.
func (f *File) Validate() error {
	if f.Name == "" {
		return errors.InvalidInput(errors.PhaseLoad, "project has no name")
	}
	if f.Version == "" {
		return errors.InvalidInput(errors.PhaseLoad, "project has no version")
	}
	if len(f.Libraries) == 0 && len(f.Commands) == 0 {
		return errors.InvalidInput(errors.PhaseLoad, "project has no libraries and no commands")
	}
	for i, lib := range f.Libraries {
		if lib.Module == "" || lib.Exports == "" {
			return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("library %d needs module and exports", i))
		}
		if lib.ABI != "" && !strings.EqualFold(lib.ABI, ABIAuto) {
			if _, err := model.ParseABI(lib.ABI); err != nil {
				return err
			}
		}
	}
	for i, cmd := range f.Commands {
		if cmd.Name == "" || cmd.Module == "" {
			return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("command %d needs name and module", i))
		}
	}
	return nil
}

// Package reads every referenced WIT and wasm file from fsys and builds the
// package. ABI auto-detection compiles modules with wazero; nothing is
// instantiated.
func (f *File) Package(ctx context.Context, fsys fs.FS) (*model.Package, error) {
	meta, err := model.NewMetadata(f.Name, f.Version)
	if err != nil {
		return nil, err
	}
	meta.Description = f.Description
	pkg := &model.Package{Metadata: meta}

	for _, entry := range f.Libraries {
		lib, err := loadLibrary(ctx, fsys, entry)
		if err != nil {
			return nil, err
		}
		pkg.Libraries = append(pkg.Libraries, lib)
	}
	for _, entry := range f.Commands {
		wasm, err := readFile(fsys, entry.Module)
		if err != nil {
			return nil, err
		}
		pkg.Commands = append(pkg.Commands, &model.Command{Name: entry.Name, Wasm: wasm})
	}
	return pkg, nil
}

// Open loads the project file at p and builds its package, resolving paths
// against the file's directory.
func Open(ctx context.Context, p string) (*model.Package, error) {
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		p = filepath.Join(p, DefaultFile)
	}
	f, err := Load(p)
	if err != nil {
		return nil, err
	}
	return f.Package(ctx, os.DirFS(filepath.Dir(p)))
}

func loadLibrary(ctx context.Context, fsys fs.FS, def Library) (*model.Library, error) {
	exports, err := loadInterface(fsys, def.Exports)
	if err != nil {
		return nil, err
	}
	wasm, err := readFile(fsys, def.Module)
	if err != nil {
		return nil, err
	}
	lib := &model.Library{
		Exports: exports,
		Module:  model.Module{Name: path.Base(def.Module), Wasm: wasm},
	}
	for _, p := range def.Imports {
		imp, err := loadInterface(fsys, p)
		if err != nil {
			return nil, err
		}
		lib.Imports = append(lib.Imports, imp)
	}

	if def.ABI == "" || strings.EqualFold(def.ABI, ABIAuto) {
		lib.Module.ABI, err = DetectABI(ctx, wasm)
	} else {
		lib.Module.ABI, err = model.ParseABI(def.ABI)
	}
	if err != nil {
		return nil, err
	}
	Logger().Debug("loaded library",
		zap.String("interface", exports.Name),
		zap.String("module", def.Module),
		zap.Stringer("abi", lib.Module.ABI),
		zap.Int("imports", len(lib.Imports)))
	return lib, nil
}

func loadInterface(fsys fs.FS, p string) (*model.Interface, error) {
	src, err := readFile(fsys, p)
	if err != nil {
		return nil, err
	}
	return witsrc.Load(string(src), p)
}

func readFile(fsys fs.FS, p string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, path.Clean(filepath.ToSlash(p)))
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Path(p).
			Detail("read %s", p).
			Cause(err).
			Build()
	}
	return data, nil
}

// wasiModules are the import namespaces of WASI preview 1.
var wasiModules = map[string]bool{
	"wasi_snapshot_preview1": true,
	"wasi_unstable":          true,
}

// DetectABI reports ABIWASI when the module imports any WASI preview 1
// function.
func DetectABI(ctx context.Context, wasm []byte) (model.ABI, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer func() {
		_ = rt.Close(ctx)
	}()

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return model.ABINone, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "compile module for ABI detection")
	}
	defer func() {
		_ = compiled.Close(ctx)
	}()

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if wasiModules[module] {
			Logger().Debug("module imports WASI", zap.String("module", module), zap.String("function", name))
			return model.ABIWASI, nil
		}
	}
	return model.ABINone, nil
}
