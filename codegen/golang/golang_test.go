package golang

import (
	stderrors "errors"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

const greeterWIT = `interface greeter {
  greet: func(name: string) -> string
}`

const shapesWIT = `interface shapes {
  record point { x: f64, y: f64 }
  variant shape { circle(f64), polygon(list<point>), empty }
  enum color { red, green, blue }
  flags style { bold, italic }
  resource canvas
  type points = list<point>

  draw: func(c: borrow<canvas>, s: shape, fill: option<color>) -> result<u32, string>
  bounds: func(ps: points) -> tuple<point, point>
  styled: func(s: style) -> style
  reset: func()
}`

const consoleWIT = `interface console {
  enum level { info, warn }
  log: func(lvl: level, msg: string)
  now: func() -> u64
}`

var fakeWasm = []byte("\x00asm\x01\x00\x00\x00")

func load(t *testing.T, src string) *model.Interface {
	t.Helper()
	iface, err := witsrc.Load(src, "test.wit")
	require.NoError(t, err)
	return iface
}

func pkg(t *testing.T, name string) *model.Package {
	t.Helper()
	meta, err := model.NewMetadata(name, "0.1.0")
	require.NoError(t, err)
	return &model.Package{Metadata: meta}
}

func generate(t *testing.T, p *model.Package, opts ...codegen.Option) assemble.FileSet {
	t.Helper()
	opts = append([]codegen.Option{codegen.WithVersion("0.1.0")}, opts...)
	b, err := New(codegen.NewOptions(opts...)).Generate(p)
	require.NoError(t, err)
	files, err := assemble.Assemble(p.Metadata, b)
	require.NoError(t, err)
	return files
}

func contents(t *testing.T, files assemble.FileSet, p string) string {
	t.Helper()
	f, ok := files.Get(p)
	require.True(t, ok, "missing %s in %v", p, files.Paths())
	return string(f.Contents)
}

func assertParses(t *testing.T, files assemble.FileSet) {
	t.Helper()
	fset := token.NewFileSet()
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ".go") {
			continue
		}
		_, err := parser.ParseFile(fset, f.Path, f.Contents, parser.ParseComments)
		assert.NoError(t, err, f.Path)
	}
}

func TestGenerate_Library(t *testing.T) {
	p := pkg(t, "wasmer/hello-world")
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
	}}

	files := generate(t, p)
	assert.Equal(t, []string{
		"bindings/greeter/greeter.go",
		"bindings/greeter/greeter.wasm",
		"bindings/greeter/greeter.wit",
		"go.mod",
		"helloworld.go",
		"intrinsics/intrinsics.go",
	}, files.Paths())
	assertParses(t, files)

	gomod := contents(t, files, "go.mod")
	assert.Contains(t, gomod, "module wasmer/hello-world")
	assert.Contains(t, gomod, "go 1.25")
	assert.Contains(t, gomod, "github.com/wippyai/wasm-pack v0.1.0")

	src := contents(t, files, "bindings/greeter/greeter.go")
	assert.True(t, strings.HasPrefix(src, "// Code generated by wasm-pack v0.1.0. DO NOT EDIT."))
	assert.Contains(t, src, "package greeter")
	assert.Contains(t, src, "//go:embed greeter.wasm")
	assert.Contains(t, src, `"greet": "(ptr, i32, ptr) -> ()"`)
	assert.Contains(t, src, "func New(ctx context.Context) (*Instance, error)")
	assert.Contains(t, src, "func (inst *Instance) Greet(ctx context.Context, name string) (string, error)")
	assert.Contains(t, src, `inst.module.Call(ctx, "greet", []any{name}, &res0)`)
	assert.Contains(t, src, `"wasmer/hello-world/intrinsics"`)

	wit := contents(t, files, "bindings/greeter/greeter.wit")
	reloaded, err := witsrc.Load(wit, "greeter.wit")
	require.NoError(t, err)
	assert.Equal(t, "greeter", reloaded.Name)

	entry := contents(t, files, "helloworld.go")
	assert.Contains(t, entry, "package helloworld")
	assert.Contains(t, entry, "type Greeter = greeter.Instance")
	assert.Contains(t, entry, "var NewGreeter = greeter.New")

	wasm, ok := files.Get("bindings/greeter/greeter.wasm")
	require.True(t, ok)
	assert.Equal(t, fakeWasm, wasm.Contents)
	assert.Equal(t, assemble.KindWasm, wasm.Kind)
}

func TestGenerate_Types(t *testing.T) {
	p := pkg(t, "shapes")
	p.Libraries = []*model.Library{{
		Exports: load(t, shapesWIT),
		Module:  model.Module{Name: "shapes", Wasm: fakeWasm},
	}}

	files := generate(t, p)
	assertParses(t, files)
	src := contents(t, files, "bindings/shapes/shapes.go")

	for _, want := range []string{
		"type Point struct {",
		"X float64 `wit:\"x\"`",
		"type ShapeTag uint8",
		"ShapeCircle ShapeTag = iota",
		"Polygon []Point `wit:\"polygon\"`",
		"type Color uint8",
		"ColorRed Color = iota",
		"type Style uint8",
		"StyleBold Style = 1 << iota",
		"type Canvas uint32",
		"type Points = []Point",
		"Draw(ctx context.Context, c Canvas, s Shape, fill *Color) (intrinsics.Result[uint32, string], error)",
		"Bounds(ctx context.Context, ps Points) (struct {",
		"func (inst *Instance) Reset(ctx context.Context) error",
		`inst.module.Call(ctx, "reset", nil)`,
	} {
		assert.Contains(t, src, want)
	}
}

func TestGenerate_Imports(t *testing.T) {
	p := pkg(t, "app")
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm, ABI: model.ABIWASI},
		Imports: []*model.Interface{load(t, consoleWIT)},
	}}

	files := generate(t, p)
	assertParses(t, files)

	src := contents(t, files, "bindings/greeter/greeter.go")
	for _, want := range []string{
		"type Imports struct {",
		"Console Console",
		"type Console interface {",
		"Log(ctx context.Context, lvl ConsoleLevel, msg string) error",
		"Now(ctx context.Context) (uint64, error)",
		"type ConsoleLevel uint8",
		"func New(ctx context.Context, imports Imports) (*Instance, error)",
		`hostrt.MissingHost("console")`,
		"WASI:      true,",
		"call.Params(&lvl, &msg)",
		"return call.Return(res0)",
	} {
		assert.Contains(t, src, want)
	}

	_, ok := files.Get("bindings/greeter/console.wit")
	assert.True(t, ok)
	assert.Contains(t, contents(t, files, "app.go"), "type GreeterImports = greeter.Imports")
}

func TestGenerate_Commands(t *testing.T) {
	p := pkg(t, "tools")
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
	}}
	p.Commands = []*model.Command{{Name: "dummy-cmd", Wasm: fakeWasm}}

	files := generate(t, p)
	assertParses(t, files)
	assert.Equal(t, []string{
		"bindings/greeter/greeter.go",
		"bindings/greeter/greeter.wasm",
		"bindings/greeter/greeter.wit",
		"commands/dummy-cmd.wasm",
		"commands/dummy_cmd.go",
		"go.mod",
		"intrinsics/intrinsics.go",
		"tools.go",
	}, files.Paths())

	launcher := contents(t, files, "commands/dummy_cmd.go")
	assert.Contains(t, launcher, "//go:embed dummy-cmd.wasm")
	assert.Contains(t, launcher, "func RunDummyCmd(ctx context.Context, cfg hostrt.CommandConfig) (*hostrt.CommandResult, error)")

	assert.Contains(t, contents(t, files, "tools.go"), "var RunDummyCmd = commands.RunDummyCmd")
	assert.NotContains(t, contents(t, files, "bindings/greeter/greeter.go"), "dummy")
}

func TestGenerate_CommandsOnly(t *testing.T) {
	p := pkg(t, "cli")
	p.Commands = []*model.Command{{Name: "wasm_test", Wasm: fakeWasm}}

	files := generate(t, p)
	assertParses(t, files)
	_, ok := files.Get("commands/wasm_test_cmd.go")
	assert.True(t, ok, "launcher name must not look like a test or GOARCH file: %v", files.Paths())
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() assemble.FileSet {
		p := pkg(t, "shapes")
		p.Libraries = []*model.Library{{
			Exports: load(t, shapesWIT),
			Module:  model.Module{Name: "shapes", Wasm: fakeWasm},
			Imports: []*model.Interface{load(t, consoleWIT)},
		}}
		p.Commands = []*model.Command{{Name: "draw", Wasm: fakeWasm}}
		return generate(t, p)
	}
	first, second := build(), build()
	require.Equal(t, first.Paths(), second.Paths())
	for i := range first {
		assert.Equal(t, string(first[i].Contents), string(second[i].Contents), first[i].Path)
	}
}

func TestGenerate_NameCollision(t *testing.T) {
	p := pkg(t, "web")
	p.Libraries = []*model.Library{{
		Exports: load(t, `interface web {
  enum color { red, green }
  record color-red { a: u32 }
}`),
		Module: model.Module{Name: "web", Wasm: fakeWasm},
	}}

	_, err := New(codegen.NewOptions()).Generate(p)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameCollision), "got %v", err)
}

func TestGenerate_ModuleOverride(t *testing.T) {
	p := pkg(t, "calc")
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
	}}

	files := generate(t, p, codegen.WithGoModule("example.com/calc"))
	assert.Contains(t, contents(t, files, "go.mod"), "module example.com/calc")
	assert.Contains(t, contents(t, files, "bindings/greeter/greeter.go"), `"example.com/calc/intrinsics"`)
}

func TestLauncherFile(t *testing.T) {
	cases := map[string]string{
		"hello":      "hello.go",
		"say-hi":     "say_hi.go",
		"build_test": "build_test_cmd.go",
		"run-linux":  "run_linux_cmd.go",
	}
	for name, want := range cases {
		assert.Equal(t, want, launcherFile(name), name)
	}
}

const closerWIT = `interface closer {
  close: func()
  open: func(path: string) -> result<u32, string>
}`

func TestGenerate_CloseEscaped(t *testing.T) {
	p := pkg(t, "files")
	p.Libraries = []*model.Library{{
		Exports: load(t, closerWIT),
		Module:  model.Module{Name: "closer", Wasm: fakeWasm},
	}}

	files := generate(t, p)
	assertParses(t, files)
	src := contents(t, files, "bindings/closer/closer.go")
	assert.Contains(t, src, "func (inst *Instance) Close_(ctx context.Context) error")
	assert.Contains(t, src, `inst.module.Call(ctx, "close", nil)`)
	assert.Contains(t, src, "func (inst *Instance) Close(ctx context.Context) error")
	assert.Contains(t, src, "func (inst *Instance) Open(ctx context.Context, path string)")
}

// TestGenerate_TypeChecks runs go vet over a generated module that uses
// every type kind, imports, commands and a method colliding with Close.
func TestGenerate_TypeChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go tool")
	}
	gotool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go not installed")
	}

	p := pkg(t, "kitchen")
	p.Libraries = []*model.Library{
		{
			Exports: load(t, shapesWIT),
			Module:  model.Module{Name: "shapes", Wasm: fakeWasm, ABI: model.ABIWASI},
			Imports: []*model.Interface{load(t, consoleWIT)},
		},
		{
			Exports: load(t, closerWIT),
			Module:  model.Module{Name: "closer", Wasm: fakeWasm},
		},
	}
	p.Commands = []*model.Command{{Name: "draw-all", Wasm: fakeWasm}}

	files := generate(t, p, codegen.WithGoModule("example.com/kitchen"))
	dir := t.TempDir()
	require.NoError(t, files.WriteTo(dir))

	root, err := filepath.Abs(filepath.Join("..", ".."))
	require.NoError(t, err)
	gomod := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(gomod)
	require.NoError(t, err)
	mf, err := modfile.Parse(gomod, data, nil)
	require.NoError(t, err)
	require.NoError(t, mf.AddReplace(RuntimeModule, "", root, ""))
	data, err = mf.Format()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(gomod, data, 0o644))

	sums, err := os.ReadFile(filepath.Join(root, "go.sum"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), sums, 0o644))

	cmd := exec.Command(gotool, "vet", "./...")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOFLAGS=-mod=mod", "GOWORK=off")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", out)
}
