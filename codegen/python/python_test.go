package python

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
  reset: func()
}`

const consoleWIT = `interface console {
  log: func(msg: string)
}`

var fakeWasm = []byte("\x00asm\x01\x00\x00\x00")

func load(t *testing.T, src string) *model.Interface {
	t.Helper()
	iface, err := witsrc.Load(src, "test.wit")
	require.NoError(t, err)
	return iface
}

func pkg(t *testing.T, name, version string) *model.Package {
	t.Helper()
	meta, err := model.NewMetadata(name, version)
	require.NoError(t, err)
	return &model.Package{Metadata: meta}
}

func generate(t *testing.T, p *model.Package) assemble.FileSet {
	t.Helper()
	b, err := New(codegen.NewOptions(codegen.WithVersion("0.1.0"))).Generate(p)
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

func TestGenerate_Layout(t *testing.T) {
	p := pkg(t, "wasmer/hello-world", "0.1.0")
	p.Metadata.Description = "Says hello."
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
	}}
	p.Commands = []*model.Command{{Name: "dummy-cmd", Wasm: fakeWasm}}

	files := generate(t, p)
	assert.Equal(t, []string{
		"MANIFEST.in",
		"hello_world/__init__.py",
		"hello_world/bindings/__init__.py",
		"hello_world/bindings/_intrinsics.py",
		"hello_world/bindings/greeter/__init__.py",
		"hello_world/bindings/greeter/bindings.py",
		"hello_world/bindings/greeter/greeter.wasm",
		"hello_world/commands/__init__.py",
		"hello_world/commands/dummy-cmd.wasm",
		"hello_world/py.typed",
		"pyproject.toml",
	}, files.Paths())

	var project struct {
		Project struct {
			Name         string   `toml:"name"`
			Version      string   `toml:"version"`
			Description  string   `toml:"description"`
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
		Tool struct {
			Setuptools struct {
				Packages []string `toml:"packages"`
			} `toml:"setuptools"`
		} `toml:"tool"`
	}
	require.NoError(t, toml.Unmarshal([]byte(contents(t, files, "pyproject.toml")), &project))
	assert.Equal(t, "hello-world", project.Project.Name)
	assert.Equal(t, "0.1.0", project.Project.Version)
	assert.Equal(t, "Says hello.", project.Project.Description)
	assert.Equal(t, []string{WasmtimeRequirement}, project.Project.Dependencies)
	assert.Equal(t, []string{
		"hello_world",
		"hello_world.bindings",
		"hello_world.bindings.greeter",
		"hello_world.commands",
	}, project.Tool.Setuptools.Packages)

	entry := contents(t, files, "hello_world/__init__.py")
	assert.True(t, strings.HasPrefix(entry, "# Generated by wasm-pack v0.1.0. DO NOT EDIT."))
	assert.Contains(t, entry, `"""Says hello."""`)
	assert.Contains(t, entry, "from .commands import dummy_cmd")

	bindings := contents(t, files, "hello_world/bindings/greeter/bindings.py")
	assert.Contains(t, bindings, "class Greeter:")
	assert.Contains(t, bindings, "def greet(self, name: str) -> str:")
	assert.Contains(t, bindings, `return self._instance.call("greet", [name])`)
	assert.Contains(t, bindings, "wasi=False")
	assert.NotContains(t, bindings, "dummy")

	launcher := contents(t, files, "hello_world/commands/__init__.py")
	assert.Contains(t, launcher, "def dummy_cmd(")
	assert.Contains(t, launcher, `os.path.join(_HERE, "dummy-cmd.wasm"), "dummy-cmd"`)

	assert.Contains(t, contents(t, files, "hello_world/bindings/__init__.py"), "from .greeter import Greeter")
	assert.Contains(t, contents(t, files, "MANIFEST.in"), "recursive-include hello_world *.py *.wasm")
}

func TestGenerate_Types(t *testing.T) {
	p := pkg(t, "shapes", "1.0.0")
	p.Libraries = []*model.Library{{
		Exports: load(t, shapesWIT),
		Module:  model.Module{Name: "shapes", Wasm: fakeWasm, ABI: model.ABIWASI},
	}}

	files := generate(t, p)
	src := contents(t, files, "shapes/bindings/shapes/bindings.py")
	for _, want := range []string{
		"@dataclass\nclass Point:",
		"    x: float",
		"class Shape(_rt.Variant):",
		`    CIRCLE = "circle"`,
		"class Color(IntEnum):",
		"    RED = 0",
		"class Style(IntFlag):",
		"    ITALIC = 1 << 1",
		`Canvas = NewType("Canvas", int)`,
		"Points = List[Point]",
		"def draw(self, c: Canvas, s: Shape, fill: Optional[Color]) -> _rt.Result[int, str]:",
		"def bounds(self, ps: Points) -> Tuple[Point, Point]:",
		"def reset(self) -> None:",
		"wasi=True",
	} {
		assert.Contains(t, src, want)
	}

	// The embedded descriptor is the interface's JSON descriptor.
	start := strings.Index(src, "_DESCRIPTOR = r'''") + len("_DESCRIPTOR = r'''")
	end := strings.Index(src[start:], "'''")
	var d codegen.Descriptor
	require.NoError(t, json.Unmarshal([]byte(src[start:start+end]), &d))
	assert.Equal(t, "shapes", d.Interface)
	require.Len(t, d.Functions, 3)
	assert.Equal(t, "draw", d.Functions[0].Name)
	assert.True(t, d.Functions[0].IndirectResults)
	assert.Contains(t, src, "0: (Point, (\"x\", \"y\", )),")
}

func TestGenerate_Imports(t *testing.T) {
	p := pkg(t, "app", "0.1.0")
	p.Libraries = []*model.Library{{
		Exports: load(t, greeterWIT),
		Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
		Imports: []*model.Interface{load(t, consoleWIT)},
	}}

	src := contents(t, generate(t, p), "app/bindings/greeter/bindings.py")
	for _, want := range []string{
		"class Console(Protocol):",
		"def log(self, msg: str) -> None:",
		"class Imports:",
		"    console: Console",
		"def __init__(self, imports: Imports) -> None:",
		"_rt.HostImport(_IMPORT0_CODEC, imports.console, {",
		`"log": "log",`,
	} {
		assert.Contains(t, src, want)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	build := func() assemble.FileSet {
		p := pkg(t, "shapes", "1.0.0")
		p.Libraries = []*model.Library{{
			Exports: load(t, shapesWIT),
			Module:  model.Module{Name: "shapes", Wasm: fakeWasm},
			Imports: []*model.Interface{load(t, consoleWIT)},
		}}
		return generate(t, p)
	}
	first, second := build(), build()
	require.Equal(t, first.Paths(), second.Paths())
	for i := range first {
		assert.Equal(t, string(first[i].Contents), string(second[i].Contents), first[i].Path)
	}
}

func TestGenerate_NameCollision(t *testing.T) {
	p := pkg(t, "app", "0.1.0")
	p.Libraries = []*model.Library{{
		Exports: load(t, `interface app {
  record app { x: u32 }
}`),
		Module: model.Module{Name: "app", Wasm: fakeWasm},
	}}
	_, err := New(codegen.NewOptions()).Generate(p)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameCollision), "got %v", err)
}

func TestPythonVersion(t *testing.T) {
	cases := map[string]string{
		"1.2.3":        "1.2.3",
		"1.0.0-beta.2": "1.0.0b2",
		"1.0.0-alpha":  "1.0.0a0",
		"2.0.0-rc.1":   "2.0.0rc1",
		"0.1.0-dev":    "0.1.0.dev0",
	}
	for in, want := range cases {
		meta, err := model.NewMetadata("x", in)
		require.NoError(t, err)
		assert.Equal(t, want, pythonVersion(meta), in)
	}
}

const kindsWIT = `interface kinds {
  record point { x: f64, y: f32, label: string }
  variant shape { circle(f64), polygon(list<point>), tagged(u64), empty }
  enum color { red, green, blue }
  flags style { bold, italic, underline }
  resource canvas

  check: func(p: point, s: shape, c: color, st: style, fill: option<color>, r: result<u32, string>, t: tuple<s8, u16, char>, raw: list<u8>, h: borrow<canvas>, big: s64, top: u64, yes: bool, small: u8, word: u32)
}`

// TestCodec_RoundTrip imports the generated bindings under python3 and
// moves every parameter kind through the emitted codec and back.
func TestCodec_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("runs python3")
	}
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not installed")
	}

	p := pkg(t, "kinds", "0.1.0")
	p.Libraries = []*model.Library{{
		Exports: load(t, kindsWIT),
		Module:  model.Module{Name: "kinds", Wasm: fakeWasm},
	}}
	dir := t.TempDir()
	require.NoError(t, generate(t, p).WriteTo(dir))

	script, err := filepath.Abs(filepath.Join("testdata", "codec_check.py"))
	require.NoError(t, err)
	cmd := exec.Command(python, script, dir)
	cmd.Env = append(os.Environ(), "PYTHONDONTWRITEBYTECODE=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", out)
	assert.Equal(t, "ok\n", string(out))
}
