package wasmpack

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

const greeterWIT = `interface greeter {
  greet: func(name: string) -> string
}`

var fakeWasm = []byte("\x00asm\x01\x00\x00\x00")

func helloWorld(t *testing.T) *model.Package {
	t.Helper()
	iface, err := LoadInterface(greeterWIT, "greeter.wit")
	require.NoError(t, err)
	meta, err := model.NewMetadata("wasmer/hello-world", "0.1.0")
	require.NoError(t, err)
	return &model.Package{
		Metadata: meta,
		Libraries: []*model.Library{{
			Exports: iface,
			Module:  model.Module{Name: "greeter.wasm", Wasm: fakeWasm},
		}},
	}
}

func TestTargets(t *testing.T) {
	assert.Equal(t, []string{"go", "javascript", "python"}, Targets())

	for in, want := range map[string]string{
		"go": "go", "golang": "go", "Python": "python", "py": "python",
		"js": "javascript", " javascript ": "javascript",
	} {
		got, err := ParseTarget(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTarget("cobol")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidPackage))
	assert.Contains(t, err.Error(), "go, javascript, python")
}

func TestGenerate_HelloWorld(t *testing.T) {
	for _, target := range Targets() {
		t.Run(target, func(t *testing.T) {
			files, err := Generate(helloWorld(t), target, codegen.WithVersion("0.1.0"))
			require.NoError(t, err)
			require.NotEmpty(t, files)

			paths := files.Paths()
			assert.IsNonDecreasing(t, paths)

			assert.Len(t, files.OfKind(assemble.KindManifest), 1)
			assert.NotEmpty(t, files.OfKind(assemble.KindEntryPoint))

			var sawWasm bool
			for _, f := range files {
				if strings.HasSuffix(f.Path, "greeter.wasm") {
					sawWasm = true
					assert.Equal(t, fakeWasm, f.Contents)
				}
			}
			assert.True(t, sawWasm, "wasm copied into %v", paths)
		})
	}
}

func TestGenerate_LibraryAndCommand(t *testing.T) {
	for _, target := range Targets() {
		t.Run(target, func(t *testing.T) {
			p := helloWorld(t)
			p.Commands = []*model.Command{{Name: "dummy_cmd", Wasm: fakeWasm}}
			files, err := Generate(p, target)
			require.NoError(t, err)

			for _, f := range files {
				if strings.Contains(f.Path, "bindings") {
					assert.NotContains(t, string(f.Contents), "dummy_cmd", f.Path)
				}
				if strings.Contains(f.Path, "commands") {
					assert.NotContains(t, string(f.Contents), "greet", f.Path)
				}
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	for _, target := range Targets() {
		t.Run(target, func(t *testing.T) {
			first, err := Generate(helloWorld(t), target)
			require.NoError(t, err)
			second, err := Generate(helloWorld(t), target)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestGenerate_Invalid(t *testing.T) {
	p := helloWorld(t)
	p.Libraries = nil
	_, err := Generate(p, "go")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidPackage), "got %v", err)

	_, err = Generate(nil, "go")
	require.Error(t, err)

	_, err = Generate(helloWorld(t), "rust")
	require.Error(t, err)
}

func TestLoadInterface_Cycles(t *testing.T) {
	_, err := LoadInterface(`interface tree {
  record node { value: u32, next: option<node> }
}`, "tree.wit")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCyclicType), "got %v", err)

	iface, err := LoadInterface(`interface tree {
  record node { value: u32, next: option<handle<node>> }
  walk: func(start: node) -> list<node>
}`, "tree.wit")
	require.NoError(t, err)

	meta, err := model.NewMetadata("tree", "1.0.0")
	require.NoError(t, err)
	p := &model.Package{
		Metadata:  meta,
		Libraries: []*model.Library{{Exports: iface, Module: model.Module{Name: "tree", Wasm: fakeWasm}}},
	}
	for _, target := range Targets() {
		_, err := Generate(p, target)
		assert.NoError(t, err, target)
	}
}
