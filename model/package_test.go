package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-pack/errors"
)

func TestParsePackageName(t *testing.T) {
	tests := []struct {
		raw    string
		str    string
		js     string
		python string
		goPkg  string
		goMod  string
	}{
		{"wasmer/wasmer-pack", "wasmer/wasmer-pack", "@wasmer/wasmer-pack", "wasmer_pack", "wasmerpack", "wasmer/wasmer-pack"},
		{"_/calc", "_/calc", "calc", "calc", "calc", "calc"},
		{"Hello_World", "Hello_World", "hello_world", "hello_world", "helloworld", "hello_world"},
		{"ns/my-pkg2", "ns/my-pkg2", "@ns/my-pkg2", "my_pkg2", "mypkg2", "ns/my-pkg2"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, err := ParsePackageName(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.str, name.String())
			assert.Equal(t, tt.js, name.JavaScriptName())
			assert.Equal(t, tt.python, name.PythonName())
			assert.Equal(t, tt.goPkg, name.GoPackageName())
			assert.Equal(t, tt.goMod, name.GoModulePath())
		})
	}
}

func TestParsePackageName_Invalid(t *testing.T) {
	for _, raw := range []string{"", "/name", "ns/", "1abc", "ns/has space", "a/b/c", "-x"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePackageName(raw)
			assert.Error(t, err)
		})
	}
}

func TestMetadata_Validate(t *testing.T) {
	_, err := NewMetadata("wasmer/calc", "1.2.3")
	require.NoError(t, err)

	_, err = NewMetadata("wasmer/calc", "v0.1.0-rc.1")
	require.NoError(t, err)

	_, err = NewMetadata("wasmer/calc", "one")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidPackage)
}

func TestPackage_Validate(t *testing.T) {
	meta, err := NewMetadata("wasmer/calc", "0.1.0")
	require.NoError(t, err)

	lib := func(name string) *Library {
		return &Library{
			Exports: NewInterface(name, "", nil, nil),
			Module:  Module{Name: name, Wasm: []byte{0}},
		}
	}

	tests := []struct {
		name    string
		pkg     *Package
		wantErr bool
	}{
		{"library only", &Package{Metadata: meta, Libraries: []*Library{lib("calc")}}, false},
		{"command only", &Package{Metadata: meta, Commands: []*Command{{Name: "dummy_cmd"}}}, false},
		{"empty", &Package{Metadata: meta}, true},
		{"duplicate library", &Package{Metadata: meta, Libraries: []*Library{lib("calc"), lib("calc")}}, true},
		{"duplicate command", &Package{Metadata: meta, Commands: []*Command{{Name: "a"}, {Name: "a"}}}, true},
		{"unnamed command", &Package{Metadata: meta, Commands: []*Command{{}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pkg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidPackage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPackage_RequiresWASI(t *testing.T) {
	p := &Package{Libraries: []*Library{{Exports: NewInterface("a", "", nil, nil), Module: Module{ABI: ABINone}}}}
	assert.False(t, p.RequiresWASI())

	p.Libraries[0].Module.ABI = ABIWASI
	assert.True(t, p.RequiresWASI())

	p = &Package{Commands: []*Command{{Name: "x"}}}
	assert.True(t, p.RequiresWASI())
}

func TestParseABI(t *testing.T) {
	abi, err := ParseABI("WASI")
	require.NoError(t, err)
	assert.Equal(t, ABIWASI, abi)

	abi, err = ParseABI("")
	require.NoError(t, err)
	assert.Equal(t, ABINone, abi)

	_, err = ParseABI("emscripten")
	assert.Error(t, err)
}
