package codegen

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"tmpl/hello.txt.tmpl":     {Data: []byte(`{{ pascal .Name }} {{ .Name | snake | upper }}`)},
		"tmpl/sub/nested.js.tmpl": {Data: []byte(`{{ camel .Name }}`)},
		"tmpl/README.md":          {Data: []byte(`ignored`)},
	}
	tmpl, err := LoadTemplates(fsys, "tmpl")
	require.NoError(t, err)

	out, err := Render(tmpl, "hello.txt", map[string]string{"Name": "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld HELLO_WORLD", string(out))

	out, err = Render(tmpl, "sub/nested.js", map[string]string{"Name": "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, "helloWorld", string(out))

	assert.Nil(t, tmpl.Lookup("README.md"))
	_, err = Render(tmpl, "missing", nil)
	assert.Error(t, err)
}

func TestLoadTemplates_ParseError(t *testing.T) {
	fsys := fstest.MapFS{"tmpl/bad.tmpl": {Data: []byte(`{{ .Name `)}}
	_, err := LoadTemplates(fsys, "tmpl")
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	o := NewOptions()
	assert.True(t, o.BigInt)
	assert.NotEmpty(t, o.Version)
	assert.NotNil(t, o.Logger)

	o = NewOptions(WithVersion("1.2.3"), WithBigInt(false), WithGoModule("example.com/x"))
	assert.Equal(t, "1.2.3", o.Version)
	assert.False(t, o.BigInt)
	assert.Equal(t, "example.com/x", o.GoModule)
	assert.Equal(t, "Generated by wasm-pack v1.2.3. DO NOT EDIT.", o.Banner())
}
