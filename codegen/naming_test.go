package codegen

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-pack/errors"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		in     string
		c      Case
		expect string
	}{
		{"hello-world", Pascal, "HelloWorld"},
		{"hello-world", Camel, "helloWorld"},
		{"hello-world", Snake, "hello_world"},
		{"hello-world", ScreamingSnake, "HELLO_WORLD"},
		{"hello-world", Lower, "helloworld"},
		{"utf8-decode", Snake, "utf8_decode"},
		{"http", Pascal, "Http"},
		{"HTTP", Pascal, "Http"},
		{"x", Pascal, "X"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, Convert(tt.in, tt.c), "%s as %d", tt.in, tt.c)
	}
}

func TestScope_Declare(t *testing.T) {
	s := NewScope(GoKeywords, "calc")

	id, err := s.Declare("hello-world", Pascal)
	require.NoError(t, err)
	assert.Equal(t, "HelloWorld", id)

	again, err := s.Declare("hello-world", Pascal)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	kw, err := s.Declare("type", Camel)
	require.NoError(t, err)
	assert.Equal(t, "type_", kw)

	got, ok := s.Lookup("hello-world")
	assert.True(t, ok)
	assert.Equal(t, "HelloWorld", got)
}

func TestScope_Collision(t *testing.T) {
	s := NewScope(GoKeywords, "calc")
	_, err := s.Declare("http", Pascal)
	require.NoError(t, err)

	_, err = s.Declare("HTTP", Pascal)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNameCollision))

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Contains(t, e.Error(), "Http")
}

func TestScope_Reserve(t *testing.T) {
	s := NewScope(GoKeywords)
	s.Reserve("Instance", "runtime")
	_, err := s.Declare("instance", Pascal)
	assert.True(t, stderrors.Is(err, errors.ErrNameCollision))

	child := s.Child("point")
	id, err := child.Declare("instance", Pascal)
	require.NoError(t, err)
	assert.Equal(t, "Instance", id)
}

func TestScope_Escape(t *testing.T) {
	s := NewScope(GoKeywords, "lib", "Instance")
	s.Escape("Close")

	id, err := s.Declare("close", Pascal)
	require.NoError(t, err)
	assert.Equal(t, "Close_", id)

	id, err = s.Declare("close", Pascal)
	require.NoError(t, err)
	assert.Equal(t, "Close_", id)

	id, err = s.Declare("close-all", Pascal)
	require.NoError(t, err)
	assert.Equal(t, "CloseAll", id)

	_, err = s.DeclareIdent("closer", "Close_")
	assert.True(t, stderrors.Is(err, errors.ErrNameCollision))
}

func TestKeywordEscaping(t *testing.T) {
	py := NewScope(PythonKeywords)
	id, err := py.Declare("from", Snake)
	require.NoError(t, err)
	assert.Equal(t, "from_", id)

	js := NewScope(JavaScriptKeywords)
	id, err = js.Declare("delete", Camel)
	require.NoError(t, err)
	assert.Equal(t, "delete_", id)
}
