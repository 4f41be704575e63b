package hostrt

import (
	"testing"

	"github.com/wippyai/wasm-pack/errors"
)

func TestBinding_Signatures(t *testing.T) {
	b := mustBind(t, textWIT, "text.wit")

	want := map[string]string{
		"len":   "(ptr, i32) -> (i32)",
		"echo":  "(ptr, i32, ptr) -> ()",
		"shout": "(ptr, i32, ptr) -> ()",
	}
	got := b.Signatures()
	for name, sig := range want {
		if got[name] != sig {
			t.Errorf("%s: signature %q, want %q", name, got[name], sig)
		}
	}
	if fns := b.Functions(); len(fns) != 3 || fns[0] != "len" || fns[2] != "shout" {
		t.Errorf("Functions() = %v", fns)
	}
	if b.Name() != "text" {
		t.Errorf("Name() = %q", b.Name())
	}

	if _, err := NewBinding(textWIT, "text.wit", want); err != nil {
		t.Errorf("matching signatures rejected: %v", err)
	}
}

func TestBinding_StaleSignatures(t *testing.T) {
	tests := []struct {
		name string
		sigs map[string]string
	}{
		{"changed", map[string]string{"add": "(i64, i64) -> (i64)", "boom": "() -> ()"}},
		{"missing", map[string]string{"add": "(i32, i32) -> (i32)"}},
		{"extra", map[string]string{"add": "(i32, i32) -> (i32)", "boom": "() -> ()", "sub": "() -> ()"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBinding(calcWIT, "calc.wit", tt.sigs)
			if kindOf(err) != errors.KindSignature {
				t.Errorf("err = %v, want signature", err)
			}
		})
	}
}

func TestBinding_ParseError(t *testing.T) {
	_, err := NewBinding("interface broken {", "broken.wit", nil)
	if kindOf(err) != errors.KindSyntax {
		t.Errorf("err = %v, want syntax", err)
	}
}
