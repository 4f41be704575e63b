package abi

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func repeat(t wit.Type, n int) []wit.Type {
	out := make([]wit.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name            string
		params, results []wit.Type
		want            string
		indirectParams  bool
		indirectResults bool
	}{
		{"empty", nil, nil, "() -> ()", false, false},
		{"scalar", []wit.Type{wit.U32{}, wit.F64{}}, []wit.Type{wit.U32{}}, "(i32, f64) -> (i32)", false, false},
		{"string param", []wit.Type{wit.String{}}, nil, "(ptr, i32) -> ()", false, false},
		{"string result", nil, []wit.Type{wit.String{}}, "(ptr) -> ()", false, true},
		{"two results", nil, []wit.Type{wit.U8{}, wit.U8{}}, "(ptr) -> ()", false, true},
		{"one slot record", nil, []wit.Type{record(wit.U64{})}, "() -> (i64)", false, false},
		{"two slot record", nil, []wit.Type{record(wit.U32{}, wit.U32{})}, "(ptr) -> ()", false, true},
		{"sixteen params", repeat(wit.U32{}, 16), nil, "(" + FormatSlots(make([]Slot, 16)) + ") -> ()", false, false},
		{"seventeen params", repeat(wit.U32{}, 17), nil, "(ptr) -> ()", true, false},
		{"both spilled", repeat(wit.String{}, 9), []wit.Type{wit.String{}}, "(ptr, ptr) -> ()", true, true},
		{"enum result", nil, []wit.Type{enum(2)}, "() -> (i32)", false, false},
		{"empty flags param", []wit.Type{flagsOf(0)}, nil, "() -> ()", false, false},
	}

	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := calc.Signature(tt.params, tt.results)
			if err != nil {
				t.Fatalf("Signature: %v", err)
			}
			if got := sig.String(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if sig.IndirectParams != tt.indirectParams {
				t.Errorf("IndirectParams = %v", sig.IndirectParams)
			}
			if sig.IndirectResults != tt.indirectResults {
				t.Errorf("IndirectResults = %v", sig.IndirectResults)
			}
		})
	}
}

func TestSignature_ResultLayout(t *testing.T) {
	sig, err := NewCalculator().Signature(nil, []wit.Type{wit.U8{}, wit.String{}, wit.U64{}})
	if err != nil {
		t.Fatal(err)
	}
	if got := sig.ResultLayout.Offsets; len(got) != 3 || got[0] != 0 || got[1] != 4 || got[2] != 16 {
		t.Errorf("offsets: got %v, want [0 4 16]", got)
	}
	if sig.ResultLayout.Size != 24 || sig.ResultLayout.Align != 8 {
		t.Errorf("size/align: got %d/%d", sig.ResultLayout.Size, sig.ResultLayout.Align)
	}
}
