package abi

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/model"
)

const (
	// MaxFlatParams is the most core parameters passed directly; beyond it
	// the arguments are stored in linear memory and passed by pointer.
	MaxFlatParams = 16
	// MaxFlatResults is the most core results returned directly; beyond it,
	// or with more than one result value, the caller passes a return area
	// pointer as the final parameter.
	MaxFlatResults = 1
)

// Signature is the core WebAssembly shape of a function.
type Signature struct {
	// Params are the core parameters, including a trailing return pointer
	// when IndirectResults is set.
	Params []Slot
	// Results are the core results; empty when IndirectResults is set.
	Results []Slot
	// ParamLayout places all arguments as a tuple in linear memory. Only
	// meaningful when IndirectParams is set.
	ParamLayout Layout
	// ResultLayout places all results as a tuple in the return area.
	ResultLayout    Layout
	IndirectParams  bool
	IndirectResults bool
}

// String renders the core signature, e.g. "(i32, i32) -> (i32)".
func (s Signature) String() string {
	return "(" + FormatSlots(s.Params) + ") -> (" + FormatSlots(s.Results) + ")"
}

// Signature computes the calling convention for a parameter and result list.
// The same rule applies to exports called by the host and to imports
// called by the guest.
func (c *Calculator) Signature(params, results []wit.Type) (Signature, error) {
	var sig Signature

	pl, err := c.tuple(params)
	if err != nil {
		return Signature{}, err
	}
	sig.ParamLayout = pl
	if len(pl.Flat) > MaxFlatParams {
		sig.IndirectParams = true
		sig.Params = []Slot{Pointer}
	} else {
		sig.Params = pl.Flat
	}

	rl, err := c.tuple(results)
	if err != nil {
		return Signature{}, err
	}
	sig.ResultLayout = rl
	if len(results) > 1 || len(rl.Flat) > MaxFlatResults {
		sig.IndirectResults = true
		sig.Params = append(append([]Slot(nil), sig.Params...), Pointer)
	} else {
		sig.Results = rl.Flat
	}
	return sig, nil
}

// FunctionSignature is Signature over a model function.
func (c *Calculator) FunctionSignature(fn *model.Function) (Signature, error) {
	return c.Signature(ParamTypes(fn.Params), ParamTypes(fn.Results))
}

// ParamTypes extracts the types of a parameter or result list.
func ParamTypes(ps []model.Param) []wit.Type {
	out := make([]wit.Type, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func (c *Calculator) tuple(types []wit.Type) (Layout, error) {
	if len(types) == 0 {
		return empty, nil
	}
	return c.sequence(&wit.TypeDef{Kind: &wit.Tuple{Types: types}}, types)
}
