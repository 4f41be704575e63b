package codegen

import (
	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/model"
)

// Signature is the calling convention of one function, with its parameter
// and result types resolved to TypeTable rows.
type Signature struct {
	Function *model.Function
	Params   []int
	Results  []int
	Core     abi.Signature
}

// Interface is an interface prepared for generation.
type Interface struct {
	*model.Interface
	Types      *TypeTable
	Signatures []*Signature
}

// Analyze computes the type table and every calling convention of iface.
func Analyze(iface *model.Interface) (*Interface, error) {
	calc := abi.NewCalculator()
	types, err := NewTypeTable(iface, calc)
	if err != nil {
		return nil, err
	}
	out := &Interface{Interface: iface, Types: types}
	for _, fn := range iface.Funcs {
		core, err := calc.FunctionSignature(fn)
		if err != nil {
			return nil, err
		}
		sig := &Signature{Function: fn, Core: core}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, types.Index(p.Type))
		}
		for _, r := range fn.Results {
			sig.Results = append(sig.Results, types.Index(r.Type))
		}
		out.Signatures = append(out.Signatures, sig)
	}
	return out, nil
}

// Signature returns the convention of the named function, or nil.
func (i *Interface) Signature(name string) *Signature {
	for _, s := range i.Signatures {
		if s.Function.Name == name {
			return s
		}
	}
	return nil
}

// CoreSignatures maps each function to its rendered core signature, the
// form hostrt verifies at bind time.
func (i *Interface) CoreSignatures() map[string]string {
	out := make(map[string]string, len(i.Signatures))
	for _, s := range i.Signatures {
		out[s.Function.Name] = s.Core.String()
	}
	return out
}
