package abi

import (
	"fmt"
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Call holds the lowered arguments of one invocation.
type Call struct {
	// Args are the core parameters, ending with the return area pointer
	// when the signature returns indirectly.
	Args []uint64
	// ReturnArea is the caller-allocated result buffer, or 0.
	ReturnArea uint32
}

func arity(what string, want, got int) error {
	if want == got {
		return nil
	}
	return errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("expected %d %s, got %d", want, what, got))
}

// LowerParams lowers host arguments for a call into the guest. Spilled
// arguments and the return area are allocated with alloc.
func (c *Codec) LowerParams(mem Memory, alloc Allocator, sig Signature, types []wit.Type, args []any) (Call, error) {
	if err := arity("arguments", len(types), len(args)); err != nil {
		return Call{}, err
	}
	var call Call
	e := &encoder{calc: c.calc, mem: mem, alloc: alloc}

	if sig.IndirectParams {
		ptr, err := alloc.Alloc(sig.ParamLayout.Size, sig.ParamLayout.Align)
		if err != nil {
			return Call{}, errors.AllocationFailed(errors.PhaseEncode, sig.ParamLayout.Size, sig.ParamLayout.Align)
		}
		for i, t := range types {
			if err := c.Store(mem, alloc, t, ptr+sig.ParamLayout.Offsets[i], args[i]); err != nil {
				return Call{}, err
			}
		}
		call.Args = []uint64{uint64(ptr)}
	} else {
		for i, t := range types {
			var err error
			if call.Args, err = e.lower(t, reflect.ValueOf(args[i]), []string{itoa(i)}, call.Args); err != nil {
				return Call{}, err
			}
		}
	}

	if sig.IndirectResults {
		ptr, err := alloc.Alloc(max(sig.ResultLayout.Size, 1), sig.ResultLayout.Align)
		if err != nil {
			return Call{}, errors.AllocationFailed(errors.PhaseEncode, sig.ResultLayout.Size, sig.ResultLayout.Align)
		}
		call.ReturnArea = ptr
		call.Args = append(call.Args, uint64(ptr))
	}
	return call, nil
}

// LiftResults decodes the results of a guest call into outs, one pointer
// per declared result.
func (c *Codec) LiftResults(mem Memory, sig Signature, types []wit.Type, call Call, results []uint64, outs []any) error {
	if err := arity("result targets", len(types), len(outs)); err != nil {
		return err
	}
	if sig.IndirectResults {
		for i, t := range types {
			if err := c.Load(mem, t, call.ReturnArea+sig.ResultLayout.Offsets[i], outs[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if len(types) == 0 {
		return nil
	}
	return c.Lift(mem, types[0], results, outs[0])
}

// LiftParams decodes the core parameters of a guest-to-host call.
func (c *Codec) LiftParams(mem Memory, sig Signature, types []wit.Type, params []uint64, outs []any) error {
	if err := arity("parameter targets", len(types), len(outs)); err != nil {
		return err
	}
	if sig.IndirectParams {
		if len(params) == 0 {
			return errors.InvalidData(errors.PhaseDecode, nil, "missing parameter pointer")
		}
		ptr := uint32(params[0])
		for i, t := range types {
			if err := c.Load(mem, t, ptr+sig.ParamLayout.Offsets[i], outs[i]); err != nil {
				return err
			}
		}
		return nil
	}

	d := &decoder{calc: c.calc, mem: mem}
	rest := params
	for i, t := range types {
		rv, err := target(outs[i])
		if err != nil {
			return err
		}
		if rest, err = d.lift(t, rest, rv, []string{itoa(i)}); err != nil {
			return err
		}
	}
	return nil
}

// LowerResults encodes host results for a guest-to-host call. With an
// indirect return the values are written through the pointer in the last
// parameter and no core results are produced.
func (c *Codec) LowerResults(mem Memory, alloc Allocator, sig Signature, types []wit.Type, params []uint64, results []any) ([]uint64, error) {
	if err := arity("results", len(types), len(results)); err != nil {
		return nil, err
	}
	if sig.IndirectResults {
		if len(params) == 0 {
			return nil, errors.InvalidData(errors.PhaseEncode, nil, "missing return area pointer")
		}
		ptr := uint32(params[len(params)-1])
		for i, t := range types {
			if err := c.Store(mem, alloc, t, ptr+sig.ResultLayout.Offsets[i], results[i]); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	if len(types) == 0 {
		return nil, nil
	}
	return c.Lower(mem, alloc, types[0], results[0])
}
