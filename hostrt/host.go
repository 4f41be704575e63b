package hostrt

import (
	"context"
	"maps"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/resource"
)

// HostFunc implements one imported function. It reads arguments with
// call.Params and answers with call.Return. A returned error traps the
// guest.
type HostFunc func(ctx context.Context, call *HostCall) error

// HostModule serves an imported interface.
type HostModule struct {
	Binding *Binding
	Funcs   map[string]HostFunc
}

// MissingHost reports that no implementation was supplied for an imported
// interface.
func MissingHost(iface string) error {
	return errors.New(errors.PhaseRuntime, errors.KindMissingImport).
		Path(iface).
		Detail("no host implementation for imported interface %q", iface).
		Build()
}

// HostCall is one guest-to-host invocation.
type HostCall struct {
	inst     *Instance
	binding  *Binding
	fn       *function
	params   []uint64
	results  []uint64
	returned bool
}

// Function returns the WIT name of the called function.
func (c *HostCall) Function() string {
	return c.fn.fn.Name
}

// Params decodes the arguments, one pointer per WIT parameter.
func (c *HostCall) Params(outs ...any) error {
	return c.binding.codec.LiftParams(c.inst.mem, c.fn.sig, c.fn.params, c.params, outs)
}

// Return encodes the results, one value per WIT result. Strings and lists
// are copied into guest memory through the guest allocator.
func (c *HostCall) Return(values ...any) error {
	flat, err := c.binding.codec.LowerResults(c.inst.mem, c.inst.alloc, c.fn.sig, c.fn.results, c.params, values)
	if err != nil {
		return err
	}
	c.results = flat
	c.returned = true
	return nil
}

// Resources returns the calling instance's handle table.
func (c *HostCall) Resources() *resource.Table {
	return c.inst.resources
}

// ensureHost registers the host module for an imported interface once per
// runtime. A second registration must describe the same functions.
func (r *Runtime) ensureHost(ctx context.Context, b *Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := b.Name()
	if prev, ok := r.hosts[name]; ok {
		if !maps.Equal(prev.Signatures(), b.Signatures()) {
			return errors.New(errors.PhaseRuntime, errors.KindSignature).
				Path(name).
				Detail("host interface already registered with different functions").
				Build()
		}
		return nil
	}

	builder := r.rt.NewHostModuleBuilder(name)
	for _, fnName := range b.order {
		f := b.funcs[fnName]
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(dispatch(b, f), valueTypes(f.sig.Params), valueTypes(f.sig.Results)).
			WithName(fnName).
			Export(fnName)
	}
	for _, res := range b.resources() {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(dropResource(res), []api.ValueType{api.ValueTypeI32}, nil).
			Export("[resource-drop]" + res)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, err, "instantiate host interface "+name)
	}
	r.hosts[name] = b
	Logger().Debug("registered host interface", zap.String("interface", name), zap.Int("functions", len(b.order)))
	return nil
}

// dispatch routes a guest call to the HostFunc of the instance that made
// it. Errors panic; wazero converts the panic into a trap of the calling
// export.
func dispatch(b *Binding, f *function) api.GoModuleFunc {
	iface := b.Name()
	nparams := len(f.sig.Params)
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		x := instanceFrom(ctx)
		if x == nil {
			panic(errors.New(errors.PhaseRuntime, errors.KindMissingImport).
				Path(iface, f.fn.Name).
				Detail("called outside an instance").
				Build())
		}
		hm, ok := x.hosts[iface]
		var impl HostFunc
		if ok {
			impl = hm.Funcs[f.fn.Name]
		}
		if impl == nil {
			panic(errors.New(errors.PhaseRuntime, errors.KindMissingImport).
				Path(iface, f.fn.Name).
				Detail("no host implementation").
				Build())
		}

		call := &HostCall{
			inst:    x,
			binding: b,
			fn:      f,
			params:  append([]uint64(nil), stack[:nparams]...),
		}
		prev := x.alloc.ctx
		x.alloc.ctx = ctx
		err := impl(ctx, call)
		x.alloc.ctx = prev
		if err != nil {
			panic(errors.Wrap(errors.PhaseRuntime, errors.KindTrap, err, iface+"#"+f.fn.Name))
		}
		if len(f.results) > 0 && !call.returned {
			panic(errors.New(errors.PhaseRuntime, errors.KindTrap).
				Path(iface, f.fn.Name).
				Detail("host function returned no results").
				Build())
		}
		copy(stack, call.results)
	}
}

func dropResource(typ string) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		h := resource.Handle(uint32(stack[0]))
		t := resource.FromContext(ctx)
		if got, ok := t.TypeOf(h); !ok || got != typ {
			Logger().Warn("drop of unknown resource handle",
				zap.String("resource", typ),
				zap.Uint32("handle", uint32(h)))
			return
		}
		t.Remove(h)
	}
}
