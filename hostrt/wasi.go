package hostrt

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/wasm-pack/errors"
)

const (
	wasiModule = "wasi_snapshot_preview1"
	ebadf      = 8
	invalidFD  = 0xFFFFFFFF
)

// ensureWASI instantiates WASI preview1 once per runtime, together with the
// adapter shims some toolchains link against.
func (r *Runtime) ensureWASI(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wasiDone || r.rt.Module(wasiModule) != nil {
		r.wasiDone = true
		return nil
	}

	builder := r.rt.NewHostModuleBuilder(wasiModule)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	builder = adapterShims(builder)

	if _, err := builder.Instantiate(ctx); err != nil && r.rt.Module(wasiModule) == nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindInstantiation, err, "instantiate WASI")
	}
	r.wasiDone = true
	return nil
}

func adapterShims(b wazero.HostModuleBuilder) wazero.HostModuleBuilder {
	i32 := []api.ValueType{api.ValueTypeI32}
	return b.
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(context.Context, api.Module, []uint64) {}), nil, nil).
		Export("reset_adapter_state").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = ebadf
		}), i32, i32).
		Export("adapter_close_badfd").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = invalidFD
		}), i32, i32).
		Export("adapter_open_badfd")
}

// wasiImports reports whether a compiled module imports any WASI function.
func wasiImports(c wazero.CompiledModule) bool {
	for _, fn := range c.ImportedFunctions() {
		mod, _, _ := fn.Import()
		if mod == wasiModule || mod == "wasi_unstable" {
			return true
		}
	}
	return false
}
