package hostrt

import (
	"context"
	"io"
	"slices"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/resource"
)

// Config describes one library instance.
type Config struct {
	// Name keys the compiled-module cache; empty disables caching.
	Name string
	Wasm []byte
	// WASI links WASI preview1. It is also linked when the module imports
	// any WASI function.
	WASI bool
	// Exports binds the functions the module exports. May be nil for a
	// module only used through its start function.
	Exports *Binding
	// Imports serve the interfaces the module imports.
	Imports []HostModule
	Stdout  io.Writer
	Stderr  io.Writer
	// Resources holds host resource handles. A new table is created when nil.
	Resources *resource.Table
}

// Instance is an instantiated library module.
type Instance struct {
	mod       api.Module
	exports   *Binding
	hosts     map[string]HostModule
	mem       *memory
	alloc     *allocator
	resources *resource.Table
	events    *resourceLog
	name      string
}

type instanceKey struct{}

func instanceFrom(ctx context.Context) *Instance {
	x, _ := ctx.Value(instanceKey{}).(*Instance)
	return x
}

func (x *Instance) bind(ctx context.Context) context.Context {
	return context.WithValue(resource.WithTable(ctx, x.resources), instanceKey{}, x)
}

// Instantiate links and instantiates a library module, then runs its
// _initialize export when present.
func (r *Runtime) Instantiate(ctx context.Context, cfg Config) (*Instance, error) {
	compiled, err := r.compile(ctx, cfg.Name, cfg.Wasm)
	if err != nil {
		return nil, err
	}

	if cfg.WASI || wasiImports(compiled) {
		if err := r.ensureWASI(ctx); err != nil {
			return nil, err
		}
	}

	x := &Instance{
		name:      cfg.Name,
		exports:   cfg.Exports,
		hosts:     make(map[string]HostModule, len(cfg.Imports)),
		resources: cfg.Resources,
	}
	if x.resources == nil {
		x.resources = resource.NewTable()
	}
	for _, hm := range cfg.Imports {
		if hm.Binding == nil {
			return nil, errors.InvalidInput(errors.PhaseRuntime, "host module without binding")
		}
		if err := r.ensureHost(ctx, hm.Binding); err != nil {
			return nil, err
		}
		x.hosts[hm.Binding.Name()] = hm
	}

	if err := r.checkImports(compiled); err != nil {
		return nil, err
	}
	if err := checkExports(compiled, cfg.Exports); err != nil {
		return nil, err
	}

	modCfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}

	bound := x.bind(ctx)
	mod, err := r.rt.InstantiateModule(bound, compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	x.mod = mod
	x.mem = &memory{mem: mod.Memory()}
	x.alloc = newAllocator(mod)

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(bound); err != nil {
			_ = mod.Close(ctx)
			return nil, errors.Trap("_initialize", err)
		}
	}

	x.events = &resourceLog{module: cfg.Name}
	x.resources.Subscribe(x.events)

	Logger().Debug("instantiated module",
		zap.String("module", cfg.Name),
		zap.Int("host_interfaces", len(cfg.Imports)))
	return x, nil
}

// checkImports reports every function import no linked module provides.
func (r *Runtime) checkImports(compiled wazero.CompiledModule) error {
	var missing []string
	for _, def := range compiled.ImportedFunctions() {
		modName, fnName, _ := def.Import()
		if r.provides(modName, fnName, def) {
			continue
		}
		missing = append(missing, modName+"#"+fnName)
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.NewMissingImportsError(missing)
}

func (r *Runtime) provides(modName, fnName string, want api.FunctionDefinition) bool {
	mod := r.rt.Module(modName)
	if mod == nil {
		return false
	}
	got, ok := mod.ExportedFunctionDefinitions()[fnName]
	if !ok {
		return false
	}
	return slices.Equal(got.ParamTypes(), want.ParamTypes()) &&
		slices.Equal(got.ResultTypes(), want.ResultTypes())
}

// checkExports compares each bound function with the core type the module
// exports under the same name.
func checkExports(compiled wazero.CompiledModule, b *Binding) error {
	if b == nil {
		return nil
	}
	exported := compiled.ExportedFunctions()
	for _, name := range b.order {
		sig := b.funcs[name].sig
		def, ok := exported[name]
		if !ok {
			return errors.NotFound(errors.PhaseRuntime, "export", b.Name()+"#"+name)
		}
		if !slices.Equal(def.ParamTypes(), valueTypes(sig.Params)) ||
			!slices.Equal(def.ResultTypes(), valueTypes(sig.Results)) {
			return errors.New(errors.PhaseRuntime, errors.KindSignature).
				Path(b.Name(), name).
				Detail("module exports %s, interface needs %s", coreSignature(def), sig).
				Build()
		}
	}
	return nil
}

func coreSignature(def api.FunctionDefinition) string {
	names := func(ts []api.ValueType) string {
		s := ""
		for i, t := range ts {
			if i > 0 {
				s += ", "
			}
			s += api.ValueTypeName(t)
		}
		return s
	}
	return "(" + names(def.ParamTypes()) + ") -> (" + names(def.ResultTypes()) + ")"
}

// Call invokes an exported function. args holds one Go value per WIT
// parameter; outs holds one pointer per WIT result.
func (x *Instance) Call(ctx context.Context, name string, args []any, outs ...any) error {
	if x.exports == nil {
		return errors.NotFound(errors.PhaseRuntime, "function", name)
	}
	f, err := x.exports.lookup(name)
	if err != nil {
		return err
	}
	exp := x.mod.ExportedFunction(name)
	if exp == nil {
		return errors.NotFound(errors.PhaseRuntime, "export", name)
	}

	ctx = x.bind(ctx)
	prev := x.alloc.ctx
	x.alloc.ctx = ctx
	defer func() { x.alloc.ctx = prev }()

	codec := x.exports.codec
	call, err := codec.LowerParams(x.mem, x.alloc, f.sig, f.params, args)
	if err != nil {
		return err
	}
	results, err := exp.Call(ctx, call.Args...)
	if err != nil {
		return errors.Trap(name, err)
	}
	return codec.LiftResults(x.mem, f.sig, f.results, call, results, outs)
}

// Memory exposes the instance's linear memory.
func (x *Instance) Memory() api.Memory {
	return x.mod.Memory()
}

// Resources returns the instance's handle table.
func (x *Instance) Resources() *resource.Table {
	return x.resources
}

// Binding returns the export binding, or nil.
func (x *Instance) Binding() *Binding {
	return x.exports
}

// Close releases the module and drops every live resource handle.
func (x *Instance) Close(ctx context.Context) error {
	err := x.mod.Close(ctx)
	if cerr := x.resources.Close(); err == nil {
		err = cerr
	}
	x.resources.Unsubscribe(x.events)
	return err
}

// resourceLog traces the handle lifecycle of one instance.
type resourceLog struct {
	module string
}

func (l *resourceLog) OnResourceEvent(e resource.Event) {
	Logger().Debug("resource "+e.Kind.String(),
		zap.String("module", l.module),
		zap.String("resource", e.Type),
		zap.Uint32("handle", uint32(e.Handle)))
}
