package hostrt

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/errors"
)

// Runtime owns a wazero runtime shared by every instance and command of a
// generated package.
type Runtime struct {
	rt       wazero.Runtime
	hosts    map[string]*Binding
	compiled map[string]wazero.CompiledModule
	mu       sync.Mutex
	wasiDone bool
}

type options struct {
	memoryLimitPages uint32
	compilationCache wazero.CompilationCache
}

// Option configures NewRuntime.
type Option func(*options)

// WithMemoryLimitPages caps each instance's memory, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// WithCompilationCache shares compiled code between runtimes.
func WithCompilationCache(c wazero.CompilationCache) Option {
	return func(o *options) {
		o.compilationCache = c
	}
}

// NewRuntime creates a runtime. Calls into instances stop when their
// context is cancelled.
func NewRuntime(ctx context.Context, opts ...Option) *Runtime {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if o.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	if o.compilationCache != nil {
		cfg = cfg.WithCompilationCache(o.compilationCache)
	}

	return &Runtime{
		rt:       wazero.NewRuntimeWithConfig(ctx, cfg),
		hosts:    make(map[string]*Binding),
		compiled: make(map[string]wazero.CompiledModule),
	}
}

// Close releases the runtime and every instance created from it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// compile caches compiled modules by name so repeated instantiation of an
// embedded module compiles once.
func (r *Runtime) compile(ctx context.Context, name string, wasm []byte) (wazero.CompiledModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if c, ok := r.compiled[name]; ok {
			return c, nil
		}
	}
	c, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module "+name, err)
	}
	if name != "" {
		r.compiled[name] = c
	}
	Logger().Debug("compiled module",
		zap.String("module", name),
		zap.Int("bytes", len(wasm)),
		zap.Int("imports", len(c.ImportedFunctions())))
	return c, nil
}

func valueTypes(slots []abi.Slot) []api.ValueType {
	out := make([]api.ValueType, len(slots))
	for i, s := range slots {
		out[i] = coreType(s)
	}
	return out
}

func coreType(s abi.Slot) api.ValueType {
	switch s.Core() {
	case abi.I64:
		return api.ValueTypeI64
	case abi.F32:
		return api.ValueTypeF32
	case abi.F64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}
