package hostrt

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/errors"
)

// memory adapts a wazero linear memory to abi.Memory. Reads are copied so
// decoded byte slices stay valid after the guest writes again.
type memory struct {
	mem api.Memory
}

var _ abi.Memory = (*memory)(nil)

func (m *memory) Read(offset, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", "memory")
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, offset, length)
	}
	return append([]byte(nil), data...), nil
}

func (m *memory) Write(offset uint32, data []byte) error {
	if m.mem == nil {
		return errors.NotFound(errors.PhaseRuntime, "export", "memory")
	}
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, uint32(len(data)))
	}
	return nil
}

// reallocNames are the guest allocator exports in lookup order.
var reallocNames = []string{"cabi_realloc", "canonical_abi_realloc"}

// allocator reserves guest memory through the module's realloc export.
// The context is set for the duration of each host call.
type allocator struct {
	fn    api.Function
	ctx   context.Context
	stack [4]uint64
}

var _ abi.Allocator = (*allocator)(nil)

func newAllocator(mod api.Module) *allocator {
	a := &allocator{}
	for _, name := range reallocNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			a.fn = fn
			break
		}
	}
	return a
}

func (a *allocator) Alloc(size, align uint32) (uint32, error) {
	if a.fn == nil {
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("module exports no %s", reallocNames[0]).
			Build()
	}
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a.stack[0] = 0
	a.stack[1] = 0
	a.stack[2] = uint64(align)
	a.stack[3] = uint64(size)
	if err := a.fn.CallWithStack(ctx, a.stack[:]); err != nil {
		Logger().Warn("guest allocation failed",
			zap.Uint32("size", size),
			zap.Uint32("align", align),
			zap.Error(err))
		return 0, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Cause(err).
			Detail("%s(%d, %d)", reallocNames[0], size, align).
			Build()
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
	}
	return ptr, nil
}
