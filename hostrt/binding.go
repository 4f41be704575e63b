package hostrt

import (
	"fmt"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

// Binding is a resolved interface together with the calling convention of
// each of its functions. A Binding is read-only after construction and may
// be shared between instances and goroutines.
type Binding struct {
	iface *model.Interface
	codec *abi.Codec
	funcs map[string]*function
	order []string
}

type function struct {
	fn      *model.Function
	params  []wit.Type
	results []wit.Type
	sig     abi.Signature
}

// NewBinding resolves source and computes every function signature. When
// signatures is non-nil each entry must equal the computed core signature
// of the named function, and every function must have an entry.
func NewBinding(source, filename string, signatures map[string]string) (*Binding, error) {
	iface, err := witsrc.Load(source, filename)
	if err != nil {
		return nil, err
	}
	return Bind(iface, signatures)
}

// Bind builds a Binding from an already resolved interface.
func Bind(iface *model.Interface, signatures map[string]string) (*Binding, error) {
	calc := abi.NewCalculator()
	b := &Binding{
		iface: iface,
		codec: abi.NewCodec(calc),
		funcs: make(map[string]*function, len(iface.Funcs)),
	}

	// Warm the layout cache so later lookups never write to it.
	for _, td := range iface.Types {
		if _, err := calc.Layout(td.Def); err != nil {
			return nil, err
		}
	}

	for _, fn := range iface.Funcs {
		f := &function{
			fn:      fn,
			params:  abi.ParamTypes(fn.Params),
			results: abi.ParamTypes(fn.Results),
		}
		sig, err := calc.FunctionSignature(fn)
		if err != nil {
			return nil, err
		}
		f.sig = sig
		b.funcs[fn.Name] = f
		b.order = append(b.order, fn.Name)
	}

	if signatures != nil {
		if err := b.verify(signatures); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Binding) verify(signatures map[string]string) error {
	var problems []string
	for _, name := range b.order {
		want, ok := signatures[name]
		got := b.funcs[name].sig.String()
		switch {
		case !ok:
			problems = append(problems, name+": no recorded signature")
		case want != got:
			problems = append(problems, fmt.Sprintf("%s: recorded %s, computed %s", name, want, got))
		}
	}
	for name := range signatures {
		if _, ok := b.funcs[name]; !ok {
			problems = append(problems, name+": not declared in interface")
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New(errors.PhaseRuntime, errors.KindSignature).
		Path(b.iface.Name).
		Detail("binding out of date: %s", strings.Join(problems, "; ")).
		Build()
}

// Name returns the interface name.
func (b *Binding) Name() string {
	return b.iface.Name
}

// Interface returns the resolved interface.
func (b *Binding) Interface() *model.Interface {
	return b.iface
}

// Functions lists function names in declaration order.
func (b *Binding) Functions() []string {
	return append([]string(nil), b.order...)
}

// Signature returns the core signature of a function.
func (b *Binding) Signature(name string) (abi.Signature, bool) {
	f, ok := b.funcs[name]
	if !ok {
		return abi.Signature{}, false
	}
	return f.sig, true
}

// Signatures returns every core signature keyed by function name, in the
// form NewBinding accepts.
func (b *Binding) Signatures() map[string]string {
	out := make(map[string]string, len(b.funcs))
	for name, f := range b.funcs {
		out[name] = f.sig.String()
	}
	return out
}

func (b *Binding) lookup(name string) (*function, error) {
	f, ok := b.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", b.iface.Name+"#"+name)
	}
	return f, nil
}

// resources lists the resource types the interface declares.
func (b *Binding) resources() []string {
	var out []string
	for _, td := range b.iface.Types {
		if _, ok := td.Def.Kind.(*wit.Resource); ok {
			out = append(out, td.Name)
		}
	}
	return out
}
