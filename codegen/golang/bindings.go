package golang

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

// Identifiers the generated code uses inside function bodies. WIT
// parameters with these names get a trailing underscore.
var bodyIdents = []string{"inst", "call", "impl", "hb", "err", "ctx"}

// library emits one bindings package: a Go file, the WIT sources it binds
// against at run time and the module itself.
type library struct {
	g       *Generator
	lib     *model.Library
	dir     string
	modPath string

	scope   *codegen.Scope
	names   map[*wit.TypeDef]string
	exports *codegen.Interface
	imports []*hostIface

	methodScope *codegen.Scope
	b           strings.Builder
}

// hostIface is an imported interface the caller implements.
type hostIface struct {
	*codegen.Interface
	// Ident is the Go interface type and the Imports field.
	Ident   string
	witFile string
	index   int
}

func (g *Generator) library(lib *model.Library, dir, modPath string) (assemble.Part, error) {
	l := &library{
		g:       g,
		lib:     lib,
		dir:     dir,
		modPath: modPath,
		scope:   codegen.NewScope(codegen.GoKeywords, "bindings", dir),
		names:   make(map[*wit.TypeDef]string),
	}
	for _, id := range []string{"Instance", "New", "Imports"} {
		l.scope.Reserve(id, "generated API")
	}

	var err error
	if l.exports, err = codegen.Analyze(lib.Exports); err != nil {
		return assemble.Part{}, err
	}

	files := codegen.NewScope(nil, "bindings", dir)
	exportWit, err := files.DeclareIdent(lib.InterfaceName(), dir+".wit")
	if err != nil {
		return assemble.Part{}, err
	}
	for i, imp := range lib.Imports {
		a, err := codegen.Analyze(imp)
		if err != nil {
			return assemble.Part{}, err
		}
		ident, err := l.scope.Declare(imp.Name, codegen.Pascal)
		if err != nil {
			return assemble.Part{}, err
		}
		witFile, err := files.DeclareIdent(imp.Name, codegen.Convert(imp.Name, codegen.Lower)+".wit")
		if err != nil {
			return assemble.Part{}, err
		}
		l.imports = append(l.imports, &hostIface{Interface: a, Ident: ident, witFile: witFile, index: i})
	}

	if err := l.declareTypes(lib.Exports, ""); err != nil {
		return assemble.Part{}, err
	}
	for _, imp := range l.imports {
		if err := l.declareTypes(imp.Interface.Interface, imp.Ident); err != nil {
			return assemble.Part{}, err
		}
	}

	wasmName := codegen.ModuleFilename(lib.Module)
	if err := l.emit(exportWit, wasmName); err != nil {
		return assemble.Part{}, err
	}
	goFile := dir + ".go"
	src, err := formatGo(path.Join("bindings", dir, goFile), []byte(l.b.String()))
	if err != nil {
		return assemble.Part{}, err
	}

	g.opts.Logger.Debug("generated Go bindings",
		zap.String("interface", lib.InterfaceName()),
		zap.String("package", dir),
		zap.Int("functions", len(lib.Exports.Funcs)),
		zap.Int("imports", len(lib.Imports)))

	part := assemble.Part{
		Name: dir,
		Files: []assemble.File{
			codegen.TextFile(goFile, assemble.KindBindings, src),
			codegen.TextFile(exportWit, assemble.KindSource, []byte(witsrc.Format(lib.Exports))),
		},
	}
	for _, imp := range l.imports {
		part.Files = append(part.Files,
			codegen.TextFile(imp.witFile, assemble.KindSource, []byte(witsrc.Format(imp.Interface.Interface))))
	}
	part.Files = append(part.Files, codegen.WasmFile(wasmName, lib.Module.Wasm))
	return part, nil
}

// declareTypes assigns identifiers to the named types of iface. Types of
// imported interfaces are prefixed with the interface identifier.
func (l *library) declareTypes(iface *model.Interface, prefix string) error {
	for _, td := range iface.Types {
		ident, err := l.scope.DeclareIdent(iface.Name+"#"+td.Name, prefix+codegen.Convert(td.Name, codegen.Pascal))
		if err != nil {
			return err
		}
		l.names[td.Def] = ident
	}
	return nil
}

func (l *library) p(format string, args ...any) {
	fmt.Fprintf(&l.b, format, args...)
	l.b.WriteByte('\n')
}

// docs writes a doc comment. A missing doc gets fallback, if any.
func (l *library) docs(docs, fallback string) {
	if docs == "" {
		docs = fallback
	}
	if docs == "" {
		return
	}
	for _, line := range strings.Split(docs, "\n") {
		if line == "" {
			l.p("//")
			continue
		}
		l.p("// %s", line)
	}
}

func (l *library) emit(exportWit, wasmName string) error {
	l.p("// %s", l.g.banner())
	l.p("")
	l.p("// Package %s binds the %s interface of %s.", l.dir, l.lib.InterfaceName(), wasmName)
	if l.lib.Exports.Docs != "" {
		l.p("//")
		l.docs(l.lib.Exports.Docs, "")
	}
	l.p("package %s", l.dir)
	l.p("")
	l.p("import (")
	l.p("\t\"context\"")
	l.p("\t_ \"embed\"")
	l.p("\t\"sync\"")
	l.p("")
	l.p("\t\"github.com/wippyai/wasm-pack/hostrt\"")
	l.p("")
	l.p("\t%q", l.modPath+"/intrinsics")
	l.p(")")
	l.p("")
	l.p("//go:embed %s", wasmName)
	l.p("var wasmModule []byte")
	l.p("")
	l.p("//go:embed %s", exportWit)
	l.p("var witSource string")
	l.p("")
	l.signatures("signatures", l.exports)
	l.p("var binding = sync.OnceValues(func() (*hostrt.Binding, error) {")
	l.p("\treturn hostrt.NewBinding(witSource, %q, signatures)", exportWit)
	l.p("})")
	l.p("")
	for _, imp := range l.imports {
		n := strconv.Itoa(imp.index)
		l.p("//go:embed %s", imp.witFile)
		l.p("var import%sSource string", n)
		l.p("")
		l.signatures("import"+n+"Signatures", imp.Interface)
		l.p("var import%sBinding = sync.OnceValues(func() (*hostrt.Binding, error) {", n)
		l.p("\treturn hostrt.NewBinding(import%sSource, %q, import%sSignatures)", n, imp.witFile, n)
		l.p("})")
		l.p("")
	}

	for _, td := range l.lib.Exports.Types {
		if err := l.typeDecl(td); err != nil {
			return err
		}
	}
	for _, imp := range l.imports {
		for _, td := range imp.Interface.Interface.Types {
			if err := l.typeDecl(td); err != nil {
				return err
			}
		}
	}

	if err := l.hostInterfaces(); err != nil {
		return err
	}
	l.instance(wasmName)
	for _, sig := range l.exports.Signatures {
		if err := l.method(sig); err != nil {
			return err
		}
	}
	return nil
}

func (l *library) signatures(name string, iface *codegen.Interface) {
	l.p("var %s = map[string]string{", name)
	for _, sig := range iface.Signatures {
		l.p("\t%q: %q,", sig.Function.Name, sig.Core.String())
	}
	l.p("}")
	l.p("")
}

func (l *library) typeDecl(td *model.TypeDef) error {
	ident := l.names[td.Def]
	switch k := td.Def.Kind.(type) {
	case *wit.Record:
		l.docs(td.Docs, "")
		l.p("type %s struct {", ident)
		fields := codegen.NewScope(codegen.GoKeywords, ident)
		for _, f := range k.Fields {
			name, err := fields.Declare(f.Name, codegen.Pascal)
			if err != nil {
				return err
			}
			typ, err := l.typeExpr(f.Type)
			if err != nil {
				return err
			}
			l.memberDocs(td, f.Name)
			l.p("\t%s %s `wit:%q`", name, typ, f.Name)
		}
		l.p("}")

	case *wit.Variant:
		size := abi.DiscriminantSize(len(k.Cases))
		tag := ident + "Tag"
		if _, err := l.scope.DeclareIdent(ident+"#tag", tag); err != nil {
			return err
		}
		l.p("// %s selects the active case of %s.", tag, ident)
		l.p("type %s %s", tag, uintFor(size))
		l.p("")
		l.p("const (")
		for i, c := range k.Cases {
			name, err := l.scope.DeclareIdent(ident+"#"+c.Name, ident+codegen.Convert(c.Name, codegen.Pascal))
			if err != nil {
				return err
			}
			l.memberDocs(td, c.Name)
			if i == 0 {
				l.p("\t%s %s = iota", name, tag)
			} else {
				l.p("\t%s", name)
			}
		}
		l.p(")")
		l.p("")
		l.docs(td.Docs, ident+" is a variant. Tag selects the case; only that case's field is meaningful.")
		l.p("type %s struct {", ident)
		l.p("\tTag %s", tag)
		fields := codegen.NewScope(codegen.GoKeywords, ident)
		fields.Reserve("Tag", "discriminant")
		for _, c := range k.Cases {
			if c.Type == nil {
				continue
			}
			name, err := fields.Declare(c.Name, codegen.Pascal)
			if err != nil {
				return err
			}
			typ, err := l.typeExpr(c.Type)
			if err != nil {
				return err
			}
			l.p("\t%s %s `wit:%q`", name, typ, c.Name)
		}
		l.p("}")

	case *wit.Enum:
		l.docs(td.Docs, "")
		l.p("type %s %s", ident, uintFor(abi.DiscriminantSize(len(k.Cases))))
		l.p("")
		l.p("const (")
		for i, c := range k.Cases {
			name, err := l.scope.DeclareIdent(ident+"#"+c.Name, ident+codegen.Convert(c.Name, codegen.Pascal))
			if err != nil {
				return err
			}
			l.memberDocs(td, c.Name)
			if i == 0 {
				l.p("\t%s %s = iota", name, ident)
			} else {
				l.p("\t%s", name)
			}
		}
		l.p(")")

	case *wit.Flags:
		l.docs(td.Docs, "")
		size := uint32(1)
		switch n := len(k.Flags); {
		case n > 32:
			size = 8
		case n > 16:
			size = 4
		case n > 8:
			size = 2
		}
		l.p("type %s %s", ident, uintFor(size))
		if len(k.Flags) > 0 {
			l.p("")
			l.p("const (")
			for i, f := range k.Flags {
				name, err := l.scope.DeclareIdent(ident+"#"+f.Name, ident+codegen.Convert(f.Name, codegen.Pascal))
				if err != nil {
					return err
				}
				l.memberDocs(td, f.Name)
				if i == 0 {
					l.p("\t%s %s = 1 << iota", name, ident)
				} else {
					l.p("\t%s", name)
				}
			}
			l.p(")")
		}

	case *wit.Resource:
		l.docs(td.Docs, ident+" is a handle to a host "+td.Name+" resource.")
		l.p("type %s uint32", ident)

	default:
		typ, err := l.kindExpr(td.Def)
		if err != nil {
			return err
		}
		l.docs(td.Docs, "")
		l.p("type %s = %s", ident, typ)
	}
	l.p("")
	return nil
}

func (l *library) memberDocs(td *model.TypeDef, member string) {
	if d := td.MemberDocs[member]; d != "" {
		for _, line := range strings.Split(d, "\n") {
			l.p("\t// %s", line)
		}
	}
}

// funcScope names the parameters of one generated function.
func funcScope(owner string, results int) *codegen.Scope {
	kw := make(map[string]bool, len(codegen.GoKeywords)+len(bodyIdents)+results)
	for k := range codegen.GoKeywords {
		kw[k] = true
	}
	for _, id := range bodyIdents {
		kw[id] = true
	}
	for i := range results {
		kw["res"+strconv.Itoa(i)] = true
	}
	return codegen.NewScope(kw, owner)
}

type goParam struct {
	name string
	typ  string
}

func (l *library) params(owner string, fn *model.Function) ([]goParam, []string, error) {
	scope := funcScope(owner, len(fn.Results))
	params := make([]goParam, 0, len(fn.Params))
	for i, p := range fn.Params {
		witName := p.Name
		if witName == "" {
			witName = "arg" + strconv.Itoa(i)
		}
		name, err := scope.Declare(witName, codegen.Camel)
		if err != nil {
			return nil, nil, err
		}
		typ, err := l.typeExpr(p.Type)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, goParam{name, typ})
	}
	results := make([]string, 0, len(fn.Results))
	for _, r := range fn.Results {
		typ, err := l.typeExpr(r.Type)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, typ)
	}
	return params, results, nil
}

func signatureText(params []goParam, results []string) string {
	var b strings.Builder
	b.WriteString("(ctx context.Context")
	for _, p := range params {
		b.WriteString(", " + p.name + " " + p.typ)
	}
	b.WriteString(") ")
	if len(results) == 0 {
		b.WriteString("error")
		return b.String()
	}
	b.WriteString("(" + strings.Join(results, ", ") + ", error)")
	return b.String()
}

func resultNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "res" + strconv.Itoa(i)
	}
	return out
}

func (l *library) hostInterfaces() error {
	if len(l.imports) == 0 {
		return nil
	}
	l.p("// Imports are the host interfaces the module calls into. Every field")
	l.p("// must be set.")
	l.p("type Imports struct {")
	for _, imp := range l.imports {
		l.p("\t%s %s", imp.Ident, imp.Ident)
	}
	l.p("}")
	l.p("")

	for _, imp := range l.imports {
		l.docs(imp.Docs, imp.Ident+" is implemented by the host to provide the "+imp.Name+" interface.")
		l.p("type %s interface {", imp.Ident)
		methods := codegen.NewScope(codegen.GoKeywords, imp.Ident)
		idents := make([]string, len(imp.Signatures))
		for i, sig := range imp.Signatures {
			fn := sig.Function
			name, err := methods.Declare(fn.Name, codegen.Pascal)
			if err != nil {
				return err
			}
			idents[i] = name
			params, results, err := l.params(imp.Ident+"."+name, fn)
			if err != nil {
				return err
			}
			for _, line := range strings.Split(fn.Docs, "\n") {
				if line != "" {
					l.p("\t// %s", line)
				}
			}
			l.p("\t%s%s", name, signatureText(params, results))
		}
		l.p("}")
		l.p("")

		n := strconv.Itoa(imp.index)
		l.p("func import%sModule(impl %s) (hostrt.HostModule, error) {", n, imp.Ident)
		l.p("\thb, err := import%sBinding()", n)
		l.p("\tif err != nil {")
		l.p("\t\treturn hostrt.HostModule{}, err")
		l.p("\t}")
		l.p("\treturn hostrt.HostModule{")
		l.p("\t\tBinding: hb,")
		l.p("\t\tFuncs: map[string]hostrt.HostFunc{")
		for i, sig := range imp.Signatures {
			if err := l.hostFunc(idents[i], imp.Ident, sig.Function); err != nil {
				return err
			}
		}
		l.p("\t\t},")
		l.p("\t}, nil")
		l.p("}")
		l.p("")
	}
	return nil
}

func (l *library) hostFunc(method, owner string, fn *model.Function) error {
	params, results, err := l.params(owner+"."+method, fn)
	if err != nil {
		return err
	}
	l.p("\t\t\t%q: func(ctx context.Context, call *hostrt.HostCall) error {", fn.Name)
	args := []string{"ctx"}
	if len(params) > 0 {
		ptrs := make([]string, len(params))
		for i, p := range params {
			l.p("\t\t\t\tvar %s %s", p.name, p.typ)
			ptrs[i] = "&" + p.name
			args = append(args, p.name)
		}
		l.p("\t\t\t\tif err := call.Params(%s); err != nil {", strings.Join(ptrs, ", "))
		l.p("\t\t\t\t\treturn err")
		l.p("\t\t\t\t}")
	}
	call := fmt.Sprintf("impl.%s(%s)", method, strings.Join(args, ", "))
	if len(results) == 0 {
		l.p("\t\t\t\treturn %s", call)
	} else {
		res := resultNames(len(results))
		l.p("\t\t\t\t%s, err := %s", strings.Join(res, ", "), call)
		l.p("\t\t\t\tif err != nil {")
		l.p("\t\t\t\t\treturn err")
		l.p("\t\t\t\t}")
		l.p("\t\t\t\treturn call.Return(%s)", strings.Join(res, ", "))
	}
	l.p("\t\t\t},")
	return nil
}

func (l *library) instance(wasmName string) {
	l.p("// Instance is an instantiated %s module. It is not safe for concurrent", wasmName)
	l.p("// use; create one instance per goroutine.")
	l.p("type Instance struct {")
	l.p("\tmodule *hostrt.Instance")
	l.p("}")
	l.p("")

	if len(l.imports) > 0 {
		l.p("// New instantiates the module with the given host implementations.")
		l.p("func New(ctx context.Context, imports Imports) (*Instance, error) {")
	} else {
		l.p("// New instantiates the module.")
		l.p("func New(ctx context.Context) (*Instance, error) {")
	}
	l.p("\texports, err := binding()")
	l.p("\tif err != nil {")
	l.p("\t\treturn nil, err")
	l.p("\t}")
	var hosts []string
	for _, imp := range l.imports {
		n := strconv.Itoa(imp.index)
		l.p("\tif imports.%s == nil {", imp.Ident)
		l.p("\t\treturn nil, hostrt.MissingHost(%q)", imp.Name)
		l.p("\t}")
		l.p("\thost%s, err := import%sModule(imports.%s)", n, n, imp.Ident)
		l.p("\tif err != nil {")
		l.p("\t\treturn nil, err")
		l.p("\t}")
		hosts = append(hosts, "host"+n)
	}
	l.p("\tinst, err := intrinsics.Runtime().Instantiate(ctx, hostrt.Config{")
	l.p("\t\tName:      %q,", path.Join("bindings", l.dir, wasmName))
	l.p("\t\tWasm:      wasmModule,")
	l.p("\t\tWASI:      %t,", l.lib.RequiresWASI())
	l.p("\t\tExports:   exports,")
	if len(hosts) > 0 {
		l.p("\t\tImports:   []hostrt.HostModule{%s},", strings.Join(hosts, ", "))
	}
	l.p("\t\tResources: intrinsics.NewResources(),")
	l.p("\t})")
	l.p("\tif err != nil {")
	l.p("\t\treturn nil, err")
	l.p("\t}")
	l.p("\treturn &Instance{module: inst}, nil")
	l.p("}")
	l.p("")
	l.p("// Close releases the instance and its resources.")
	l.p("func (inst *Instance) Close(ctx context.Context) error {")
	l.p("\treturn inst.module.Close(ctx)")
	l.p("}")
	l.p("")
}

func (l *library) method(sig *codegen.Signature) error {
	fn := sig.Function
	methods := l.methods()
	name, err := methods.Declare(fn.Name, codegen.Pascal)
	if err != nil {
		return err
	}
	params, results, err := l.params("Instance."+name, fn)
	if err != nil {
		return err
	}
	l.docs(fn.Docs, "")
	l.p("func (inst *Instance) %s%s {", name, signatureText(params, results))
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = p.name
	}
	argList := "[]any{" + strings.Join(args, ", ") + "}"
	if len(params) == 0 {
		argList = "nil"
	}
	if len(results) == 0 {
		l.p("\treturn inst.module.Call(ctx, %q, %s)", fn.Name, argList)
	} else {
		res := resultNames(len(results))
		outs := make([]string, len(res))
		for i, r := range res {
			l.p("\tvar %s %s", r, results[i])
			outs[i] = "&" + r
		}
		l.p("\terr := inst.module.Call(ctx, %q, %s, %s)", fn.Name, argList, strings.Join(outs, ", "))
		l.p("\treturn %s, err", strings.Join(res, ", "))
	}
	l.p("}")
	l.p("")
	return nil
}

// methods is the method set of Instance, created on first use.
func (l *library) methods() *codegen.Scope {
	if l.methodScope == nil {
		l.methodScope = codegen.NewScope(codegen.GoKeywords, l.dir, "Instance")
		l.methodScope.Escape("Close")
	}
	return l.methodScope
}
