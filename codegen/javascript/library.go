package javascript

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

type jsField struct {
	Name string
	Type string
}

// jsType is a declaration in the .d.ts file. Records and flags become
// interfaces, everything else a type alias.
type jsType struct {
	Kind   string
	Name   string
	Docs   string
	Fields []jsField
	Alias  string
}

// jsNames lists the property names of a record or flags type by
// descriptor index.
type jsNames struct {
	Index int
	Props []string
}

type jsParam struct {
	Name string
	Type string
}

type jsFunc struct {
	Wit     string
	Method  string
	Docs    string
	Params  []jsParam
	Returns string
}

type jsDrop struct {
	Wit    string
	Method string
	Type   string
}

type jsImport struct {
	Index      int
	Interface  string
	Field      string
	Protocol   string
	Docs       string
	Descriptor string
	Names      []jsNames
	Methods    []jsFunc
	Drops      []jsDrop
}

type jsLibrary struct {
	Banner     string
	Interface  string
	Module     string
	Docs       string
	Class      string
	Wasm       string
	WASI       bool
	Descriptor string
	Names      []jsNames
	Types      []jsType
	Imports    []jsImport
	Functions  []jsFunc
}

var moduleIdents = []string{"path", "Codec", "Instance", "codec", "Result", "Imports"}

type library struct {
	bigint bool
	scope  *codegen.Scope
	names  map[*wit.TypeDef]string
	// props records the property names of records and flags.
	props map[*wit.TypeDef][]string
}

func (g *Generator) library(lib *model.Library, mod, class string) (assemble.Part, error) {
	l := &library{
		bigint: g.opts.BigInt,
		scope:  codegen.NewScope(codegen.JavaScriptKeywords, mod),
		names:  make(map[*wit.TypeDef]string),
		props:  make(map[*wit.TypeDef][]string),
	}
	for _, id := range moduleIdents {
		l.scope.Reserve(id, "module binding")
	}
	for i := range lib.Imports {
		l.scope.Reserve("import"+strconv.Itoa(i), "import codec")
	}
	if _, err := l.scope.DeclareIdent(lib.InterfaceName()+"#class", class); err != nil {
		return assemble.Part{}, err
	}

	wasm := codegen.ModuleFilename(lib.Module)
	data := jsLibrary{
		Banner:    g.opts.Banner(),
		Interface: lib.InterfaceName(),
		Module:    mod,
		Docs:      jsdoc(lib.Exports.Docs),
		Class:     class,
		Wasm:      wasm,
		WASI:      lib.RequiresWASI(),
	}

	exports, err := codegen.Analyze(lib.Exports)
	if err != nil {
		return assemble.Part{}, err
	}
	imports := make([]*codegen.Interface, len(lib.Imports))
	for i, imp := range lib.Imports {
		if imports[i], err = codegen.Analyze(imp); err != nil {
			return assemble.Part{}, err
		}
	}
	for _, iface := range append([]*codegen.Interface{exports}, imports...) {
		if err := l.checkIntegers(iface); err != nil {
			return assemble.Part{}, err
		}
	}

	if err := l.declare(lib.Exports, ""); err != nil {
		return assemble.Part{}, err
	}
	protocols := make([]string, len(lib.Imports))
	for i, imp := range lib.Imports {
		if protocols[i], err = l.scope.Declare(imp.Name, codegen.Pascal); err != nil {
			return assemble.Part{}, err
		}
		if err := l.declare(imp, protocols[i]); err != nil {
			return assemble.Part{}, err
		}
	}
	for _, iface := range append([]*model.Interface{lib.Exports}, lib.Imports...) {
		for _, td := range iface.Types {
			decl, err := l.declaration(td)
			if err != nil {
				return assemble.Part{}, err
			}
			data.Types = append(data.Types, decl)
		}
	}

	if data.Descriptor, err = descriptor(exports); err != nil {
		return assemble.Part{}, err
	}
	data.Names = l.propNames(exports)
	if data.Functions, err = l.functions(exports, class); err != nil {
		return assemble.Part{}, err
	}

	fields := codegen.NewScope(nil, mod, "Imports")
	for i, imp := range imports {
		field, err := fields.Declare(imp.Name, codegen.Camel)
		if err != nil {
			return assemble.Part{}, err
		}
		methods, err := l.functions(imp, protocols[i])
		if err != nil {
			return assemble.Part{}, err
		}
		desc, err := descriptor(imp)
		if err != nil {
			return assemble.Part{}, err
		}
		drops, err := l.drops(imp, protocols[i], methods)
		if err != nil {
			return assemble.Part{}, err
		}
		data.Imports = append(data.Imports, jsImport{
			Index:      i,
			Interface:  imp.Name,
			Field:      field,
			Protocol:   protocols[i],
			Docs:       jsdoc(imp.Docs),
			Descriptor: desc,
			Names:      l.propNames(imp),
			Methods:    methods,
			Drops:      drops,
		})
	}

	js, err := codegen.Render(templates, "bindings.js", data)
	if err != nil {
		return assemble.Part{}, err
	}
	dts, err := codegen.Render(templates, "bindings.d.ts", data)
	if err != nil {
		return assemble.Part{}, err
	}
	return assemble.Part{
		Name: mod,
		Files: []assemble.File{
			codegen.TextFile(mod+".js", assemble.KindBindings, js),
			codegen.TextFile(mod+".d.ts", assemble.KindTypings, dts),
			codegen.WasmFile(wasm, lib.Module.Wasm),
		},
	}, nil
}

// checkIntegers rejects 64-bit integers when BigInt is off: a Number
// cannot hold them exactly.
func (l *library) checkIntegers(iface *codegen.Interface) error {
	if l.bigint {
		return nil
	}
	for _, e := range iface.Types.Entries() {
		if e.Kind == "u64" || e.Kind == "s64" {
			err := errors.UnsupportedType("javascript", e.Kind, "64-bit integers need BigInt support")
			err.Path = append(err.Path, iface.Name)
			return err
		}
	}
	return nil
}

func (l *library) declare(iface *model.Interface, prefix string) error {
	for _, td := range iface.Types {
		name, err := l.scope.DeclareIdent(iface.Name+"#"+td.Name, prefix+codegen.Convert(td.Name, codegen.Pascal))
		if err != nil {
			return err
		}
		l.names[td.Def] = name
	}
	return nil
}

func (l *library) declaration(td *model.TypeDef) (jsType, error) {
	name := l.names[td.Def]
	decl := jsType{Name: name, Docs: jsdoc(td.Docs)}
	switch k := td.Def.Kind.(type) {
	case *wit.Record:
		decl.Kind = codegen.KindRecord
		props := codegen.NewScope(nil, name)
		for _, f := range k.Fields {
			prop, err := props.Declare(f.Name, codegen.Camel)
			if err != nil {
				return jsType{}, err
			}
			typ, err := l.typeExpr(f.Type)
			if err != nil {
				return jsType{}, err
			}
			decl.Fields = append(decl.Fields, jsField{Name: prop, Type: typ})
			l.props[td.Def] = append(l.props[td.Def], prop)
		}
	case *wit.Flags:
		decl.Kind = codegen.KindFlags
		props := codegen.NewScope(nil, name)
		for _, f := range k.Flags {
			prop, err := props.Declare(f.Name, codegen.Camel)
			if err != nil {
				return jsType{}, err
			}
			decl.Fields = append(decl.Fields, jsField{Name: prop})
			l.props[td.Def] = append(l.props[td.Def], prop)
		}
	case *wit.Resource:
		decl.Kind = codegen.KindResource
		decl.Alias = "number"
	default:
		decl.Kind = codegen.KindAlias
		alias, err := l.kindExpr(td.Def)
		if err != nil {
			return jsType{}, err
		}
		decl.Alias = alias
	}
	return decl, nil
}

// propNames lists record and flags property names by descriptor index.
func (l *library) propNames(iface *codegen.Interface) []jsNames {
	var out []jsNames
	for _, e := range iface.Types.Entries() {
		td, ok := e.Type.(*wit.TypeDef)
		if !ok {
			continue
		}
		if props, ok := l.props[td]; ok {
			out = append(out, jsNames{Index: e.Index, Props: props})
		}
	}
	return out
}

func (l *library) functions(iface *codegen.Interface, owner string) ([]jsFunc, error) {
	methods := codegen.NewScope(codegen.JavaScriptKeywords, owner, "methods")
	methods.Reserve("constructor", "class member")
	methods.Reserve("instantiate", "class member")
	methods.Reserve("_instance", "instance field")
	out := make([]jsFunc, 0, len(iface.Funcs))
	for _, fn := range iface.Funcs {
		method, err := methods.Declare(fn.Name, codegen.Camel)
		if err != nil {
			return nil, err
		}
		params := codegen.NewScope(codegen.JavaScriptKeywords, iface.Name, fn.Name)
		f := jsFunc{Wit: fn.Name, Method: method, Docs: jsdoc(fn.Docs)}
		for i, p := range fn.Params {
			witName := p.Name
			if witName == "" {
				witName = "arg" + strconv.Itoa(i)
			}
			name, err := params.Declare(witName, codegen.Camel)
			if err != nil {
				return nil, err
			}
			typ, err := l.typeExpr(p.Type)
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, jsParam{Name: name, Type: typ})
		}
		if f.Returns, err = l.returns(fn.Results); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// drops names the optional destructor hooks of an imported interface's
// resources. They share the method namespace of the host interface.
func (l *library) drops(iface *codegen.Interface, owner string, methods []jsFunc) ([]jsDrop, error) {
	scope := codegen.NewScope(codegen.JavaScriptKeywords, owner, "methods")
	for _, m := range methods {
		scope.Reserve(m.Method, "method "+m.Wit)
	}
	var out []jsDrop
	for _, td := range iface.Interface.Types {
		if _, ok := td.Def.Kind.(*wit.Resource); !ok {
			continue
		}
		method, err := scope.DeclareIdent(td.Name, "drop"+codegen.Convert(td.Name, codegen.Pascal))
		if err != nil {
			return nil, err
		}
		out = append(out, jsDrop{Wit: td.Name, Method: method, Type: l.names[td.Def]})
	}
	return out, nil
}

func (l *library) returns(results []model.Param) (string, error) {
	switch len(results) {
	case 0:
		return "void", nil
	case 1:
		return l.typeExpr(results[0].Type)
	}
	types := make([]string, len(results))
	for i, r := range results {
		t, err := l.typeExpr(r.Type)
		if err != nil {
			return "", err
		}
		types[i] = t
	}
	return "[" + strings.Join(types, ", ") + "]", nil
}

var primitives = map[string]string{
	"bool": "boolean",
	"u8":   "number", "u16": "number", "u32": "number",
	"s8": "number", "s16": "number", "s32": "number",
	"f32": "number", "f64": "number",
	"char": "string", "string": "string",
}

func (l *library) typeExpr(t wit.Type) (string, error) {
	if t == nil {
		return "void", nil
	}
	td, ok := t.(*wit.TypeDef)
	if !ok {
		name := abi.TypeName(t)
		if s, ok := primitives[name]; ok {
			return s, nil
		}
		if (name == "u64" || name == "s64") && l.bigint {
			return "bigint", nil
		}
		return "", errors.UnsupportedType("javascript", name, "no JavaScript equivalent")
	}
	if name, ok := l.names[td]; ok {
		return name, nil
	}
	return l.kindExpr(td)
}

func (l *library) kindExpr(td *wit.TypeDef) (string, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return "Uint8Array", nil
		}
		elem, err := l.typeExpr(k.Type)
		return "Array<" + elem + ">", err
	case *wit.Option:
		elem, err := l.typeExpr(k.Type)
		return elem + " | null", err
	case *wit.Result:
		ok, err := l.typeExpr(k.OK)
		if err != nil {
			return "", err
		}
		e, err := l.typeExpr(k.Err)
		return "Result<" + ok + ", " + e + ">", err
	case *wit.Tuple:
		elems := make([]string, len(k.Types))
		for i, et := range k.Types {
			s, err := l.typeExpr(et)
			if err != nil {
				return "", err
			}
			elems[i] = s
		}
		return "[" + strings.Join(elems, ", ") + "]", nil
	case *wit.Variant:
		arms := make([]string, len(k.Cases))
		for i, c := range k.Cases {
			if c.Type == nil {
				arms[i] = "{ tag: " + strconv.Quote(c.Name) + " }"
				continue
			}
			payload, err := l.typeExpr(c.Type)
			if err != nil {
				return "", err
			}
			arms[i] = "{ tag: " + strconv.Quote(c.Name) + "; val: " + payload + " }"
		}
		return strings.Join(arms, " | "), nil
	case *wit.Enum:
		cases := make([]string, len(k.Cases))
		for i, c := range k.Cases {
			cases[i] = strconv.Quote(c.Name)
		}
		return strings.Join(cases, " | "), nil
	case *wit.Own:
		return l.handle(k.Type), nil
	case *wit.Borrow:
		return l.handle(k.Type), nil
	case wit.Type:
		if inner, ok := k.(*wit.TypeDef); ok {
			if _, named := l.names[inner]; !named {
				return l.kindExpr(inner)
			}
		}
		return l.typeExpr(k)
	}
	return "", errors.UnsupportedType("javascript", abi.TypeName(td), "no JavaScript equivalent")
}

func (l *library) handle(res *wit.TypeDef) string {
	if _, ok := res.Kind.(*wit.Resource); ok {
		if name, ok := l.names[res]; ok {
			return name
		}
	}
	return "number"
}

func descriptor(iface *codegen.Interface) (string, error) {
	b, err := iface.DescriptorJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// jsdoc makes WIT docs safe inside a block comment.
func jsdoc(docs string) string {
	docs = strings.ReplaceAll(docs, "*/", `*\/`)
	return strings.ReplaceAll(docs, "\n", "\n * ")
}
