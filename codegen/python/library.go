package python

import (
	"sort"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/abi"
	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
)

type pyField struct {
	Name string
	Type string
}

type pyMember struct {
	Name  string
	Value string
}

// pyType is a module-level declaration: a class, or an alias when Kind
// is "alias".
type pyType struct {
	Kind    string
	Wit     string
	Name    string
	Docs    string
	Fields  []pyField
	Members []pyMember
	Alias   string
}

type pyClass struct {
	Index int
	Class string
	Attrs []string
}

type pyParam struct {
	Name string
	Type string
}

type pyFunc struct {
	Wit     string
	Method  string
	Docs    string
	Params  []pyParam
	Returns string
}

type pyImport struct {
	Index      int
	Interface  string
	Field      string
	Protocol   string
	Docs       string
	Descriptor string
	Classes    []pyClass
	Methods    []pyFunc
}

type pyLibrary struct {
	Banner     string
	Interface  string
	Docs       string
	Class      string
	Wasm       string
	WASI       bool
	Descriptor string
	Types      []pyType
	Classes    []pyClass
	Imports    []pyImport
	Functions  []pyFunc
	All        []string
}

// library builds one bindings subpackage.
type library struct {
	scope *codegen.Scope
	names map[*wit.TypeDef]string
	// classes records which declarations the codec instantiates.
	classes map[*wit.TypeDef]*pyClass
}

var moduleIdents = []string{"os", "dataclass", "IntEnum", "IntFlag", "List", "NewType", "Optional", "Protocol", "Tuple", "Imports"}

func (g *Generator) library(lib *model.Library, mod, class string) (assemble.Part, error) {
	l := &library{
		scope:   codegen.NewScope(codegen.PythonKeywords, mod),
		names:   make(map[*wit.TypeDef]string),
		classes: make(map[*wit.TypeDef]*pyClass),
	}
	for _, id := range moduleIdents {
		l.scope.Reserve(id, "module import")
	}
	if _, err := l.scope.DeclareIdent(lib.InterfaceName()+"#class", class); err != nil {
		return assemble.Part{}, err
	}

	wasm := codegen.ModuleFilename(lib.Module)
	data := pyLibrary{
		Banner:    g.opts.Banner(),
		Interface: lib.InterfaceName(),
		Docs:      docstring(lib.Exports.Docs),
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

	var aliases []pyType
	for _, iface := range append([]*model.Interface{lib.Exports}, lib.Imports...) {
		for _, td := range iface.Types {
			decl, err := l.declaration(td)
			if err != nil {
				return assemble.Part{}, err
			}
			if decl.Kind == codegen.KindAlias {
				aliases = append(aliases, decl)
				continue
			}
			data.Types = append(data.Types, decl)
		}
	}
	data.Types = append(data.Types, aliases...)

	if data.Descriptor, err = descriptor(exports); err != nil {
		return assemble.Part{}, err
	}
	data.Classes = l.codecClasses(exports)
	if data.Functions, err = l.functions(exports, ""); err != nil {
		return assemble.Part{}, err
	}

	fields := codegen.NewScope(codegen.PythonKeywords, mod, "Imports")
	for i, imp := range imports {
		field, err := fields.Declare(imp.Name, codegen.Snake)
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
		data.Imports = append(data.Imports, pyImport{
			Index:      i,
			Interface:  imp.Name,
			Field:      field,
			Protocol:   protocols[i],
			Docs:       docstring(imp.Docs),
			Descriptor: desc,
			Classes:    l.codecClasses(imp),
			Methods:    methods,
		})
	}

	data.All = append(data.All, class)
	for _, t := range data.Types {
		data.All = append(data.All, t.Name)
	}
	for _, imp := range data.Imports {
		data.All = append(data.All, imp.Protocol)
	}
	if len(data.Imports) > 0 {
		data.All = append(data.All, "Imports")
	}
	sort.Strings(data.All)

	src, err := codegen.Render(templates, "bindings.py", data)
	if err != nil {
		return assemble.Part{}, err
	}
	init, err := codegen.Render(templates, "library_init.py", data)
	if err != nil {
		return assemble.Part{}, err
	}
	return assemble.Part{
		Name: mod,
		Files: []assemble.File{
			codegen.TextFile("__init__.py", assemble.KindIndex, init),
			codegen.TextFile("bindings.py", assemble.KindBindings, src),
			codegen.WasmFile(wasm, lib.Module.Wasm),
		},
	}, nil
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

func (l *library) declaration(td *model.TypeDef) (pyType, error) {
	name := l.names[td.Def]
	decl := pyType{Wit: td.Name, Name: name, Docs: docstring(td.Docs)}
	switch k := td.Def.Kind.(type) {
	case *wit.Record:
		decl.Kind = codegen.KindRecord
		attrs := codegen.NewScope(codegen.PythonKeywords, name)
		cls := &pyClass{Class: name}
		for _, f := range k.Fields {
			attr, err := attrs.Declare(f.Name, codegen.Snake)
			if err != nil {
				return pyType{}, err
			}
			typ, err := l.typeExpr(f.Type)
			if err != nil {
				return pyType{}, err
			}
			decl.Fields = append(decl.Fields, pyField{Name: attr, Type: typ})
			cls.Attrs = append(cls.Attrs, attr)
		}
		l.classes[td.Def] = cls
	case *wit.Variant:
		decl.Kind = codegen.KindVariant
		members := codegen.NewScope(codegen.PythonKeywords, name)
		for _, c := range k.Cases {
			m, err := members.Declare(c.Name, codegen.ScreamingSnake)
			if err != nil {
				return pyType{}, err
			}
			decl.Members = append(decl.Members, pyMember{Name: m, Value: strconv.Quote(c.Name)})
			if c.Type != nil {
				if _, err := l.typeExpr(c.Type); err != nil {
					return pyType{}, err
				}
			}
		}
		l.classes[td.Def] = &pyClass{Class: name}
	case *wit.Enum:
		decl.Kind = codegen.KindEnum
		members := codegen.NewScope(codegen.PythonKeywords, name)
		for i, c := range k.Cases {
			m, err := members.Declare(c.Name, codegen.ScreamingSnake)
			if err != nil {
				return pyType{}, err
			}
			decl.Members = append(decl.Members, pyMember{Name: m, Value: strconv.Itoa(i)})
		}
		l.classes[td.Def] = &pyClass{Class: name}
	case *wit.Flags:
		decl.Kind = codegen.KindFlags
		members := codegen.NewScope(codegen.PythonKeywords, name)
		for i, f := range k.Flags {
			m, err := members.Declare(f.Name, codegen.ScreamingSnake)
			if err != nil {
				return pyType{}, err
			}
			decl.Members = append(decl.Members, pyMember{Name: m, Value: "1 << " + strconv.Itoa(i)})
		}
		l.classes[td.Def] = &pyClass{Class: name}
	case *wit.Resource:
		decl.Kind = codegen.KindResource
	default:
		decl.Kind = codegen.KindAlias
		alias, err := l.aliasExpr(td.Def)
		if err != nil {
			return pyType{}, err
		}
		decl.Alias = alias
	}
	return decl, nil
}

// codecClasses lists the generated classes by descriptor index.
func (l *library) codecClasses(iface *codegen.Interface) []pyClass {
	var out []pyClass
	for _, e := range iface.Types.Entries() {
		td, ok := e.Type.(*wit.TypeDef)
		if !ok {
			continue
		}
		if cls, ok := l.classes[td]; ok {
			c := *cls
			c.Index = e.Index
			out = append(out, c)
		}
	}
	return out
}

func (l *library) functions(iface *codegen.Interface, owner string) ([]pyFunc, error) {
	methods := codegen.NewScope(codegen.PythonKeywords, owner, "methods")
	if owner == "" {
		methods = codegen.NewScope(codegen.PythonKeywords, iface.Name, "methods")
	}
	methods.Reserve("_instance", "instance field")
	out := make([]pyFunc, 0, len(iface.Funcs))
	for _, fn := range iface.Funcs {
		method, err := methods.Declare(fn.Name, codegen.Snake)
		if err != nil {
			return nil, err
		}
		params := codegen.NewScope(codegen.PythonKeywords, iface.Name, fn.Name)
		f := pyFunc{Wit: fn.Name, Method: method, Docs: docstring(fn.Docs)}
		for i, p := range fn.Params {
			witName := p.Name
			if witName == "" {
				witName = "arg" + strconv.Itoa(i)
			}
			name, err := params.Declare(witName, codegen.Snake)
			if err != nil {
				return nil, err
			}
			typ, err := l.typeExpr(p.Type)
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, pyParam{Name: name, Type: typ})
		}
		if f.Returns, err = l.returns(fn.Results); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (l *library) returns(results []model.Param) (string, error) {
	switch len(results) {
	case 0:
		return "None", nil
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
	return "Tuple[" + strings.Join(types, ", ") + "]", nil
}

var primitives = map[string]string{
	"bool": "bool",
	"u8":   "int", "u16": "int", "u32": "int", "u64": "int",
	"s8": "int", "s16": "int", "s32": "int", "s64": "int",
	"f32": "float", "f64": "float",
	"char": "str", "string": "str",
}

// typeExpr renders a type annotation. Annotations are lazy in generated
// modules, so declared names may be used before their definition.
func (l *library) typeExpr(t wit.Type) (string, error) {
	return l.expr(t, false)
}

// aliasExpr renders the right-hand side of an alias. Aliases are evaluated
// at import time, after every class, so only references to other aliases
// need quoting.
func (l *library) aliasExpr(td *wit.TypeDef) (string, error) {
	return l.kindExpr(td, true)
}

func (l *library) expr(t wit.Type, quote bool) (string, error) {
	if t == nil {
		return "None", nil
	}
	td, ok := t.(*wit.TypeDef)
	if !ok {
		if s, ok := primitives[abi.TypeName(t)]; ok {
			return s, nil
		}
		return "", errors.UnsupportedType("python", abi.TypeName(t), "no Python equivalent")
	}
	if name, ok := l.names[td]; ok {
		if quote && isAlias(td) {
			return strconv.Quote(name), nil
		}
		return name, nil
	}
	return l.kindExpr(td, quote)
}

func isAlias(td *wit.TypeDef) bool {
	switch td.Kind.(type) {
	case *wit.Record, *wit.Variant, *wit.Enum, *wit.Flags, *wit.Resource:
		return false
	}
	return true
}

func (l *library) kindExpr(td *wit.TypeDef, quote bool) (string, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		if _, ok := k.Type.(wit.U8); ok {
			return "bytes", nil
		}
		elem, err := l.expr(k.Type, quote)
		return "List[" + elem + "]", err
	case *wit.Option:
		elem, err := l.expr(k.Type, quote)
		return "Optional[" + elem + "]", err
	case *wit.Result:
		ok, err := l.expr(k.OK, quote)
		if err != nil {
			return "", err
		}
		e, err := l.expr(k.Err, quote)
		return "_rt.Result[" + ok + ", " + e + "]", err
	case *wit.Tuple:
		if len(k.Types) == 0 {
			return "Tuple[()]", nil
		}
		elems := make([]string, len(k.Types))
		for i, et := range k.Types {
			s, err := l.expr(et, quote)
			if err != nil {
				return "", err
			}
			elems[i] = s
		}
		return "Tuple[" + strings.Join(elems, ", ") + "]", nil
	case *wit.Own:
		return l.handle(k.Type), nil
	case *wit.Borrow:
		return l.handle(k.Type), nil
	case wit.Type:
		if inner, ok := k.(*wit.TypeDef); ok {
			if _, named := l.names[inner]; !named || (quote && isAlias(inner)) {
				return l.kindExpr(inner, quote)
			}
		}
		return l.expr(k, quote)
	}
	return "", errors.UnsupportedType("python", abi.TypeName(td), "no Python equivalent")
}

func (l *library) handle(res *wit.TypeDef) string {
	if _, ok := res.Kind.(*wit.Resource); ok {
		if name, ok := l.names[res]; ok {
			return name
		}
	}
	return "int"
}

func descriptor(iface *codegen.Interface) (string, error) {
	b, err := iface.DescriptorJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// docstring makes WIT docs safe inside a triple-quoted string.
func docstring(docs string) string {
	docs = strings.ReplaceAll(docs, `\`, `\\`)
	return strings.ReplaceAll(docs, `"""`, `\"\"\"`)
}
