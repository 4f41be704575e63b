package codegen

import (
	"strings"

	"github.com/huandu/xstrings"

	"github.com/wippyai/wasm-pack/errors"
)

// Case is an identifier style.
type Case int

const (
	// Pascal is UpperCamelCase: "hello-world" -> "HelloWorld".
	Pascal Case = iota
	// Camel is lowerCamelCase: "hello-world" -> "helloWorld".
	Camel
	// Snake is lower_snake_case: "hello-world" -> "hello_world".
	Snake
	// ScreamingSnake is UPPER_SNAKE_CASE.
	ScreamingSnake
	// Lower keeps only lowercase letters and digits: "hello-world" -> "helloworld".
	Lower
)

// Convert renders a kebab-case WIT name in the given style.
func Convert(name string, c Case) string {
	switch c {
	case Pascal:
		return xstrings.ToPascalCase(name)
	case Camel:
		return xstrings.ToCamelCase(name)
	case Snake:
		return snake(name)
	case ScreamingSnake:
		return strings.ToUpper(snake(name))
	case Lower:
		var b strings.Builder
		for _, r := range strings.ToLower(name) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return name
}

// snake maps word separators to '_' and lowercases. xstrings.ToSnakeCase
// would also split "utf8" into "utf_8".
func snake(name string) string {
	return strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(name))
}

// Scope hands out identifiers within one generated namespace, such as the
// top level of a module or the fields of one struct. Two different WIT
// names that end up with the same identifier are a name collision.
type Scope struct {
	keywords map[string]bool
	escaped  map[string]bool
	owners   map[string]string
	idents   map[string]string
	path     []string
}

// NewScope creates a scope. keywords are identifiers of the target
// language that need escaping; path locates the scope in diagnostics.
func NewScope(keywords map[string]bool, path ...string) *Scope {
	return &Scope{
		keywords: keywords,
		escaped:  make(map[string]bool),
		owners:   make(map[string]string),
		idents:   make(map[string]string),
		path:     path,
	}
}

// Child creates an empty scope with the same keywords, nested under elem.
func (s *Scope) Child(elem string) *Scope {
	path := append(append([]string(nil), s.path...), elem)
	return NewScope(s.keywords, path...)
}

// Reserve claims an identifier for generated code so no WIT name can take it.
func (s *Scope) Reserve(ident, owner string) {
	s.owners[ident] = "<" + owner + ">"
}

// Escape marks identifiers that generated code already uses in this scope.
// WIT names mapping to one of them get the keyword suffix instead of a
// collision.
func (s *Scope) Escape(idents ...string) {
	for _, ident := range idents {
		s.escaped[ident] = true
	}
}

// Declare converts witName to the given style, escapes keywords with a
// trailing underscore and records the identifier. Declaring the same WIT
// name twice returns the same identifier.
func (s *Scope) Declare(witName string, c Case) (string, error) {
	return s.DeclareIdent(witName, Convert(witName, c))
}

// DeclareIdent records an identifier built by the caller.
func (s *Scope) DeclareIdent(witName, ident string) (string, error) {
	if s.keywords[ident] || s.escaped[ident] {
		ident += "_"
	}
	if first, taken := s.owners[ident]; taken {
		if first == witName {
			return ident, nil
		}
		return "", errors.NameCollision(s.path, ident, first, witName)
	}
	s.owners[ident] = witName
	if _, ok := s.idents[witName]; !ok {
		s.idents[witName] = ident
	}
	return ident, nil
}

// Lookup returns the identifier previously declared for witName.
func (s *Scope) Lookup(witName string) (string, bool) {
	ident, ok := s.idents[witName]
	return ident, ok
}

func keywordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// GoKeywords are Go keywords and the predeclared identifiers generated
// code relies on.
var GoKeywords = keywordSet(
	"break", "case", "chan", "const", "continue", "default", "defer", "else",
	"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
	"map", "package", "range", "return", "select", "struct", "switch", "type", "var",
	"any", "bool", "byte", "error", "false", "float32", "float64", "int", "int8",
	"int16", "int32", "int64", "iota", "nil", "rune", "string", "true", "uint",
	"uint8", "uint16", "uint32", "uint64", "uintptr", "len", "cap", "make", "new",
	"append", "copy", "delete", "panic", "recover", "ctx", "err",
)

// PythonKeywords are Python keywords, soft keywords and builtins shadowed
// by generated code.
var PythonKeywords = keywordSet(
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally", "for",
	"from", "global", "if", "import", "in", "is", "lambda", "nonlocal", "not", "or",
	"pass", "raise", "return", "try", "while", "with", "yield", "match", "case",
	"type", "self", "bytes", "str", "int", "float", "list", "dict", "len", "id",
)

// JavaScriptKeywords are reserved words of ECMAScript and TypeScript.
var JavaScriptKeywords = keywordSet(
	"await", "break", "case", "catch", "class", "const", "continue", "debugger",
	"default", "delete", "do", "else", "enum", "export", "extends", "false",
	"finally", "for", "function", "if", "implements", "import", "in",
	"instanceof", "interface", "let", "new", "null", "package", "private",
	"protected", "public", "return", "static", "super", "switch", "this",
	"throw", "true", "try", "typeof", "var", "void", "while", "with", "yield",
	"arguments", "eval", "undefined", "any", "number", "string", "boolean",
	"symbol", "object", "never", "unknown", "type",
)
