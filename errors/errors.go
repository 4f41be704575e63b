package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error
type Phase string

const (
	PhaseParse    Phase = "parse"    // WIT text to syntax tree
	PhaseResolve  Phase = "resolve"  // syntax tree to interface model
	PhaseLayout   Phase = "layout"   // canonical ABI layout
	PhaseGenerate Phase = "generate" // per-language code generation
	PhaseAssemble Phase = "assemble" // package file set
	PhaseEncode   Phase = "encode"   // Go to WASM
	PhaseDecode   Phase = "decode"   // WASM to Go
	PhaseRuntime  Phase = "runtime"  // host runtime operations
	PhaseLoad     Phase = "load"     // project and module loading
)

// Kind categorizes the error
type Kind string

const (
	KindSyntax          Kind = "syntax"
	KindDuplicateName   Kind = "duplicate_name"
	KindUnknownType     Kind = "unknown_type"
	KindCyclicType      Kind = "cyclic_type"
	KindTooManyFlags    Kind = "too_many_flags"
	KindTypeTooLarge    Kind = "type_too_large"
	KindUnsupportedType Kind = "unsupported_type"
	KindNameCollision   Kind = "name_collision"
	KindInvalidInput    Kind = "invalid_input"
	KindTypeMismatch    Kind = "type_mismatch"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidData     Kind = "invalid_data"
	KindInvalidUTF8     Kind = "invalid_utf8"
	KindInvalidVariant  Kind = "invalid_variant"
	KindAllocation      Kind = "allocation"
	KindOverflow        Kind = "overflow"
	KindNotFound        Kind = "not_found"
	KindMissingImport   Kind = "missing_import"
	KindInstantiation   Kind = "instantiation"
	KindSignature       Kind = "signature"
	KindTrap            Kind = "trap"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrSyntax          = &Error{Phase: PhaseParse, Kind: KindSyntax}
	ErrDuplicateName   = &Error{Phase: PhaseResolve, Kind: KindDuplicateName}
	ErrUnknownType     = &Error{Phase: PhaseResolve, Kind: KindUnknownType}
	ErrCyclicType      = &Error{Phase: PhaseResolve, Kind: KindCyclicType}
	ErrTooManyFlags    = &Error{Phase: PhaseResolve, Kind: KindTooManyFlags}
	ErrTypeTooLarge    = &Error{Phase: PhaseLayout, Kind: KindTypeTooLarge}
	ErrUnsupportedType = &Error{Phase: PhaseGenerate, Kind: KindUnsupportedType}
	ErrNameCollision   = &Error{Phase: PhaseGenerate, Kind: KindNameCollision}
	ErrInvalidPackage  = &Error{Phase: PhaseGenerate, Kind: KindInvalidInput}
)

// Position locates an error inside a source file.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) String() string {
	name := p.Filename
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", name, p.Line, p.Column)
}

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Pos     *Position
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Pos != nil {
		b.WriteString(" at ")
		b.WriteString(e.Pos.String())
	} else if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.WitType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// At sets the source position
func (b *Builder) At(pos Position) *Builder {
	b.err.Pos = &pos
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Syntax creates a parse error at pos
func Syntax(pos Position, expected, found string) *Error {
	detail := "unexpected " + found
	if expected != "" {
		detail = fmt.Sprintf("expected %s, found %s", expected, found)
	}
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindSyntax,
		Pos:    &pos,
		Detail: detail,
	}
}

// DuplicateName reports a name declared twice in the same scope
func DuplicateName(path []string, what, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindDuplicateName,
		Path:   path,
		Detail: fmt.Sprintf("%s %q is defined more than once", what, name),
		Value:  name,
	}
}

// UnknownType reports a reference to an undeclared type
func UnknownType(path []string, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownType,
		Path:   path,
		Detail: fmt.Sprintf("type %q is not defined", name),
		Value:  name,
	}
}

// CyclicType reports a chain of type definitions that contains itself by value
func CyclicType(cycle []string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindCyclicType,
		Path:   cycle[:1],
		Detail: "type refers to itself by value: " + strings.Join(cycle, " -> "),
		Value:  cycle,
	}
}

// TypeTooLarge reports a layout whose size cannot be represented
func TypeTooLarge(witType string, size uint64) *Error {
	return &Error{
		Phase:   PhaseLayout,
		Kind:    KindTypeTooLarge,
		WitType: witType,
		Detail:  fmt.Sprintf("size %d exceeds the 32-bit address space", size),
		Value:   size,
	}
}

// UnsupportedType reports a type a target language cannot represent
func UnsupportedType(target, witType, reason string) *Error {
	return &Error{
		Phase:   PhaseGenerate,
		Kind:    KindUnsupportedType,
		Path:    []string{target},
		WitType: witType,
		Detail:  reason,
	}
}

// NameCollision reports two source names that map to one target identifier
func NameCollision(path []string, ident, first, second string) *Error {
	return &Error{
		Phase:  PhaseGenerate,
		Kind:   KindNameCollision,
		Path:   path,
		Detail: fmt.Sprintf("%q and %q both map to %q", first, second, ident),
		Value:  ident,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants/enums
func InvalidDiscriminant(phase Phase, path []string, disc uint32, maxValid uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (max %d)", disc, maxValid),
		Value:  disc,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("access of %d bytes at offset %d is out of bounds", length, offset),
		Value:  offset,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		WitType: targetType,
		Detail:  fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:   value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Trap wraps a failure raised while executing a WebAssembly export
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Path:   []string{export},
		Detail: "call trapped",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Module   string // e.g., "logging"
	Function string // e.g., "log"
}

// MissingImportsError is returned when a module imports functions nobody provides
type MissingImportsError struct {
	Imports []MissingImport
}

// NewMissingImportsError creates an error from a list of "module#function" strings
func NewMissingImportsError(imports []string) *MissingImportsError {
	result := &MissingImportsError{
		Imports: make([]MissingImport, 0, len(imports)),
	}
	for _, imp := range imports {
		mod, fn := parseImportKey(imp)
		result.Imports = append(result.Imports, MissingImport{
			Module:   mod,
			Function: fn,
		})
	}
	return result
}

func parseImportKey(key string) (module, function string) {
	mod, fn, found := strings.Cut(key, "#")
	if found {
		return mod, fn
	}
	return key, ""
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[runtime] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):\n", len(e.Imports))

	byModule := make(map[string][]string)
	var order []string
	for _, imp := range e.Imports {
		if _, exists := byModule[imp.Module]; !exists {
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp.Function)
	}

	for _, mod := range order {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byModule[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}
