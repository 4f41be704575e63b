package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/wasm-pack/errors"
)

// ABI is the host environment a module expects at instantiation.
type ABI int

const (
	// ABINone modules import nothing beyond their WIT imports.
	ABINone ABI = iota
	// ABIWASI modules additionally import wasi_snapshot_preview1.
	ABIWASI
)

func (a ABI) String() string {
	if a == ABIWASI {
		return "wasi"
	}
	return "none"
}

// ParseABI accepts "none" or "wasi".
func ParseABI(s string) (ABI, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ABINone, nil
	case "wasi":
		return ABIWASI, nil
	}
	return ABINone, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("unknown ABI %q", s))
}

// Package is everything needed to generate one installable package.
type Package struct {
	Metadata  Metadata
	Libraries []*Library
	Commands  []*Command
}

// Library is a module that exposes an interface to host code.
type Library struct {
	Exports *Interface
	Module  Module
	Imports []*Interface
}

// InterfaceName is the name of the exported interface; it must be unique
// within a package.
func (l *Library) InterfaceName() string {
	return l.Exports.Name
}

// RequiresWASI reports whether instantiation must provide WASI.
func (l *Library) RequiresWASI() bool {
	return l.Module.ABI == ABIWASI
}

// Module is a compiled WebAssembly module. Wasm bytes are opaque and
// copied verbatim into generated packages.
type Module struct {
	Name string
	Wasm []byte
	ABI  ABI
}

// Command is a module run as a standalone WASI program.
type Command struct {
	Name string
	Wasm []byte
}

// RequiresWASI reports whether any part of the package needs WASI.
func (p *Package) RequiresWASI() bool {
	if len(p.Commands) > 0 {
		return true
	}
	for _, lib := range p.Libraries {
		if lib.RequiresWASI() {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants generators rely on.
func (p *Package) Validate() error {
	if err := p.Metadata.Validate(); err != nil {
		return err
	}
	if len(p.Libraries) == 0 && len(p.Commands) == 0 {
		return invalid("package %q has no libraries and no commands", p.Metadata.Name)
	}

	libs := make([]string, 0, len(p.Libraries))
	for i, lib := range p.Libraries {
		if lib == nil || lib.Exports == nil {
			return invalid("library %d has no exported interface", i)
		}
		if lib.Module.Name == "" {
			return invalid("library %q has no module name", lib.InterfaceName())
		}
		libs = append(libs, lib.InterfaceName())
	}
	if err := uniqueNames("library", libs); err != nil {
		return err
	}

	cmds := make([]string, 0, len(p.Commands))
	for i, cmd := range p.Commands {
		if cmd == nil || cmd.Name == "" {
			return invalid("command %d has no name", i)
		}
		cmds = append(cmds, cmd.Name)
	}
	return uniqueNames("command", cmds)
}

func uniqueNames(kind string, names []string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
				Path(kind).
				Detail("duplicate %s name %q", kind, sorted[i]).
				Build()
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).Detail(format, args...).Build()
}

// Metadata describes the generated package.
type Metadata struct {
	Name        PackageName
	Version     string
	Description string
}

// NewMetadata parses name and checks version.
func NewMetadata(name, version string) (Metadata, error) {
	pkgName, err := ParsePackageName(name)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Name: pkgName, Version: version}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Validate requires a non-empty name and a semver version.
func (m Metadata) Validate() error {
	if m.Name.Name == "" {
		return invalid("package name is empty")
	}
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(m.Version, "v")); err != nil {
		return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Detail("version %q is not semver", m.Version).
			Cause(err).
			Build()
	}
	return nil
}

// SemVer returns the parsed version. Call Validate first.
func (m Metadata) SemVer() *semver.Version {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return semver.New(0, 0, 0, "", "")
	}
	return v
}

// Namespace kinds a package name can carry.
type NamespaceKind int

const (
	NamespaceNone NamespaceKind = iota
	NamespaceUnderscore
	NamespaceNamed
)

// PackageName is a registry name such as "wasmer/wasmer-pack".
type PackageName struct {
	Namespace string
	Name      string
	Kind      NamespaceKind
}

// ParsePackageName accepts "name", "_/name" or "namespace/name". Identifiers
// start with an ASCII letter and contain letters, digits, '-' and '_'.
func ParsePackageName(raw string) (PackageName, error) {
	ns, name, found := strings.Cut(raw, "/")
	if !found {
		if err := checkIdentifier(raw, "package name"); err != nil {
			return PackageName{}, err
		}
		return PackageName{Name: raw}, nil
	}

	pn := PackageName{Name: name}
	switch ns {
	case "_":
		pn.Kind = NamespaceUnderscore
	default:
		if err := checkIdentifier(ns, "namespace"); err != nil {
			return PackageName{}, err
		}
		pn.Kind = NamespaceNamed
		pn.Namespace = ns
	}
	if err := checkIdentifier(name, "package name"); err != nil {
		return PackageName{}, err
	}
	return pn, nil
}

func checkIdentifier(s, what string) error {
	if s == "" {
		return invalid("%s is empty", what)
	}
	if !isASCIILetter(s[0]) {
		return invalid("%s %q must start with an ASCII letter", what, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) && !(c >= '0' && c <= '9') && c != '-' && c != '_' {
			return invalid("%s %q may only contain letters, digits, '-' and '_'", what, s)
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (n PackageName) String() string {
	switch n.Kind {
	case NamespaceNamed:
		return n.Namespace + "/" + n.Name
	case NamespaceUnderscore:
		return "_/" + n.Name
	}
	return n.Name
}

// JavaScriptName is the npm package name, scoped when a namespace is present.
func (n PackageName) JavaScriptName() string {
	if n.Kind == NamespaceNamed {
		return strings.ToLower("@" + n.Namespace + "/" + n.Name)
	}
	return strings.ToLower(n.Name)
}

// PythonName is the PEP 8 module name.
func (n PackageName) PythonName() string {
	return strings.ToLower(strings.ReplaceAll(n.Name, "-", "_"))
}

// GoPackageName is the Go package identifier: lowercase letters and digits.
func (n PackageName) GoPackageName() string {
	var b strings.Builder
	for _, c := range strings.ToLower(n.Name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// GoModulePath is the default module path for generated Go code.
func (n PackageName) GoModulePath() string {
	if n.Kind == NamespaceNamed {
		return strings.ToLower(n.Namespace + "/" + n.Name)
	}
	return strings.ToLower(n.Name)
}
