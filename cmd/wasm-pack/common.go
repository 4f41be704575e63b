package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-pack/internal/project"
	"github.com/wippyai/wasm-pack/model"
)

// sourceFlags describe a package on the command line, either through a
// project file or, for a single library, through --wit and --module.
type sourceFlags struct {
	name        string
	version     string
	description string
	wit         string
	module      string
	imports     []string
	abi         string
	commands    []string
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.name, "name", "", "package name, e.g. wasmer/hello-world (without a project file)")
	f.StringVar(&s.version, "version", "0.1.0", "package version (without a project file)")
	f.StringVar(&s.description, "description", "", "package description (without a project file)")
	f.StringVar(&s.wit, "wit", "", "WIT file with the exported interface")
	f.StringVar(&s.module, "module", "", "wasm module implementing --wit")
	f.StringSliceVar(&s.imports, "import", nil, "WIT file of an interface the module imports (repeatable)")
	f.StringVar(&s.abi, "abi", project.ABIAuto, "module ABI: auto, none or wasi")
	f.StringArrayVar(&s.commands, "command", nil, "WASI command as name=path.wasm (repeatable)")
}

// inline reports whether the package is described by flags.
func (s *sourceFlags) inline() bool {
	return s.wit != "" || s.module != "" || len(s.commands) > 0
}

// file builds an in-memory project file from the flags.
func (s *sourceFlags) file() (*project.File, error) {
	f := &project.File{
		Name:        s.name,
		Version:     s.version,
		Description: s.description,
	}
	if f.Name == "" {
		return nil, fmt.Errorf("--name is required without a project file")
	}
	if s.wit != "" || s.module != "" {
		if s.wit == "" || s.module == "" {
			return nil, fmt.Errorf("--wit and --module go together")
		}
		f.Libraries = append(f.Libraries, project.Library{
			Module:  s.module,
			Exports: s.wit,
			Imports: s.imports,
			ABI:     s.abi,
		})
	}
	for _, c := range s.commands {
		name, p, ok := strings.Cut(c, "=")
		if !ok || name == "" || p == "" {
			return nil, fmt.Errorf("--command %q: want name=path.wasm", c)
		}
		f.Commands = append(f.Commands, project.Command{Name: name, Module: p})
	}
	return f, f.Validate()
}

// load builds the package from a project file argument or the flags.
func (s *sourceFlags) load(ctx context.Context, args []string) (*model.Package, error) {
	if s.inline() {
		if len(args) > 0 {
			return nil, fmt.Errorf("a project file cannot be combined with --wit, --module or --command")
		}
		f, err := s.file()
		if err != nil {
			return nil, err
		}
		return f.Package(ctx, hostFS{})
	}
	p := "."
	if len(args) > 0 {
		p = args[0]
	}
	return project.Open(ctx, p)
}

// hostFS reads paths as given, relative to the working directory.
type hostFS struct{}

func (hostFS) Open(name string) (fs.File, error) {
	return os.Open(filepath.FromSlash(name))
}

func (hostFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.FromSlash(name))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
