package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

var (
	showSource sourceFlags
	showFormat string
)

var showCmd = &cobra.Command{
	Use:   "show [project]",
	Short: "Summarize the package a project describes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := showSource.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		s := summarize(pkg)
		out := cmd.OutOrStdout()
		switch strings.ToLower(showFormat) {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		case "yaml":
			enc := yaml.NewEncoder(out, yaml.Indent(2))
			if err := enc.Encode(s); err != nil {
				return err
			}
			return enc.Close()
		case "text":
			styled := out == io.Writer(os.Stdout) && isTerminal(os.Stdout)
			_, err := io.WriteString(out, s.text(styled))
			return err
		}
		return fmt.Errorf("unknown format %q, want text, json or yaml", showFormat)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "output format: text, json or yaml")
	showSource.register(showCmd)
	rootCmd.AddCommand(showCmd)
}

type summary struct {
	Name        string           `json:"name" yaml:"name"`
	Version     string           `json:"version" yaml:"version"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Bindings    []bindingSummary `json:"bindings" yaml:"bindings"`
	Commands    []commandSummary `json:"commands" yaml:"commands"`
}

type bindingSummary struct {
	Interface string   `json:"interface" yaml:"interface"`
	Module    string   `json:"module" yaml:"module"`
	WASI      bool     `json:"wasi" yaml:"wasi"`
	Imports   []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	Functions []string `json:"functions" yaml:"functions"`
}

type commandSummary struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

func summarize(pkg *model.Package) summary {
	s := summary{
		Name:        pkg.Metadata.Name.String(),
		Version:     pkg.Metadata.Version,
		Description: pkg.Metadata.Description,
		Bindings:    []bindingSummary{},
		Commands:    []commandSummary{},
	}
	for _, lib := range pkg.Libraries {
		b := bindingSummary{
			Interface: lib.InterfaceName(),
			Module:    lib.Module.Name,
			WASI:      lib.RequiresWASI(),
			Functions: []string{},
		}
		for _, imp := range lib.Imports {
			b.Imports = append(b.Imports, imp.Name)
		}
		for _, fn := range lib.Exports.Funcs {
			b.Functions = append(b.Functions, witsrc.FuncSignature(fn))
		}
		s.Bindings = append(s.Bindings, b)
	}
	for _, cmd := range pkg.Commands {
		s.Commands = append(s.Commands, commandSummary{Name: cmd.Name, Size: len(cmd.Wasm)})
	}
	return s
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func (s summary) text(styled bool) string {
	style := func(st lipgloss.Style, v string) string {
		if styled {
			return st.Render(v)
		}
		return v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", style(headingStyle, s.Name), s.Version)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n", s.Description)
	}
	if len(s.Bindings) > 0 {
		fmt.Fprintf(&b, "\n%s\n", style(headingStyle, "Bindings"))
		for _, lib := range s.Bindings {
			abi := "none"
			if lib.WASI {
				abi = "wasi"
			}
			fmt.Fprintf(&b, "  %s %s\n", style(nameStyle, lib.Interface), style(dimStyle, "("+lib.Module+", abi "+abi+")"))
			for _, imp := range lib.Imports {
				fmt.Fprintf(&b, "    import %s\n", imp)
			}
			for _, fn := range lib.Functions {
				fmt.Fprintf(&b, "    %s\n", fn)
			}
		}
	}
	if len(s.Commands) > 0 {
		fmt.Fprintf(&b, "\n%s\n", style(headingStyle, "Commands"))
		for _, cmd := range s.Commands {
			fmt.Fprintf(&b, "  %s %s\n", style(nameStyle, cmd.Name), style(dimStyle, fmt.Sprintf("(%d bytes)", cmd.Size)))
		}
	}
	return b.String()
}
