package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/hostrt"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

var inspectSource sourceFlags

var inspectCmd = &cobra.Command{
	Use:   "inspect [project]",
	Short: "Call library functions and run commands interactively",
	Long: `Inspect loads a package and lists every exported library function and
every command. Selecting a function prompts for its arguments and calls it
through the same runtime generated Go packages use. Only functions whose
parameters are scalars or strings can be called.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := inspectSource.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		p := tea.NewProgram(newInspectModel(pkg), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	inspectSource.register(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// entry is one selectable line: a library function or a command.
type entry struct {
	lib *model.Library
	fn  *model.Function
	cmd *model.Command
}

func (e entry) label() string {
	if e.cmd != nil {
		return funcStyle.Render(e.cmd.Name) + " " + typeStyle.Render("(command)")
	}
	return typeStyle.Render(e.lib.InterfaceName()+".") + funcStyle.Render(witsrc.FuncSignature(e.fn))
}

type inspectState int

const (
	stateSelect inspectState = iota
	stateInput
	stateResult
)

type inspectModel struct {
	ctx       context.Context
	pkg       *model.Package
	rt        *hostrt.Runtime
	instances map[*model.Library]*hostrt.Instance
	entries   []entry
	inputs    []textinput.Model
	result    string
	err       error
	selected  int
	focusIdx  int
	state     inspectState
}

func newInspectModel(pkg *model.Package) *inspectModel {
	m := &inspectModel{
		ctx:       context.Background(),
		pkg:       pkg,
		instances: make(map[*model.Library]*hostrt.Instance),
	}
	for _, lib := range pkg.Libraries {
		for _, fn := range lib.Exports.Funcs {
			m.entries = append(m.entries, entry{lib: lib, fn: fn})
		}
	}
	for _, cmd := range pkg.Commands {
		m.entries = append(m.entries, entry{cmd: cmd})
	}
	return m
}

type callResultMsg struct {
	err    error
	result string
}

func (m *inspectModel) Init() tea.Cmd {
	m.rt = hostrt.NewRuntime(m.ctx)
	return nil
}

func (m *inspectModel) close() {
	for _, inst := range m.instances {
		_ = inst.Close(m.ctx)
	}
	if m.rt != nil {
		_ = m.rt.Close(m.ctx)
	}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				m.close()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelect:
				if len(m.entries) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.call
				}
				m.state = stateInput
				return m, textinput.Blink

			case stateInput:
				return m, m.call

			case stateResult:
				m.reset()
			}
			return m, nil

		case "tab":
			if m.state == stateInput && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state != stateSelect {
				m.reset()
			}
			return m, nil
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateResult
	}

	if m.state == stateInput {
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *inspectModel) reset() {
	m.state = stateSelect
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *inspectModel) prepareInputs() {
	e := m.entries[m.selected]
	m.inputs = nil
	m.focusIdx = 0
	if e.cmd != nil {
		ti := textinput.New()
		ti.Prompt = "args: "
		ti.Placeholder = "space separated"
		ti.Width = 40
		ti.Focus()
		m.inputs = append(m.inputs, ti)
		return
	}
	for i, p := range e.fn.Params {
		ti := textinput.New()
		ti.Prompt = p.Name + ": "
		ti.Placeholder = witsrc.TypeString(p.Type)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs = append(m.inputs, ti)
	}
}

func (m *inspectModel) call() tea.Msg {
	e := m.entries[m.selected]
	if e.cmd != nil {
		return m.runCommand(e.cmd)
	}

	inst, err := m.instance(e.lib)
	if err != nil {
		return callResultMsg{err: err}
	}
	args := make([]any, len(e.fn.Params))
	for i, p := range e.fn.Params {
		v, err := parseArg(m.inputs[i].Value(), p.Type)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", p.Name, err)}
		}
		args[i] = v
	}
	outs := make([]any, len(e.fn.Results))
	for i := range outs {
		outs[i] = new(any)
	}
	if err := inst.Call(m.ctx, e.fn.Name, args, outs...); err != nil {
		return callResultMsg{err: err}
	}

	vals := make([]string, len(outs))
	for i, out := range outs {
		vals[i] = fmt.Sprintf("%#v", *out.(*any))
	}
	if len(vals) == 0 {
		return callResultMsg{result: "(no results)"}
	}
	return callResultMsg{result: strings.Join(vals, "\n")}
}

// instance returns the library's instance, instantiating it on first use.
// Imported interfaces are linked without implementations; calling into
// them traps.
func (m *inspectModel) instance(lib *model.Library) (*hostrt.Instance, error) {
	if inst, ok := m.instances[lib]; ok {
		return inst, nil
	}
	exports, err := hostrt.Bind(lib.Exports, nil)
	if err != nil {
		return nil, err
	}
	cfg := hostrt.Config{
		Name:    lib.Module.Name,
		Wasm:    lib.Module.Wasm,
		WASI:    lib.RequiresWASI(),
		Exports: exports,
	}
	for _, imp := range lib.Imports {
		b, err := hostrt.Bind(imp, nil)
		if err != nil {
			return nil, err
		}
		cfg.Imports = append(cfg.Imports, hostrt.HostModule{Binding: b})
	}
	inst, err := m.rt.Instantiate(m.ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.instances[lib] = inst
	return inst, nil
}

func (m *inspectModel) runCommand(cmd *model.Command) tea.Msg {
	res, err := m.rt.RunCommand(m.ctx, cmd.Name, cmd.Wasm, hostrt.CommandConfig{
		Args:  strings.Fields(m.inputs[0].Value()),
		Stdin: bytes.NewReader(nil),
	})
	if err != nil {
		return callResultMsg{err: err}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "exit code %d", res.ExitCode)
	if len(res.Stdout) > 0 {
		fmt.Fprintf(&b, "\n\nstdout:\n%s", res.Stdout)
	}
	if len(res.Stderr) > 0 {
		fmt.Fprintf(&b, "\n\nstderr:\n%s", res.Stderr)
	}
	return callResultMsg{result: b.String()}
}

// parseArg converts typed-in text to the Go value the runtime lowers for
// t. Only scalars and strings are accepted.
func parseArg(s string, t wit.Type) (any, error) {
	switch t.(type) {
	case wit.String:
		return s, nil
	case wit.Char:
		r := []rune(s)
		if len(r) != 1 {
			return nil, fmt.Errorf("want a single character")
		}
		return r[0], nil
	case wit.Bool:
		return strconv.ParseBool(s)
	case wit.U8:
		v, err := strconv.ParseUint(s, 10, 8)
		return uint8(v), err
	case wit.U16:
		v, err := strconv.ParseUint(s, 10, 16)
		return uint16(v), err
	case wit.U32:
		v, err := strconv.ParseUint(s, 10, 32)
		return uint32(v), err
	case wit.U64:
		return strconv.ParseUint(s, 10, 64)
	case wit.S8:
		v, err := strconv.ParseInt(s, 10, 8)
		return int8(v), err
	case wit.S16:
		v, err := strconv.ParseInt(s, 10, 16)
		return int16(v), err
	case wit.S32:
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	case wit.S64:
		return strconv.ParseInt(s, 10, 64)
	case wit.F32:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case wit.F64:
		return strconv.ParseFloat(s, 64)
	}
	return nil, fmt.Errorf("%s arguments cannot be entered interactively", witsrc.TypeString(t))
}

func (m *inspectModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wasm-pack"))
	b.WriteString(" ")
	b.WriteString(m.pkg.Metadata.Name.String())
	b.WriteString(" ")
	b.WriteString(m.pkg.Metadata.Version)
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString("Nothing to call.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelect:
		b.WriteString("Select a function or command:\n\n")
		for i, e := range m.entries {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + e.label())
			} else {
				b.WriteString("  " + e.label())
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInput:
		fmt.Fprintf(&b, "Calling %s\n\n", m.entries[m.selected].label())
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateResult:
		fmt.Fprintf(&b, "Result of %s:\n\n", m.entries[m.selected].label())
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}
	return b.String()
}
