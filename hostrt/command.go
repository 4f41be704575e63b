package hostrt

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
)

// CommandConfig is the process environment of a command run.
type CommandConfig struct {
	// Args follow argv[0], which is the command name.
	Args  []string
	Env   map[string]string
	Stdin io.Reader
	// Stdout and Stderr, when set, receive output as it is written. The
	// result captures it either way.
	Stdout io.Writer
	Stderr io.Writer
	// Mounts maps guest paths to host directories.
	Mounts map[string]string
}

// CommandResult reports a finished command. A non-zero exit code is a
// result, not an error.
type CommandResult struct {
	ExitCode uint32
	Stdout   []byte
	Stderr   []byte
}

// RunCommand instantiates a WASI command and runs its _start export to
// completion.
func (r *Runtime) RunCommand(ctx context.Context, name string, wasm []byte, cfg CommandConfig) (*CommandResult, error) {
	compiled, err := r.compile(ctx, "command:"+name, wasm)
	if err != nil {
		return nil, err
	}
	if _, ok := compiled.ExportedFunctions()["_start"]; !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name+"#_start")
	}
	if err := r.ensureWASI(ctx); err != nil {
		return nil, err
	}
	if err := r.checkImports(compiled); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{name}, cfg.Args...)...).
		WithStdout(tee(&stdout, cfg.Stdout)).
		WithStderr(tee(&stderr, cfg.Stderr)).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep()
	if cfg.Stdin != nil {
		modCfg = modCfg.WithStdin(cfg.Stdin)
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		modCfg = modCfg.WithEnv(k, cfg.Env[k])
	}

	if len(cfg.Mounts) > 0 {
		guests := make([]string, 0, len(cfg.Mounts))
		for g := range cfg.Mounts {
			guests = append(guests, g)
		}
		sort.Strings(guests)
		fsCfg := wazero.NewFSConfig()
		for _, g := range guests {
			fsCfg = fsCfg.WithDirMount(cfg.Mounts[g], g)
		}
		modCfg = modCfg.WithFSConfig(fsCfg)
	}

	result := &CommandResult{}
	mod, err := r.rt.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		_ = mod.Close(ctx)
	}
	var exit *sys.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindTrap, ctx.Err(), name+" cancelled")
	case stderrors.As(err, &exit):
		result.ExitCode = exit.ExitCode()
	default:
		return nil, errors.Trap(name+"#_start", err)
	}

	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	Logger().Debug("command finished",
		zap.String("command", name),
		zap.Uint32("exit_code", result.ExitCode),
		zap.Int("stdout_bytes", len(result.Stdout)))
	return result, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
