package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/hostrt"
)

var runOpts struct {
	env    []string
	stdin  string
	mounts []string
}

var runCmd = &cobra.Command{
	Use:   "run module.wasm [-- args...]",
	Short: "Run a WASI command module",
	Long: `Run executes a WASI command the way generated launchers do. The
command's exit code becomes the exit code of wasm-pack.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		wasm, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cfg, closeStdin, err := commandConfig(cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer closeStdin()
		cfg.Args = args[1:]
		cfg.Stdout = cmd.OutOrStdout()
		cfg.Stderr = cmd.ErrOrStderr()

		rt := hostrt.NewRuntime(ctx)
		defer rt.Close(ctx)

		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		res, err := rt.RunCommand(ctx, name, wasm, cfg)
		if err != nil {
			return err
		}
		log.Debug("command finished", zap.String("command", name), zap.Uint32("exit_code", res.ExitCode))
		if res.ExitCode != 0 {
			return &exitError{code: int(res.ExitCode)}
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringArrayVarP(&runOpts.env, "env", "e", nil, "environment variable as KEY=VALUE (repeatable)")
	f.StringVar(&runOpts.stdin, "stdin", "", "file to use as standard input, - for the terminal's")
	f.StringArrayVar(&runOpts.mounts, "mount", nil, "directory as host:guest (repeatable)")
	rootCmd.AddCommand(runCmd)
}

// commandConfig turns the run flags into a command environment.
func commandConfig(in io.Reader) (hostrt.CommandConfig, func(), error) {
	var cfg hostrt.CommandConfig
	noop := func() {}

	if len(runOpts.env) > 0 {
		cfg.Env = make(map[string]string, len(runOpts.env))
		for _, kv := range runOpts.env {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return cfg, noop, fmt.Errorf("--env %q: want KEY=VALUE", kv)
			}
			cfg.Env[k] = v
		}
	}

	if len(runOpts.mounts) > 0 {
		cfg.Mounts = make(map[string]string, len(runOpts.mounts))
		for _, m := range runOpts.mounts {
			host, guest, ok := strings.Cut(m, ":")
			if !ok || host == "" || guest == "" {
				return cfg, noop, fmt.Errorf("--mount %q: want host:guest", m)
			}
			cfg.Mounts[guest] = host
		}
	}

	switch runOpts.stdin {
	case "":
	case "-":
		cfg.Stdin = in
	default:
		f, err := os.Open(runOpts.stdin)
		if err != nil {
			return cfg, noop, err
		}
		cfg.Stdin = f
		return cfg, func() { f.Close() }, nil
	}
	return cfg, noop, nil
}
