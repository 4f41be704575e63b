package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	wasmpack "github.com/wippyai/wasm-pack"
	"github.com/wippyai/wasm-pack/codegen"
)

var generateSource sourceFlags

var generateCmd = &cobra.Command{
	Use:   "generate [project]",
	Short: "Generate packages for one or more targets",
	Long: `Generate reads wasm-pack.yaml (or the file or directory given) and writes one
package per target. With a single target the package is written directly to the
output directory, otherwise to <output>/<target>.

Without a project file, describe a single library with --name, --wit and
--module, and commands with --command name=path.wasm.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringP("output", "o", "out", "output directory")
	f.StringSliceP("target", "t", nil, "targets to generate (default all): go, python, javascript")
	f.Bool("bigint", true, "map 64-bit integers to BigInt in JavaScript")
	f.String("go-module", "", "module path of the generated Go module")
	generateSource.register(generateCmd)

	for _, key := range []string{"output", "target", "bigint", "go-module"} {
		_ = viper.BindPFlag(key, f.Lookup(key))
	}
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pkg, err := generateSource.load(ctx, args)
	if err != nil {
		return err
	}

	targets, err := resolveTargets(viper.GetStringSlice("target"))
	if err != nil {
		return err
	}
	opts := []codegen.Option{
		codegen.WithBigInt(viper.GetBool("bigint")),
		codegen.WithGoModule(viper.GetString("go-module")),
		codegen.WithLogger(log.Named("codegen")),
	}
	output := viper.GetString("output")

	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			files, err := wasmpack.Generate(pkg, target, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			dir := output
			if len(targets) > 1 {
				dir = filepath.Join(output, target)
			}
			if err := files.WriteTo(dir); err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}

			mu.Lock()
			defer mu.Unlock()
			log.Info("wrote package", zap.String("target", target), zap.String("dir", dir))
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %3d files  %s\n", target, len(files), dir)
			return nil
		})
	}
	return g.Wait()
}

// resolveTargets canonicalizes and deduplicates target names, keeping
// their order. No names means every target.
func resolveTargets(names []string) ([]string, error) {
	if len(names) == 0 {
		return wasmpack.Targets(), nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		t, err := wasmpack.ParseTarget(n)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
