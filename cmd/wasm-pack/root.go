package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/hostrt"
	"github.com/wippyai/wasm-pack/internal/project"
)

var cfgFile string

// log is replaced by setupLogging before any command runs.
var log = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "wasm-pack",
	Short: "Generate host-language packages for WebAssembly modules",
	Long: `wasm-pack turns a WebAssembly module and the WIT interface it exports into an
installable Go module, Python project or npm package. Modules that run as WASI
programs are packaged as commands with a launcher function.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogging(viper.GetString("log-level"))
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.wasm-pack.yaml, then $HOME/.wasm-pack.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig loads configuration from the config file and WASMPACK_*
// environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wasm-pack")
	}

	viper.SetEnvPrefix("WASMPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", zap.String("file", viper.ConfigFileUsed()))
	}
}

func setupLogging(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !isTerminal(os.Stderr) {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	log = l
	codegen.SetLogger(l.Named("codegen"))
	assemble.SetLogger(l.Named("assemble"))
	hostrt.SetLogger(l.Named("hostrt"))
	project.SetLogger(l.Named("project"))
	return nil
}
