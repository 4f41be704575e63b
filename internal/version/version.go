// Package version holds build information set by the linker.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/wippyai/wasm-pack/internal/version.Version=..."
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("wasm-pack %s (commit %s, built %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
