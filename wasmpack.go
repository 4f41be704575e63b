package wasmpack

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/codegen"
	"github.com/wippyai/wasm-pack/codegen/golang"
	"github.com/wippyai/wasm-pack/codegen/javascript"
	"github.com/wippyai/wasm-pack/codegen/python"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/model"
	"github.com/wippyai/wasm-pack/witsrc"
)

// Target names accepted by Generate.
const (
	TargetGo         = "go"
	TargetPython     = "python"
	TargetJavaScript = "javascript"
)

var backends = map[string]func(codegen.Options) codegen.Generator{
	TargetGo:         func(o codegen.Options) codegen.Generator { return golang.New(o) },
	TargetPython:     func(o codegen.Options) codegen.Generator { return python.New(o) },
	TargetJavaScript: func(o codegen.Options) codegen.Generator { return javascript.New(o) },
}

var aliases = map[string]string{
	"js":     TargetJavaScript,
	"golang": TargetGo,
	"py":     TargetPython,
}

// Targets returns the canonical target names, sorted.
func Targets() []string {
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseTarget maps a target name or alias to its canonical name.
func ParseTarget(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	if _, ok := backends[key]; !ok {
		return "", errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Value(name).
			Detail("unknown target %q, want one of %s", name, strings.Join(Targets(), ", ")).
			Build()
	}
	return key, nil
}

// NewGenerator returns the back end for target.
func NewGenerator(target string, opts ...codegen.Option) (codegen.Generator, error) {
	name, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return backends[name](codegen.NewOptions(opts...)), nil
}

// Generate validates pkg, runs the back end for target and assembles its
// output. The result is sorted by path and identical for identical input.
func Generate(pkg *model.Package, target string, opts ...codegen.Option) (assemble.FileSet, error) {
	if pkg == nil {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).Detail("nil package").Build()
	}
	name, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	o := codegen.NewOptions(opts...)
	gen := backends[name](o)
	if err := pkg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	bundle, err := gen.Generate(pkg)
	if err != nil {
		return nil, err
	}
	files, err := assemble.Assemble(pkg.Metadata, bundle)
	if err != nil {
		return nil, err
	}
	o.Logger.Info("generated package",
		zap.String("package", pkg.Metadata.Name.String()),
		zap.String("target", gen.Name()),
		zap.Int("files", len(files)),
		zap.Int("bytes", files.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return files, nil
}

// LoadInterface parses and resolves a WIT document holding exactly one
// interface.
func LoadInterface(src, filename string) (*model.Interface, error) {
	return witsrc.Load(src, filename)
}
