package codegen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/assemble"
	"github.com/wippyai/wasm-pack/internal/version"
	"github.com/wippyai/wasm-pack/model"
)

// Generator is a language back end.
type Generator interface {
	// Name is the target name, e.g. "go".
	Name() string
	// Generate produces the package files. pkg must have passed Validate.
	Generate(pkg *model.Package) (*assemble.Bundle, error)
}

// Options configure every back end. Options a back end does not
// understand are ignored.
type Options struct {
	Logger *zap.Logger
	// Version is the generator version recorded in banners and in the
	// runtime dependency of generated Go modules.
	Version string
	// GoModule overrides the module path of generated Go packages.
	GoModule string
	// BigInt maps 64-bit integers to BigInt in JavaScript. Without it
	// such types cannot be represented and generation fails.
	BigInt bool
}

// Option sets a field of Options.
type Option func(*Options)

// WithVersion overrides the generator version.
func WithVersion(v string) Option {
	return func(o *Options) { o.Version = v }
}

// WithGoModule sets the module path of generated Go packages.
func WithGoModule(path string) Option {
	return func(o *Options) { o.GoModule = path }
}

// WithBigInt enables BigInt for JavaScript 64-bit integers.
func WithBigInt(enabled bool) Option {
	return func(o *Options) { o.BigInt = enabled }
}

// WithLogger sets the logger used while generating.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// NewOptions applies opts over the defaults: the running generator
// version, BigInt enabled and the package logger.
func NewOptions(opts ...Option) Options {
	o := Options{
		Version: version.Version,
		BigInt:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o
}

// Banner is the first line of generated sources, without comment syntax.
func (o Options) Banner() string {
	return fmt.Sprintf("Generated by wasm-pack v%s. DO NOT EDIT.", o.Version)
}
