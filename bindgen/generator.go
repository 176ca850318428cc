// Package bindgen generates the Rust FFI declarations for the wrapper header
// and, when requested, makes the generated types serializable.
package bindgen

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
)

// SerdeImport is the line that brings the serde derive macros into scope.
const SerdeImport = "use serde::{Serialize, Deserialize};"

// BindingFile is a generated bindings source file.
type BindingFile struct {
	Path string
}

// Generator runs the bindgen command line tool.
type Generator struct {
	runner      executor.Runner
	program     string
	output      string
	deriveSerde bool
	serdeMode   string
	logger      *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator returns a Generator writing cfg.BindingFile().
func NewGenerator(cfg *config.Config, runner executor.Runner, opts ...Option) *Generator {
	g := &Generator{
		runner:      runner,
		program:     cfg.Tools.Bindgen,
		output:      cfg.BindingFile(),
		deriveSerde: cfg.DeriveSerde,
		serdeMode:   cfg.SerdeMode,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EmitsSerde reports whether serde derives come from the generator itself,
// leaving nothing for AddSerialization to do.
func (g *Generator) EmitsSerde() bool {
	return g.deriveSerde && g.serdeMode == config.SerdeGenerator
}

// Args returns the bindgen command line for header.
func (g *Generator) Args(header, includePath string) []string {
	args := []string{
		header,
		"--output", g.output,
		"--rustified-enum", ".*",
		"--with-derive-default",
		"--with-derive-partialeq",
		"--disable-name-namespacing",
	}
	if g.EmitsSerde() {
		args = append(args,
			"--raw-line", SerdeImport,
			"--with-derive-custom-struct", ".*=Serialize,Deserialize",
			"--with-derive-custom-enum", ".*=Serialize,Deserialize",
		)
	}
	return append(args, "--", "-I"+includePath)
}

// Generate writes bindings for header. On failure no output file is left behind.
func (g *Generator) Generate(ctx context.Context, header, includePath string) (*BindingFile, error) {
	g.logger.Info("generating bindings",
		zap.String("header", header),
		zap.String("output", g.output),
		zap.Bool("serde", g.EmitsSerde()))

	result, err := g.runner.Run(ctx, g.program, g.Args(header, includePath),
		executor.WithCapture(true, true))
	if err == nil && result.Success() {
		return &BindingFile{Path: g.output}, nil
	}

	if rmErr := os.Remove(g.output); rmErr != nil && !os.IsNotExist(rmErr) {
		g.logger.Warn("failed to remove partial bindings", zap.String("path", g.output), zap.Error(rmErr))
	}

	var stdout, stderr string
	if result != nil {
		stdout, stderr = result.Stdout, result.Stderr
		if err == nil {
			err = fmt.Errorf("exit status %d", result.ExitCode)
		}
	}
	return nil, errors.BindingGeneration(stdout, stderr, err)
}
