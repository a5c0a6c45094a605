// Package compiler runs the external script compiler.
package compiler

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
)

// Compiler turns a project directory into a bytecode file.
type Compiler interface {
	Compile(ctx context.Context, sourceDir, outputFile string) error
}

// maxStderr bounds how much compiler output is kept for error messages.
const maxStderr = 2048

// Forc invokes a forc-compatible binary.
type Forc struct {
	Binary string
}

// NewForc returns a Forc compiler. An empty binary means "forc" on PATH.
func NewForc(binary string) *Forc {
	if binary == "" {
		binary = "forc"
	}
	return &Forc{Binary: binary}
}

// Compile runs `forc build` for sourceDir and writes the bytecode to outputFile.
func (f *Forc) Compile(ctx context.Context, sourceDir, outputFile string) error {
	cmd := exec.CommandContext(ctx, f.Binary, "build", "--path", sourceDir, "--output-bin", outputFile)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.WithRoot(errors.ErrCompile, ctx.Err(), "forc build")
		}
		return errors.WithRoot(errors.ErrCompile, err, "forc build: "+tail(stderr.String()))
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}
