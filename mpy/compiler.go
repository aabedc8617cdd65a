// Package mpy wraps invocation of the mpy-cross cross-compiler.
//
// mpy-cross is an external binary that compiles a MicroPython source file
// to bytecode next to it. Compilation failures are reported as diagnostic
// text, never as Go errors: the deploy orchestrator treats them as
// per-file warnings.
package mpy

import (
	"bytes"
	"context"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// DefaultBinary is the compiler binary name resolved via PATH.
const DefaultBinary = "mpy-cross"

// DefaultTimeout bounds a single compiler invocation.
const DefaultTimeout = 30 * time.Second

// CrossCompiler invokes mpy-cross as a subprocess.
type CrossCompiler struct {
	// Path is the mpy-cross binary path or name (default: mpy-cross).
	Path string
	// Args are extra compiler arguments (e.g. -O2, -march=armv6m).
	Args []string
	// Timeout bounds one invocation (default: 30s).
	Timeout time.Duration
}

// Available reports whether the compiler binary can be resolved.
// Call once before a deploy run to warn early instead of per file.
func (c *CrossCompiler) Available() error {
	_, err := exec.LookPath(c.binary())
	return err
}

// Compile compiles srcPath in place, producing an .mpy artifact next to it.
// Returns ok=false with combined stdout/stderr diagnostic text on failure;
// a failure to launch the binary at all is folded into the diagnostic.
func (c *CrossCompiler) Compile(ctx context.Context, srcPath string) (bool, string) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(slices.Clone(c.Args), srcPath)
	cmd := exec.CommandContext(ctx, c.binary(), args...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(combined.String())
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return false, diagnostic
	}
	return true, strings.TrimSpace(combined.String())
}

func (c *CrossCompiler) binary() string {
	if c.Path != "" {
		return c.Path
	}
	return DefaultBinary
}

// OutputPath returns the artifact path mpy-cross produces for srcPath.
func OutputPath(srcPath string) string {
	return strings.TrimSuffix(srcPath, ".py") + ".mpy"
}
