// Package deploy orchestrates a full deployment: image staging (copy and
// cross-compile), device filesystem cleaning, per-file upload over the REPL
// protocol, and the final device reset.
package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/picoup/log"
	"github.com/pithecene-io/picoup/metrics"
	"github.com/pithecene-io/picoup/repl"
	"github.com/pithecene-io/picoup/types"
)

// Finder supplies the discovery sets for a deploy run.
// Paths are slash-separated, relative to the project root.
type Finder interface {
	FindFiles(root string) ([]string, error)
	FindScripts(root string) ([]string, error)
}

// Compiler invokes the external cross-compiler for one source file.
// A false ok carries diagnostic text; it is never fatal to the run.
type Compiler interface {
	Compile(ctx context.Context, srcPath string) (ok bool, diagnostic string)
}

// Executor abstracts the REPL client for testing.
type Executor interface {
	ExecChecked(ctx context.Context, code string) (repl.ExecResult, error)
	SoftReset() error
	HardReset(ctx context.Context) error
	Close() error
}

// ClientFactory opens the device transport and returns a REPL client.
// Called once per deploy run, at the start of the upload step.
type ClientFactory func(ctx context.Context) (Executor, error)

// Config configures a single deploy run.
type Config struct {
	// Root is the project root directory discovery operates on.
	Root string
	// ImageDir is a caller-supplied staging directory. Created if absent and
	// left in place afterward. Empty selects a temporary directory that is
	// always removed, success or failure.
	ImageDir string
	// KeepSource keeps .py sources in the image alongside compiled output.
	KeepSource bool
	// CleanFS erases the device filesystem before uploading.
	CleanFS bool
	// Reset selects the device reset performed after a successful upload.
	Reset types.ResetMode
	// Force uploads every staged file even when the manifest says it is
	// unchanged on the device.
	Force bool
	// ManifestPath enables incremental uploads when non-empty.
	ManifestPath string
	// Meta is the deploy identity metadata.
	Meta *types.DeployMeta
	// Finder supplies the copy and compile discovery sets.
	Finder Finder
	// Compiler invokes mpy-cross. Nil disables the compile step.
	Compiler Compiler
	// ClientFactory opens the transport and constructs the REPL client.
	ClientFactory ClientFactory
	// Collector records deploy counters. Nil disables metrics (all
	// Collector methods are nil-safe).
	Collector *metrics.Collector
	// LogLevel is the orchestrator log level (default: info).
	LogLevel zapcore.Level
}

// Deployer orchestrates a single deploy run.
type Deployer struct {
	config    *Config
	logger    *log.Logger
	startTime time.Time
}

// NewDeployer creates a deploy orchestrator.
// Returns an error if the deploy metadata is invalid.
func NewDeployer(config *Config) (*Deployer, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deploy metadata: %w", err)
	}
	if config.Finder == nil {
		return nil, fmt.Errorf("deploy config requires a Finder")
	}
	if config.ClientFactory == nil {
		return nil, fmt.Errorf("deploy config requires a ClientFactory")
	}

	return &Deployer{
		config: config,
		logger: log.NewLogger(config.Meta, config.LogLevel),
	}, nil
}

// Execute runs the deployment end-to-end.
//
// Flow:
//  1. Resolve the staging image directory
//  2. Stage: copy selected files, cross-compile selected scripts
//  3. Upload: clean (optional), write each staged file, sync, reset
//  4. Remove the temporary staging directory (unconditional)
func (d *Deployer) Execute(ctx context.Context) (*Result, error) {
	d.startTime = time.Now()

	d.logger.Info("starting deploy", map[string]any{
		"root":  d.config.Root,
		"reset": string(d.config.Reset),
		"clean": d.config.CleanFS,
	})

	imageDir, cleanup, err := d.resolveImageDir()
	if err != nil {
		return nil, err
	}
	// Temporary staging areas are removed on every exit path, including
	// fatal staging and upload errors.
	defer cleanup()

	if err := d.stage(ctx, imageDir); err != nil {
		return nil, err
	}
	if err := d.upload(ctx, imageDir); err != nil {
		return nil, err
	}

	result := &Result{
		Meta:     d.config.Meta,
		Duration: time.Since(d.startTime),
		Stats:    d.config.Collector.Snapshot(),
	}

	d.logger.Info("deploy complete", map[string]any{
		"files_uploaded": result.Stats.FilesUploaded,
		"bytes_uploaded": result.Stats.BytesUploaded,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	return result, nil
}

// resolveImageDir returns the staging directory and its cleanup function.
func (d *Deployer) resolveImageDir() (string, func(), error) {
	if d.config.ImageDir != "" {
		if err := os.MkdirAll(d.config.ImageDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create image directory %s: %w", d.config.ImageDir, err)
		}
		return d.config.ImageDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "picoup-image-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temporary image directory: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			d.logger.Warn("failed to remove temporary image directory", map[string]any{
				"dir":   dir,
				"error": err.Error(),
			})
		}
	}, nil
}
