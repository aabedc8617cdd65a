package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/adapter"
	"github.com/pithecene-io/picoup/adapter/redis"
	"github.com/pithecene-io/picoup/adapter/webhook"
	"github.com/pithecene-io/picoup/cli/config"
	"github.com/pithecene-io/picoup/cli/render"
	"github.com/pithecene-io/picoup/deploy"
	"github.com/pithecene-io/picoup/log"
	"github.com/pithecene-io/picoup/metrics"
	"github.com/pithecene-io/picoup/mpy"
	"github.com/pithecene-io/picoup/types"
)

// Exit codes for deploy and the other device commands.
const (
	exitSuccess      = 0
	exitDeployFailed = 1
)

// DefaultManifestName is the manifest file created in the project root
// when the config does not name one.
const DefaultManifestName = ".picoup.manifest"

// DeployCommand returns the deploy command.
// This is the primary workflow: stage, compile, upload, reset.
func DeployCommand() *cli.Command {
	flags := DeviceFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:  "image-dir",
			Usage: "Staging directory for the deploy image (kept after the run)",
		},
		&cli.BoolFlag{
			Name:  "keep-source",
			Usage: "Keep .py sources in the image alongside compiled output",
		},
		&cli.BoolFlag{
			Name:  "clean",
			Usage: "Erase the device filesystem before uploading",
		},
		&cli.StringFlag{
			Name:  "reset",
			Usage: "Reset mode after upload: none, soft, or hard",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Upload every file even when the manifest says it is unchanged",
		},
		&cli.BoolFlag{
			Name:  "no-manifest",
			Usage: "Disable incremental uploads for this run",
		},
		&cli.BoolFlag{
			Name:  "no-compile",
			Usage: "Skip mpy-cross even when it is installed",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the deploy summary",
		},
		FormatFlag,
	)

	return &cli.Command{
		Name:   "deploy",
		Usage:  "Stage the project, cross-compile scripts, and upload to the board",
		Flags:  flags,
		Action: deployAction,
	}
}

// deployReport is the rendered outcome of a deploy run.
type deployReport struct {
	DeployID        string `json:"deploy_id"`
	Device          string `json:"device"`
	Project         string `json:"project,omitempty"`
	FilesCopied     int64  `json:"files_copied"`
	ScriptsCompiled int64  `json:"scripts_compiled"`
	CompileFailures int64  `json:"compile_failures"`
	FilesUploaded   int64  `json:"files_uploaded"`
	FilesSkipped    int64  `json:"files_skipped"`
	BytesUploaded   int64  `json:"bytes_uploaded"`
	PasteFallback   bool   `json:"paste_fallback"`
	DurationMs      int64  `json:"duration_ms"`

	summary string
}

// Text renders the hand-written deploy summary.
func (r deployReport) Text() string { return r.summary }

func newDeployReport(result *deploy.Result) deployReport {
	return deployReport{
		DeployID:        result.Meta.DeployID,
		Device:          result.Meta.Device,
		Project:         result.Meta.Project,
		FilesCopied:     result.Stats.FilesCopied,
		ScriptsCompiled: result.Stats.ScriptsCompiled,
		CompileFailures: result.Stats.CompileFailures,
		FilesUploaded:   result.Stats.FilesUploaded,
		FilesSkipped:    result.Stats.FilesSkipped,
		BytesUploaded:   result.Stats.BytesUploaded,
		PasteFallback:   result.Stats.PasteFallback,
		DurationMs:      result.Duration.Milliseconds(),
		summary:         result.Summary(),
	}
}

func deployAction(c *cli.Context) error {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		// A fresh checkout has no config. Write the starter file and stop
		// so the user can fill in the device before the first real run.
		if errors.Is(err, config.ErrNotFound) {
			if werr := config.WriteDefault(configPath); werr != nil {
				return cli.Exit(fmt.Sprintf("failed to write default config: %v", werr), exitDeployFailed)
			}
			fmt.Printf("Wrote starter config to %s, edit it and rerun picoup deploy\n", configPath)
			return nil
		}
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitDeployFailed)
	}

	settings, err := resolveDevice(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitDeployFailed)
	}

	resetMode, err := resolveReset(c, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid reset mode: %v", err), exitDeployFailed)
	}

	// The project root is the directory holding the config file.
	root := filepath.Dir(configPath)

	meta := &types.DeployMeta{
		DeployID: newDeployID(),
		Device:   settings.device,
		Project:  cfg.Project,
	}

	imageDir := c.String("image-dir")
	if imageDir == "" {
		imageDir = cfg.Deploy.ImageDir
	}

	deployConfig := &deploy.Config{
		Root:          root,
		ImageDir:      imageDir,
		KeepSource:    c.Bool("keep-source") || cfg.Deploy.KeepSource,
		CleanFS:       c.Bool("clean") || cfg.Deploy.Clean,
		Reset:         resetMode,
		Force:         c.Bool("force"),
		ManifestPath:  resolveManifest(c, cfg, root),
		Meta:          meta,
		Finder:        cfg.DiscoveryProject(),
		Compiler:      resolveCompiler(c, cfg),
		ClientFactory: clientFactory(settings, meta, c),
		Collector:     metrics.NewCollector(meta.DeployID, meta.Device),
		LogLevel:      logLevel(c),
	}

	deployer, err := deploy.NewDeployer(deployConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create deployer: %v", err), exitDeployFailed)
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	startTime := time.Now()
	result, err := deployer.Execute(ctx)

	// The completion event goes out on failure too: downstream systems
	// care most about the deploys that did not land.
	publishEvent(cfg.Adapter, meta, result, startTime, err)

	if err != nil {
		return cli.Exit(fmt.Sprintf("deploy failed: %v", err), exitDeployFailed)
	}

	if !c.Bool("quiet") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitDeployFailed)
		}
		if err := r.Render(newDeployReport(result)); err != nil {
			return cli.Exit(err.Error(), exitDeployFailed)
		}
	}
	return cli.Exit("", exitSuccess)
}

// newDeployID derives a sortable run identifier from the wall clock.
func newDeployID() string {
	return "deploy-" + time.Now().UTC().Format("20060102-150405.000")
}

// resolveReset applies flag-over-config precedence for the reset mode.
func resolveReset(c *cli.Context, cfg *config.Config) (types.ResetMode, error) {
	if v := c.String("reset"); v != "" {
		return types.ParseResetMode(v)
	}
	return cfg.ResetMode()
}

// resolveManifest returns the manifest path, or empty when incremental
// uploads are disabled.
func resolveManifest(c *cli.Context, cfg *config.Config, root string) string {
	if c.Bool("no-manifest") {
		return ""
	}
	if cfg.Manifest != "" {
		if filepath.IsAbs(cfg.Manifest) {
			return cfg.Manifest
		}
		return filepath.Join(root, cfg.Manifest)
	}
	return filepath.Join(root, DefaultManifestName)
}

// resolveCompiler builds the cross compiler, or nil when compilation is
// disabled or mpy-cross is not installed.
func resolveCompiler(c *cli.Context, cfg *config.Config) deploy.Compiler {
	if c.Bool("no-compile") {
		return nil
	}
	compiler := &mpy.CrossCompiler{
		Path: cfg.Compiler.Path,
		Args: cfg.Compiler.Args,
	}
	if err := compiler.Available(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: mpy-cross not found, uploading plain sources (%v)\n", err)
		return nil
	}
	return compiler
}

// clientFactory defers opening the serial port until the upload step so
// staging failures never touch the device.
func clientFactory(settings deviceSettings, meta *types.DeployMeta, c *cli.Context) deploy.ClientFactory {
	level := logLevel(c)
	return func(ctx context.Context) (deploy.Executor, error) {
		logger := log.NewLogger(meta, level).Sugar()
		client, err := openClient(settings, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", settings.device, err)
		}
		return client, nil
	}
}

// buildAdapter constructs the configured notification adapter, or nil
// when none is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		wcfg := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			wcfg.Retries = retries
		} else {
			wcfg.Retries = webhook.DefaultRetries
		}
		return webhook.New(wcfg)
	case "redis":
		rcfg := redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
		}
		if retries >= 0 {
			rcfg.Retries = retries
		} else {
			rcfg.Retries = redis.DefaultRetries
		}
		return redis.New(rcfg)
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}

// publishEvent emits the deploy completion event if an adapter is
// configured. Adapter failures are reported but never change the exit
// code of the deploy itself.
func publishEvent(cfg config.AdapterConfig, meta *types.DeployMeta, result *deploy.Result, startTime time.Time, deployErr error) {
	a, err := buildAdapter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: adapter config invalid, event not sent: %v\n", err)
		return
	}
	if a == nil {
		return
	}
	defer func() { _ = a.Close() }()

	event := &adapter.DeployCompletedEvent{
		Version:   types.Version,
		EventType: "deploy_completed",
		DeployID:  meta.DeployID,
		Device:    meta.Device,
		Project:   meta.Project,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if deployErr != nil {
		event.Outcome = "failed"
		event.Error = deployErr.Error()
		event.DurationMs = time.Since(startTime).Milliseconds()
	} else {
		event.Outcome = "success"
		event.FilesUploaded = result.Stats.FilesUploaded
		event.BytesUploaded = result.Stats.BytesUploaded
		event.DurationMs = result.Duration.Milliseconds()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Publish(ctx, event); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to publish deploy event: %v\n", err)
	}
}
