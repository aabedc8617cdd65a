package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/log"
	"github.com/pithecene-io/picoup/repl"
	"github.com/pithecene-io/picoup/types"
)

// ExecCommand returns the exec command.
// Runs a Python snippet or file on the board and prints its output.
func ExecCommand() *cli.Command {
	flags := DeviceFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:    "expr",
			Aliases: []string{"e"},
			Usage:   "Python code to execute (instead of a file argument)",
		},
	)

	return &cli.Command{
		Name:      "exec",
		Usage:     "Execute Python code on the board over the raw REPL",
		ArgsUsage: "[file.py]",
		Flags:     flags,
		Action:    execAction,
	}
}

func execAction(c *cli.Context) error {
	code := c.String("expr")
	if code == "" {
		if c.NArg() != 1 {
			return cli.Exit("exec requires a file argument or --expr", exitDeployFailed)
		}
		data, err := os.ReadFile(c.Args().First())
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot read script: %v", err), exitDeployFailed)
		}
		code = string(data)
	}

	result, err := runOnDevice(c, code)
	if err != nil {
		return cli.Exit(fmt.Sprintf("exec failed: %v", err), exitDeployFailed)
	}

	if result.Output != "" {
		fmt.Print(result.Output)
	}
	if result.Failed() {
		fmt.Fprint(os.Stderr, result.Exception)
		return cli.Exit("", exitDeployFailed)
	}
	return nil
}

// withClient opens the serial link and runs fn inside a signal-aware
// context. Shared by exec, erase, and ls.
func withClient(c *cli.Context, fn func(ctx context.Context, client *repl.Client) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	settings, err := resolveDevice(c, cfg)
	if err != nil {
		return err
	}

	meta := &types.DeployMeta{
		DeployID: newDeployID(),
		Device:   settings.device,
		Project:  cfg.Project,
	}
	logger := log.NewLogger(meta, logLevel(c)).Sugar()

	client, err := openClient(settings, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", settings.device, err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return fn(ctx, client)
}

// runOnDevice executes one snippet and returns the raw result without
// checking the remote exception.
func runOnDevice(c *cli.Context, code string) (repl.ExecResult, error) {
	var result repl.ExecResult
	err := withClient(c, func(ctx context.Context, client *repl.Client) error {
		var execErr error
		result, execErr = client.Exec(ctx, code)
		return execErr
	})
	return result, err
}
