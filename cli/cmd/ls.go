package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/cli/render"
	"github.com/pithecene-io/picoup/devfs"
	"github.com/pithecene-io/picoup/repl"
)

// ListCommand returns the ls command.
// Prints every file path on the board filesystem, one per line.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:   "ls",
		Usage:  "List files on the board filesystem",
		Flags:  append(DeviceFlags(), FormatFlag),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitDeployFailed)
	}

	var paths []string
	err = withClient(c, func(ctx context.Context, client *repl.Client) error {
		result, err := client.ExecChecked(ctx, devfs.ListFS())
		if err != nil {
			return err
		}
		paths = splitDeviceLines(result.Output)
		return nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("ls failed: %v", err), exitDeployFailed)
	}
	return r.Render(paths)
}

// splitDeviceLines splits REPL output into trimmed non-empty lines.
// The device terminates lines with CRLF.
func splitDeviceLines(output string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
