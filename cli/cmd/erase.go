package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/devfs"
	"github.com/pithecene-io/picoup/repl"
)

// EraseCommand returns the erase command.
// Removes every file and directory from the board filesystem.
func EraseCommand() *cli.Command {
	return &cli.Command{
		Name:   "erase",
		Usage:  "Erase the board filesystem",
		Flags:  DeviceFlags(),
		Action: eraseAction,
	}
}

func eraseAction(c *cli.Context) error {
	err := withClient(c, func(ctx context.Context, client *repl.Client) error {
		if _, err := client.ExecChecked(ctx, devfs.CleanFS()); err != nil {
			return err
		}
		_, err := client.ExecChecked(ctx, devfs.SyncFS())
		return err
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("erase failed: %v", err), exitDeployFailed)
	}

	fmt.Println("Board filesystem erased")
	return nil
}
