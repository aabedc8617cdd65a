package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/cli/render"
	"github.com/pithecene-io/picoup/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Text renders the one-line human form.
func (v VersionResponse) Text() string {
	return fmt.Sprintf("picoup %s (commit: %s)\n", v.Version, v.Commit)
}

// VersionCommand returns the version command.
// It must not touch the serial device.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{Version: types.Version, Commit: commit})
		},
	}
}
