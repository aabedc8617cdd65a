// Package cmd provides CLI commands for the picoup binary.
package cmd

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/picoup/cli/config"
)

// Shared flags for every command that talks to a device.
var (
	// ConfigFlag points at the project config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the project config file",
		Value:   config.DefaultPath,
	}

	// DeviceFlag selects the serial device, overriding the config file.
	DeviceFlag = &cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "Serial device to communicate with the board (e.g. /dev/ttyACM0)",
	}

	// BaudFlag overrides the serial baud rate.
	BaudFlag = &cli.IntFlag{
		Name:  "baud",
		Usage: "Serial baud rate",
	}

	// TimeoutFlag overrides the serial read timeout.
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Serial read timeout (e.g. 2s)",
	}

	// VerboseFlag raises log verbosity; may be given more than once.
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Increase verbosity, can be specified more than once",
	}

	// FormatFlag selects the output format.
	// Defaults to text on a TTY and json otherwise.
	FormatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: text, json, or yaml",
	}
)

// DeviceFlags returns the shared flags for device-facing commands.
func DeviceFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		DeviceFlag,
		BaudFlag,
		TimeoutFlag,
		VerboseFlag,
	}
}

// logLevel maps -v occurrences to a zap level.
// Default is warn so routine protocol chatter stays quiet.
func logLevel(c *cli.Context) zapcore.Level {
	switch c.Count("verbose") {
	case 0:
		return zapcore.WarnLevel
	case 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
