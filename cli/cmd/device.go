package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/picoup/cli/config"
	"github.com/pithecene-io/picoup/log"
	"github.com/pithecene-io/picoup/repl"
	"github.com/pithecene-io/picoup/transport"
)

// deviceSettings is the resolved serial link configuration after applying
// flag-over-config precedence.
type deviceSettings struct {
	device  string
	baud    int
	timeout time.Duration
}

// loadConfig loads the config file named by --config.
// A missing file is not an error for device commands: an empty config is
// returned so flags alone can drive the link.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return &config.Config{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// resolveDevice applies flag-over-config precedence for the serial link.
func resolveDevice(c *cli.Context, cfg *config.Config) (deviceSettings, error) {
	s := deviceSettings{
		device:  cfg.Device,
		baud:    cfg.Baud,
		timeout: cfg.Timeout.Duration,
	}
	if v := c.String("device"); v != "" {
		s.device = v
	}
	if v := c.Int("baud"); v > 0 {
		s.baud = v
	}
	if v := c.Duration("timeout"); v > 0 {
		s.timeout = v
	}
	if s.device == "" {
		return s, fmt.Errorf("no serial device configured (use --device or set device in %s)", c.String("config"))
	}
	return s, nil
}

// openClient opens the serial transport and wraps it in a REPL client.
func openClient(s deviceSettings, logger *log.SugaredLogger) (*repl.Client, error) {
	t, err := transport.Open(transport.Config{
		Device:  s.device,
		Baud:    s.baud,
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}
	return repl.NewClient(t, repl.WithLogger(logger)), nil
}
