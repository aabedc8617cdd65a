package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/picoup/project"
	"github.com/pithecene-io/picoup/types"
)

// Config represents a picoup.yaml configuration file.
// All values are optional and act as defaults for picoup deploy flags.
// CLI flags always override config values.
type Config struct {
	Project  string         `yaml:"project"`
	Device   string         `yaml:"device"`
	Baud     int            `yaml:"baud"`
	Timeout  Duration       `yaml:"timeout"`
	Deploy   DeployConfig   `yaml:"deploy"`
	Compiler CompilerConfig `yaml:"compiler"`
	Manifest string         `yaml:"manifest"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// DeployConfig holds deployment defaults from the config file.
type DeployConfig struct {
	// Files are include globs for files copied into the image.
	Files []string `yaml:"files"`
	// Exclude are globs removed from the copy set.
	Exclude []string `yaml:"exclude"`
	// Scripts are include globs for files cross-compiled in the image.
	Scripts []string `yaml:"scripts"`
	// ScriptsExclude are globs removed from the compile set.
	ScriptsExclude []string `yaml:"scripts_exclude"`
	KeepSource     bool     `yaml:"keep_source"`
	ImageDir       string   `yaml:"image_dir"`
	Clean          bool     `yaml:"clean"`
	Reset          string   `yaml:"reset"`
}

// CompilerConfig holds mpy-cross defaults from the config file.
type CompilerConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// AdapterConfig holds deploy notification defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ResetMode validates and returns the configured reset mode.
// An unset value defaults to a soft reset.
func (c *Config) ResetMode() (types.ResetMode, error) {
	if c.Deploy.Reset == "" {
		return types.ResetSoft, nil
	}
	return types.ParseResetMode(c.Deploy.Reset)
}

// DiscoveryProject converts the deploy globs into a project discovery
// definition. Unset include sets fall back to every .py file.
func (c *Config) DiscoveryProject() project.Project {
	files := c.Deploy.Files
	if len(files) == 0 {
		files = []string{project.DefaultFilePattern}
	}
	scripts := c.Deploy.Scripts
	if len(scripts) == 0 {
		scripts = []string{project.DefaultFilePattern}
	}
	return project.Project{
		Files:   project.FileSet{Include: files, Exclude: c.Deploy.Exclude},
		Scripts: project.FileSet{Include: scripts, Exclude: c.Deploy.ScriptsExclude},
	}
}
