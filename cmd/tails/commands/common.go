package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tails/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (YAML or TOML)" default:"tails.yaml" type:"path"`
	Root    string           `short:"r" help:"Project root used when no configuration file exists" default:"." type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Compile every module and write the manifest"`
	Dev     DevCmd     `cmd:"" help:"Build, watch sources and serve with live reload"`
	Start   StartCmd   `cmd:"" help:"Serve a finished build from its manifest"`
	Inspect InspectCmd `cmd:"" help:"Show the manifest, build info and history of a build"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration file, or falls back to defaults for the project root
// when the file does not exist. mode overrides the configured mode when set.
func loadConfig(root *CLI, mode config.Mode) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(root.Config); err == nil {
		if cfg, err = config.Load(root.Config); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("No configuration file; using defaults", "path", root.Config, "root", root.Root)
		cfg = config.Default(root.Root)
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configureLogging(cfg, root.Verbose)
	return cfg, nil
}

// configureLogging applies the configured level and format. --verbose always wins.
func configureLogging(cfg *config.Config, verbose bool) {
	level := cfg.Logging.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
