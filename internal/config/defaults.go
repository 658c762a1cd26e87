package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultBuildDirName = ".tails"
	ManifestFileName    = "manifest.json"
	BuildInfoFileName   = "build.json"
	DefaultDebounce     = 500 * time.Millisecond

	DefaultReactURL          = "https://esm.sh/react@17.0.1"
	DefaultReactDOMURL       = "https://esm.sh/react-dom@17.0.1"
	DefaultReactDOMServerURL = "https://esm.sh/react-dom@17.0.1/server"

	RemoteCacheFS    = "fs"
	RemoteCacheRedis = "redis"
	RemoteCacheNone  = "none"
)

// ConfigDefaultApplier applies defaults for one configuration domain.
type ConfigDefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// PathsDefaultApplier resolves root, source and build directories to absolute paths.
type PathsDefaultApplier struct{}

func (p *PathsDefaultApplier) Domain() string { return "paths" }

func (p *PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	abs, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return err
	}
	cfg.RootDir = abs
	cfg.SrcDir = underRoot(cfg.RootDir, cfg.SrcDir, "src")
	cfg.BuildDir = underRoot(cfg.RootDir, cfg.BuildDir, DefaultBuildDirName)
	if cfg.Mode == "" {
		cfg.Mode = ModeDevelopment
	}
	return nil
}

func underRoot(root, dir, fallback string) string {
	switch {
	case dir == "":
		return filepath.Join(root, fallback)
	case filepath.IsAbs(dir):
		return filepath.Clean(dir)
	default:
		return filepath.Join(root, dir)
	}
}

// RuntimeDefaultApplier fills in the runtime library URLs.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Runtime.React == "" {
		cfg.Runtime.React = DefaultReactURL
	}
	if cfg.Runtime.ReactDOM == "" {
		cfg.Runtime.ReactDOM = DefaultReactDOMURL
	}
	if cfg.Runtime.ReactDOMServer == "" {
		cfg.Runtime.ReactDOMServer = DefaultReactDOMServerURL
	}
	return nil
}

// RemoteDefaultApplier handles remote fetch defaults.
type RemoteDefaultApplier struct{}

func (r *RemoteDefaultApplier) Domain() string { return "remote" }

func (r *RemoteDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Remote.Cache == "" {
		cfg.Remote.Cache = RemoteCacheFS
	}
	if cfg.Remote.Cache == RemoteCacheFS && cfg.Remote.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.Remote.CacheDir = filepath.Join(dir, "tails")
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 30 * time.Second
	}
	if cfg.Remote.Retry.Backoff == "" {
		cfg.Remote.Retry.Backoff = RetryBackoffExponential
	}
	if cfg.Remote.Retry.Initial <= 0 {
		cfg.Remote.Retry.Initial = 500 * time.Millisecond
	}
	if cfg.Remote.Retry.Max <= 0 {
		cfg.Remote.Retry.Max = 5 * time.Second
	}
	// zero means unset; a negative value disables retries
	switch {
	case cfg.Remote.Retry.MaxRetries == 0:
		cfg.Remote.Retry.MaxRetries = 2
	case cfg.Remote.Retry.MaxRetries < 0:
		cfg.Remote.Retry.MaxRetries = 0
	}
	return nil
}

// WatchDefaultApplier handles watch loop defaults.
type WatchDefaultApplier struct{}

func (w *WatchDefaultApplier) Domain() string { return "watch" }

func (w *WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	return nil
}

// MonitoringDefaultApplier handles logging, metrics, history, notify and server defaults.
type MonitoringDefaultApplier struct{}

func (m *MonitoringDefaultApplier) Domain() string { return "monitoring" }

func (m *MonitoringDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9464"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.BuildDir, "history.db")
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "tails.changes"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}
	return nil
}
