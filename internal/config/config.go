package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// Config is the tails project configuration. One Config drives one module handler.
type Config struct {
	RootDir      string            `yaml:"root_dir" toml:"root_dir"`
	SrcDir       string            `yaml:"src_dir,omitempty" toml:"src_dir"`
	BuildDir     string            `yaml:"build_dir,omitempty" toml:"build_dir"`
	Mode         Mode              `yaml:"mode" toml:"mode"`
	Building     bool              `yaml:"building,omitempty" toml:"building"`
	Reload       bool              `yaml:"reload,omitempty" toml:"reload"`
	StaticRoutes []string          `yaml:"static_routes,omitempty" toml:"static_routes"`
	ImportMap    map[string]string `yaml:"import_map,omitempty" toml:"import_map"`
	Runtime      RuntimeConfig     `yaml:"runtime" toml:"runtime"`
	Remote       RemoteConfig      `yaml:"remote" toml:"remote"`
	Watch        WatchConfig       `yaml:"watch" toml:"watch"`
	Logging      LoggingConfig     `yaml:"logging" toml:"logging"`
	Metrics      MetricsConfig     `yaml:"metrics" toml:"metrics"`
	History      HistoryConfig     `yaml:"history" toml:"history"`
	Notify       NotifyConfig      `yaml:"notify" toml:"notify"`
	Server       ServerConfig      `yaml:"server" toml:"server"`
}

// RuntimeConfig lists the browser runtime libraries fetched into the build directory.
type RuntimeConfig struct {
	React          string `yaml:"react" toml:"react"`
	ReactDOM       string `yaml:"react_dom" toml:"react_dom"`
	ReactDOMServer string `yaml:"react_dom_server" toml:"react_dom_server"`
}

// RemoteConfig configures fetching of http(s) imports.
type RemoteConfig struct {
	Cache     string        `yaml:"cache" toml:"cache"` // fs|redis|none
	CacheDir  string        `yaml:"cache_dir,omitempty" toml:"cache_dir"`
	RedisAddr string        `yaml:"redis_addr,omitempty" toml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty" toml:"cache_ttl"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout"`
	Retry     RetryConfig   `yaml:"retry" toml:"retry"`
}

// RetryConfig holds raw retry settings; see retry.NewPolicy.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff" toml:"backoff"`
	Initial    time.Duration    `yaml:"initial" toml:"initial"`
	Max        time.Duration    `yaml:"max" toml:"max"`
	MaxRetries int              `yaml:"max_retries" toml:"max_retries"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level" toml:"level"`
	Format LogFormat `yaml:"format" toml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen,omitempty" toml:"listen"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path,omitempty" toml:"path"`
}

type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" toml:"nats_url"`
	Subject string `yaml:"subject,omitempty" toml:"subject"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
}

// Default returns a configuration for the project at rootDir with all defaults applied.
func Default(rootDir string) *Config {
	cfg := &Config{RootDir: rootDir}
	_ = NewDefaultApplier().ApplyDefaults(cfg)
	return cfg
}

// Load reads the configuration file at configPath. Environment files are loaded first and
// ${VAR} references in the file are expanded. The format is chosen by extension (.toml or YAML).
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return Parse(configPath, data)
}

// Parse decodes raw configuration bytes. name selects the decoder and is used in errors.
func Parse(name string, data []byte) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	var err error
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		_, err = toml.NewDecoder(bytes.NewReader(expanded)).Decode(&cfg)
	} else {
		err = yaml.Unmarshal(expanded, &cfg)
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to decode config").
			Fatal().
			WithContext("path", name).
			Build()
	}

	if cfg.RootDir == "" {
		cfg.RootDir = filepath.Dir(name)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := NewDefaultApplier().ApplyDefaults(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to apply defaults").Build()
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid mode").Build()
	}
	c.Mode = mode
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
	c.Remote.Retry.Backoff = NormalizeRetryBackoff(string(c.Remote.Retry.Backoff))
	return nil
}

// Validate checks the configuration is usable. A missing source directory is fatal.
func (c *Config) Validate() error {
	info, err := os.Stat(c.SrcDir)
	if err != nil || !info.IsDir() {
		return errors.ConfigError("source directory not found").
			WithContext("path", c.SrcDir).
			WithCause(err).
			Build()
	}
	switch c.Remote.Cache {
	case RemoteCacheFS, RemoteCacheNone:
	case RemoteCacheRedis:
		if c.Remote.RedisAddr == "" {
			return errors.ConfigError("remote.redis_addr is required when remote.cache is redis").Build()
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unsupported remote.cache %q", c.Remote.Cache)).Build()
	}
	for spec, target := range c.ImportMap {
		if spec == "" || target == "" {
			return errors.ConfigError("import_map entries must have a specifier and a target").Build()
		}
	}
	return nil
}

// IsDev reports whether modules are compiled on demand rather than loaded from the manifest.
func (c *Config) IsDev() bool {
	return c.Mode == ModeDevelopment
}

// AssetDir is the directory module keys are relative to: sources while developing or
// building, the build directory when serving a finished build.
func (c *Config) AssetDir() string {
	if c.IsDev() || c.Building {
		return c.SrcDir
	}
	return c.BuildDir
}

// ManifestPath is the fixed manifest location under the build directory.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.BuildDir, ManifestFileName)
}

// BuildInfoPath is where the last full build's record is written.
func (c *Config) BuildInfoPath() string {
	return filepath.Join(c.BuildDir, BuildInfoFileName)
}
