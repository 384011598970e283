package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	PublishModeLink = "link"
	PublishModeCopy = "copy"

	MediaURLPath = "/media/plugins"

	EnvPrefix   = "PLUGINMEDIA_"
	EnvFileName = ".env"

	defaultListen           = ":8080"
	defaultURL              = "http://localhost:8080"
	defaultPluginsDir       = "plugins"
	defaultMediaDir         = "media"
	defaultManifestFileName = "plugin.yml"
	defaultReadmeFileName   = "README.md"
	defaultAssetsDirName    = "assets"
	defaultWorkers          = 4
	defaultDumpFileName     = "counters.yml"
)

type PluginsConfig struct {
	Dir              string `yaml:"dir"`
	Workers          int    `yaml:"workers"`
	ManifestFileName string `yaml:"manifest_filename"`
	ReadmeFileName   string `yaml:"readme_filename"`
	AssetsDirName    string `yaml:"assets_dirname"`
}

type MediaConfig struct {
	Dir         string `yaml:"dir"`
	PublishMode string `yaml:"publish_mode"`
}

type Config struct {
	URL           string        `yaml:"url"`
	Listen        string        `yaml:"listen"`
	LogLevel      string        `yaml:"log_level"`
	RedisURL      string        `yaml:"redis_url"`
	DumpFileName  string        `yaml:"dump_filename"`
	PageTemplate  string        `yaml:"page_template"` // Built-in template when empty
	PluginsConfig PluginsConfig `yaml:"plugins"`
	MediaConfig   MediaConfig   `yaml:"media"`
}

// PluginMediaDir is where the assets of all plugins are published.
func (c *Config) PluginMediaDir() string {
	return filepath.Join(c.MediaConfig.Dir, "plugins")
}

func (c *Config) SetDefaults() {
	c.URL = defaultURL
	c.Listen = defaultListen
	c.LogLevel = LogLevelInfo
	c.DumpFileName = defaultDumpFileName
	c.PluginsConfig = PluginsConfig{
		Dir:              defaultPluginsDir,
		Workers:          defaultWorkers,
		ManifestFileName: defaultManifestFileName,
		ReadmeFileName:   defaultReadmeFileName,
		AssetsDirName:    defaultAssetsDirName,
	}
	c.MediaConfig = MediaConfig{
		Dir:         defaultMediaDir,
		PublishMode: PublishModeLink,
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %q", c.LogLevel))
	}

	switch c.MediaConfig.PublishMode {
	case PublishModeLink, PublishModeCopy:
	default:
		errs = append(errs, fmt.Errorf("unknown publish mode: %q", c.MediaConfig.PublishMode))
	}

	if c.PluginsConfig.Dir == "" {
		errs = append(errs, fmt.Errorf("plugins dir must be set"))
	}

	if c.MediaConfig.Dir == "" {
		errs = append(errs, fmt.Errorf("media dir must be set"))
	}

	if c.PluginsConfig.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.PluginsConfig.Workers))
	}

	return errors.Join(errs...)
}

// Load reads the config file on top of the defaults. A .env file next to the
// config is loaded into the environment first, then PLUGINMEDIA_* variables
// override file values.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	envFile := filepath.Join(filepath.Dir(path), EnvFileName)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("cannot load env file %s: %w", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Symlink targets must not depend on the working directory.
	for _, dir := range []*string{&cfg.PluginsConfig.Dir, &cfg.MediaConfig.Dir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", *dir, err)
		}
		*dir = abs
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"URL":           &c.URL,
		"LISTEN":        &c.Listen,
		"LOG_LEVEL":     &c.LogLevel,
		"REDIS_URL":     &c.RedisURL,
		"DUMP_FILENAME": &c.DumpFileName,
		"PAGE_TEMPLATE": &c.PageTemplate,
		"PLUGINS_DIR":   &c.PluginsConfig.Dir,
		"MEDIA_DIR":     &c.MediaConfig.Dir,
		"PUBLISH_MODE":  &c.MediaConfig.PublishMode,
	}

	for name, dst := range strVars {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = val
		}
	}

	if val, ok := os.LookupEnv(EnvPrefix + "WORKERS"); ok {
		workers, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("cannot parse %sWORKERS: %w", EnvPrefix, err)
		}
		c.PluginsConfig.Workers = workers
	}

	return nil
}
