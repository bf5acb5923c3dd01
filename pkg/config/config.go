package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoprune/pkg/prune"
	"github.com/platinummonkey/protoprune/pkg/rules"
)

// FileNames are the names LoadFromDir looks for, in order.
var FileNames = []string{"protoprune.yaml", ".protoprune.yaml", "protoprune.yml"}

// ErrNoSources is returned by Validate when no source root is configured.
var ErrNoSources = errors.New("at least one source root is required")

// Config holds a protoprune run's configuration.
type Config struct {
	// Sources are directories whose .proto files are all loaded.
	Sources []string `yaml:"sources"`
	// ProtoPath are directories used only to resolve imports.
	ProtoPath []string `yaml:"proto_path"`
	Roots     []string `yaml:"roots"`
	Prunes    []string `yaml:"prunes"`
	Since     string   `yaml:"since"`
	Until     string   `yaml:"until"`
	Only      string   `yaml:"only"`
	// Out is where pruned .proto files are written.
	Out         string                  `yaml:"out"`
	Modules     map[string]ModuleConfig `yaml:"modules"`
	Log         LogConfig               `yaml:"log"`
	MetricsFile string                  `yaml:"metrics_file"`
	Tracing     TracingConfig           `yaml:"tracing"`
	Watch       WatchConfig             `yaml:"watch"`
	Cache       CacheConfig             `yaml:"cache"`

	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-"`
}

// ModuleConfig is one partition of the schema.
type ModuleConfig struct {
	Roots     []string `yaml:"roots"`
	Prunes    []string `yaml:"prunes"`
	DependsOn []string `yaml:"depends_on"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Insecure       bool   `yaml:"insecure"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// Delay is how long to wait for more file events before re-running.
	Delay     time.Duration `yaml:"delay"`
	Listen    string        `yaml:"listen"`
	CacheSize int           `yaml:"cache_size"`
	// Schedule is an optional cron expression re-running the prune without file events.
	Schedule string `yaml:"schedule"`
}

// CacheConfig configures the shared parse cache. Without a Redis URL the watch command
// keeps an in-process LRU cache of Watch.CacheSize files.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Roots: []string{"*"},
		Out:   "build/pruned",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Endpoint:       "localhost:4317",
			Insecure:       true,
			ServiceName:    "protoprune",
			ServiceVersion: "dev",
		},
		Watch: WatchConfig{
			Delay:     2 * time.Second,
			Listen:    ":9464",
			CacheSize: 256,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Dir: ".",
	}
}

// Load reads a configuration file and applies environment overrides. Callers apply
// their own overrides and then call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"*"}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDir loads the first of FileNames found in dir. Without one it returns the
// defaults rooted at dir.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := Default()
	cfg.Dir = dir
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides settings from PROTOPRUNE_* environment variables.
func (c *Config) applyEnv() {
	c.Log.Level = getEnv("PROTOPRUNE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("PROTOPRUNE_LOG_FORMAT", c.Log.Format)
	c.Out = getEnv("PROTOPRUNE_OUT", c.Out)
	c.MetricsFile = getEnv("PROTOPRUNE_METRICS_FILE", c.MetricsFile)
	c.Tracing.Enabled = getEnvBool("PROTOPRUNE_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("PROTOPRUNE_TRACING_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.Insecure = getEnvBool("PROTOPRUNE_TRACING_INSECURE", c.Tracing.Insecure)
	c.Watch.Delay = getEnvDuration("PROTOPRUNE_WATCH_DELAY", c.Watch.Delay)
	c.Watch.Listen = getEnv("PROTOPRUNE_WATCH_LISTEN", c.Watch.Listen)
	c.Watch.CacheSize = getEnvInt("PROTOPRUNE_WATCH_CACHE_SIZE", c.Watch.CacheSize)
	c.Watch.Schedule = getEnv("PROTOPRUNE_WATCH_SCHEDULE", c.Watch.Schedule)
	c.Cache.RedisURL = getEnv("PROTOPRUNE_CACHE_REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvDuration("PROTOPRUNE_CACHE_TTL", c.Cache.TTL)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}
	if c.Only != "" && (c.Since != "" || c.Until != "") {
		return rules.ErrOnlyWithRange
	}
	for name, m := range c.Modules {
		for _, dep := range m.DependsOn {
			if _, ok := c.Modules[dep]; !ok {
				return fmt.Errorf("%w: %s depends on %s", prune.ErrUnknownDependency, name, dep)
			}
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Watch.Delay < 0 {
		return fmt.Errorf("watch delay must not be negative")
	}
	if c.Watch.Schedule != "" {
		if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
			return fmt.Errorf("invalid watch schedule: %w", err)
		}
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}

// PruningRules builds the rules of a single prune.
func (c *Config) PruningRules() (*rules.PruningRules, error) {
	return c.rules(c.Roots, c.Prunes)
}

// PruneModules builds one module per configured module, sorted by name. Every module
// shares the configured version bounds.
func (c *Config) PruneModules() ([]prune.Module, error) {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	modules := make([]prune.Module, 0, len(names))
	for _, name := range names {
		m := c.Modules[name]
		r, err := c.rules(m.Roots, m.Prunes)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		modules = append(modules, prune.Module{Name: name, DependsOn: m.DependsOn, Rules: r})
	}
	return modules, nil
}

func (c *Config) rules(roots, prunes []string) (*rules.PruningRules, error) {
	return rules.NewBuilder().
		AddRoot(roots...).
		AddPrune(prunes...).
		Since(c.Since).
		Until(c.Until).
		Only(c.Only).
		Build()
}

// Path resolves p against the configuration's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// SourceDirs returns the source roots resolved against Dir.
func (c *Config) SourceDirs() []string {
	return c.paths(c.Sources)
}

// ProtoPathDirs returns the proto path roots resolved against Dir.
func (c *Config) ProtoPathDirs() []string {
	return c.paths(c.ProtoPath)
}

func (c *Config) paths(dirs []string) []string {
	result := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		result = append(result, c.Path(dir))
	}
	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
