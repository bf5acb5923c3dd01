package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoprune/pkg/prune"
	"github.com/platinummonkey/protoprune/pkg/rules"
)

const sampleConfig = `sources: [protos]
proto_path: [third_party, /usr/include]
roots: ["squareup.*"]
prunes: ["squareup.Old"]
since: "20"
until: "30"
out: build/pruned
modules:
  common:
    roots: ["common.*"]
  app:
    roots: ["app.*"]
    prunes: ["app.Legacy"]
    depends_on: [common]
log:
  level: debug
  format: json
metrics_file: build/metrics.prom
tracing:
  enabled: true
  endpoint: "collector:4317"
watch:
  delay: 500ms
  listen: ":9000"
  cache_size: 64
  schedule: "@every 1h"
cache:
  redis_url: redis://localhost:6379/0
  ttl: 1h
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, "protoprune.yaml", sampleConfig)

	cfg, err := Load(filepath.Join(dir, "protoprune.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"protos"}, cfg.Sources)
	assert.Equal(t, []string{"squareup.*"}, cfg.Roots)
	assert.Equal(t, []string{"squareup.Old"}, cfg.Prunes)
	assert.Equal(t, "20", cfg.Since)
	assert.Equal(t, "30", cfg.Until)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "build/metrics.prom", cfg.MetricsFile)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "protoprune", cfg.Tracing.ServiceName, "unset values keep their defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Delay)
	assert.Equal(t, ":9000", cfg.Watch.Listen)
	assert.Equal(t, 64, cfg.Watch.CacheSize)
	assert.Equal(t, "@every 1h", cfg.Watch.Schedule)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)

	assert.Equal(t, []string{filepath.Join(dir, "protos")}, cfg.SourceDirs())
	assert.Equal(t, []string{filepath.Join(dir, "third_party"), "/usr/include"}, cfg.ProtoPathDirs())
	assert.Equal(t, filepath.Join(dir, "build/pruned"), cfg.Path(cfg.Out))

	require.Len(t, cfg.Modules, 2)
	assert.Equal(t, []string{"common"}, cfg.Modules["app"].DependsOn)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	dir := writeConfig(t, "protoprune.yaml", "sources: [protos\n")
	_, err = Load(filepath.Join(dir, "protoprune.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadFromDir(t *testing.T) {
	for _, name := range FileNames {
		t.Run(name, func(t *testing.T) {
			dir := writeConfig(t, name, "sources: [src]\n")
			cfg, err := LoadFromDir(dir)
			require.NoError(t, err)
			assert.Equal(t, []string{"src"}, cfg.Sources)
			assert.Equal(t, []string{"*"}, cfg.Roots)
			assert.Equal(t, dir, cfg.Dir)
		})
	}

	t.Run("no file", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadFromDir(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.Dir)
		assert.Empty(t, cfg.Sources)
		assert.ErrorIs(t, cfg.Validate(), ErrNoSources)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROTOPRUNE_LOG_LEVEL", "warn")
	t.Setenv("PROTOPRUNE_LOG_FORMAT", "json")
	t.Setenv("PROTOPRUNE_OUT", "/tmp/out")
	t.Setenv("PROTOPRUNE_TRACING_ENABLED", "1")
	t.Setenv("PROTOPRUNE_WATCH_DELAY", "3s")
	t.Setenv("PROTOPRUNE_WATCH_CACHE_SIZE", "not a number")
	t.Setenv("PROTOPRUNE_CACHE_REDIS_URL", "redis://cache:6379/1")

	dir := writeConfig(t, "protoprune.yaml", sampleConfig)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/out", cfg.Path(cfg.Out))
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Watch.Delay)
	assert.Equal(t, 64, cfg.Watch.CacheSize, "invalid values keep the file's setting")
	assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
		wantMsg string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "no sources",
			modify:  func(c *Config) { c.Sources = nil },
			wantErr: ErrNoSources,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantMsg: "invalid log level",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantMsg: "invalid log format",
		},
		{
			name: "only with since",
			modify: func(c *Config) {
				c.Only = "20"
				c.Since = "10"
			},
			wantErr: rules.ErrOnlyWithRange,
		},
		{
			name: "unknown module dependency",
			modify: func(c *Config) {
				c.Modules = map[string]ModuleConfig{"app": {DependsOn: []string{"common"}}}
			},
			wantErr: prune.ErrUnknownDependency,
		},
		{
			name: "tracing without endpoint",
			modify: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Endpoint = ""
			},
			wantMsg: "tracing endpoint is required",
		},
		{
			name:    "negative watch delay",
			modify:  func(c *Config) { c.Watch.Delay = -time.Second },
			wantMsg: "watch delay",
		},
		{
			name:    "invalid watch schedule",
			modify:  func(c *Config) { c.Watch.Schedule = "every tuesday" },
			wantMsg: "invalid watch schedule",
		},
		{
			name:    "negative cache ttl",
			modify:  func(c *Config) { c.Cache.TTL = -time.Minute },
			wantMsg: "cache ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sources = []string{"protos"}
			tt.modify(cfg)

			err := cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestPruningRules(t *testing.T) {
	cfg := Default()
	cfg.Roots = []string{"squareup.*"}
	cfg.Prunes = []string{"squareup.Old"}
	cfg.Since = "20"

	r, err := cfg.PruningRules()
	require.NoError(t, err)
	assert.Equal(t, []string{"squareup.*"}, r.Roots())
	assert.Equal(t, []string{"squareup.Old"}, r.Prunes())
	assert.Equal(t, "20", r.Since())

	cfg.Until = "10"
	_, err = cfg.PruningRules()
	assert.ErrorIs(t, err, rules.ErrInvertedVersions)
}

func TestPruneModules(t *testing.T) {
	dir := writeConfig(t, "protoprune.yaml", sampleConfig)
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	modules, err := cfg.PruneModules()
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, "app", modules[0].Name)
	assert.Equal(t, []string{"common"}, modules[0].DependsOn)
	assert.Equal(t, []string{"app.*"}, modules[0].Rules.Roots())
	assert.Equal(t, []string{"app.Legacy"}, modules[0].Rules.Prunes())
	assert.Equal(t, "20", modules[0].Rules.Since())

	assert.Equal(t, "common", modules[1].Name)
	assert.Empty(t, modules[1].DependsOn)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PROTOPRUNE_TEST_STRING", "custom")
	t.Setenv("PROTOPRUNE_TEST_BOOL", "TRUE")
	t.Setenv("PROTOPRUNE_TEST_INT", "42")
	t.Setenv("PROTOPRUNE_TEST_DURATION", "invalid")

	assert.Equal(t, "custom", getEnv("PROTOPRUNE_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("PROTOPRUNE_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("PROTOPRUNE_TEST_BOOL", false))
	assert.True(t, getEnvBool("PROTOPRUNE_TEST_UNSET", true))
	assert.Equal(t, 42, getEnvInt("PROTOPRUNE_TEST_INT", 10))
	assert.Equal(t, time.Minute, getEnvDuration("PROTOPRUNE_TEST_DURATION", time.Minute))
}
