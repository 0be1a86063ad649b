package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructure-lab/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultParams(), cfg.Engine.Params())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
engine:
  spread_window: 30
  z_threshold: 2.5
server:
  read_timeout: 5s
output:
  dir: out
  xlsx: true
logging:
  level: debug
  format: json
`)

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Engine.SpreadWindow)
	assert.Equal(t, 2.5, cfg.Engine.ZThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, domain.DefaultVolWindow, cfg.Engine.VolWindow)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.True(t, cfg.Output.XLSX)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "engine:\n  spread_window: 30\n")
	t.Setenv("MSL_ENGINE_SPREAD_WINDOW", "45")
	t.Setenv("MSL_ENGINE_PARALLEL", "true")
	t.Setenv("MSL_SERVER_ADDR", ":9999")

	cfg, err := Load(LoadOptions{File: path})
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Engine.SpreadWindow)
	assert.True(t, cfg.Engine.Parallel)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "MSL_OUTPUT_DIR=from-dotenv\n")
	t.Setenv("MSL_OUTPUT_DIR", "")
	os.Unsetenv("MSL_OUTPUT_DIR")

	cfg, err := Load(LoadOptions{EnvFile: envPath})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Output.Dir)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "engine: [unclosed\n")
	_, err := Load(LoadOptions{File: path})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero window", func(c *Config) { c.Engine.DepthWindow = 0 }, "engine.depth_window"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"empty output", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"burst required", func(c *Config) { c.Server.RateLimitBurst = 0 }, "rate_limit_burst"},
		{"rate limit off", func(c *Config) { c.Server.RateLimitRPS = 0; c.Server.RateLimitBurst = 0 }, ""},
		{"memory and dsn", func(c *Config) {
			c.Storage.UseMemory = true
			c.Storage.PostgresDSN = "postgres://localhost/db"
		}, "use_memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NaNThreshold(t *testing.T) {
	t.Setenv("MSL_ENGINE_Z_THRESHOLD", "NaN")
	_, err := Load(LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("rows", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "expected json output, got %q", out)
	assert.Contains(t, out, `"rows":3`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
