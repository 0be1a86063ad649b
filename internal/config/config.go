// Package config loads layered configuration: built-in defaults, an optional
// .env file, a YAML file and MSL_ environment overrides, then validates.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"microstructure-lab/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. MSL_ENGINE_SPREAD_WINDOW.
const EnvPrefix = "MSL"

// Config represents the complete application configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Tracing TracingConfig `yaml:"tracing" envconfig:"TRACING"`
}

// EngineConfig holds the default analysis parameters.
type EngineConfig struct {
	SpreadWindow int     `yaml:"spread_window" envconfig:"SPREAD_WINDOW" validate:"gt=0"`
	VolWindow    int     `yaml:"vol_window" envconfig:"VOL_WINDOW" validate:"gt=0"`
	DepthWindow  int     `yaml:"depth_window" envconfig:"DEPTH_WINDOW" validate:"gt=0"`
	ZThreshold   float64 `yaml:"z_threshold" envconfig:"Z_THRESHOLD"`
	DepthFactor  float64 `yaml:"depth_factor" envconfig:"DEPTH_FACTOR" validate:"gt=0"`
	Horizon      int     `yaml:"horizon" envconfig:"HORIZON" validate:"gt=0"`
	Parallel     bool    `yaml:"parallel" envconfig:"PARALLEL"`
}

// StorageConfig selects the stores.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	ClickHouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
	UseMemory     bool   `yaml:"use_memory" envconfig:"USE_MEMORY"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	MetricsAddr     string        `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gte=0"`
	CacheEntries    int           `yaml:"cache_entries" envconfig:"CACHE_ENTRIES" validate:"gt=0"`
}

// OutputConfig controls exports.
type OutputConfig struct {
	Dir  string `yaml:"dir" envconfig:"DIR" validate:"required"`
	XLSX bool   `yaml:"xlsx" envconfig:"XLSX"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
}

// TracingConfig toggles stdout span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := domain.DefaultParams()
	return Config{
		Engine: EngineConfig{
			SpreadWindow: p.SpreadWindow,
			VolWindow:    p.VolWindow,
			DepthWindow:  p.DepthWindow,
			ZThreshold:   p.ZThreshold,
			DepthFactor:  p.DepthFactor,
			Horizon:      p.Horizon,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CacheEntries:    32,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Params returns the engine section as analysis parameters.
func (e EngineConfig) Params() domain.Params {
	return domain.Params{
		SpreadWindow: e.SpreadWindow,
		VolWindow:    e.VolWindow,
		DepthWindow:  e.DepthWindow,
		ZThreshold:   e.ZThreshold,
		DepthFactor:  e.DepthFactor,
		Horizon:      e.Horizon,
	}
}

// LoadOptions locates configuration sources.
type LoadOptions struct {
	// File is a YAML file. Empty skips it; a set but missing file is an error.
	File string

	// EnvFile is a dotenv file loaded into the process environment without
	// overriding variables already set. A missing file is ignored.
	EnvFile string
}

// Load builds the configuration from defaults, files and the environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", opts.File, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags, then cross-field rules.
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if err := c.Engine.Params().Validate(); err != nil {
		return err
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst == 0 {
		return errors.New("server.rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if c.Storage.UseMemory && (c.Storage.PostgresDSN != "" || c.Storage.ClickHouseDSN != "") {
		return errors.New("storage.use_memory cannot be combined with database DSNs")
	}
	return nil
}
