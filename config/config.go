/*
Package config loads process configuration for the server and CLI.

SOURCES (later wins):
  1. Built-in defaults
  2. Optional config file (YAML, TOML or JSON, by extension)
  3. Environment variables prefixed CASHFLOW_, with "." in keys replaced by
     "_" (CASHFLOW_SERVER_PORT, CASHFLOW_FORECAST_MODE, ...)

A .env file in the working directory is loaded into the environment first
when present. GEMINI_API_KEY is honoured as an alias for
CASHFLOW_EXTRACTION_API_KEY.
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/warp/cashflow-engine/cashflow"
)

const envPrefix = "CASHFLOW"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Forecast   ForecastConfig   `mapstructure:"forecast"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c ServerConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DatabaseConfig selects the project store. Driver "memory" keeps everything
// in process and ignores Path.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ExtractionConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c ExtractionConfig) Enabled() bool { return c.APIKey != "" }

type ForecastConfig struct {
	Mode        string `mapstructure:"mode"`
	LongLagDays int    `mapstructure:"long_lag_days"`
}

// Options turns the forecast defaults into engine options.
func (c ForecastConfig) Options() cashflow.Options {
	mode, _ := cashflow.ParseMode(c.Mode)
	return cashflow.Options{Mode: mode, LongLagDays: c.LongLagDays}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "cashflow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.model", "gemini-2.0-flash")
	v.SetDefault("extraction.timeout", 60*time.Second)
	v.SetDefault("forecast.mode", string(cashflow.ModeCompact))
	v.SetDefault("forecast.long_lag_days", cashflow.DefaultLongLagDays)
}

// Load reads configuration from defaults, the optional file at path, and the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("extraction.api_key", envPrefix+"_EXTRACTION_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env files into the environment. Missing files are not an
// error; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Driver != DriverSQLite && c.Database.Driver != DriverMemory {
		return fmt.Errorf("database.driver %q: want %s or %s", c.Database.Driver, DriverSQLite, DriverMemory)
	}
	if _, ok := cashflow.ParseMode(c.Forecast.Mode); !ok {
		return fmt.Errorf("forecast.mode %q: want compact or dense", c.Forecast.Mode)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Logger builds the process logger. Pretty selects human-readable console
// output instead of JSON lines.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
