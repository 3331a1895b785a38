// Package config loads process settings from the environment and scan
// tunables from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Scan holds the scan-session tunables. Durations are in milliseconds.
type Scan struct {
	AssignIntervalMS      int    `toml:"assign_interval_ms"`
	QualifyIntervalMS     int    `toml:"qualify_interval_ms"`
	DeliverIntervalMS     int    `toml:"deliver_interval_ms"`
	LookupIntervalMS      int    `toml:"lookup_interval_ms"`
	FlushDelayMS          int    `toml:"flush_delay_ms"`
	ConfirmTimeoutSeconds int    `toml:"confirm_timeout_seconds"`
	Area                  string `toml:"area"`
}

// Logging holds log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the resolved application configuration.
type Config struct {
	Addr           string  `toml:"-"`
	SQLitePath     string  `toml:"-"`
	MigrationsDir  string  `toml:"-"`
	StoreDriver    string  `toml:"-"`
	DatabaseURL    string  `toml:"-"`
	Env            string  `toml:"-"`
	Scan           Scan    `toml:"scan"`
	Logging        Logging `toml:"logging"`
	ConfigPath     string  `toml:"-"`
	ConfigFileUsed bool    `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:        ":8080",
		SQLitePath:  "packtrack.db",
		StoreDriver: DriverSQLite,
		Env:         "development",
		Scan: Scan{
			AssignIntervalMS:      500,
			QualifyIntervalMS:     2000,
			DeliverIntervalMS:     1500,
			LookupIntervalMS:      2000,
			FlushDelayMS:          150,
			ConfirmTimeoutSeconds: 0,
			Area:                  "QUALITY CHECK",
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// LoadDotEnv reads .env into the environment when present. Variables already
// set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load resolves defaults, then the TOML file named by PACKTRACK_CONFIG (or
// path when set), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	cfg.Addr = getenv("APP_ADDR", cfg.Addr)
	cfg.SQLitePath = getenv("SQLITE_PATH", cfg.SQLitePath)
	cfg.MigrationsDir = getenv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.StoreDriver = strings.ToLower(getenv("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Env = getenv("APP_ENV", cfg.Env)

	if path == "" {
		path = os.Getenv("PACKTRACK_CONFIG")
	}
	if path != "" {
		cfg.ConfigPath = path
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.ConfigFileUsed = true
		}
	}

	cfg.Logging.Level = getenv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getenv("LOG_FORMAT", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH must be set for the sqlite store")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL must be set when STORE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER: unsupported value %q", c.StoreDriver)
	}

	intervals := map[string]int{
		"scan.assign_interval_ms":  c.Scan.AssignIntervalMS,
		"scan.qualify_interval_ms": c.Scan.QualifyIntervalMS,
		"scan.deliver_interval_ms": c.Scan.DeliverIntervalMS,
		"scan.lookup_interval_ms":  c.Scan.LookupIntervalMS,
	}
	for key, v := range intervals {
		if v < 0 {
			return fmt.Errorf("%s must be zero or positive", key)
		}
	}
	if c.Scan.FlushDelayMS <= 0 {
		return errors.New("scan.flush_delay_ms must be positive")
	}
	if c.Scan.ConfirmTimeoutSeconds < 0 {
		return errors.New("scan.confirm_timeout_seconds must be zero or positive")
	}
	if strings.TrimSpace(c.Scan.Area) == "" {
		return errors.New("scan.area must be set")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// Interval returns the minimum event interval for a workflow name.
func (s Scan) Interval(workflow string) time.Duration {
	var ms int
	switch workflow {
	case "assign":
		ms = s.AssignIntervalMS
	case "qualify":
		ms = s.QualifyIntervalMS
	case "deliver":
		ms = s.DeliverIntervalMS
	default:
		ms = s.LookupIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (s Scan) FlushDelay() time.Duration {
	return time.Duration(s.FlushDelayMS) * time.Millisecond
}

// ConfirmTimeout is zero when confirmations wait indefinitely.
func (s Scan) ConfirmTimeout() time.Duration {
	return time.Duration(s.ConfirmTimeoutSeconds) * time.Second
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
