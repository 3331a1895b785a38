package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PACKTRACK_CONFIG", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOG_FORMAT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigFileUsed {
		t.Fatalf("no file expected")
	}
	if got := cfg.Scan.Interval("assign"); got != 500*time.Millisecond {
		t.Fatalf("assign interval = %v", got)
	}
	if got := cfg.Scan.Interval("deliver"); got != 1500*time.Millisecond {
		t.Fatalf("deliver interval = %v", got)
	}
	if got := cfg.Scan.Interval("lookup"); got != 2*time.Second {
		t.Fatalf("lookup interval = %v", got)
	}
	if cfg.Scan.FlushDelay() != 150*time.Millisecond {
		t.Fatalf("flush delay = %v", cfg.Scan.FlushDelay())
	}
	if cfg.Scan.ConfirmTimeout() != 0 {
		t.Fatalf("confirm timeout should default to unlimited")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "packtrack.toml", `
[scan]
deliver_interval_ms = 900
flush_delay_ms = 200
confirm_timeout_seconds = 30
area = "PACKING"

[logging]
level = "debug"
format = "json"
`)
	t.Setenv("PACKTRACK_CONFIG", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.ConfigFileUsed {
		t.Fatalf("expected config file to be used")
	}
	if cfg.Scan.Interval("deliver") != 900*time.Millisecond {
		t.Fatalf("deliver interval = %v", cfg.Scan.Interval("deliver"))
	}
	if cfg.Scan.Interval("assign") != 500*time.Millisecond {
		t.Fatalf("unset keys must keep defaults, got %v", cfg.Scan.Interval("assign"))
	}
	if cfg.Scan.ConfirmTimeout() != 30*time.Second || cfg.Scan.Area != "PACKING" {
		t.Fatalf("unexpected scan config %+v", cfg.Scan)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Fatalf("expected env level over file, got %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "flush delay", body: "[scan]\nflush_delay_ms = 0\n", want: "flush_delay_ms"},
		{name: "negative interval", body: "[scan]\nqualify_interval_ms = -1\n", want: "qualify_interval_ms"},
		{name: "unknown key", body: "[scan]\nspeed = 3\n", want: "parse config"},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}, want: "DATABASE_URL"},
		{name: "bad driver", env: map[string]string{"STORE_DRIVER": "mysql"}, want: "STORE_DRIVER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "")
			t.Setenv("LOG_FORMAT", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.body != "" {
				path = writeFile(t, "bad.toml", tc.body)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := writeFile(t, ".env", "APP_ADDR=:9090\nSQLITE_PATH=from-dotenv.db\n")
	t.Setenv("SQLITE_PATH", "already-set.db")
	t.Setenv("APP_ADDR", "")
	os.Unsetenv("APP_ADDR")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("APP_ADDR"); got != ":9090" {
		t.Fatalf("APP_ADDR = %q", got)
	}
	if got := os.Getenv("SQLITE_PATH"); got != "already-set.db" {
		t.Fatalf("SQLITE_PATH = %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}
