package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendXLSX   = "xlsx"
)

// Roles
const (
	RoleCrew       = "crew"       // Files incidents
	RoleSupport    = "support"    // Works incidents
	RoleSupervisor = "supervisor" // Works incidents and may reopen them
)

// Dir is the per-project configuration directory name.
const Dir = ".faultline"

// FileName is the configuration file inside Dir.
const FileName = "config.yaml"

// Config is the faultline configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" env-prefix:"FAULTLINE_STORE_"`
	Timezone  string          `yaml:"timezone" env:"FAULTLINE_TIMEZONE" env-default:"Asia/Seoul"`
	Retry     RetryConfig     `yaml:"retry" env-prefix:"FAULTLINE_RETRY_"`
	Routing   RoutingConfig   `yaml:"routing" env-prefix:"FAULTLINE_ROUTING_"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" env-prefix:"FAULTLINE_LIFECYCLE_"`
	Authz     AuthzConfig     `yaml:"authz" env-prefix:"FAULTLINE_AUTHZ_"`
	Notify    NotifyConfig    `yaml:"notify" env-prefix:"FAULTLINE_NOTIFY_"`
	Log       LogConfig       `yaml:"log" env-prefix:"FAULTLINE_LOG_"`
}

// StoreConfig selects and locates the incident store.
type StoreConfig struct {
	Backend      string        `yaml:"backend" env:"BACKEND" env-default:"sqlite"`
	SQLitePath   string        `yaml:"sqlite_path" env:"SQLITE_PATH"` // Also holds the outbox and audit log
	WorkbookPath string        `yaml:"workbook_path" env:"WORKBOOK_PATH"`
	LogSheet     string        `yaml:"log_sheet" env:"LOG_SHEET" env-default:"접수내용"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"10s"`
}

// RetryConfig tunes transient-failure retries against the store.
type RetryConfig struct {
	Attempts  uint64        `yaml:"attempts" env:"ATTEMPTS" env-default:"3"`
	BaseDelay time.Duration `yaml:"base_delay" env:"BASE_DELAY" env-default:"200ms"`
	MaxDelay  time.Duration `yaml:"max_delay" env:"MAX_DELAY" env-default:"2s"`
}

// RoutingConfig tunes outbox replay.
type RoutingConfig struct {
	ReplaySchedule string `yaml:"replay_schedule" env:"REPLAY_SCHEDULE" env-default:"@every 5m"`
	MaxAttempts    int    `yaml:"max_attempts" env:"MAX_ATTEMPTS" env-default:"10"`
}

// LifecycleConfig gates optional transitions.
type LifecycleConfig struct {
	AllowReopen bool `yaml:"allow_reopen" env:"ALLOW_REOPEN" env-default:"false"`
}

// AuthzConfig maps actors onto roles.
type AuthzConfig struct {
	Enabled bool              `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Users   map[string]string `yaml:"users" env:"USERS"` // actor -> role
}

// NotifyConfig configures the webhook sink. An empty URL disables it.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url" env:"WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"FORMAT" env-default:"console"` // console or json
}

// ErrNoConfigFile is returned by FindConfig when no file exists.
var ErrNoConfigFile = errors.New("no config file found")

// FindConfig returns the config file path for dir.
// Resolution order: dir, then the home directory.
func FindConfig(dir string) (string, error) {
	candidates := []string{filepath.Join(dir, Dir, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, Dir, FileName))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNoConfigFile
}

// LoadConfig reads the config file for dir and applies FAULTLINE_* overrides.
// Without a file, defaults plus environment are used.
func LoadConfig(dir string) (*Config, error) {
	var cfg Config

	path, err := FindConfig(dir)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	case errors.Is(err, ErrNoConfigFile):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	default:
		return nil, err
	}

	cfg.applyPathDefaults(dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration a fresh `init` writes for dir.
func Default(dir string) *Config {
	cfg := &Config{
		Store: StoreConfig{
			Backend:  BackendSQLite,
			LogSheet: "접수내용",
			Timeout:  10 * time.Second,
		},
		Timezone: "Asia/Seoul",
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 200 * time.Millisecond,
			MaxDelay:  2 * time.Second,
		},
		Routing: RoutingConfig{
			ReplaySchedule: "@every 5m",
			MaxAttempts:    10,
		},
		Authz:  AuthzConfig{Users: map[string]string{}},
		Notify: NotifyConfig{Timeout: 5 * time.Second},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
	cfg.applyPathDefaults(dir)
	return cfg
}

func (c *Config) applyPathDefaults(dir string) {
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(dir, Dir, "faultline.db")
	}
	if c.Store.WorkbookPath == "" {
		c.Store.WorkbookPath = filepath.Join(dir, Dir, "incidents.xlsx")
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendXLSX:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendXLSX, c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}
	if c.Store.Backend == BackendXLSX && c.Store.LogSheet == "" {
		return fmt.Errorf("store.log_sheet is required for the xlsx backend")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil && c.Timezone != "Asia/Seoul" {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	for actor, role := range c.Authz.Users {
		switch role {
		case RoleCrew, RoleSupport, RoleSupervisor:
		default:
			return fmt.Errorf("authz.users[%s]: unknown role %q", actor, role)
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// SaveConfig writes cfg to dir/.faultline/config.yaml.
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", Dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(cfgDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
