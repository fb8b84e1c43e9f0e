// Package config loads the operator configuration of yol: logging, the state
// store and per-runner settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the configuration file when no path is given.
const EnvConfigPath = "YOL_CONFIG"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnknownDriver is returned for a store driver yol does not ship.
var ErrUnknownDriver = errors.New("unknown store driver")

// Config is the content of yol.yaml.
type Config struct {
	LogLevel string                  `yaml:"log_level" json:"log_level"`
	Store    StoreConfig             `yaml:"store" json:"store"`
	Runners  map[string]RunnerConfig `yaml:"runners" json:"runners"`
}

// StoreConfig selects the store. Options are decoded by the driver.
type StoreConfig struct {
	Driver  string         `yaml:"driver" json:"driver"`
	Options map[string]any `yaml:"options" json:"options"`
	// ReadRetries is how many times a failed read is retried.
	ReadRetries int `yaml:"read_retries" json:"read_retries"`
	// Trace logs every store call at debug level.
	Trace bool `yaml:"trace" json:"trace"`
}

// RunnerConfig holds the settings of one runner.
type RunnerConfig struct {
	Identity        string       `yaml:"identity" json:"identity"`
	LegacyStateFile string       `yaml:"legacy_state_file" json:"legacy_state_file"`
	Steps           []StepConfig `yaml:"steps" json:"steps"`
}

// StepConfig is a transition that runs a command, for runners driven by yol run.
type StepConfig struct {
	From    string            `yaml:"from" json:"from"`
	To      string            `yaml:"to" json:"to"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env" json:"env"`
	Dir     string            `yaml:"dir" json:"dir"`
}

// FileOptions configures the file store.
type FileOptions struct {
	Path         string        `mapstructure:"path"`
	StaleLockAge time.Duration `mapstructure:"stale_lock_age"`
}

// RedisOptions configures the Redis store.
type RedisOptions struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	Lock     bool          `mapstructure:"lock"`
}

// PostgresOptions configures the PostgreSQL store.
type PostgresOptions struct {
	DSN          string `mapstructure:"dsn"`
	Schema       string `mapstructure:"schema"`
	Table        string `mapstructure:"table"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// SQLiteOptions configures the SQLite store.
type SQLiteOptions struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout"`
	JournalMode string `mapstructure:"journal_mode"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver:  DriverFile,
			Options: map[string]any{},
		},
		Runners: map[string]RunnerConfig{},
	}
}

// Load reads the configuration at path, or at $YOL_CONFIG when path is empty.
// With neither, it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the log level, the driver and its options.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Store.ReadRetries < 0 {
		return fmt.Errorf("store.read_retries must not be negative, got %d", c.Store.ReadRetries)
	}
	for name, rc := range c.Runners {
		for i, step := range rc.Steps {
			if strings.TrimSpace(step.To) == "" || strings.TrimSpace(step.Command) == "" {
				return fmt.Errorf("runners.%s.steps[%d]: to and command are required", name, i)
			}
		}
	}

	var err error
	switch c.Driver() {
	case DriverMemory:
	case DriverFile:
		_, err = c.FileOptions()
	case DriverRedis:
		_, err = c.RedisOptions()
	case DriverPostgres:
		_, err = c.PostgresOptions()
	case DriverSQLite:
		_, err = c.SQLiteOptions()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}
	return err
}

// Level returns the parsed log level, info when invalid.
func (c *Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Driver returns the normalized store driver name.
func (c *Config) Driver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if driver == "" {
		return DriverFile
	}
	return driver
}

// FileOptions decodes the options of the file driver.
func (c *Config) FileOptions() (FileOptions, error) {
	opts := FileOptions{Path: ".yol/state"}
	return opts, c.decode(&opts)
}

// RedisOptions decodes the options of the redis driver.
func (c *Config) RedisOptions() (RedisOptions, error) {
	opts := RedisOptions{Address: "localhost:6379", Prefix: "yol:"}
	if err := c.decode(&opts); err != nil {
		return opts, err
	}
	if opts.Address == "" {
		return opts, errors.New("redis: address is required")
	}
	return opts, nil
}

// PostgresOptions decodes the options of the postgres driver.
func (c *Config) PostgresOptions() (PostgresOptions, error) {
	opts := PostgresOptions{Schema: "public", EnsureSchema: true}
	if err := c.decode(&opts); err != nil {
		return opts, err
	}
	if opts.DSN == "" {
		return opts, errors.New("postgres: dsn is required")
	}
	return opts, nil
}

// SQLiteOptions decodes the options of the sqlite driver.
func (c *Config) SQLiteOptions() (SQLiteOptions, error) {
	opts := SQLiteOptions{Path: ".yol/state.db", BusyTimeout: 5000, JournalMode: "WAL"}
	return opts, c.decode(&opts)
}

func (c *Config) decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(c.Store.Options); err != nil {
		return fmt.Errorf("%s store options: %w", c.Driver(), err)
	}
	return nil
}

// Runner returns the settings of the runner name, matched case-insensitively.
func (c *Config) Runner(name string) (RunnerConfig, bool) {
	for n, rc := range c.Runners {
		if domain.SameState(n, name) {
			return rc, true
		}
	}
	return RunnerConfig{}, false
}

// IdentityFor resolves the identity of a runner: $YOL_<RUNNER>_IDENTITY first,
// then runners.<name>.identity.
func (c *Config) IdentityFor(runner string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(IdentityEnv(runner))); v != "" {
		return v, true
	}
	if rc, ok := c.Runner(runner); ok && strings.TrimSpace(rc.Identity) != "" {
		return strings.TrimSpace(rc.Identity), true
	}
	return "", false
}

// IdentityEnv returns the environment variable overriding the identity of runner.
func IdentityEnv(runner string) string {
	var sb strings.Builder
	sb.WriteString("YOL_")
	for _, r := range strings.TrimSpace(runner) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToUpper(r))
		} else {
			sb.WriteRune('_')
		}
	}
	sb.WriteString("_IDENTITY")
	return sb.String()
}
