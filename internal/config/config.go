// Package config handles reading and writing config.yaml in the data
// directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Timer   TimerConfig   `yaml:"timer"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// TimerConfig controls the session engine.
type TimerConfig struct {
	DurationMinutes int `yaml:"duration_minutes"`
	DurationSeconds int `yaml:"duration_seconds,omitempty"` // wins over minutes when set
	TickMs          int `yaml:"tick_ms"`
}

// StorageConfig locates the database.
type StorageConfig struct {
	Database string `yaml:"database"` // relative paths resolve against the data directory
}

// LogConfig controls the JSONL event log.
type LogConfig struct {
	Events bool `yaml:"events"`
}

const (
	// ConfigFile is the config file name inside the data directory.
	ConfigFile = "config.yaml"

	// HomeEnv overrides the default data directory.
	HomeEnv = "FOCUS_HOME"

	// TestModeEnv set to "true" forces a short session for manual testing.
	TestModeEnv = "POMODORO_TEST_MODE"

	// DurationEnv sets the session length in seconds.
	DurationEnv = "POMODORO_DURATION_SECONDS"

	testModeSeconds = 10
	defaultDirName  = ".focus"
	maxDuration     = 24 * time.Hour
)

// ErrInvalidDuration is returned for session lengths or tick intervals that
// are not positive or exceed a day.
var ErrInvalidDuration = errors.New("invalid duration")

// DataDir resolves the data directory: flag first, then FOCUS_HOME, then
// $HOME/.focus.
func DataDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(HomeEnv); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, ConfigFile)
}

// ReadConfig reads config.yaml from the data directory dir. Fields missing
// from the file keep their defaults.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir, creating dir if needed.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Timer: TimerConfig{
			DurationMinutes: 30,
			TickMs:          1000,
		},
		Storage: StorageConfig{
			Database: "focus.db",
		},
		Log: LogConfig{
			Events: true,
		},
	}
}

// Load reads the config in dir, falling back to defaults when the file does
// not exist, then applies environment overrides and validates the result.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies POMODORO_TEST_MODE and POMODORO_DURATION_SECONDS. Test
// mode wins when both are set.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(DurationEnv)); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, DurationEnv, v)
		}
		c.Timer.DurationSeconds = secs
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(TestModeEnv)), "true") {
		c.Timer.DurationSeconds = testModeSeconds
	}
	return nil
}

// Validate rejects configs the engine cannot run with.
func (c *Config) Validate() error {
	d := c.SessionDuration()
	if d <= 0 || d > maxDuration {
		return fmt.Errorf("%w: session length %v", ErrInvalidDuration, d)
	}
	if c.Timer.TickMs <= 0 {
		return fmt.Errorf("%w: tick_ms %d", ErrInvalidDuration, c.Timer.TickMs)
	}
	if strings.TrimSpace(c.Storage.Database) == "" {
		return errors.New("storage.database must not be empty")
	}
	return nil
}

// SessionDuration is the default session length.
func (c *Config) SessionDuration() time.Duration {
	if c.Timer.DurationSeconds > 0 {
		return time.Duration(c.Timer.DurationSeconds) * time.Second
	}
	return time.Duration(c.Timer.DurationMinutes) * time.Minute
}

// Tick is the countdown refresh interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Timer.TickMs) * time.Millisecond
}

// DatabasePath resolves storage.database against dir.
func (c *Config) DatabasePath(dir string) string {
	if c.Storage.Database == ":memory:" || filepath.IsAbs(c.Storage.Database) {
		return c.Storage.Database
	}
	return filepath.Join(dir, c.Storage.Database)
}
