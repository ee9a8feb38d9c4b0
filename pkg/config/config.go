package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/stats"
	"github.com/joho/godotenv"
)

const (
	xdgAppName = "touchgrass"
	configFile = "config.json"
	envFile    = ".env"
	envPrefix  = "TOUCHGRASS_"
)

// Remote backends.
const (
	RemoteDrive  = "drive"
	RemoteFolder = "folder"
	RemoteNone   = "none"
)

type Config struct {
	DailyGoal  float64 `json:"daily_goal"`
	YearlyGoal float64 `json:"yearly_goal"`
	Storage    string  `json:"storage"`
	DataDir    string  `json:"data_dir,omitempty"`
	Remote     string  `json:"remote"`
	RemoteDir  string  `json:"remote_dir,omitempty"`
	LogLevel   string  `json:"log_level"`

	// path is where the config was loaded from and where Save writes.
	path string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DailyGoal:  stats.DefaultDailyGoal,
		YearlyGoal: stats.DefaultYearlyGoal,
		Storage:    kv.BackendFile,
		Remote:     RemoteDrive,
		LogLevel:   "info",
	}
}

// GetConfigDir is ~/.config/touchgrass; credentials and tokens live here too.
func GetConfigDir() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config at path (the default location when empty), then applies
// TOUCHGRASS_* overrides from the environment and a .env file next to it.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	// A missing .env is normal.
	dotenv, _ := godotenv.Read(filepath.Join(cfg.Dir(), envFile))

	if err := cfg.applyEnv(dotenv); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadFile reads only the file, without environment overrides. Use it to edit and Save.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := sonic.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	cfg.path = path
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.DailyGoal == 0 {
		c.DailyGoal = d.DailyGoal
	}
	if c.YearlyGoal == 0 {
		c.YearlyGoal = d.YearlyGoal
	}
	if c.Storage == "" {
		c.Storage = d.Storage
	}
	if c.Remote == "" {
		c.Remote = d.Remote
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// applyEnv lets the process environment win over the .env file.
func (c *Config) applyEnv(dotenv map[string]string) error {
	for _, key := range Keys() {
		name := envPrefix + strings.ToUpper(key)
		v, ok := os.LookupEnv(name)
		if !ok {
			v, ok = dotenv[name]
		}
		if !ok {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// setters are keyed by json field name.
var setters = map[string]func(*Config, string) error{
	"daily_goal":  func(c *Config, v string) error { return setFloat(&c.DailyGoal, v) },
	"yearly_goal": func(c *Config, v string) error { return setFloat(&c.YearlyGoal, v) },
	"storage":     func(c *Config, v string) error { c.Storage = v; return nil },
	"data_dir":    func(c *Config, v string) error { c.DataDir = v; return nil },
	"remote":      func(c *Config, v string) error { c.Remote = v; return nil },
	"remote_dir":  func(c *Config, v string) error { c.RemoteDir = v; return nil },
	"log_level":   func(c *Config, v string) error { c.LogLevel = v; return nil },
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", v)
	}
	*dst = f
	return nil
}

// Keys lists the settable keys in stable order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a single key from its string form.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(c, value)
}

// Get returns a single key in string form.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "daily_goal":
		return strconv.FormatFloat(c.DailyGoal, 'f', -1, 64), nil
	case "yearly_goal":
		return strconv.FormatFloat(c.YearlyGoal, 'f', -1, 64), nil
	case "storage":
		return c.Storage, nil
	case "data_dir":
		return c.DataDir, nil
	case "remote":
		return c.Remote, nil
	case "remote_dir":
		return c.RemoteDir, nil
	case "log_level":
		return c.LogLevel, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Dir is the directory holding the config file.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

// Path is the file Save writes to.
func (c *Config) Path() string {
	return c.path
}

// ResolvedDataDir is DataDir or <config dir>/data.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(c.Dir(), "data")
}

func (c *Config) Goals() stats.Goals {
	return stats.Goals{Daily: c.DailyGoal, Yearly: c.YearlyGoal}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if math.IsNaN(c.DailyGoal) || math.IsInf(c.DailyGoal, 0) || c.DailyGoal <= 0 {
		errors = append(errors, fmt.Sprintf("invalid daily goal %v: must be a positive number of hours", c.DailyGoal))
	}
	if math.IsNaN(c.YearlyGoal) || math.IsInf(c.YearlyGoal, 0) || c.YearlyGoal <= 0 {
		errors = append(errors, fmt.Sprintf("invalid yearly goal %v: must be a positive number of hours", c.YearlyGoal))
	}

	validStorage := []string{kv.BackendFile, kv.BackendSQLite}
	if !contains(validStorage, c.Storage) {
		errors = append(errors, fmt.Sprintf("invalid storage backend '%s': must be one of %v", c.Storage, validStorage))
	}

	validRemotes := []string{RemoteDrive, RemoteFolder, RemoteNone}
	if !contains(validRemotes, c.Remote) {
		errors = append(errors, fmt.Sprintf("invalid remote '%s': must be one of %v", c.Remote, validRemotes))
	}
	if c.Remote == RemoteFolder && c.RemoteDir == "" {
		errors = append(errors, "remote_dir is required when using the folder remote")
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Save writes the config back to the file it was loaded from.
func Save(cfg *Config) error {
	path := cfg.path
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return err
		}
		cfg.path = path
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	b, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	return nil
}
