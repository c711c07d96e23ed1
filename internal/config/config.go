// Package config loads pickflix settings from config.yaml and PICKFLIX_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mode selects the history store backend
type Mode string

const (
	ModeLocal  Mode = "local"  // single-device BoltDB file
	ModeRemote Mode = "remote" // PostgREST picks table over HTTP
	ModeSQLite Mode = "sqlite" // SQLite picks table on a shared filesystem
)

// Config holds all application configuration
type Config struct {
	Mode      Mode            `mapstructure:"mode"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Local     LocalConfig     `mapstructure:"local"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	SQL       SQLConfig       `mapstructure:"sql"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Picker    PickerConfig    `mapstructure:"picker"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CatalogConfig locates the movie feed
type CatalogConfig struct {
	Path string `mapstructure:"path"` // movies.json
}

// LocalConfig holds local store configuration
type LocalConfig struct {
	Dir string `mapstructure:"dir"` // empty keeps history in memory only
}

// RemoteConfig holds shared backend configuration
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`     // project URL, e.g. https://xyz.supabase.co
	APIKey  string        `mapstructure:"api_key"` // anon/publishable key
	Timeout time.Duration `mapstructure:"timeout"`
}

// SQLConfig holds the direct SQLite store configuration
type SQLConfig struct {
	Path string `mapstructure:"path"`
}

// SyncConfig holds background refresh configuration
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// PickerConfig holds picker tuning
type PickerConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"` // record attempts per pick
}

// ServerConfig holds picks server configuration
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	DBPath    string `mapstructure:"db_path"`
	RateLimit int    `mapstructure:"rate_limit"` // requests per minute per IP, 0 disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
// Telemetry is off when OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string            `mapstructure:"otlp_endpoint"`
	Insecure     bool              `mapstructure:"insecure"`
	ServiceName  string            `mapstructure:"service_name"`
	Headers      map[string]string `mapstructure:"headers"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := defaultDataPath()
	return &Config{
		Mode: ModeLocal,
		Catalog: CatalogConfig{
			Path: filepath.Join(dataDir, "movies.json"),
		},
		Local: LocalConfig{
			Dir: dataDir,
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
		},
		SQL: SQLConfig{
			Path: filepath.Join(dataDir, "picks.db"),
		},
		Sync: SyncConfig{
			Interval: 20 * time.Second,
		},
		Picker: PickerConfig{
			MaxAttempts: 64,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			DBPath:    filepath.Join(dataDir, "server.db"),
			RateLimit: 600,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir, "pickflix.log"),
			Level: "INFO",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "pickflix",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "pickflix")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "pickflix")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "pickflix")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "pickflix")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration from path, or from the default search
// paths when path is empty. A missing file is only an error when path is set.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(ExpandHome(path))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides: PICKFLIX_REMOTE_URL -> remote.url
	v.SetEnvPrefix("PICKFLIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Catalog.Path = ExpandHome(cfg.Catalog.Path)
	cfg.Local.Dir = ExpandHome(cfg.Local.Dir)
	cfg.SQL.Path = ExpandHome(cfg.SQL.Path)
	cfg.Server.DBPath = ExpandHome(cfg.Server.DBPath)
	cfg.Logging.File = ExpandHome(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("mode", string(cfg.Mode))
	v.SetDefault("catalog.path", cfg.Catalog.Path)
	v.SetDefault("local.dir", cfg.Local.Dir)
	v.SetDefault("remote.url", cfg.Remote.URL)
	v.SetDefault("remote.api_key", cfg.Remote.APIKey)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout)
	v.SetDefault("sql.path", cfg.SQL.Path)
	v.SetDefault("sync.interval", cfg.Sync.Interval)
	v.SetDefault("picker.max_attempts", cfg.Picker.MaxAttempts)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.db_path", cfg.Server.DBPath)
	v.SetDefault("server.rate_limit", cfg.Server.RateLimit)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("telemetry.otlp_endpoint", cfg.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.insecure", cfg.Telemetry.Insecure)
	v.SetDefault("telemetry.service_name", cfg.Telemetry.ServiceName)
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeRemote, ModeSQLite:
	default:
		return fmt.Errorf("invalid mode %q: want local, remote or sqlite", c.Mode)
	}
	if c.Picker.MaxAttempts < 0 {
		return fmt.Errorf("picker.max_attempts must not be negative, got %d", c.Picker.MaxAttempts)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative, got %s", c.Sync.Interval)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative, got %s", c.Remote.Timeout)
	}
	return nil
}

// IsRemoteConfigured returns true if a shared backend URL is set
func (c *Config) IsRemoteConfigured() bool {
	return strings.TrimSpace(c.Remote.URL) != ""
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
