// Package config resolves process configuration by layering defaults, a
// YAML file, environment variables, a database overlay, and finally CLI
// flags (highest priority): database path, WWW dir, optional SMTP relay,
// the session HMAC root secret, and the public hostname.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Version holds the current application version.
var Version = "0.1.0"

// Config holds all configuration for the process.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	SMTP     SMTPConfig     `json:"smtp" yaml:"smtp"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	HTTPS    HTTPSConfig    `json:"https" yaml:"https"`
}

// ServerConfig holds listener and site-identity configuration.
type ServerConfig struct {
	Port     string `json:"port" yaml:"port"`
	Hostname string `json:"hostname" yaml:"hostname"`
	Env      string `json:"env" yaml:"env"` // development/production
	WWWDir   string `json:"www_dir" yaml:"www_dir"`
}

// DatabaseConfig holds the SQLite file location.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SMTPConfig holds the outgoing mail relay. An empty Host means "no relay
// configured" - the server falls back to the development file sink
// (internal/mailer.FileSink).
type SMTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
}

// SessionConfig holds the session cookie's HMAC root secret. An operator
// who never configures Secret gets a fresh random one on every restart,
// invalidating all sessions, until they opt in to a persistent secret.
type SessionConfig struct {
	Secret string `json:"secret" yaml:"secret"`
}

// HTTPSConfig holds automatic HTTPS configuration (github.com/caddyserver/certmagic).
type HTTPSConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Email   string `json:"email" yaml:"email"`   // ACME contact email
	Staging bool   `json:"staging" yaml:"staging"` // use Let's Encrypt staging
}

var appConfig *Config

// CLIFlags holds command-line flags for temporary overrides. These have
// the highest priority in the layering order.
type CLIFlags struct {
	DBPath     string
	Port       string
	Hostname   string
	WWWDir     string
	ConfigFile string
}

// ParseFlags parses command-line flags.
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}
	flag.StringVar(&flags.DBPath, "db", "", "SQLite database file path")
	flag.StringVar(&flags.Port, "port", "", "Server port")
	flag.StringVar(&flags.Hostname, "hostname", "", "Public hostname")
	flag.StringVar(&flags.WWWDir, "www", "", "Static file directory")
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML config file path")
	flag.Parse()
	return flags
}

// Load initializes config layering, lowest to highest precedence:
// compiled defaults, an optional YAML file, environment variables, and
// CLI flags. Call OverlayDB once the database is open to apply the
// DB-backed layer on top of this (it re-applies flags afterward so they
// keep the highest priority).
func Load(flags *CLIFlags) (*Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}

	cfg := CreateDefaultConfig()

	configFile := envOr("URLS_CONFIG_FILE", "")
	if flags != nil && flags.ConfigFile != "" {
		configFile = flags.ConfigFile
	}
	if configFile != "" {
		if err := applyYAMLFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	applyCLIFlags(cfg, flags)

	appConfig = cfg
	return appConfig, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// applyYAMLFile overlays a YAML config file onto cfg, if the file exists.
// A missing file, even at an explicitly-configured path, is skipped
// silently; any other read or parse failure is an error.
func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// CreateDefaultConfig creates a default configuration.
func CreateDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8080",
			Hostname: "urls.fyi",
			Env:      "development",
			WWWDir:   "./www",
		},
		Database: DatabaseConfig{
			Path: "~/.urlsfyi/data.db",
		},
		SMTP: SMTPConfig{
			From: "no-reply@urls.fyi",
		},
		HTTPS: HTTPSConfig{
			Enabled: false,
			Staging: true,
		},
	}
}

// applyEnv overlays the URLS_* environment variables: database path, WWW
// dir, SMTP host/port/user/pass, session HMAC secret, hostname.
func applyEnv(cfg *Config) {
	if v := os.Getenv("URLS_DB_PATH"); v != "" {
		cfg.Database.Path = ExpandPath(v)
	}
	if v := os.Getenv("URLS_WWW_DIR"); v != "" {
		cfg.Server.WWWDir = ExpandPath(v)
	}
	if v := os.Getenv("URLS_HOSTNAME"); v != "" {
		cfg.Server.Hostname = v
	}
	if v := os.Getenv("URLS_ADDR"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("URLS_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("URLS_SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("URLS_SMTP_PORT"); v != "" {
		cfg.SMTP.Port = v
	}
	if v := os.Getenv("URLS_SMTP_USER"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("URLS_SMTP_PASS"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("URLS_SMTP_FROM"); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv("URLS_SESSION_KEY"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("URLS_HTTPS_EMAIL"); v != "" {
		cfg.HTTPS.Enabled = true
		cfg.HTTPS.Email = v
	}
}

// applyCLIFlags applies CLI flags to config (highest priority).
func applyCLIFlags(cfg *Config, flags *CLIFlags) {
	if flags == nil {
		return
	}
	if flags.Port != "" {
		cfg.Server.Port = flags.Port
	}
	if flags.Hostname != "" {
		cfg.Server.Hostname = flags.Hostname
	}
	if flags.DBPath != "" {
		cfg.Database.Path = ExpandPath(flags.DBPath)
	}
	if flags.WWWDir != "" {
		cfg.Server.WWWDir = ExpandPath(flags.WWWDir)
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %s (must be a number)", c.Server.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", port)
	}
	if c.Server.Env != "development" && c.Server.Env != "production" {
		return fmt.Errorf("invalid environment: %s (must be 'development' or 'production')", c.Server.Env)
	}
	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}
	c.Database.Path = ExpandPath(c.Database.Path)
	if c.HTTPS.Enabled && c.HTTPS.Email == "" {
		return errors.New("https email is required when https is enabled")
	}
	return nil
}

// Get returns the loaded configuration. Panics if Load was never called;
// that is a programming error in cmd/server, not a runtime condition.
func Get() *Config {
	if appConfig == nil {
		panic("config: Load() must be called before Get()")
	}
	return appConfig
}

// SetConfig sets the application configuration (primarily for testing).
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Server.Env == "development" }

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

// SMTPConfigured reports whether an SMTP relay is configured.
func (c *Config) SMTPConfigured() bool { return c.SMTP.Host != "" }
