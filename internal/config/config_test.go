package config

import (
	"os"
	"path/filepath"
	"testing"
)

func resetConfig(t *testing.T) {
	t.Helper()
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })
}

func TestLoadLayering(t *testing.T) {
	resetConfig(t)

	yamlPath := filepath.Join(t.TempDir(), "urls.yaml")
	yaml := "server:\n  port: \"5000\"\n  hostname: file.example\nsmtp:\n  from: file@urls.fyi\n"
	if err := os.WriteFile(yamlPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("URLS_HOSTNAME", "env.example")
	t.Setenv("URLS_SESSION_KEY", "env-secret")

	flags := &CLIFlags{Port: "7777", ConfigFile: yamlPath}
	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Flags beat env, env beats the file, the file beats defaults.
	if cfg.Server.Port != "7777" {
		t.Fatalf("Port = %q, want flag value 7777", cfg.Server.Port)
	}
	if cfg.Server.Hostname != "env.example" {
		t.Fatalf("Hostname = %q, want env value", cfg.Server.Hostname)
	}
	if cfg.SMTP.From != "file@urls.fyi" {
		t.Fatalf("SMTP.From = %q, want file value", cfg.SMTP.From)
	}
	if cfg.Session.Secret != "env-secret" {
		t.Fatalf("Session.Secret = %q, want env value", cfg.Session.Secret)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.WWWDir != "./www" {
		t.Fatalf("WWWDir = %q, want default", cfg.Server.WWWDir)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	resetConfig(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Database.Path != "~/.urlsfyi/data.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-numeric port", func(c *Config) { c.Server.Port = "http" }},
		{"out-of-range port", func(c *Config) { c.Server.Port = "70000" }},
		{"unknown env", func(c *Config) { c.Server.Env = "staging" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"https without email", func(c *Config) { c.HTTPS.Enabled = true; c.HTTPS.Email = "" }},
	}
	for _, tc := range cases {
		cfg := CreateDefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", tc.name)
		}
	}
}
