package config

import (
	"database/sql"
	"fmt"
	"log"
)

// DBConfigStore handles database operations for configuration
type DBConfigStore struct {
	db *sql.DB
}

// NewDBConfigStore creates a new store
func NewDBConfigStore(db *sql.DB) *DBConfigStore {
	return &DBConfigStore{db: db}
}

// Load reads all configurations from the database
func (s *DBConfigStore) Load() (map[string]string, error) {
	query := "SELECT key, value FROM app_config" // bootstrapped by internal/store.Bootstrap
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		config[key] = value
	}
	return config, nil
}

// Set updates or inserts a configuration value
func (s *DBConfigStore) Set(key, value string) error {
	query := `
		INSERT INTO app_config (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, key, value)
	return err
}

// OverlayDB loads config from DB and overlays it onto the current appConfig.
// It effectively merges: Defaults < File < Env < DB < Flags.
// Flags are re-applied after the DB layer so they keep the highest priority.
func OverlayDB(db *sql.DB, flags *CLIFlags) error {
	if appConfig == nil {
		return fmt.Errorf("config not initialized, call Load() first")
	}

	store := NewDBConfigStore(db)
	dbConfig, err := store.Load()
	if err != nil {
		return err
	}

	applyDBMap(appConfig, dbConfig)
	applyCLIFlags(appConfig, flags)

	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after DB overlay: %w", err)
	}

	log.Printf("configuration overlaid from database")
	return nil
}

// applyDBMap maps flat keys to Config struct fields
func applyDBMap(cfg *Config, data map[string]string) {
	for k, v := range data {
		switch k {
		case "server.port":
			cfg.Server.Port = v
		case "server.hostname":
			cfg.Server.Hostname = v
		case "server.env":
			cfg.Server.Env = v
		case "server.www_dir":
			cfg.Server.WWWDir = v

		case "smtp.host":
			cfg.SMTP.Host = v
		case "smtp.port":
			cfg.SMTP.Port = v
		case "smtp.username":
			cfg.SMTP.Username = v
		case "smtp.password":
			cfg.SMTP.Password = v
		case "smtp.from":
			cfg.SMTP.From = v

		case "session.secret":
			cfg.Session.Secret = v

		case "https.enabled":
			cfg.HTTPS.Enabled = (v == "true")
		case "https.email":
			cfg.HTTPS.Email = v
		case "https.staging":
			cfg.HTTPS.Staging = (v == "true")
		}
	}
}
