package config

import "database/sql"

// SeedDB writes the resolved configuration into the app_config overlay
// table, but only when the overlay is still empty - a first boot. From
// then on operators manage these settings as rows, and OverlayDB reads
// them back on every start.
func SeedDB(db *sql.DB) error {
	store := NewDBConfigStore(db)
	existing, err := store.Load()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return SaveToDB(db, Get())
}

// SaveToDB persists cfg to the app_config overlay table.
func SaveToDB(db *sql.DB, cfg *Config) error {
	store := NewDBConfigStore(db)

	fields := map[string]string{
		"server.port":     cfg.Server.Port,
		"server.hostname": cfg.Server.Hostname,
		"server.env":      cfg.Server.Env,
		"server.www_dir":  cfg.Server.WWWDir,
		"smtp.from":       cfg.SMTP.From,
	}
	if cfg.SMTP.Host != "" {
		fields["smtp.host"] = cfg.SMTP.Host
		fields["smtp.port"] = cfg.SMTP.Port
		fields["smtp.username"] = cfg.SMTP.Username
		fields["smtp.password"] = cfg.SMTP.Password
	}
	if cfg.HTTPS.Enabled {
		fields["https.enabled"] = "true"
		fields["https.email"] = cfg.HTTPS.Email
	}
	if cfg.HTTPS.Staging {
		fields["https.staging"] = "true"
	}

	for k, v := range fields {
		if err := store.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
