package db

import "fmt"

func (d *DB) migrate() error {
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var version int
	err := d.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("getting schema version: %w", err)
	}

	migrations := []func(*DB) error{
		migrateV1,
		migrateV2,
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](d); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := d.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

func migrateV1(d *DB) error {
	statements := []string{
		`CREATE TABLE deployments (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			profile_name TEXT NOT NULL,
			status TEXT NOT NULL,
			file_count INTEGER DEFAULT 0,
			error TEXT,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME
		)`,
		`CREATE INDEX idx_deployments_game_profile ON deployments(game_id, profile_name)`,
		`CREATE TABLE deployed_files (
			game_id TEXT NOT NULL,
			profile_name TEXT NOT NULL,
			path TEXT NOT NULL,
			mod_name TEXT NOT NULL,
			root INTEGER DEFAULT 0,
			deployment_id TEXT REFERENCES deployments(id) ON DELETE CASCADE,
			deployed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(game_id, profile_name, path)
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func migrateV2(d *DB) error {
	// Files a mod could not place because an earlier mod or an untracked file held the path
	_, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS deployment_conflicts (
			deployment_id TEXT NOT NULL REFERENCES deployments(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			winner TEXT NOT NULL,
			loser TEXT NOT NULL,
			PRIMARY KEY(deployment_id, path, loser)
		)
	`)
	return err
}
