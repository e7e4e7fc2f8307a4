package cache

import (
	"fmt"
	"log/slog"
)

// migrate runs all pending schema migrations. Versioning the schema means a
// format change has defined behavior instead of a silent deserialization
// failure.
func (s *Store) migrate() error {
	const createMigrationsTable = `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := s.db.Exec(createMigrationsTable); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("reading current migration version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE mirror_state (
					repo_url TEXT PRIMARY KEY,
					repo_name TEXT NOT NULL,
					domain TEXT NOT NULL,
					consecutive_check_failures INTEGER NOT NULL DEFAULT 0,
					last_check DATETIME,
					last_successful_check DATETIME,
					last_sync_time DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version <= currentVersion {
			continue
		}
		s.logger.Info("running cache migration", slog.Int("version", mig.version))
		if err := s.runMigration(mig.version, mig.sql); err != nil {
			return fmt.Errorf("running migration %d: %w", mig.version, err)
		}
	}
	return nil
}

// runMigration executes one migration and records it in the same transaction.
func (s *Store) runMigration(version int, migrationSQL string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrationSQL); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}
