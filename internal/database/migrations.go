package database

import (
	"database/sql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS commands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		risk_tier TEXT NOT NULL DEFAULT 'safe',
		preconditions TEXT,
		signature TEXT,
		shell_template TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS test_results (
		id TEXT PRIMARY KEY,
		command_id TEXT NOT NULL,
		command_name TEXT,
		success BOOLEAN NOT NULL,
		risk TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		has_notes BOOLEAN NOT NULL DEFAULT 0,
		tags TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		payload TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT,
		details TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_commands_name ON commands(name)`,
	`CREATE INDEX IF NOT EXISTS idx_test_results_command_id ON test_results(command_id)`,
	`CREATE INDEX IF NOT EXISTS idx_test_results_risk ON test_results(risk)`,
	`CREATE INDEX IF NOT EXISTS idx_test_results_created_at ON test_results(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at)`,
}

func runMigrations(db *sql.DB) error {
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
