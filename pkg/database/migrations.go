package database

import (
	"database/sql"
	"fmt"
	"log"
)

// RunMigrations creates the api_specs table and its indexes if they do not
// exist yet.
func RunMigrations(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS api_specs (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		title VARCHAR(500),
		version VARCHAR(100),
		spec_content TEXT NOT NULL,
		mount_path VARCHAR(255) UNIQUE NOT NULL,
		base_url VARCHAR(500) NOT NULL DEFAULT '',
		file_format VARCHAR(10) DEFAULT 'yaml',
		file_size INTEGER,
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP(6) DEFAULT NOW(),
		updated_at TIMESTAMP(6) DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_api_specs_mount_path ON api_specs(mount_path);
	CREATE INDEX IF NOT EXISTS idx_api_specs_is_active ON api_specs(is_active);
	CREATE INDEX IF NOT EXISTS idx_api_specs_name ON api_specs(name);

	CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ language 'plpgsql';

	DROP TRIGGER IF EXISTS update_api_specs_updated_at ON api_specs;
	CREATE TRIGGER update_api_specs_updated_at
		BEFORE UPDATE ON api_specs
		FOR EACH ROW
		EXECUTE FUNCTION update_updated_at_column();
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create api_specs table: %v", err)
	}

	log.Println("Database schema is up to date")
	return nil
}

// DropSpecsTable drops the api_specs table. Used by tests and the import
// tool's --reset flag.
func DropSpecsTable(db *sql.DB) error {
	query := `
	DROP TRIGGER IF EXISTS update_api_specs_updated_at ON api_specs;
	DROP TABLE IF EXISTS api_specs;
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to drop api_specs table: %v", err)
	}
	return nil
}
