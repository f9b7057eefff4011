package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config, log logrus.FieldLogger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := createTables(db, log); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB, log logrus.FieldLogger) error {
	// Staff-position slots, keyed by the user-visible slot number
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS staff_positions (
			shtat_number VARCHAR(64) PRIMARY KEY,
			unit_name TEXT NOT NULL DEFAULT '',
			position_name TEXT NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			shpk_code VARCHAR(64) NOT NULL DEFAULT '',
			extra_data JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return err
	}

	// Persons. slot_number is a reference by id without a foreign key: slots may be
	// deleted or re-imported independently of who occupied them.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS persons (
			id BIGSERIAL PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL,
			rank VARCHAR(128) NOT NULL DEFAULT '',
			position TEXT NOT NULL DEFAULT '',
			unit_main TEXT NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			shpk_code VARCHAR(64) NOT NULL DEFAULT '',
			slot_number VARCHAR(64),
			membership VARCHAR(16) NOT NULL DEFAULT 'active',
			soldier_status VARCHAR(128) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS history_entries (
			id BIGINT PRIMARY KEY,
			person_id BIGINT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
			date TIMESTAMP NOT NULL,
			type VARCHAR(32) NOT NULL,
			author VARCHAR(255) NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			files JSONB NOT NULL DEFAULT '[]'::jsonb,
			period JSONB
		)
	`)
	if err != nil {
		return err
	}

	// The directives ledger is intentionally not tied to persons: removing a person
	// does not remove its ledger entries.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS directives (
			id VARCHAR(36) PRIMARY KEY,
			person_id BIGINT NOT NULL,
			type VARCHAR(16) NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			file JSONB,
			date TIMESTAMP NOT NULL,
			period JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return err
	}

	indexes := []string{
		// One occupant per slot
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_slot_number ON persons(slot_number) WHERE slot_number IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_history_entries_person ON history_entries(person_id, date)",
		"CREATE INDEX IF NOT EXISTS idx_directives_type ON directives(type, date)",
		"CREATE INDEX IF NOT EXISTS idx_directives_person_date ON directives(person_id, date)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.WithError(err).Warn("failed to create index")
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
