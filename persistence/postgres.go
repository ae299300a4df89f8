package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/tcriess/lightspeed-roster/config"
)

func NewPostgresPersister(cfg *config.Config) (Persister, error) {
	db, err := setupPostgresDB(cfg)
	if err != nil {
		return nil, err
	}
	return &SQLPersist{db: db}, nil
}

func setupPostgresDB(cfg *config.Config) (*sql.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no postgres dsn configured")
	}
	db, err := sql.Open("postgres", cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = execAll(db,
		`CREATE TABLE IF NOT EXISTS rosters (
channel_id TEXT PRIMARY KEY,
-- json keeps the key order of the buckets, jsonb does not
data JSON DEFAULT '{}'::json NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS runs (
participant_id TEXT PRIMARY KEY,
total INTEGER DEFAULT 0 NOT NULL,
dps_runs INTEGER DEFAULT 0 NOT NULL,
healer_runs INTEGER DEFAULT 0 NOT NULL,
tank_runs INTEGER DEFAULT 0 NOT NULL,
last_title TEXT DEFAULT '' NOT NULL,
last_date TEXT DEFAULT '' NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS default_roles (
participant_id TEXT PRIMARY KEY,
role TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS runs_total_idx ON runs (total);`,
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
