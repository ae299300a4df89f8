package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tcriess/lightspeed-roster/config"
)

func NewSQLitePersister(cfg *config.Config) (Persister, error) {
	db, err := setupSQLiteDB(cfg)
	if err != nil {
		return nil, err
	}
	return &SQLPersist{db: db}, nil
}

func setupSQLiteDB(cfg *config.Config) (*sql.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no sqlite dsn configured")
	}
	db, err := sql.Open("sqlite3", cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = execAll(db,
		`CREATE TABLE IF NOT EXISTS rosters (
channel_id TEXT PRIMARY KEY,
data TEXT DEFAULT "{}" NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS runs (
participant_id TEXT PRIMARY KEY,
total INTEGER DEFAULT 0 NOT NULL,
dps_runs INTEGER DEFAULT 0 NOT NULL,
healer_runs INTEGER DEFAULT 0 NOT NULL,
tank_runs INTEGER DEFAULT 0 NOT NULL,
last_title TEXT DEFAULT "" NOT NULL,
last_date TEXT DEFAULT "" NOT NULL
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
