package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS basket_items (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'Diğer',
    weight REAL NOT NULL DEFAULT 1,
    url TEXT NOT NULL,
    manual_price REAL,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS price_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    obs_date TEXT NOT NULL,
    obs_time TEXT NOT NULL,
    code TEXT NOT NULL,
    item_name TEXT NOT NULL,
    price REAL NOT NULL CHECK(price > 0),
    source TEXT NOT NULL,
    url TEXT,
    recorded_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_date TEXT UNIQUE NOT NULL,
    body_markdown TEXT NOT NULL,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_price_log_date_code ON price_log(obs_date, code);
CREATE INDEX IF NOT EXISTS idx_price_log_code ON price_log(code);
CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(report_date);
`)
			return err
		},
	},
}
