package database

import (
	"database/sql"
	"fmt"
)

// AppendObservations merges a batch into the price log. Existing rows for
// each (date, code) pair in the batch are deleted first, so the last write
// per item per day wins; re-submitting the same batch is idempotent.
// Returns the number of rows inserted.
func (db *DB) AppendObservations(obs []Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin price log update: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[[2]string]struct{}, len(obs))
	for _, o := range obs {
		key := [2]string{o.Date, o.Code}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if _, err := tx.Exec(
			"DELETE FROM price_log WHERE obs_date = ? AND code = ?", o.Date, o.Code,
		); err != nil {
			return 0, fmt.Errorf("clearing same-day rows for %s: %w", o.Code, err)
		}
	}

	inserted := 0
	for _, o := range obs {
		if o.Price <= 0 {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO price_log (obs_date, obs_time, code, item_name, price, source, url)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.Date, o.Time, o.Code, o.Name, o.Price, o.Source, o.URL,
		); err != nil {
			return 0, fmt.Errorf("inserting observation for %s: %w", o.Code, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit price log update: %w", err)
	}
	return inserted, nil
}

// GetAllObservations returns the full price log ordered by date then code.
func (db *DB) GetAllObservations() ([]Observation, error) {
	rows, err := db.conn.Query(
		`SELECT obs_date, obs_time, code, item_name, price, source, url
		FROM price_log ORDER BY obs_date, code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// GetObservationsForDate returns the log rows for one calendar day.
func (db *DB) GetObservationsForDate(date string) ([]Observation, error) {
	rows, err := db.conn.Query(
		`SELECT obs_date, obs_time, code, item_name, price, source, url
		FROM price_log WHERE obs_date = ? ORDER BY code`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// LastObservationDate returns the most recent date in the log, or "" when
// the log is empty.
func (db *DB) LastObservationDate() (string, error) {
	var date sql.NullString
	err := db.conn.QueryRow("SELECT MAX(obs_date) FROM price_log").Scan(&date)
	if err != nil {
		return "", err
	}
	return date.String, nil
}

func scanObservations(rows *sql.Rows) ([]Observation, error) {
	var out []Observation
	for rows.Next() {
		var o Observation
		var url sql.NullString
		if err := rows.Scan(&o.Date, &o.Time, &o.Code, &o.Name, &o.Price, &o.Source, &url); err != nil {
			return nil, err
		}
		o.URL = url.String
		out = append(out, o)
	}
	return out, rows.Err()
}
