package database

import "fmt"

// GetStats returns aggregate statistics for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM basket_items", &s.BasketItems},
		{"SELECT COUNT(*) FROM price_log", &s.Observations},
		{"SELECT COUNT(DISTINCT obs_date) FROM price_log", &s.DaysWithData},
		{"SELECT COUNT(*) FROM basket_items WHERE manual_price IS NOT NULL", &s.ManualOverrides},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}

	if err := db.conn.QueryRow(
		"SELECT COALESCE(MIN(obs_date), ''), COALESCE(MAX(obs_date), '') FROM price_log",
	).Scan(&s.FirstDate, &s.LastDate); err != nil {
		return nil, fmt.Errorf("collecting date range: %w", err)
	}

	return s, nil
}
