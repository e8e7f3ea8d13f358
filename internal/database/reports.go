package database

import "database/sql"

// UpsertReport stores the narrative report for a day, replacing any
// previous one for the same date.
func (db *DB) UpsertReport(reportDate, bodyMarkdown string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO reports (report_date, body_markdown) VALUES (?, ?)
		ON CONFLICT(report_date) DO UPDATE SET
			body_markdown = excluded.body_markdown,
			generated_at = datetime('now')`,
		reportDate, bodyMarkdown,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns the report for a date, nil when none exists.
func (db *DB) GetReport(reportDate string) (*Report, error) {
	var r Report
	err := db.conn.QueryRow(
		`SELECT id, report_date, body_markdown, generated_at
		FROM reports WHERE report_date = ?`, reportDate,
	).Scan(&r.ID, &r.ReportDate, &r.BodyMarkdown, &r.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAllReports returns reports newest first.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, report_date, body_markdown, generated_at
		FROM reports ORDER BY report_date DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ReportDate, &r.BodyMarkdown, &r.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
