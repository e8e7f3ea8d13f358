package database

import (
	"database/sql"
	"fmt"
)

// ReplaceBasket swaps the stored basket for the given rows in one
// transaction. The basket sheet is the source of truth; a re-import always
// reflects it exactly.
func (db *DB) ReplaceBasket(rows []BasketRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin basket replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM basket_items"); err != nil {
		return fmt.Errorf("clearing basket: %w", err)
	}
	for _, r := range rows {
		if _, err := tx.Exec(
			`INSERT INTO basket_items (code, name, category, weight, url, manual_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.Code, r.Name, r.Category, r.Weight, r.URL, r.ManualPrice,
		); err != nil {
			return fmt.Errorf("inserting basket item %s: %w", r.Code, err)
		}
	}
	return tx.Commit()
}

// GetBasket returns all basket items ordered by code.
func (db *DB) GetBasket() ([]BasketRow, error) {
	rows, err := db.conn.Query(
		`SELECT code, name, category, weight, url, manual_price, updated_at
		FROM basket_items ORDER BY code`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BasketRow
	for rows.Next() {
		var r BasketRow
		if err := rows.Scan(&r.Code, &r.Name, &r.Category, &r.Weight, &r.URL, &r.ManualPrice, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetBasketItem returns one item by normalized code, nil when absent.
func (db *DB) GetBasketItem(code string) (*BasketRow, error) {
	var r BasketRow
	err := db.conn.QueryRow(
		`SELECT code, name, category, weight, url, manual_price, updated_at
		FROM basket_items WHERE code = ?`, code,
	).Scan(&r.Code, &r.Name, &r.Category, &r.Weight, &r.URL, &r.ManualPrice, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetManualPrice stores or clears the operator override for an item.
// A nil price clears it.
func (db *DB) SetManualPrice(code string, price *float64) error {
	res, err := db.conn.Exec(
		"UPDATE basket_items SET manual_price = ?, updated_at = datetime('now') WHERE code = ?",
		price, code,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("basket item %s not found", code)
	}
	return nil
}
