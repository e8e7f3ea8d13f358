package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func f64(v float64) *float64 { return &v }

func TestAppendObservationsLastWriteWins(t *testing.T) {
	db := openTestDB(t)

	first := []Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111001", Name: "Süt", Price: 40, Source: "Migros(N)"},
	}
	if n, err := db.AppendObservations(first); err != nil || n != 1 {
		t.Fatalf("first append: n=%d err=%v", n, err)
	}

	// Same day, same code, later price: the earlier row must be replaced,
	// not averaged and not duplicated.
	second := []Observation{
		{Date: "2026-08-01", Time: "17:30", Code: "0111001", Name: "Süt", Price: 42, Source: "Manuel"},
	}
	if n, err := db.AppendObservations(second); err != nil || n != 1 {
		t.Fatalf("second append: n=%d err=%v", n, err)
	}

	rows, err := db.GetObservationsForDate("2026-08-01")
	if err != nil {
		t.Fatalf("reading observations: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row after replacement, got %d", len(rows))
	}
	if rows[0].Price != 42 || rows[0].Source != "Manuel" {
		t.Errorf("expected replacement row (42, Manuel), got (%v, %s)", rows[0].Price, rows[0].Source)
	}
}

func TestAppendObservationsIdempotent(t *testing.T) {
	db := openTestDB(t)
	batch := []Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111001", Name: "Süt", Price: 40, Source: "Migros(N)"},
	}

	for i := 0; i < 2; i++ {
		if _, err := db.AppendObservations(batch); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	rows, _ := db.GetObservationsForDate("2026-08-01")
	if len(rows) != 1 {
		t.Errorf("expected 1 row after duplicate submission, got %d", len(rows))
	}
}

func TestAppendObservationsKeepsOtherDays(t *testing.T) {
	db := openTestDB(t)
	db.AppendObservations([]Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111001", Name: "Süt", Price: 40, Source: "Migros(N)"},
		{Date: "2026-08-01", Time: "09:00", Code: "0111002", Name: "Ekmek", Price: 15, Source: "Genel(CSS)"},
	})
	db.AppendObservations([]Observation{
		{Date: "2026-08-02", Time: "09:00", Code: "0111001", Name: "Süt", Price: 41, Source: "Migros(N)"},
	})

	all, err := db.GetAllObservations()
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows across two days, got %d", len(all))
	}

	last, _ := db.LastObservationDate()
	if last != "2026-08-02" {
		t.Errorf("expected last date 2026-08-02, got %q", last)
	}
}

func TestAppendSkipsNonPositivePrices(t *testing.T) {
	db := openTestDB(t)
	n, err := db.AppendObservations([]Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111001", Name: "Süt", Price: 0, Source: "Regex"},
		{Date: "2026-08-01", Time: "09:00", Code: "0111002", Name: "Ekmek", Price: 15, Source: "Genel(CSS)"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the positive-price row inserted, got %d", n)
	}
}

func TestReplaceAndReadBasket(t *testing.T) {
	db := openTestDB(t)

	rows := []BasketRow{
		{Code: "0111001", Name: "Süt", Category: "Gıda", Weight: 2.5, URL: "https://x.example/sut"},
		{Code: "0411003", Name: "Kira", Category: "Konut", Weight: 1, URL: "https://x.example/kira", ManualPrice: f64(15000)},
	}
	if err := db.ReplaceBasket(rows); err != nil {
		t.Fatalf("replacing basket: %v", err)
	}

	got, err := db.GetBasket()
	if err != nil {
		t.Fatalf("reading basket: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[1].ManualPrice == nil || *got[1].ManualPrice != 15000 {
		t.Errorf("manual price not persisted: %+v", got[1])
	}

	// Re-import replaces, never accumulates.
	if err := db.ReplaceBasket(rows[:1]); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = db.GetBasket()
	if len(got) != 1 {
		t.Errorf("expected basket replaced down to 1 item, got %d", len(got))
	}
}

func TestSetManualPrice(t *testing.T) {
	db := openTestDB(t)
	db.ReplaceBasket([]BasketRow{
		{Code: "0111001", Name: "Süt", Category: "Gıda", Weight: 1, URL: "https://x.example/sut"},
	})

	if err := db.SetManualPrice("0111001", f64(49.90)); err != nil {
		t.Fatalf("setting manual price: %v", err)
	}
	item, _ := db.GetBasketItem("0111001")
	if item == nil || item.ManualPrice == nil || *item.ManualPrice != 49.90 {
		t.Fatalf("manual price not set: %+v", item)
	}

	if err := db.SetManualPrice("0111001", nil); err != nil {
		t.Fatalf("clearing manual price: %v", err)
	}
	item, _ = db.GetBasketItem("0111001")
	if item.ManualPrice != nil {
		t.Error("manual price not cleared")
	}

	if err := db.SetManualPrice("9999999", f64(1)); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestReports(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UpsertReport("2026-08-01", "## Rapor\nilk"); err != nil {
		t.Fatalf("inserting report: %v", err)
	}
	if _, err := db.UpsertReport("2026-08-01", "## Rapor\nguncel"); err != nil {
		t.Fatalf("updating report: %v", err)
	}

	r, err := db.GetReport("2026-08-01")
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if r == nil || r.BodyMarkdown != "## Rapor\nguncel" {
		t.Errorf("expected updated body, got %+v", r)
	}

	if r, _ := db.GetReport("2026-01-01"); r != nil {
		t.Error("expected nil for missing report")
	}

	all, _ := db.GetAllReports()
	if len(all) != 1 {
		t.Errorf("expected 1 report, got %d", len(all))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.ReplaceBasket([]BasketRow{
		{Code: "0111001", Name: "Süt", Category: "Gıda", Weight: 1, URL: "u", ManualPrice: f64(10)},
	})
	db.AppendObservations([]Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111001", Name: "Süt", Price: 40, Source: "Manuel"},
		{Date: "2026-08-02", Time: "09:00", Code: "0111001", Name: "Süt", Price: 41, Source: "Manuel"},
	})

	s, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.BasketItems != 1 || s.Observations != 2 || s.DaysWithData != 2 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.FirstDate != "2026-08-01" || s.LastDate != "2026-08-02" {
		t.Errorf("unexpected date range: %+v", s)
	}
	if s.ManualOverrides != 1 {
		t.Errorf("expected 1 manual override, got %d", s.ManualOverrides)
	}
}
