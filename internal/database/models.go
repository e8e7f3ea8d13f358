package database

// Observation is one scraped or manually entered price sample.
// Field semantics mirror the Fiyat_Log sheet the archive is exchanged as:
// Tarih, Zaman, Kod, Madde_Adi, Fiyat, Kaynak, URL.
type Observation struct {
	Date   string  // calendar day, YYYY-MM-DD
	Time   string  // HH:MM
	Code   string  // normalized 7-digit item code
	Name   string  // item display name
	Price  float64 // always > 0; non-positive results are never stored
	Source string  // provenance tag of the extraction strategy
	URL    string
}

// BasketRow is a persisted basket item.
type BasketRow struct {
	Code        string
	Name        string
	Category    string
	Weight      float64
	URL         string
	ManualPrice *float64
	UpdatedAt   *string
}

// Report is a generated narrative report for one day.
type Report struct {
	ID           int64
	ReportDate   string
	BodyMarkdown string
	GeneratedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	BasketItems      int
	Observations     int
	DaysWithData     int
	FirstDate        string
	LastDate         string
	ManualOverrides  int
	Reports          int
}
