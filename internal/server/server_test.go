package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/enfmon/enfmon/internal/config"
	"github.com/enfmon/enfmon/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Shopping: config.Shopping{BaseURL: "https://compare.test"},
		Rates: config.Rates{
			TCMBURL: "https://rates.test/today.xml",
			GoldURL: "https://rates.test/gold",
		},
	}
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, testConfig(), nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	// Keep the rates client off the network; unmatched requests fail fast
	// and Fetch degrades to zeros.
	httpmock.ActivateNonDefault(srv.ratesClient.HTTP)
	t.Cleanup(httpmock.DeactivateAndReset)
	return srv
}

func seedObservations(t *testing.T, db *database.DB) {
	t.Helper()
	err := db.ReplaceBasket([]database.BasketRow{
		{Code: "0111101", Name: "Ekmek", Category: "Gıda", Weight: 1, URL: "https://example.com/p/ekmek"},
		{Code: "0710101", Name: "Benzin", Category: "Ulaşım", Weight: 1, URL: "https://example.com/p/benzin"},
	})
	if err != nil {
		t.Fatalf("failed to seed basket: %v", err)
	}
	_, err = db.AppendObservations([]database.Observation{
		{Date: "2026-08-01", Time: "09:00", Code: "0111101", Name: "Ekmek", Price: 10, Source: "Test"},
		{Date: "2026-08-01", Time: "09:00", Code: "0710101", Name: "Benzin", Price: 50, Source: "Test"},
		{Date: "2026-08-02", Time: "09:00", Code: "0111101", Name: "Ekmek", Price: 11, Source: "Test"},
		{Date: "2026-08-02", Time: "09:00", Code: "0710101", Name: "Benzin", Price: 51, Source: "Test"},
	})
	if err != nil {
		t.Fatalf("failed to seed observations: %v", err)
	}
}

func TestDashboardEmptyDB(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Henüz veri yok") {
		t.Error("expected the empty-state message")
	}
}

func TestDashboardWithData(t *testing.T) {
	db := openTestDB(t)
	seedObservations(t, db)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Sepet enflasyonu", "Ekmek", "Gıda"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestReportRoute(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertReport("2026-08-30", "## Günlük Rapor\n\nFiyatlar **yatay** seyretti."); err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/report/2026-08-30", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	// Markdown is rendered, not echoed.
	if !strings.Contains(rec.Body.String(), "<strong>yatay</strong>") {
		t.Error("expected rendered markdown in report page")
	}
}

func TestReportMissing(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/report/2026-01-01", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "için rapor yok") {
		t.Error("expected the missing-report message")
	}
}

func TestReportsListRoute(t *testing.T) {
	db := openTestDB(t)
	db.UpsertReport("2026-08-29", "body")
	db.UpsertReport("2026-08-30", "body")
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/reports", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/report/2026-08-30") {
		t.Error("expected report links in list")
	}
}

func TestAPITrend(t *testing.T) {
	db := openTestDB(t)
	seedObservations(t, db)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/trend", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Series []struct {
			Date  string  `json:"date"`
			Value float64 `json:"value"`
		} `json:"series"`
		Forecast []struct {
			Date string `json:"date"`
		} `json:"forecast"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(payload.Series) != 2 {
		t.Fatalf("got %d series points, want 2", len(payload.Series))
	}
	if payload.Series[0].Value != 100 {
		t.Errorf("base point = %v, want 100", payload.Series[0].Value)
	}
	if len(payload.Forecast) == 0 {
		t.Error("expected forecast points")
	}
}

func TestAPITrendEmptyDB(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/api/trend", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestAPIMovers(t *testing.T) {
	db := openTestDB(t)
	seedObservations(t, db)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/movers", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var movers []struct {
		Code      string  `json:"code"`
		ChangePct float64 `json:"change_pct"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &movers); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(movers) != 2 {
		t.Fatalf("got %d movers, want 2", len(movers))
	}
	// Ekmek moved 10%, Benzin 2%: descending order.
	if movers[0].Code != "0111101" {
		t.Errorf("top mover = %s, want 0111101", movers[0].Code)
	}
}

func TestCompareRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	httpmock.ActivateNonDefault(srv.searcher.HTTP)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", "https://compare.test/arama",
		httpmock.NewStringResponder(200, `<html><body>
<li class="product-card">
  <a href="/urun/sut"><h3>Süt 1L</h3></a>
  <span class="merchant">MarketA</span>
  <span aria-label="Şu Anki Fiyat: 38,90 TL">38,90 TL</span>
</li></body></html>`))

	req := httptest.NewRequest("GET", "/compare?q=s%C3%BCt", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Süt 1L") {
		t.Error("expected offer in compare page")
	}
}

func TestCompareNoQuery(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/compare", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUpdateRequiresPost(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/update", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302 redirect, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "topbar") {
		t.Error("expected CSS content")
	}
}

func TestExportLog(t *testing.T) {
	db := openTestDB(t)
	seedObservations(t, db)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/export/fiyat-log.csv", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Errorf("expected CSV content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Tarih,Zaman,Kod,Madde_Adi,Fiyat,Kaynak,URL") {
		t.Errorf("unexpected header row: %q", strings.SplitN(body, "\n", 2)[0])
	}
	if !strings.Contains(body, "2026-08-02,09:00,0111101,Ekmek,11.00,Test,") {
		t.Error("expected the seeded observation row")
	}
}
