// Package server is the web dashboard: the index chart and KPIs, daily
// reports, comparison shopping and a small JSON API for the charts.
package server

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"github.com/enfmon/enfmon/internal/archive"
	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/cache"
	"github.com/enfmon/enfmon/internal/config"
	"github.com/enfmon/enfmon/internal/database"
	"github.com/enfmon/enfmon/internal/forecast"
	"github.com/enfmon/enfmon/internal/index"
	"github.com/enfmon/enfmon/internal/rates"
	"github.com/enfmon/enfmon/internal/shopping"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the dashboard.
type Server struct {
	db          *database.DB
	cfg         *config.Config
	pages       map[string]*template.Template
	mux         *http.ServeMux
	indexCache  *cache.Cache[*index.Result]
	ratesClient *rates.Client
	searcher    *shopping.Searcher
	metrics     *archive.Metrics
}

// New creates a new Server.
func New(db *database.DB, cfg *config.Config, metrics *archive.Metrics) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": database.FormatDateDisplay,
		"pct": func(v float64) string {
			if math.IsNaN(v) {
				return "-"
			}
			return fmt.Sprintf("%%%.2f", v)
		},
		"lira": func(v float64) string {
			if v == 0 {
				return "-"
			}
			return fmt.Sprintf("%.2f TL", v)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the
	// clone so each page has its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"dashboard.html", "reports.html", "report.html", "compare.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	ratesClient := rates.NewClient(nil, log.Default())
	if cfg.Rates.TCMBURL != "" {
		ratesClient.TCMBURL = cfg.Rates.TCMBURL
	}
	if cfg.Rates.GoldURL != "" {
		ratesClient.GoldURL = cfg.Rates.GoldURL
	}

	if metrics == nil {
		metrics = archive.NewMetrics()
	}

	s := &Server{
		db:          db,
		cfg:         cfg,
		pages:       pages,
		mux:         http.NewServeMux(),
		indexCache:  cache.New[*index.Result](8, 10*time.Minute),
		ratesClient: ratesClient,
		searcher:    shopping.NewSearcher(nil, cfg.Shopping.BaseURL),
		metrics:     metrics,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages
	s.mux.HandleFunc("/", s.handleDashboard)
	s.mux.HandleFunc("/reports", s.handleReports)
	s.mux.HandleFunc("/report/", s.handleReport)
	s.mux.HandleFunc("/compare", s.handleCompare)
	s.mux.HandleFunc("/update", s.handleUpdate)
	s.mux.HandleFunc("/export/fiyat-log.csv", s.handleExportLog)

	// JSON API
	s.mux.HandleFunc("/api/trend", s.handleAPITrend)
	s.mux.HandleFunc("/api/movers", s.handleAPIMovers)
	s.mux.HandleFunc("/api/rates", s.handleAPIRates)

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
}

// buildIndex computes (or reuses) the current index over the full log.
func (s *Server) buildIndex() (*index.Result, error) {
	observations, err := s.db.GetAllObservations()
	if err != nil {
		return nil, err
	}
	fingerprint := index.Fingerprint(observations)
	if r, ok := s.indexCache.Get("index", fingerprint); ok {
		return r, nil
	}

	rows, err := s.db.GetBasket()
	if err != nil {
		return nil, err
	}
	items := make([]basket.Item, 0, len(rows))
	for _, row := range rows {
		it := basket.Item{Code: row.Code, Name: row.Name, Category: row.Category, Weight: row.Weight, URL: row.URL}
		if row.ManualPrice != nil {
			it.ManualPrice = *row.ManualPrice
		}
		items = append(items, it)
	}

	r, err := index.Build(observations, items)
	if err != nil {
		return nil, err
	}
	s.indexCache.Set("index", fingerprint, r)
	return r, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.db.GetStats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Stats":   stats,
		"HasData": false,
		"Rates":   s.ratesClient.Fetch(),
	}

	built, err := s.buildIndex()
	if err == nil {
		type catRow struct {
			Name string
			Pct  float64
		}
		cats := make([]catRow, 0, len(built.CategoryInflation))
		for name, pct := range built.CategoryInflation {
			cats = append(cats, catRow{name, pct})
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i].Pct > cats[j].Pct })

		topMovers := built.Movers
		if len(topMovers) > 10 {
			topMovers = topMovers[:10]
		}

		data["HasData"] = true
		data["InflationPct"] = built.InflationPct
		data["MonthEndPct"] = built.MonthEndPct
		data["MonthDaysLeft"] = built.MonthDaysLeft
		data["BaseDate"] = built.BaseDate
		data["LastDate"] = built.LastDate
		data["SpanDays"] = built.SpanDays
		data["Categories"] = cats
		data["Movers"] = topMovers
	} else if err != index.ErrNoDates {
		log.Printf("Failed to build index: %v", err)
	}

	if report, err := s.db.GetReport(database.GetToday()); err == nil && report != nil {
		data["Report"] = report
	} else if reports, err := s.db.GetAllReports(); err == nil && len(reports) > 0 {
		data["Report"] = &reports[0]
	}

	s.render(w, "dashboard.html", data)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.GetAllReports()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "reports.html", map[string]any{"Reports": reports})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimPrefix(r.URL.Path, "/report/")
	if date == "" {
		http.Redirect(w, r, "/reports", http.StatusFound)
		return
	}

	report, _ := s.db.GetReport(date)
	s.render(w, "report.html", map[string]any{
		"Report": report,
		"Date":   date,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := map[string]any{"Query": query}

	if query != "" {
		offers, err := s.searcher.Search(query)
		if err != nil {
			log.Printf("Comparison search failed: %v", err)
			data["SearchFailed"] = true
		} else {
			data["Offers"] = offers
		}
	}
	s.render(w, "compare.html", data)
}

// handleUpdate ingests whatever bundles are waiting and rebuilds the index.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	bundles, _ := filepath.Glob(filepath.Join(s.cfg.GetBundlesDir(), "*.zip"))
	sort.Strings(bundles)
	if len(bundles) > 0 {
		u := &archive.Updater{DB: s.db, Logger: log.Default(), Metrics: s.metrics}
		if n, err := u.Run(bundles); err != nil {
			log.Printf("Update failed: %v", err)
		} else {
			log.Printf("Update wrote %d observations", n)
		}
		s.indexCache.Invalidate("index")
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleExportLog downloads the full price log in the Fiyat_Log sheet
// layout, the interchange format the archive bundles grew out of.
func (s *Server) handleExportLog(w http.ResponseWriter, r *http.Request) {
	observations, err := s.db.GetAllObservations()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="Fiyat_Log.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"Tarih", "Zaman", "Kod", "Madde_Adi", "Fiyat", "Kaynak", "URL"})
	for _, o := range observations {
		cw.Write([]string{
			o.Date, o.Time, o.Code, o.Name,
			strconv.FormatFloat(o.Price, 'f', 2, 64),
			o.Source, o.URL,
		})
	}
	cw.Flush()
}

func (s *Server) handleAPITrend(w http.ResponseWriter, r *http.Request) {
	built, err := s.buildIndex()
	if err != nil {
		writeJSON(w, map[string]any{"series": []index.Point{}, "forecast": []forecast.Point{}})
		return
	}

	series := make([]index.Point, 0, len(built.Series))
	for _, p := range built.Series {
		if math.IsNaN(p.Value) {
			continue
		}
		series = append(series, p)
	}

	writeJSON(w, map[string]any{
		"series":   series,
		"forecast": forecast.Linear{}.Forecast(series, forecast.DefaultHorizon),
	})
}

func (s *Server) handleAPIMovers(w http.ResponseWriter, r *http.Request) {
	built, err := s.buildIndex()
	if err != nil {
		writeJSON(w, []index.Mover{})
		return
	}
	writeJSON(w, built.Movers)
}

func (s *Server) handleAPIRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ratesClient.Fetch())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, cfg *config.Config, metrics *archive.Metrics, port int) error {
	srv, err := New(db, cfg, metrics)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
