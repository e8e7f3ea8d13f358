// Package pipeline orchestrates a full monitor run: ingest the page
// bundles, rebuild the index, pull rates and headlines, and write the daily
// report.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/enfmon/enfmon/internal/archive"
	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/config"
	"github.com/enfmon/enfmon/internal/database"
	"github.com/enfmon/enfmon/internal/forecast"
	"github.com/enfmon/enfmon/internal/index"
	"github.com/enfmon/enfmon/internal/llm"
	"github.com/enfmon/enfmon/internal/news"
	"github.com/enfmon/enfmon/internal/rates"
	"github.com/enfmon/enfmon/internal/report"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full run.
type Result struct {
	Date  string
	Steps []StepResult
}

// Pipeline wires the monitor's stages together.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	metrics  *archive.Metrics
}

// New creates a pipeline. The LLM provider comes from the summarization
// config and may end up nil; the report step then degrades to a data
// summary.
func New(cfg *config.Config, db *database.DB, metrics *archive.Metrics) *Pipeline {
	summ := cfg.Summarization
	provider := llm.CreateProvider(
		summ.Provider,
		summ.Model,
		summ.OllamaURL,
		summ.OpenAIModel,
		summ.APIKeyEnv,
		summ.MaxTokens,
	)

	return &Pipeline{cfg: cfg, db: db, provider: provider, metrics: metrics}
}

// Run executes the full 5-step run. With no bundles given, the configured
// bundle directory is scanned for *.zip files.
func (p *Pipeline) Run(ctx context.Context, bundles []string) *Result {
	r := &Result{Date: database.GetToday()}

	if len(bundles) == 0 {
		bundles = p.discoverBundles()
	}

	// Step 1: Ingest
	step := p.runIngest(bundles)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 2: Index
	step, built := p.runIndex()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Forecast
	r.Steps = append(r.Steps, p.runForecast(built))

	// Step 4: News and rates
	step, headlines, lead := p.runNews()
	r.Steps = append(r.Steps, step)
	marketRates := rates.NewClient(nil, log.Default()).Fetch()

	// Step 5: Report
	r.Steps = append(r.Steps, p.runReport(ctx, built, headlines, lead, marketRates))

	return r
}

// DryRun shows what a run would do without touching anything.
func (p *Pipeline) DryRun() *Result {
	r := &Result{Date: database.GetToday()}

	bundles := p.discoverBundles()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("[dry-run] %d bundles waiting in %s", len(bundles), p.cfg.GetBundlesDir()),
	})

	items, _ := p.db.GetBasket()
	observations, _ := p.db.GetAllObservations()
	lastDate, _ := p.db.LastObservationDate()
	if lastDate == "" {
		lastDate = "never"
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Index",
		Summary: fmt.Sprintf("[dry-run] %d basket items, %d observations, last ingest %s", len(items), len(observations), lastDate),
	})

	existing, _ := p.db.GetReport(r.Date)
	if existing != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: fmt.Sprintf("[dry-run] report for %s exists and would be replaced", r.Date),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: fmt.Sprintf("[dry-run] would write the report for %s", r.Date),
		})
	}

	return r
}

func (p *Pipeline) discoverBundles() []string {
	matches, err := filepath.Glob(filepath.Join(p.cfg.GetBundlesDir(), "*.zip"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func (p *Pipeline) runIngest(bundles []string) StepResult {
	log.Println("Step 1/5: Ingesting page bundles...")
	if len(bundles) == 0 {
		return StepResult{
			Name:    "Ingest",
			Summary: "No bundles found, keeping the existing log",
		}
	}

	u := &archive.Updater{DB: p.db, Logger: log.Default(), Metrics: p.metrics}
	n, err := u.Run(bundles)
	if err != nil {
		return StepResult{Name: "Ingest", Err: err}
	}
	return StepResult{
		Name:    "Ingest",
		Summary: fmt.Sprintf("Wrote %d observations from %d bundles", n, len(bundles)),
	}
}

func (p *Pipeline) runIndex() (StepResult, *index.Result) {
	log.Println("Step 2/5: Building the index...")
	built, err := p.buildIndex()
	if err != nil {
		return StepResult{Name: "Index", Err: err}, nil
	}
	return StepResult{
		Name: "Index",
		Summary: fmt.Sprintf("Index at %.2f over %d days (%d items)",
			100+built.InflationPct, built.SpanDays, len(built.Matrix.Codes)),
	}, built
}

func (p *Pipeline) buildIndex() (*index.Result, error) {
	observations, err := p.db.GetAllObservations()
	if err != nil {
		return nil, fmt.Errorf("failed to read price log: %w", err)
	}
	rows, err := p.db.GetBasket()
	if err != nil {
		return nil, fmt.Errorf("failed to read basket: %w", err)
	}
	return index.Build(observations, basketItems(rows))
}

func (p *Pipeline) runForecast(built *index.Result) StepResult {
	log.Println("Step 3/5: Projecting the index...")
	points := forecast.Linear{}.Forecast(built.Series, forecast.DefaultHorizon)
	if len(points) == 0 {
		return StepResult{Name: "Forecast", Summary: "Not enough history to project"}
	}
	lastPoint := points[len(points)-1]
	return StepResult{
		Name:    "Forecast",
		Summary: fmt.Sprintf("%d-day projection ends at %.2f", forecast.DefaultHorizon, lastPoint.Value),
	}
}

func (p *Pipeline) runNews() (StepResult, []news.Headline, string) {
	log.Println("Step 4/5: Collecting headlines...")
	collector := news.NewCollector(newsFeeds(p.cfg), nil, log.Default())
	headlines := collector.Headlines(p.cfg.News.DaysBack, p.cfg.News.MaxHeadlines)
	lead, _ := collector.LeadArticle(headlines)
	return StepResult{
		Name:    "News",
		Summary: fmt.Sprintf("Collected %d headlines", len(headlines)),
	}, headlines, lead
}

func (p *Pipeline) runReport(ctx context.Context, built *index.Result, headlines []news.Headline, lead string, marketRates rates.Rates) StepResult {
	log.Println("Step 5/5: Writing the daily report...")
	gen := report.NewGenerator(p.db, p.provider)
	rep, err := gen.Generate(ctx, report.Input{
		Date:              database.GetToday(),
		InflationPct:      built.InflationPct,
		MonthEndPct:       built.MonthEndPct,
		SpanDays:          built.SpanDays,
		CategoryInflation: built.CategoryInflation,
		Movers:            built.Movers,
		Rates:             marketRates,
		Headlines:         headlines,
		LeadArticle:       lead,
	})
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	return StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Report stored for %s", rep.ReportDate),
	}
}

func basketItems(rows []database.BasketRow) []basket.Item {
	items := make([]basket.Item, 0, len(rows))
	for _, r := range rows {
		it := basket.Item{
			Code:     r.Code,
			Name:     r.Name,
			Category: r.Category,
			Weight:   r.Weight,
			URL:      r.URL,
		}
		if r.ManualPrice != nil {
			it.ManualPrice = *r.ManualPrice
		}
		items = append(items, it)
	}
	return items
}

func newsFeeds(cfg *config.Config) []news.FeedConfig {
	feeds := make([]news.FeedConfig, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		feeds = append(feeds, news.FeedConfig{URL: f.URL, Name: f.Name})
	}
	return feeds
}
