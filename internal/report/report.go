// Package report turns one day's numbers and headlines into the executive
// summary shown on the dashboard: a sentiment read of the news plus a short
// markdown narrative, persisted per report date.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/enfmon/enfmon/internal/database"
	"github.com/enfmon/enfmon/internal/index"
	"github.com/enfmon/enfmon/internal/llm"
	"github.com/enfmon/enfmon/internal/news"
	"github.com/enfmon/enfmon/internal/rates"
)

const sentimentPrompt = `You are analyzing Turkish economy news for a consumer price dashboard.

Here are today's headlines:
%s

Judge the overall mood of this coverage for a household watching food and consumer prices.

Respond with ONLY this JSON:
{
    "mood": "one of: olumlu, nötr, olumsuz",
    "highlight": "the single most price-relevant headline, verbatim",
    "commentary": "one sentence in Turkish on what these headlines mean for prices"
}`

const narrativePrompt = `You are writing the daily summary of an independent consumer price monitor in Turkey.

Today's measurements:
%s

News context:
%s

Write 2-3 short paragraphs in Turkish for a non-economist reader: what moved, what it likely means for the rest of the month, and what the news adds. Be concrete about items and percentages from the data. No greetings, no disclaimers. Use markdown for emphasis.`

// Sentiment is the structured mood read of the day's headlines.
type Sentiment struct {
	Mood       string `json:"mood"`
	Highlight  string `json:"highlight"`
	Commentary string `json:"commentary"`
}

// Input carries everything a report is built from.
type Input struct {
	Date              string
	InflationPct      float64
	MonthEndPct       float64
	SpanDays          int
	CategoryInflation map[string]float64
	Movers            []index.Mover
	Rates             rates.Rates
	Headlines         []news.Headline
	LeadArticle       string
}

// Summarizer produces the narrative part of a report. The default
// implementation talks to an LLM; a deterministic fallback is used when no
// provider is configured.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// Generator builds and persists daily reports.
type Generator struct {
	db       *database.DB
	provider llm.Provider
}

// NewGenerator creates a report generator. provider may be nil; reports
// then fall back to a plain data summary.
func NewGenerator(db *database.DB, provider llm.Provider) *Generator {
	return &Generator{db: db, provider: provider}
}

// AnalyzeSentiment asks the provider for a mood read of the headlines.
// Returns nil when no provider is configured, there are no headlines, or
// the response is unusable.
func (g *Generator) AnalyzeSentiment(ctx context.Context, headlines []news.Headline) *Sentiment {
	if g.provider == nil || len(headlines) == 0 {
		return nil
	}

	var b strings.Builder
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Source)
	}

	responseText, err := g.provider.Generate(ctx, fmt.Sprintf(sentimentPrompt, b.String()))
	if err != nil {
		log.Printf("Sentiment analysis failed: %v", err)
		return nil
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil
	}
	s := &Sentiment{
		Mood:       getStr(parsed, "mood", "nötr"),
		Highlight:  getStr(parsed, "highlight", ""),
		Commentary: getStr(parsed, "commentary", ""),
	}
	return s
}

// Generate builds the report for in.Date, persists it and returns it.
// Re-generating the same date replaces the stored body.
func (g *Generator) Generate(ctx context.Context, in Input) (*database.Report, error) {
	sentiment := g.AnalyzeSentiment(ctx, in.Headlines)

	narrative := ""
	if g.provider != nil {
		text, err := g.Summarize(ctx, in)
		if err != nil {
			log.Printf("Narrative generation failed, using data summary: %v", err)
		} else {
			narrative = text
		}
	}
	if narrative == "" {
		narrative = dataSummary(in)
	}

	body := composeBody(in, sentiment, narrative)
	if _, err := g.db.UpsertReport(in.Date, body); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	return g.db.GetReport(in.Date)
}

// Summarize implements Summarizer with the configured LLM provider.
func (g *Generator) Summarize(ctx context.Context, in Input) (string, error) {
	if g.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	newsContext := "Bugün öne çıkan haber yok."
	if len(in.Headlines) > 0 {
		var b strings.Builder
		for i, h := range in.Headlines {
			if i >= 10 {
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.Source)
		}
		if in.LeadArticle != "" {
			lead := in.LeadArticle
			if len(lead) > 2000 {
				lead = lead[:2000]
			}
			fmt.Fprintf(&b, "\nLead article excerpt:\n%s\n", lead)
		}
		newsContext = b.String()
	}

	prompt := fmt.Sprintf(narrativePrompt, dataSummary(in), newsContext)
	text, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// dataSummary renders the measurements as markdown bullets. It is both the
// LLM's input and the fallback narrative.
func dataSummary(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Sepet enflasyonu (%d günlük): %%%.2f\n", in.SpanDays, in.InflationPct)
	fmt.Fprintf(&b, "- Ay sonu tahmini: %%%.2f\n", in.MonthEndPct)

	if len(in.CategoryInflation) > 0 {
		type kv struct {
			name string
			pct  float64
		}
		cats := make([]kv, 0, len(in.CategoryInflation))
		for name, pct := range in.CategoryInflation {
			cats = append(cats, kv{name, pct})
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i].pct > cats[j].pct })
		for _, c := range cats {
			fmt.Fprintf(&b, "- %s: %%%.2f\n", c.name, c.pct)
		}
	}

	for i, m := range in.Movers {
		if i >= 5 || m.ChangePct == 0 {
			break
		}
		fmt.Fprintf(&b, "- Günün hareketi: %s %%%.2f\n", m.Name, m.ChangePct)
	}

	if in.Rates.USD > 0 {
		fmt.Fprintf(&b, "- Dolar: %.2f TL, Euro: %.2f TL, Gram altın: %.2f TL\n",
			in.Rates.USD, in.Rates.EUR, in.Rates.GoldGram)
	}
	return b.String()
}

func composeBody(in Input, sentiment *Sentiment, narrative string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Günlük Rapor, %s\n\n", database.FormatDateDisplay(in.Date))
	b.WriteString(narrative)
	b.WriteString("\n")

	if sentiment != nil {
		fmt.Fprintf(&b, "\n### Haber havası: %s\n\n", sentiment.Mood)
		if sentiment.Highlight != "" {
			fmt.Fprintf(&b, "> %s\n\n", sentiment.Highlight)
		}
		if sentiment.Commentary != "" {
			b.WriteString(sentiment.Commentary)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func getStr(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
