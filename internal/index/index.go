// Package index turns the sparse price log into a daily inflation index:
// an item×date price matrix with gap filling, a Laspeyres-style weighted
// index against the basket, per-category breakdowns and a month-end
// extrapolation.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/database"
)

// ErrNoDates is returned when the price log yields no usable date columns.
// Nothing can be computed; callers must surface this, not render zeros.
var ErrNoDates = errors.New("index: no date columns in price log")

// Matrix is the pivoted item×date price table after forward/backward fill.
// Every code present has a value for every date.
type Matrix struct {
	Codes []string
	Dates []string // chronological
	Cells map[string]map[string]float64
}

// Price returns the filled cell for (code, date).
func (m *Matrix) Price(code, date string) (float64, bool) {
	row, ok := m.Cells[code]
	if !ok {
		return 0, false
	}
	v, ok := row[date]
	return v, ok
}

// Point is one value of the index time series.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Mover is an item ranked by day-over-day price change.
type Mover struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	ChangePct float64 `json:"change_pct"` // last vs previous column, percent
}

// Result bundles everything derived from one build.
type Result struct {
	Matrix   *Matrix
	Series   []Point // overall index per date; Series[0].Value == 100
	BaseDate string
	LastDate string
	SpanDays int

	InflationPct      float64            // overall, at the last date
	CategoryInflation map[string]float64 // category name → inflation pct
	MonthEndPct       float64            // linear extrapolation to month end
	MonthDaysLeft     int

	Movers     []Mover            // sorted by ChangePct descending
	Volatility map[string]float64 // code → price variability, percent
}

// Build computes the price matrix and index series from the raw log and the
// basket. Rows with unparseable dates or non-positive prices are discarded.
func Build(observations []database.Observation, items []basket.Item) (*Result, error) {
	pivot, dates := pivotLastWins(observations)
	if len(dates) == 0 {
		return nil, ErrNoDates
	}

	m := fillMatrix(pivot, dates)

	weights := make(map[string]float64, len(items))
	names := make(map[string]string, len(items))
	categories := make(map[string]string, len(items))
	for _, it := range items {
		code := basket.NormalizeCode(it.Code)
		w := it.Weight
		if w < 0 {
			w = 0
		}
		weights[code] = w
		names[code] = it.Name
		categories[code] = it.Category
	}

	base := m.Dates[0]
	last := m.Dates[len(m.Dates)-1]

	series := make([]Point, 0, len(m.Dates))
	for _, d := range m.Dates {
		series = append(series, Point{Date: d, Value: weightedIndex(m, weights, d, base, "")})
	}

	r := &Result{
		Matrix:            m,
		Series:            series,
		BaseDate:          base,
		LastDate:          last,
		InflationPct:      series[len(series)-1].Value - 100,
		CategoryInflation: categoryInflation(m, weights, categories, last, base),
		Movers:            movers(m, names, categories),
		Volatility:        volatility(m),
	}

	if baseT, err := time.Parse("2006-01-02", base); err == nil {
		if lastT, err := time.Parse("2006-01-02", last); err == nil {
			r.SpanDays = int(lastT.Sub(baseT).Hours() / 24)
		}
	}

	r.MonthEndPct, r.MonthDaysLeft = MonthEndForecast(r.InflationPct, last)
	return r, nil
}

// pivotLastWins builds code → date → price with per-cell last-observation-
// wins aggregation, and the sorted set of observed dates.
func pivotLastWins(observations []database.Observation) (map[string]map[string]float64, []string) {
	pivot := make(map[string]map[string]float64)
	dateSet := make(map[string]struct{})

	for _, o := range observations {
		if o.Price <= 0 {
			continue
		}
		date, ok := coerceDate(o.Date)
		if !ok {
			continue
		}
		code := basket.NormalizeCode(o.Code)

		row, ok := pivot[code]
		if !ok {
			row = make(map[string]float64)
			pivot[code] = row
		}
		row[date] = o.Price
		dateSet[date] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return pivot, dates
}

// coerceDate brings an archived date to calendar-day granularity. The log
// has passed through spreadsheets, so formats drift.
func coerceDate(s string) (string, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// fillMatrix forward-fills then backward-fills each row along the date
// axis. After filling, a row with at least one real observation has a value
// at every date; codes with no observations at all are dropped.
func fillMatrix(pivot map[string]map[string]float64, dates []string) *Matrix {
	m := &Matrix{
		Dates: dates,
		Cells: make(map[string]map[string]float64, len(pivot)),
	}

	for code, sparse := range pivot {
		if len(sparse) == 0 {
			continue
		}
		filled := make(map[string]float64, len(dates))

		lastKnown := math.NaN()
		for _, d := range dates {
			if v, ok := sparse[d]; ok {
				lastKnown = v
			}
			if !math.IsNaN(lastKnown) {
				filled[d] = lastKnown
			}
		}
		// Backward pass for the leading gap before the first observation.
		nextKnown := math.NaN()
		for i := len(dates) - 1; i >= 0; i-- {
			d := dates[i]
			if v, ok := filled[d]; ok {
				nextKnown = v
				continue
			}
			if !math.IsNaN(nextKnown) {
				filled[d] = nextKnown
			}
		}

		m.Cells[code] = filled
		m.Codes = append(m.Codes, code)
	}

	sort.Strings(m.Codes)
	return m
}

// weightedIndex computes 100 * Σ(w_i · p_i(date)/p_i(base)) / Σ(w_i) over
// the codes with values at both dates, optionally restricted to a category
// code prefix. Returns NaN when the denominator is zero.
func weightedIndex(m *Matrix, weights map[string]float64, date, base, prefix string) float64 {
	num, den := 0.0, 0.0
	for _, code := range m.Codes {
		if prefix != "" && (len(code) < len(prefix) || code[:len(prefix)] != prefix) {
			continue
		}
		pBase, okBase := m.Price(code, base)
		pDate, okDate := m.Price(code, date)
		if !okBase || !okDate || pBase <= 0 {
			continue
		}
		w, ok := weights[code]
		if !ok {
			w = 1
		}
		num += w * (pDate / pBase)
		den += w
	}
	if den == 0 {
		return math.NaN()
	}
	return 100 * num / den
}

// categoryInflation computes the inflation percentage per consumption
// group present in the matrix.
func categoryInflation(m *Matrix, weights map[string]float64, categories map[string]string, last, base string) map[string]float64 {
	prefixes := make(map[string]string) // prefix → category name
	for _, code := range m.Codes {
		if len(code) < 2 {
			continue
		}
		name, ok := categories[code]
		if !ok {
			name = basket.CategoryFor(code)
		}
		prefixes[code[:2]] = name
	}

	out := make(map[string]float64, len(prefixes))
	for prefix, name := range prefixes {
		idx := weightedIndex(m, weights, last, base, prefix)
		if math.IsNaN(idx) {
			continue
		}
		out[name] = idx - 100
	}
	return out
}

// movers ranks items by day-over-day change across the last two date
// columns. With fewer than two columns every change is zero.
func movers(m *Matrix, names, categories map[string]string) []Mover {
	out := make([]Mover, 0, len(m.Codes))
	var prev, last string
	if len(m.Dates) >= 2 {
		prev = m.Dates[len(m.Dates)-2]
		last = m.Dates[len(m.Dates)-1]
	}

	for _, code := range m.Codes {
		mv := Mover{Code: code, Name: names[code], Category: categories[code]}
		if mv.Name == "" {
			mv.Name = code
		}
		if mv.Category == "" {
			mv.Category = basket.CategoryFor(code)
		}
		if prev != "" {
			pPrev, okPrev := m.Price(code, prev)
			pLast, okLast := m.Price(code, last)
			if okPrev && okLast && pPrev > 0 {
				mv.ChangePct = (pLast/pPrev - 1) * 100
			}
		}
		out = append(out, mv)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangePct > out[j].ChangePct })
	return out
}

// volatility computes per-item price variability as stddev/mean across the
// filled row, in percent.
func volatility(m *Matrix) map[string]float64 {
	out := make(map[string]float64, len(m.Codes))
	for _, code := range m.Codes {
		var sum float64
		n := 0
		for _, d := range m.Dates {
			if v, ok := m.Price(code, d); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		if mean == 0 {
			continue
		}
		var ss float64
		for _, d := range m.Dates {
			if v, ok := m.Price(code, d); ok {
				ss += (v - mean) * (v - mean)
			}
		}
		out[code] = math.Sqrt(ss/float64(n)) / mean * 100
	}
	return out
}

// MonthEndForecast linearly extrapolates the current inflation rate to the
// end of the month of lastDate:
//
//	forecast = inf + (inf / dayOfMonth) * daysRemaining
//
// The calendar day is clamped to at least 1. Returns the projected
// percentage and the number of days remaining.
func MonthEndForecast(inflationPct float64, lastDate string) (float64, int) {
	t, err := time.Parse("2006-01-02", lastDate)
	if err != nil {
		return inflationPct, 0
	}
	day := t.Day()
	if day < 1 {
		day = 1
	}
	daysInMonth := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	daysLeft := daysInMonth - day
	return inflationPct + (inflationPct/float64(day))*float64(daysLeft), daysLeft
}

// Fingerprint identifies the inputs of a build for caching: the date span,
// row count and last date of the log. Cheap to compute and changes whenever
// an ingest lands.
func Fingerprint(observations []database.Observation) string {
	if len(observations) == 0 {
		return "empty"
	}
	first := observations[0].Date
	last := observations[0].Date
	for _, o := range observations {
		if o.Date < first {
			first = o.Date
		}
		if o.Date > last {
			last = o.Date
		}
	}
	return fmt.Sprintf("%s..%s/%d", first, last, len(observations))
}
