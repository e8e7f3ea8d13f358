// Package forecast projects the index series forward. The default model is
// an ordinary least squares trend with a residual-based interval; anything
// smarter can be plugged in behind the Forecaster interface.
package forecast

import (
	"math"
	"time"

	"github.com/enfmon/enfmon/internal/index"
)

// DefaultHorizon is how many days ahead the dashboard projects.
const DefaultHorizon = 90

// Point is one projected value with its uncertainty band.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Forecaster projects a historical index series horizon days past its last
// date. Implementations return an empty slice when the series cannot
// support a projection; callers render "no forecast", never an error page.
type Forecaster interface {
	Forecast(series []index.Point, horizon int) []Point
}

// Linear fits a least squares trend line through the series and widens it
// with a band of ±z standard deviations of the fit residuals.
type Linear struct {
	// Z scales the interval width. Zero means 1.96 (a 95% band under
	// normal residuals).
	Z float64
}

func (l Linear) Forecast(series []index.Point, horizon int) []Point {
	if horizon <= 0 {
		return nil
	}

	xs, ys, last, ok := seriesToXY(series)
	if !ok || len(xs) < 2 {
		return nil
	}

	slope, intercept, ok := fitLine(xs, ys)
	if !ok {
		return nil
	}

	var ss float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		ss += r * r
	}
	sigma := math.Sqrt(ss / float64(len(xs)))

	z := l.Z
	if z == 0 {
		z = 1.96
	}
	band := z * sigma

	lastX := xs[len(xs)-1]
	out := make([]Point, 0, horizon)
	for i := 1; i <= horizon; i++ {
		x := lastX + float64(i)
		v := intercept + slope*x
		out = append(out, Point{
			Date:  last.AddDate(0, 0, i).Format("2006-01-02"),
			Value: v,
			Lower: v - band,
			Upper: v + band,
		})
	}
	return out
}

// seriesToXY converts the series to day offsets from its first date,
// skipping unparseable dates and NaN values.
func seriesToXY(series []index.Point) (xs, ys []float64, last time.Time, ok bool) {
	var first time.Time
	haveFirst := false
	for _, p := range series {
		t, err := time.Parse("2006-01-02", p.Date)
		if err != nil || math.IsNaN(p.Value) {
			continue
		}
		if !haveFirst {
			first = t
			haveFirst = true
		}
		xs = append(xs, t.Sub(first).Hours()/24)
		ys = append(ys, p.Value)
		last = t
	}
	return xs, ys, last, haveFirst
}

// fitLine computes the least squares slope and intercept. Reports false
// when every x is identical.
func fitLine(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, 0, false
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept, true
}
