package dashboard

import (
	"errors"
	"fmt"
	"math"

	"finctl/internal/core"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
)

const (
	MethodLinear = "linear"
	MethodFlat   = "flat"

	MaxHorizon = 36
)

var ErrInvalidHorizon = errors.New("forecast horizon must be between 1 and 36 months")

// ForecastResult holds the projected months. It is a naive trend
// extrapolation, not a statistical model.
type ForecastResult struct {
	Method      string         `json:"method"`
	MonthsAhead int            `json:"months_ahead"`
	History     int            `json:"history_months"`
	Forecast    []MonthlyPoint `json:"forecast"`
}

// Forecast fits a least-squares line to each monthly series and extends it
// monthsAhead months past the last statement month. With fewer than two
// months of history the last values are repeated.
func Forecast(stmt pnl.Statement, monthsAhead int) (ForecastResult, error) {
	if monthsAhead < 1 || monthsAhead > MaxHorizon {
		return ForecastResult{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, monthsAhead)
	}
	last, ok := stmt.Latest()
	if !ok {
		return ForecastResult{}, core.ErrNoData
	}

	history := make([]MonthlyPoint, len(stmt.Headers))
	for i, m := range stmt.Headers {
		history[i] = point(stmt, m)
	}

	res := ForecastResult{
		Method:      MethodLinear,
		MonthsAhead: monthsAhead,
		History:     len(history),
		Forecast:    make([]MonthlyPoint, monthsAhead),
	}
	if len(history) < 2 {
		res.Method = MethodFlat
	}

	series := []struct {
		get func(MonthlyPoint) float64
		set func(*MonthlyPoint, float64)
	}{
		{func(p MonthlyPoint) float64 { return p.Revenue }, func(p *MonthlyPoint, v float64) { p.Revenue = v }},
		{func(p MonthlyPoint) float64 { return p.Costs }, func(p *MonthlyPoint, v float64) { p.Costs = v }},
		{func(p MonthlyPoint) float64 { return p.COGS }, func(p *MonthlyPoint, v float64) { p.COGS = v }},
		{func(p MonthlyPoint) float64 { return p.GrossProfit }, func(p *MonthlyPoint, v float64) { p.GrossProfit = v }},
		{func(p MonthlyPoint) float64 { return p.Opex }, func(p *MonthlyPoint, v float64) { p.Opex = v }},
		{func(p MonthlyPoint) float64 { return p.EBITDA }, func(p *MonthlyPoint, v float64) { p.EBITDA = v }},
		{func(p MonthlyPoint) float64 { return p.NetResult }, func(p *MonthlyPoint, v float64) { p.NetResult = v }},
	}

	for i := range res.Forecast {
		res.Forecast[i] = MonthlyPoint{Month: last.Add(i + 1), IsForecast: true}
	}
	ys := make([]float64, len(history))
	for _, s := range series {
		for i, p := range history {
			ys[i] = s.get(p)
		}
		slope, intercept := fit(ys)
		for i := range res.Forecast {
			x := float64(len(history) + i)
			s.set(&res.Forecast[i], round2(intercept+slope*x))
		}
	}
	return res, nil
}

// ForecastTransactions calculates the full statement and projects it.
func ForecastTransactions(txs []core.Transaction, rules []mapping.Rule, overrides pnl.Overrides, monthsAhead int) (ForecastResult, error) {
	stmt, err := pnl.Calculate(txs, rules, overrides, pnl.Range{})
	if err != nil {
		return ForecastResult{}, err
	}
	return Forecast(stmt, monthsAhead)
}

// fit returns the least-squares line through (i, ys[i]). A single point
// yields a flat line through it.
func fit(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	if len(ys) < 2 {
		if len(ys) == 1 {
			return 0, ys[0]
		}
		return 0, 0
	}
	var sx, sy float64
	for i, y := range ys {
		sx += float64(i)
		sy += y
	}
	mx, my := sx/n, sy/n
	var num, den float64
	for i, y := range ys {
		dx := float64(i) - mx
		num += dx * (y - my)
		den += dx * dx
	}
	slope = num / den
	return slope, my - slope*mx
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
