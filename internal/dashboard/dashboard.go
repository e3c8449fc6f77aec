// Package dashboard reduces a statement into headline KPIs, chart series,
// a cost breakdown and a naive forecast.
package dashboard

import (
	"finctl/internal/core"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
)

// KPIs are taken from the latest month of the statement. Margins are percent.
type KPIs struct {
	Month         core.MonthKey `json:"month"`
	TotalRevenue  float64       `json:"total_revenue"`
	GrossProfit   float64       `json:"gross_profit"`
	EBITDA        float64       `json:"ebitda"`
	NetResult     float64       `json:"net_result"`
	EBITDAMargin  float64       `json:"ebitda_margin"`
	GrossMargin   float64       `json:"gross_margin"`
	GoogleRevenue float64       `json:"google_revenue"`
	AppleRevenue  float64       `json:"apple_revenue"`
}

// MonthlyPoint is one month of the chart series. Cost fields are magnitudes.
type MonthlyPoint struct {
	Month       core.MonthKey `json:"month"`
	Revenue     float64       `json:"revenue"`
	Costs       float64       `json:"costs"`
	COGS        float64       `json:"cogs"`
	GrossProfit float64       `json:"gross_profit"`
	Opex        float64       `json:"opex"`
	EBITDA      float64       `json:"ebitda"`
	NetResult   float64       `json:"net_result"`
	IsForecast  bool          `json:"is_forecast"`
}

// CostStructure holds the absolute value of each cost line for the latest month.
type CostStructure struct {
	PaymentProcessing float64 `json:"payment_processing"`
	COGS              float64 `json:"cogs"`
	Marketing         float64 `json:"marketing"`
	Wages             float64 `json:"wages"`
	Tech              float64 `json:"tech"`
	Other             float64 `json:"other"`
}

// Total sums every component.
func (c CostStructure) Total() float64 {
	return c.PaymentProcessing + c.COGS + c.Marketing + c.Wages + c.Tech + c.Other
}

type Dashboard struct {
	KPIs          KPIs           `json:"kpis"`
	MonthlyData   []MonthlyPoint `json:"monthly_data"`
	CostStructure CostStructure  `json:"cost_structure"`
}

// Build reads every figure from stmt, so overridden cells show through.
func Build(stmt pnl.Statement) Dashboard {
	d := Dashboard{MonthlyData: make([]MonthlyPoint, 0, len(stmt.Headers))}
	for _, m := range stmt.Headers {
		d.MonthlyData = append(d.MonthlyData, point(stmt, m))
	}

	latest, ok := stmt.Latest()
	if !ok {
		return d
	}
	v := func(line int) float64 { return stmt.Value(line, latest) }
	d.KPIs = KPIs{
		Month:         latest,
		TotalRevenue:  v(pnl.LineGrossRevenue),
		GrossProfit:   v(pnl.LineGrossProfit),
		EBITDA:        v(pnl.LineEBITDA),
		NetResult:     v(pnl.LineNetResult),
		EBITDAMargin:  v(pnl.LineEBITDAMargin),
		GrossMargin:   v(pnl.LineGrossMargin),
		GoogleRevenue: v(pnl.LineGooglePlay),
		AppleRevenue:  v(pnl.LineAppStore),
	}
	abs := func(line int) float64 { return stmt.Decimal(line, latest).Abs().InexactFloat64() }
	d.CostStructure = CostStructure{
		PaymentProcessing: abs(pnl.LinePaymentProcessing),
		COGS:              abs(pnl.LineCOGS),
		Marketing:         abs(pnl.LineMarketing),
		Wages:             abs(pnl.LineWages),
		Tech:              abs(pnl.LineTechSupport),
		Other:             abs(pnl.LineOtherExpenses),
	}
	return d
}

func point(stmt pnl.Statement, m core.MonthKey) MonthlyPoint {
	abs := func(line int) float64 { return stmt.Decimal(line, m).Abs().InexactFloat64() }
	return MonthlyPoint{
		Month:       m,
		Revenue:     stmt.Value(pnl.LineGrossRevenue, m),
		Costs:       stmt.Decimal(pnl.LineCostOfRevenue, m).Abs().Add(stmt.Decimal(pnl.LineOpex, m).Abs()).InexactFloat64(),
		COGS:        abs(pnl.LineCOGS),
		GrossProfit: stmt.Value(pnl.LineGrossProfit, m),
		Opex:        abs(pnl.LineOpex),
		EBITDA:      stmt.Value(pnl.LineEBITDA, m),
		NetResult:   stmt.Value(pnl.LineNetResult, m),
	}
}

// FromTransactions calculates the full statement and builds its dashboard.
func FromTransactions(txs []core.Transaction, rules []mapping.Rule, overrides pnl.Overrides) (Dashboard, error) {
	stmt, err := pnl.Calculate(txs, rules, overrides, pnl.Range{})
	if err != nil {
		return Dashboard{}, err
	}
	return Build(stmt), nil
}
