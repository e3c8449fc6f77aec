// Package export renders computed statements as tabular reports.
package export

import (
	"time"

	"finctl/internal/dashboard"
	"finctl/internal/pnl"
)

const (
	UnitCurrency = "BRL"
	UnitPercent  = "%"
)

// Report is a statement and its dashboard computed at one dataset version.
type Report struct {
	Version     int64
	GeneratedAt time.Time
	Statement   pnl.Statement
	Dashboard   dashboard.Dashboard
}

// NewReport builds the dashboard for stmt and stamps the report.
func NewReport(version int64, stmt pnl.Statement, at time.Time) Report {
	return Report{
		Version:     version,
		GeneratedAt: at.UTC(),
		Statement:   stmt,
		Dashboard:   dashboard.Build(stmt),
	}
}

// StatementGrid lays stmt out as a header row followed by one row per line.
// Cells are rounded to cents; percent lines keep their points-of-100 scale.
func StatementGrid(stmt pnl.Statement) [][]any {
	header := make([]any, 0, 3+len(stmt.Headers))
	header = append(header, "Line", "Description", "Unit")
	for _, m := range stmt.Headers {
		header = append(header, string(m))
	}

	grid := make([][]any, 0, 1+len(stmt.Rows))
	grid = append(grid, header)
	for _, row := range stmt.Rows {
		unit := UnitCurrency
		if row.IsPercent {
			unit = UnitPercent
		}
		cells := make([]any, 0, len(header))
		cells = append(cells, row.Line, row.Description, unit)
		for _, m := range stmt.Headers {
			cells = append(cells, stmt.Decimal(row.Line, m).Round(2).InexactFloat64())
		}
		grid = append(grid, cells)
	}
	return grid
}

// KPIGrid lists the headline figures of the latest month.
func KPIGrid(d dashboard.Dashboard) [][]any {
	k := d.KPIs
	return [][]any{
		{"KPI", string(k.Month)},
		{"Total revenue", k.TotalRevenue},
		{"Google revenue", k.GoogleRevenue},
		{"Apple revenue", k.AppleRevenue},
		{"Gross profit", k.GrossProfit},
		{"EBITDA", k.EBITDA},
		{"Net result", k.NetResult},
		{"Gross margin %", k.GrossMargin},
		{"EBITDA margin %", k.EBITDAMargin},
	}
}

// SeriesGrid lists the monthly chart series, one month per row.
func SeriesGrid(d dashboard.Dashboard) [][]any {
	grid := [][]any{{"Month", "Revenue", "Costs", "COGS", "Gross profit", "Opex", "EBITDA", "Net result", "Forecast"}}
	for _, p := range d.MonthlyData {
		grid = append(grid, []any{
			string(p.Month), p.Revenue, p.Costs, p.COGS, p.GrossProfit, p.Opex, p.EBITDA, p.NetResult, p.IsForecast,
		})
	}
	return grid
}

// CostGrid breaks down the latest month's costs.
func CostGrid(d dashboard.Dashboard) [][]any {
	c := d.CostStructure
	return [][]any{
		{"Cost", "Amount"},
		{"Payment processing", c.PaymentProcessing},
		{"COGS", c.COGS},
		{"Marketing", c.Marketing},
		{"Wages", c.Wages},
		{"Tech", c.Tech},
		{"Other", c.Other},
		{"Total", c.Total()},
	}
}
