package dashboard

import (
	"finctl/internal/pnl"

	"github.com/shopspring/decimal"
)

// Validate compares the dashboard against the statement it should reflect.
// Every metric that diverges by more than pnl.Tolerance is reported.
func Validate(d Dashboard, stmt pnl.Statement) []pnl.Violation {
	latest, ok := stmt.Latest()
	if !ok {
		return []pnl.Violation{{Metric: "statement", Message: "statement has no months to validate against"}}
	}

	var out []pnl.Violation
	add := func(metric string, line int, actual float64) {
		if v, bad := pnl.Check(metric, latest, stmt.Decimal(line, latest), decimal.NewFromFloat(actual)); bad {
			out = append(out, v)
		}
	}
	if d.KPIs.Month != latest {
		out = append(out, pnl.Violation{
			Metric:  "month",
			Month:   latest,
			Message: "dashboard KPIs are for " + string(d.KPIs.Month) + ", statement ends in " + string(latest),
		})
	}
	add("total_revenue", pnl.LineGrossRevenue, d.KPIs.TotalRevenue)
	add("gross_profit", pnl.LineGrossProfit, d.KPIs.GrossProfit)
	add("ebitda", pnl.LineEBITDA, d.KPIs.EBITDA)
	add("net_result", pnl.LineNetResult, d.KPIs.NetResult)
	add("gross_margin", pnl.LineGrossMargin, d.KPIs.GrossMargin)
	add("ebitda_margin", pnl.LineEBITDAMargin, d.KPIs.EBITDAMargin)

	if len(d.MonthlyData) != len(stmt.Headers) {
		out = append(out, pnl.Violation{
			Metric:   "monthly_data",
			Expected: float64(len(stmt.Headers)),
			Actual:   float64(len(d.MonthlyData)),
			Delta:    float64(len(d.MonthlyData) - len(stmt.Headers)),
			Message:  "monthly series length differs from statement months",
		})
		return out
	}
	for i, p := range d.MonthlyData {
		m := stmt.Headers[i]
		for _, c := range []struct {
			metric string
			line   int
			actual float64
		}{
			{"monthly_revenue", pnl.LineGrossRevenue, p.Revenue},
			{"monthly_ebitda", pnl.LineEBITDA, p.EBITDA},
			{"monthly_net_result", pnl.LineNetResult, p.NetResult},
		} {
			if v, bad := pnl.Check(c.metric, m, stmt.Decimal(c.line, m), decimal.NewFromFloat(c.actual)); bad {
				out = append(out, v)
			}
		}
	}
	return out
}
