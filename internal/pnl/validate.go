package pnl

import (
	"fmt"

	"finctl/internal/core"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference accepted by consistency checks.
var Tolerance = decimal.RequireFromString("0.01")

// Violation reports a metric that diverged from its expected value.
type Violation struct {
	Metric   string        `json:"metric"`
	Month    core.MonthKey `json:"month,omitempty"`
	Expected float64       `json:"expected"`
	Actual   float64       `json:"actual"`
	Delta    float64       `json:"delta"`
	Message  string        `json:"message"`
}

// Check compares expected and actual and returns a violation when they
// differ by more than Tolerance.
func Check(metric string, month core.MonthKey, expected, actual decimal.Decimal) (Violation, bool) {
	delta := actual.Sub(expected)
	if delta.Abs().LessThanOrEqual(Tolerance) {
		return Violation{}, false
	}
	v := Violation{
		Metric:   metric,
		Month:    month,
		Expected: expected.InexactFloat64(),
		Actual:   actual.InexactFloat64(),
		Delta:    delta.InexactFloat64(),
	}
	v.Message = fmt.Sprintf("%s diverged in %s: expected %s, got %s (delta %s)",
		metric, month, expected.StringFixed(2), actual.StringFixed(2), delta.StringFixed(2))
	return v, true
}

// CheckIdentities verifies the statement's arithmetic identities for month,
// or for every month when month is empty. Overrides on derived lines show up
// here as violations by construction.
func CheckIdentities(stmt Statement, month core.MonthKey) []Violation {
	months := stmt.Headers
	if month != "" {
		months = []core.MonthKey{month}
	}

	var out []Violation
	for _, m := range months {
		cell := func(line int) decimal.Decimal { return stmt.Decimal(line, m) }
		revenue := cell(LineGrossRevenue)
		grossProfit := cell(LineGrossProfit)
		ebitda := cell(LineEBITDA)

		checks := []struct {
			metric   string
			expected decimal.Decimal
			actual   decimal.Decimal
		}{
			{"total_revenue", cell(LineGooglePlay).Add(cell(LineAppStore)).Add(cell(LineInvestmentIncome)), revenue},
			{"gross_profit", revenue.Add(cell(LinePaymentProcessing)).Add(cell(LineCOGS)), grossProfit},
			{"ebitda", grossProfit.Add(cell(LineMarketing)).Add(cell(LineWages)).Add(cell(LineTechSupport)).Add(cell(LineOtherExpenses)), ebitda},
			{"net_result", ebitda, cell(LineNetResult)},
			{"gross_margin", Margin(grossProfit, revenue), cell(LineGrossMargin)},
			{"ebitda_margin", Margin(ebitda, revenue), cell(LineEBITDAMargin)},
		}
		for _, c := range checks {
			if v, bad := Check(c.metric, m, c.expected, c.actual); bad {
				out = append(out, v)
			}
		}
	}
	return out
}

// Margin returns part/whole in percent, zero when whole is zero.
func Margin(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(core.PercentScale)
}
