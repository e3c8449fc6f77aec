package dashboard

import (
	"errors"
	"math"
	"testing"
	"time"

	"finctl/internal/core"
	"finctl/internal/mapping"
	"finctl/internal/pnl"

	"github.com/shopspring/decimal"
)

func txOn(day, cc, cp, amount string) core.Transaction {
	d, _ := time.Parse(core.DateLayout, day)
	return core.Transaction{
		Date:         d,
		Month:        core.MonthOf(d),
		Amount:       decimal.RequireFromString(amount),
		CostCenter:   cc,
		Counterparty: cp,
	}
}

func months(revenues ...string) []core.Transaction {
	var txs []core.Transaction
	start := core.MonthKey("2024-01")
	for i, r := range revenues {
		day := string(start.Add(i)) + "-10"
		txs = append(txs,
			txOn(day, "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", r),
			txOn(day, "Wages Expenses", "Diversos", "-100"),
		)
	}
	return txs
}

func statement(t *testing.T, txs []core.Transaction, o pnl.Overrides) pnl.Statement {
	t.Helper()
	stmt, err := pnl.Calculate(txs, mapping.DefaultRules(), o, pnl.Range{})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	return stmt
}

func near(a, b float64) bool { return math.Abs(a-b) <= 0.01 }

func TestBuild(t *testing.T) {
	txs := []core.Transaction{
		txOn("2024-01-15", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "1000"),
		txOn("2024-02-15", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "1000"),
		txOn("2024-02-15", "Receita Apple", "App Store (Apple)", "500"),
		txOn("2024-02-20", "Web Services Expenses", "AWS", "-100"),
		txOn("2024-02-21", "Marketing & Growth Expenses", "MGA MARKETING LTDA", "-200"),
	}
	d := Build(statement(t, txs, pnl.Overrides{}))

	if d.KPIs.Month != "2024-02" || d.KPIs.TotalRevenue != 1500 || d.KPIs.GoogleRevenue != 1000 || d.KPIs.AppleRevenue != 500 {
		t.Fatalf("unexpected KPIs: %+v", d.KPIs)
	}
	// 1500 - 264.75 fee - 100 AWS
	if !near(d.KPIs.GrossProfit, 1135.25) || !near(d.KPIs.EBITDA, 935.25) || d.KPIs.NetResult != d.KPIs.EBITDA {
		t.Fatalf("unexpected profit KPIs: %+v", d.KPIs)
	}
	if !near(d.KPIs.GrossMargin, 1135.25/1500*100) {
		t.Fatalf("margins are percent, got %v", d.KPIs.GrossMargin)
	}

	if len(d.MonthlyData) != 2 || d.MonthlyData[0].Month != "2024-01" || d.MonthlyData[1].IsForecast {
		t.Fatalf("unexpected series: %+v", d.MonthlyData)
	}
	feb := d.MonthlyData[1]
	if feb.COGS != 100 || feb.Opex != 200 || !near(feb.Costs, 564.75) {
		t.Fatalf("cost series must be magnitudes: %+v", feb)
	}

	cs := d.CostStructure
	if !near(cs.PaymentProcessing, 264.75) || cs.COGS != 100 || cs.Marketing != 200 || cs.Wages != 0 {
		t.Fatalf("unexpected cost structure: %+v", cs)
	}
	if !near(cs.Total(), feb.Costs) {
		t.Fatalf("cost structure must add up to the month's costs")
	}
	if v := Validate(d, statement(t, txs, pnl.Overrides{})); len(v) != 0 {
		t.Fatalf("unexpected violations: %+v", v)
	}
}

func TestBuildRespectsOverrides(t *testing.T) {
	txs := []core.Transaction{
		txOn("2024-01-15", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "1000"),
		txOn("2024-01-15", "Receita Apple", "App Store (Apple)", "500"),
	}
	o := pnl.NewOverrides(pnl.Override{Line: "16", Month: "2024-01", Value: 1234.56})

	d, err := FromTransactions(txs, mapping.DefaultRules(), o)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.KPIs.NetResult != 1234.56 {
		t.Fatalf("expected overridden net result, got %v", d.KPIs.NetResult)
	}
	if d.KPIs.NetResult == d.KPIs.EBITDA {
		t.Fatalf("override on net result must not touch EBITDA")
	}
	if d.MonthlyData[0].NetResult != 1234.56 {
		t.Fatalf("series must show the override too")
	}
	if v := Validate(d, statement(t, txs, o)); len(v) != 0 {
		t.Fatalf("dashboard built from the overridden statement must validate: %+v", v)
	}
}

func TestBuildEmpty(t *testing.T) {
	stmt := statement(t, nil, pnl.Overrides{})
	d := Build(stmt)
	if len(d.MonthlyData) != 0 || d.KPIs.TotalRevenue != 0 {
		t.Fatalf("expected empty dashboard, got %+v", d)
	}
	v := Validate(d, stmt)
	if len(v) != 1 || v[0].Metric != "statement" {
		t.Fatalf("expected empty-statement violation, got %+v", v)
	}
}

func TestValidateDetectsDivergence(t *testing.T) {
	stmt := statement(t, months("1000", "2000"), pnl.Overrides{})
	d := Build(stmt)
	d.KPIs.EBITDA += 5
	d.KPIs.TotalRevenue -= 0.005
	d.MonthlyData[0].Revenue = 0

	v := Validate(d, stmt)
	if len(v) != 2 {
		t.Fatalf("expected 2 violations, got %+v", v)
	}
	if v[0].Metric != "ebitda" || !near(v[0].Delta, 5) || v[0].Message == "" {
		t.Fatalf("unexpected violation: %+v", v[0])
	}
	if v[1].Metric != "monthly_revenue" || v[1].Month != "2024-01" {
		t.Fatalf("unexpected violation: %+v", v[1])
	}
}

func TestForecastLinear(t *testing.T) {
	stmt := statement(t, months("1000", "2000", "3000"), pnl.Overrides{})
	res, err := Forecast(stmt, 3)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if res.Method != MethodLinear || res.History != 3 || len(res.Forecast) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []struct {
		month   core.MonthKey
		revenue float64
	}{{"2024-04", 4000}, {"2024-05", 5000}, {"2024-06", 6000}}
	for i, w := range want {
		p := res.Forecast[i]
		if p.Month != w.month || !near(p.Revenue, w.revenue) || !p.IsForecast {
			t.Fatalf("point %d: expected %s %.2f, got %+v", i, w.month, w.revenue, p)
		}
	}
	// Wages are flat at 100 per month.
	if !near(res.Forecast[2].Opex, 100) {
		t.Fatalf("expected flat opex, got %v", res.Forecast[2].Opex)
	}
}

func TestForecastFlatAndErrors(t *testing.T) {
	stmt := statement(t, months("1000"), pnl.Overrides{})
	res, err := Forecast(stmt, 2)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if res.Method != MethodFlat || res.Forecast[1].Revenue != 1000 || res.Forecast[1].Month != "2024-03" {
		t.Fatalf("expected flat projection, got %+v", res)
	}

	for _, n := range []int{0, -1, MaxHorizon + 1} {
		if _, err := Forecast(stmt, n); !errors.Is(err, ErrInvalidHorizon) {
			t.Fatalf("horizon %d: expected ErrInvalidHorizon, got %v", n, err)
		}
	}
	if _, err := ForecastTransactions(nil, mapping.DefaultRules(), pnl.Overrides{}, 3); !errors.Is(err, core.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFit(t *testing.T) {
	slope, intercept := fit([]float64{1, 3, 5, 7})
	if !near(slope, 2) || !near(intercept, 1) {
		t.Fatalf("expected y = 2x + 1, got %vx + %v", slope, intercept)
	}
	slope, intercept = fit([]float64{42})
	if slope != 0 || intercept != 42 {
		t.Fatalf("single point must be flat")
	}
}
