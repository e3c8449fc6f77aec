package pnl

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"testing"
	"time"

	"finctl/internal/core"
	"finctl/internal/mapping"

	"github.com/shopspring/decimal"
)

func txOn(day string, cc, cp, amount string) core.Transaction {
	d, err := time.Parse(core.DateLayout, day)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Date:         d,
		Month:        core.MonthOf(d),
		Amount:       decimal.RequireFromString(amount),
		CostCenter:   cc,
		Counterparty: cp,
	}
}

// sample mirrors a typical month of the app's bank export.
func sample() []core.Transaction {
	return []core.Transaction{
		txOn("2024-01-15", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "100000"),
		txOn("2024-01-15", "Receita Apple", "App Store (Apple)", "50000"),
		txOn("2024-01-20", "Marketing & Growth Expenses", "MGA MARKETING LTDA", "-10000"),
		txOn("2024-01-25", "Wages Expenses", "Diversos", "-20000"),
		txOn("2024-01-28", "Tech Support & Services", "Adobe", "-5000"),
		txOn("2024-01-30", "Web Services Expenses", "AWS", "-2000"),
		txOn("2024-01-31", "Legal & Accounting Expenses", "BHUB.AI", "-3000"),
		txOn("2024-02-10", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "10000"),
		txOn("2024-02-12", "Receita Apple", "App Store (Apple)", "20000"),
		txOn("2024-02-14", "Rendimentos de Aplicações", "CONTA SIMPLES", "500"),
	}
}

func calc(t *testing.T, txs []core.Transaction, o Overrides) Statement {
	t.Helper()
	stmt, err := Calculate(txs, mapping.DefaultRules(), o, Range{})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	return stmt
}

func near(a, b float64) bool { return math.Abs(a-b) <= 0.01 }

func TestCalculateKnownValues(t *testing.T) {
	stmt := calc(t, sample(), Overrides{})
	if !reflect.DeepEqual(stmt.Headers, []core.MonthKey{"2024-01", "2024-02"}) {
		t.Fatalf("unexpected headers: %v", stmt.Headers)
	}

	jan := map[int]float64{
		LineGooglePlay:        100000,
		LineAppStore:          50000,
		LineSalesRevenue:      150000,
		LineGrossRevenue:      150000,
		LinePaymentProcessing: -26475,
		LineCOGS:              -2000,
		LineCostOfRevenue:     -28475,
		LineGrossProfit:       121525,
		LineMarketing:         -10000,
		LineWages:             -20000,
		LineTechSupport:       -5000,
		LineOtherExpenses:     -3000,
		LineOpex:              -38000,
		LineEBITDA:            83525,
		LineNetResult:         83525,
	}
	for line, want := range jan {
		if got := stmt.Value(line, "2024-01"); !near(got, want) {
			t.Fatalf("line %d: expected %.2f, got %.2f", line, want, got)
		}
	}
	if got := stmt.Value(LineEBITDAMargin, "2024-01"); !near(got, 83525.0/150000*100) {
		t.Fatalf("unexpected EBITDA margin %.4f", got)
	}

	// Investment income is revenue but carries no store fee.
	if got := stmt.Value(LineGrossRevenue, "2024-02"); got != 30500 {
		t.Fatalf("expected 30500, got %v", got)
	}
	if got := stmt.Value(LinePaymentProcessing, "2024-02"); !near(got, -5295) {
		t.Fatalf("expected fee on 30000 only, got %v", got)
	}
	if len(stmt.Rows) != len(Lines()) || stmt.Rows[0].Line != LineGrossRevenue || !stmt.Rows[0].IsHeader {
		t.Fatalf("unexpected row layout: %+v", stmt.Rows[0])
	}
}

func TestCalculateIdempotent(t *testing.T) {
	o := NewOverrides(Override{Line: "9", Month: "2024-01", Value: -1})
	a, _ := json.Marshal(calc(t, sample(), o))
	b, _ := json.Marshal(calc(t, sample(), o))
	if string(a) != string(b) {
		t.Fatalf("expected identical output")
	}
}

func TestRevenueAdditivity(t *testing.T) {
	stmt := calc(t, []core.Transaction{
		txOn("2024-03-01", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "10000"),
		txOn("2024-03-02", "Receita Apple", "App Store (Apple)", "20000"),
	}, Overrides{})
	if got := stmt.Value(LineGrossRevenue, "2024-03"); got != 30000 {
		t.Fatalf("expected 30000, got %v", got)
	}
}

func TestIdentitiesHold(t *testing.T) {
	stmt := calc(t, sample(), Overrides{})
	if v := CheckIdentities(stmt, ""); len(v) != 0 {
		t.Fatalf("unexpected violations: %+v", v)
	}
	for _, m := range stmt.Headers {
		gp := stmt.Value(LineGrossRevenue, m) + stmt.Value(LinePaymentProcessing, m) + stmt.Value(LineCOGS, m)
		if !near(gp, stmt.Value(LineGrossProfit, m)) {
			t.Fatalf("%s gross profit identity broken", m)
		}
		opex := stmt.Value(LineMarketing, m) + stmt.Value(LineWages, m) + stmt.Value(LineTechSupport, m) + stmt.Value(LineOtherExpenses, m)
		if !near(stmt.Value(LineGrossProfit, m)+opex, stmt.Value(LineEBITDA, m)) {
			t.Fatalf("%s EBITDA identity broken", m)
		}
		if stmt.Value(LineNetResult, m) != stmt.Value(LineEBITDA, m) {
			t.Fatalf("%s net result must equal EBITDA", m)
		}
	}
}

func TestOverridePrecedence(t *testing.T) {
	var o Overrides
	o.Set(strconv.Itoa(LineMarketing), "2024-01", -50000)
	stmt := calc(t, sample(), o)

	if got := stmt.Value(LineMarketing, "2024-01"); got != -50000 {
		t.Fatalf("expected override value, got %v", got)
	}
	if got := stmt.Value(LineOpex, "2024-01"); got != -78000 {
		t.Fatalf("override must feed downstream lines, got %v", got)
	}
	if got := stmt.Value(LineNetResult, "2024-01"); !near(got, 43525) {
		t.Fatalf("expected net result 43525, got %v", got)
	}
	if got := stmt.Value(LineMarketing, "2024-02"); got != 0 {
		t.Fatalf("override must not leak into other months, got %v", got)
	}
	row, _ := stmt.Row(LineMarketing)
	if !reflect.DeepEqual(row.Overridden, []core.MonthKey{"2024-01"}) {
		t.Fatalf("expected overridden marker, got %v", row.Overridden)
	}
}

func TestOverrideForwardOnly(t *testing.T) {
	o := NewOverrides(Override{Line: "16", Month: "2024-01", Value: 1234.56})
	stmt := calc(t, sample(), o)
	if got := stmt.Value(LineNetResult, "2024-01"); got != 1234.56 {
		t.Fatalf("expected exactly 1234.56, got %v", got)
	}
	if got := stmt.Value(LineEBITDA, "2024-01"); !near(got, 83525) {
		t.Fatalf("override on a derived line must not flow backwards, got %v", got)
	}
	v := CheckIdentities(stmt, "2024-01")
	if len(v) != 1 || v[0].Metric != "net_result" || !near(v[0].Delta, 1234.56-83525) {
		t.Fatalf("expected one net_result violation, got %+v", v)
	}
	if v[0].Message == "" {
		t.Fatalf("violation needs a message")
	}

	o = NewOverrides(Override{Line: "7", Month: "2024-01", Value: 100000})
	stmt = calc(t, sample(), o)
	if got := stmt.Value(LineEBITDA, "2024-01"); got != 62000 {
		t.Fatalf("EBITDA must derive from the overridden gross profit, got %v", got)
	}
	if got := stmt.Value(LineCostOfRevenue, "2024-01"); !near(got, -28475) {
		t.Fatalf("inputs of the overridden line must be unchanged, got %v", got)
	}
}

func TestZeroRevenueMargins(t *testing.T) {
	stmt := calc(t, []core.Transaction{
		txOn("2024-05-01", "Marketing & Growth Expenses", "MGA MARKETING LTDA", "-1000"),
	}, Overrides{})
	for _, line := range []int{LineEBITDAMargin, LineGrossMargin} {
		if got := stmt.Value(line, "2024-05"); got != 0 {
			t.Fatalf("line %d: expected 0 margin, got %v", line, got)
		}
	}
}

func TestNegativeRevenuePreserved(t *testing.T) {
	stmt := calc(t, []core.Transaction{
		txOn("2024-06-01", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "-5000"),
	}, Overrides{})
	if got := stmt.Value(LineGrossRevenue, "2024-06"); got != -5000 {
		t.Fatalf("expected -5000, got %v", got)
	}
}

func TestPrecisionAndLargeNumbers(t *testing.T) {
	txs := make([]core.Transaction, 0, 10000)
	for i := 0; i < 10000; i++ {
		txs = append(txs, txOn("2024-07-01", "Receita Apple", "App Store (Apple)", "0.01"))
	}
	stmt := calc(t, txs, Overrides{})
	if got := stmt.Value(LineAppStore, "2024-07"); got != 100 {
		t.Fatalf("expected exactly 100.00, got %v", got)
	}

	stmt = calc(t, []core.Transaction{
		txOn("2024-08-01", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "1000000000.00"),
		txOn("2024-08-02", "Marketing & Growth Expenses", "MGA MARKETING LTDA", "-500000000.00"),
	}, Overrides{})
	if got := stmt.Decimal(LineEBITDA, "2024-08"); !got.Equal(decimal.NewFromInt(323500000)) {
		t.Fatalf("expected EBITDA 323500000, got %s", got)
	}
}

func TestUnclassifiedAndUnrouted(t *testing.T) {
	rules := append(mapping.DefaultRules(), mapping.Rule{
		Group: "Financeiro", CostCenter: "Bank Fees", Counterparty: "Diversos", Line: 90, Kind: core.Expense, Active: true,
	})
	txs := []core.Transaction{
		txOn("2024-01-01", "Bank Fees", "Banco X", "-15"),
		txOn("2024-01-02", "Nowhere", "Nobody", "-7"),
		txOn("2024-01-03", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", "100"),
	}
	stmt, err := Calculate(txs, rules, Overrides{}, Range{})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if stmt.Unclassified != 1 {
		t.Fatalf("expected 1 unclassified, got %d", stmt.Unclassified)
	}
	if stmt.Unrouted[90] != -15 || !reflect.DeepEqual(stmt.UnroutedCodes(), []int{90}) {
		t.Fatalf("expected code 90 unrouted, got %v", stmt.Unrouted)
	}
	if got := stmt.Value(LineEBITDA, "2024-01"); !near(got, 100-17.65) {
		t.Fatalf("unclassified and unrouted amounts must stay out of the statement, got %v", got)
	}
}

func TestCalculateRange(t *testing.T) {
	rng, err := ParseRange("2024-02", "2024-02-29")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	stmt, err := Calculate(sample(), mapping.DefaultRules(), Overrides{}, rng)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !reflect.DeepEqual(stmt.Headers, []core.MonthKey{"2024-02"}) {
		t.Fatalf("unexpected headers: %v", stmt.Headers)
	}

	if _, err := ParseRange("2024-03", "2024-01"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := ParseRange("garbage", ""); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	rng, _ = ParseRange("", "2024-01")
	if rng.To.Day() != 31 {
		t.Fatalf("month end bound must cover the whole month, got %v", rng.To)
	}
}

func TestEvaluationOrder(t *testing.T) {
	pos := map[int]int{}
	for p, i := range evalOrder {
		pos[lines[i].Number] = p
	}
	if len(pos) != len(lines) {
		t.Fatalf("every line must be evaluated once")
	}
	for _, l := range lines {
		for _, term := range l.Terms {
			if pos[term] >= pos[l.Number] {
				t.Fatalf("line %d evaluated before its term %d", l.Number, term)
			}
		}
	}
}

func TestLineTransactions(t *testing.T) {
	txs := append(sample(), txOn("2024-01-05", "Marketing & Growth Expenses", "GOOGLE ADS", "-250"))
	rules := mapping.DefaultRules()
	stmt := calc(t, txs, Overrides{})

	d, err := LineTransactions(txs, rules, LineMarketing, "2024-01")
	if err != nil {
		t.Fatalf("drilldown: %v", err)
	}
	if d.Count != 2 || !near(d.Total, stmt.Value(LineMarketing, "2024-01")) {
		t.Fatalf("drilldown must sum to the line value, got %+v", d)
	}

	d, err = LineTransactions(txs, rules, 60, "")
	if err != nil || d.Count != 1 || d.Total != -250 {
		t.Fatalf("account code drilldown failed: %+v %v", d, err)
	}

	all, err := LineTransactions(txs, rules, LineAppStore, "")
	if err != nil || all.Count != 2 || all.Total != 70000 {
		t.Fatalf("expected both months without a month filter: %+v %v", all, err)
	}

	if _, err := LineTransactions(txs, rules, LineEBITDA, ""); !errors.Is(err, ErrDerivedLine) {
		t.Fatalf("expected ErrDerivedLine, got %v", err)
	}

	shadow := append(mapping.DefaultRules(), mapping.Rule{
		Group: "Financeiro", CostCenter: "Bank Fees", Counterparty: "Diversos", Line: LineEBITDA, Kind: core.Expense, Active: true,
	})
	fees := append(sample(), txOn("2024-01-09", "Bank Fees", "Banco X", "-15"))
	if stmt, err := Calculate(fees, shadow, Overrides{}, Range{}); err != nil || stmt.Unrouted[LineEBITDA] != -15 {
		t.Fatalf("expected code %d unrouted, got %v %v", LineEBITDA, stmt.Unrouted, err)
	}
	d, err = LineTransactions(fees, shadow, LineEBITDA, "")
	if err != nil || d.Count != 1 || d.Total != -15 || d.Description != "Financeiro" {
		t.Fatalf("a rule target sharing a derived line number must drill down as a code: %+v %v", d, err)
	}
	if _, err := LineTransactions(fees, rules, LineEBITDA, ""); !errors.Is(err, ErrDerivedLine) {
		t.Fatalf("expected ErrDerivedLine, got %v", err)
	}
	if _, err := LineTransactions(txs, rules, 999, ""); !errors.Is(err, ErrUnknownLine) {
		t.Fatalf("expected ErrUnknownLine, got %v", err)
	}
	if _, err := LineTransactions(txs, rules, LineWages, "2024-13"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestOverrides(t *testing.T) {
	var o Overrides
	if o.Len() != 0 {
		t.Fatalf("zero value must be empty")
	}
	o.Set("16", "2024-02", 1)
	o.Set("9", "2024-01", 2)
	o.Set("9", "2024-02", 3)
	o.Set("9", "2024-01", 4)
	if o.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", o.Len())
	}
	if v, ok := o.Get("9", "2024-01"); !ok || v != 4 {
		t.Fatalf("expected latest value, got %v %v", v, ok)
	}

	entries := o.Entries()
	if entries[0].Line != "9" || entries[0].Month != "2024-01" || entries[2].Line != "16" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	c := o.Clone()
	c.Set("9", "2024-01", 99)
	if v, _ := o.Get("9", "2024-01"); v != 4 {
		t.Fatalf("clone must be independent")
	}

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"16":{"2024-02":1},"9":{"2024-01":4,"2024-02":3}}` {
		t.Fatalf("unexpected json: %s", raw)
	}
	var back Overrides
	if err := json.Unmarshal(raw, &back); err != nil || !reflect.DeepEqual(back.Entries(), entries) {
		t.Fatalf("json round trip failed: %v", err)
	}

	if !o.Delete("9", "2024-01") || o.Delete("9", "2024-01") {
		t.Fatalf("delete must report existence")
	}
	o.Clear()
	if o.Len() != 0 {
		t.Fatalf("expected empty after clear")
	}

	tests := []struct {
		name    string
		line    string
		month   core.MonthKey
		value   float64
		wantKey string
		wantErr error
	}{
		{"leaf line", "16", "2024-01", 5, "16", nil},
		{"leading zero", "09", "2024-01", 5, "9", nil},
		{"plus sign", "+9", "2024-01", 5, "9", nil},
		{"account code", "56", "2024-01", 5, "", ErrUnknownLine},
		{"not a number", "abc", "2024-01", 5, "", ErrUnknownLine},
		{"padded", " 9", "2024-01", 5, "", ErrUnknownLine},
		{"bad month", "9", "Jan", 5, "", core.ErrInvalidMonth},
		{"nan", "9", "2024-01", math.NaN(), "", ErrInvalidValue},
		{"inf", "9", "2024-01", math.Inf(1), "", ErrInvalidValue},
		{"negative inf", "9", "2024-01", math.Inf(-1), "", ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ValidateOverride(tt.line, tt.month, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || key != tt.wantKey {
				t.Fatalf("expected key %q, got %q %v", tt.wantKey, key, err)
			}
		})
	}
}

func TestOverrideKeysAreCanonical(t *testing.T) {
	var o Overrides
	o.Set("09", "2024-01", -999)
	if v, ok := o.Get("9", "2024-01"); !ok || v != -999 {
		t.Fatalf("expected 09 and 9 to address one cell, got %v %v", v, ok)
	}
	o.Set("9", "2024-01", -500)
	if o.Len() != 1 || o.Entries()[0].Line != "9" {
		t.Fatalf("expected a single canonical entry, got %+v", o.Entries())
	}

	var decoded Overrides
	if err := json.Unmarshal([]byte(`{"016":{"2024-02":7}}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded.Get("16", "2024-02"); !ok {
		t.Fatalf("decoded keys must be canonical: %+v", decoded.Entries())
	}

	stmt := calc(t, sample(), o)
	if got := stmt.Value(LineMarketing, "2024-01"); got != -500 {
		t.Fatalf("override must apply to line %d, got %v", LineMarketing, got)
	}

	if !o.Delete("+9", "2024-01") || o.Len() != 0 {
		t.Fatalf("delete must find the canonical cell")
	}
}
