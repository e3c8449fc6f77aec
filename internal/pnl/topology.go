// Package pnl evaluates the fixed profit and loss statement from classified
// account totals and user overrides.
package pnl

import (
	"github.com/shopspring/decimal"
)

// Stable statement line numbers.
const (
	LineGrossRevenue      = 1
	LineSalesRevenue      = 2
	LineGooglePlay        = 21
	LineAppStore          = 22
	LineInvestmentIncome  = 3
	LineCostOfRevenue     = 4
	LinePaymentProcessing = 5
	LineCOGS              = 6
	LineGrossProfit       = 7
	LineOpex              = 8
	LineMarketing         = 9
	LineWages             = 10
	LineTechSupport       = 11
	LineOtherExpenses     = 12
	LineEBITDA            = 13
	LineEBITDAMargin      = 14
	LineGrossMargin       = 15
	LineNetResult         = 16
)

// PaymentProcessingRate is the store fee applied to sales revenue.
var PaymentProcessingRate = decimal.RequireFromString("0.1765")

type formula int

const (
	leaf formula = iota
	sum
	scaled
	ratio
)

// Line describes one statement row. Leaf lines collect account codes; the
// others derive from Terms.
type Line struct {
	Number      int
	Description string
	Codes       []int
	Terms       []int
	Factor      decimal.Decimal
	Header      bool
	Total       bool
	Percent     bool

	formula formula
}

// Leaf reports whether the line is filled from classified transactions.
func (l Line) Leaf() bool { return l.formula == leaf }

// lines is the statement in display order.
var lines = []Line{
	{Number: LineGrossRevenue, Description: "Gross Revenue", formula: sum, Terms: []int{LineSalesRevenue, LineInvestmentIncome}, Header: true},
	{Number: LineSalesRevenue, Description: "Sales Revenue (Google + Apple)", formula: sum, Terms: []int{LineGooglePlay, LineAppStore}},
	{Number: LineGooglePlay, Description: "Google Play Revenue", formula: leaf, Codes: []int{21, 25}},
	{Number: LineAppStore, Description: "App Store Revenue", formula: leaf, Codes: []int{22, 33}},
	{Number: LineInvestmentIncome, Description: "Investment Income", formula: leaf, Codes: []int{3, 42}},
	{Number: LineCostOfRevenue, Description: "Cost of Revenue", formula: sum, Terms: []int{LinePaymentProcessing, LineCOGS}, Header: true},
	{Number: LinePaymentProcessing, Description: "Payment Processing (17.65%)", formula: scaled, Terms: []int{LineSalesRevenue}, Factor: PaymentProcessingRate.Neg()},
	{Number: LineCOGS, Description: "COGS (Web Services)", formula: leaf, Codes: []int{6, 43, 46}},
	{Number: LineGrossProfit, Description: "Gross Profit", formula: sum, Terms: []int{LineGrossRevenue, LineCostOfRevenue}, Total: true},
	{Number: LineOpex, Description: "Operating Expenses", formula: sum, Terms: []int{LineMarketing, LineWages, LineTechSupport, LineOtherExpenses}, Header: true},
	{Number: LineMarketing, Description: "Marketing", formula: leaf, Codes: []int{9, 56, 60}},
	{Number: LineWages, Description: "Wages", formula: leaf, Codes: []int{10, 62, 68}},
	{Number: LineTechSupport, Description: "Tech Support & Services", formula: leaf, Codes: []int{11, 69}},
	{Number: LineOtherExpenses, Description: "Other Expenses", formula: leaf, Codes: []int{12, 70, 71, 72, 73}},
	{Number: LineEBITDA, Description: "EBITDA", formula: sum, Terms: []int{LineGrossProfit, LineOpex}, Total: true},
	{Number: LineEBITDAMargin, Description: "EBITDA Margin %", formula: ratio, Terms: []int{LineEBITDA, LineGrossRevenue}, Percent: true},
	{Number: LineGrossMargin, Description: "Gross Margin %", formula: ratio, Terms: []int{LineGrossProfit, LineGrossRevenue}, Percent: true},
	{Number: LineNetResult, Description: "Net Result", formula: sum, Terms: []int{LineEBITDA}, Total: true},
}

var (
	byNumber  = map[int]int{}
	codeToRow = map[int]int{}
	// evalOrder lists line indexes so that every term precedes its consumers.
	evalOrder []int
)

func init() {
	for i, l := range lines {
		byNumber[l.Number] = i
		for _, c := range l.Codes {
			codeToRow[c] = l.Number
		}
	}
	visited := make([]bool, len(lines))
	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		for _, t := range lines[i].Terms {
			visit(byNumber[t])
		}
		evalOrder = append(evalOrder, i)
	}
	for i := range lines {
		visit(i)
	}
}

// Lines returns the statement layout in display order.
func Lines() []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// LookupLine returns the statement line with the given number.
func LookupLine(number int) (Line, bool) {
	i, ok := byNumber[number]
	if !ok {
		return Line{}, false
	}
	return lines[i], true
}

// RoutedTo returns the leaf line that collects an account code.
func RoutedTo(code int) (int, bool) {
	n, ok := codeToRow[code]
	return n, ok
}
