package pnl

import (
	"fmt"

	"finctl/internal/core"
	"finctl/internal/mapping"

	"github.com/shopspring/decimal"
)

// Drilldown lists the transactions behind a leaf line or account code.
type Drilldown struct {
	Line         int                `json:"line_number"`
	Description  string             `json:"description"`
	Month        core.MonthKey      `json:"month,omitempty"`
	Codes        []int              `json:"codes"`
	Transactions []core.Transaction `json:"transactions"`
	Total        float64            `json:"total"`
	Count        int                `json:"count"`
}

// LineTransactions returns the transactions that the classifier routes into
// line, optionally restricted to one month. line may be a leaf statement line
// or any account code used by a rule. The total equals the computed cell
// value when no override is set on it.
func LineTransactions(txs []core.Transaction, rules []mapping.Rule, line int, month core.MonthKey) (Drilldown, error) {
	if month != "" && !month.Valid() {
		return Drilldown{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, string(month))
	}

	d := Drilldown{Line: line, Month: month, Transactions: []core.Transaction{}}
	l, isLine := LookupLine(line)
	group, isCode := ruleGroup(rules, line)
	switch {
	case isLine && l.Leaf():
		d.Description = l.Description
		d.Codes = append([]int(nil), l.Codes...)
	case isCode:
		// A rule may target a code that shares its number with a derived line.
		d.Description = group
		d.Codes = []int{line}
	case isLine:
		return Drilldown{}, fmt.Errorf("%w: %d %s", ErrDerivedLine, line, l.Description)
	default:
		return Drilldown{}, fmt.Errorf("%w: no rule targets %d", ErrUnknownLine, line)
	}

	codes := make(map[int]struct{}, len(d.Codes))
	for _, c := range d.Codes {
		codes[c] = struct{}{}
	}

	c := mapping.Classify(txs, rules)
	total := decimal.Zero
	for i, a := range c.Assignments {
		if a.Rule < 0 {
			continue
		}
		if _, ok := codes[a.Line]; !ok {
			continue
		}
		if month != "" && txs[i].Month != month {
			continue
		}
		d.Transactions = append(d.Transactions, txs[i])
		total = total.Add(txs[i].Amount)
	}
	d.Total = total.InexactFloat64()
	d.Count = len(d.Transactions)
	return d, nil
}

func ruleGroup(rules []mapping.Rule, code int) (string, bool) {
	for _, r := range rules {
		if r.Line == code {
			if r.Group != "" {
				return r.Group, true
			}
			return r.CostCenter, true
		}
	}
	return "", false
}
