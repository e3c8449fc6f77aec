package mapping

import (
	"finctl/internal/core"

	"github.com/shopspring/decimal"
)

// Key addresses one account code in one month.
type Key struct {
	Line  int
	Month core.MonthKey
}

// Assignment records the routing decision for one input transaction.
type Assignment struct {
	Line  int   `json:"line"`
	Rule  int   `json:"rule"`
	Stage Stage `json:"stage"`
}

// Classification is the result of routing a transaction set through a table.
type Classification struct {
	// Totals holds the signed sum per account code and month.
	Totals map[Key]decimal.Decimal
	// Keys lists Totals keys in first-seen order.
	Keys []Key
	// Assignments is parallel to the input; Rule is -1 when nothing matched.
	Assignments  []Assignment
	Unclassified []core.Transaction
}

// Classify routes every transaction to at most one account code.
func Classify(txs []core.Transaction, rules []Rule) Classification {
	return NewTable(rules).Classify(txs)
}

func (t *Table) Classify(txs []core.Transaction) Classification {
	c := Classification{
		Totals:       make(map[Key]decimal.Decimal, 64),
		Keys:         make([]Key, 0, 64),
		Assignments:  make([]Assignment, len(txs)),
		Unclassified: []core.Transaction{},
	}
	for i, tx := range txs {
		m, ok := t.Match(tx)
		if !ok {
			c.Assignments[i] = Assignment{Rule: -1}
			c.Unclassified = append(c.Unclassified, tx)
			continue
		}
		c.Assignments[i] = Assignment{Line: m.Rule.Line, Rule: m.Index, Stage: m.Stage}

		k := Key{Line: m.Rule.Line, Month: tx.Month}
		sum, seen := c.Totals[k]
		if !seen {
			c.Keys = append(c.Keys, k)
		}
		c.Totals[k] = sum.Add(tx.Amount)
	}
	return c
}

// Total returns the classified sum for a code and month, zero when absent.
func (c Classification) Total(line int, month core.MonthKey) decimal.Decimal {
	return c.Totals[Key{Line: line, Month: month}]
}

// Lines returns the distinct account codes that received at least one transaction.
func (c Classification) Lines() []int {
	seen := make(map[int]struct{}, len(c.Keys))
	out := make([]int, 0, len(c.Keys))
	for _, k := range c.Keys {
		if _, ok := seen[k.Line]; ok {
			continue
		}
		seen[k.Line] = struct{}{}
		out = append(out, k.Line)
	}
	return out
}
