package pnl

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"finctl/internal/core"
	"finctl/internal/mapping"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownLine  = errors.New("unknown line")
	ErrDerivedLine  = errors.New("line is derived from other lines")
	ErrInvalidRange = errors.New("invalid date range")
)

// Row is one statement line with its per-month values.
type Row struct {
	Line        int                       `json:"line_number"`
	Description string                    `json:"description"`
	Values      map[core.MonthKey]float64 `json:"values"`
	IsHeader    bool                      `json:"is_header"`
	IsTotal     bool                      `json:"is_total"`
	IsPercent   bool                      `json:"is_percent"`
	Overridden  []core.MonthKey           `json:"overridden,omitempty"`
}

// Statement is a fully evaluated profit and loss statement.
type Statement struct {
	Headers []core.MonthKey `json:"headers"`
	Rows    []Row           `json:"rows"`
	// Unclassified counts in-range transactions no rule matched.
	Unclassified int `json:"unclassified"`
	// Unrouted sums classified amounts whose account code feeds no line.
	Unrouted map[int]float64 `json:"unrouted,omitempty"`

	cells map[int]map[core.MonthKey]decimal.Decimal
}

// Value returns a cell as float64, zero when absent.
func (s Statement) Value(line int, month core.MonthKey) float64 {
	return s.Decimal(line, month).InexactFloat64()
}

// Decimal returns the exact value of a cell.
func (s Statement) Decimal(line int, month core.MonthKey) decimal.Decimal {
	if s.cells != nil {
		return s.cells[line][month]
	}
	// Statements decoded from JSON only carry float rows.
	for _, r := range s.Rows {
		if r.Line == line {
			return decimal.NewFromFloat(r.Values[month])
		}
	}
	return decimal.Zero
}

func (s Statement) Row(line int) (Row, bool) {
	for _, r := range s.Rows {
		if r.Line == line {
			return r, true
		}
	}
	return Row{}, false
}

// Latest returns the last month of the statement.
func (s Statement) Latest() (core.MonthKey, bool) {
	if len(s.Headers) == 0 {
		return "", false
	}
	return s.Headers[len(s.Headers)-1], true
}

// Range limits a calculation to competence dates in [From, To]. Zero bounds
// are open.
type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange accepts "YYYY-MM" or "YYYY-MM-DD" bounds; either may be empty.
// A month end bound covers the whole month.
func ParseRange(start, end string) (Range, error) {
	var r Range
	if start != "" {
		t, err := parseBound(start, false)
		if err != nil {
			return Range{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
		}
		r.From = t
	}
	if end != "" {
		t, err := parseBound(end, true)
		if err != nil {
			return Range{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
		}
		r.To = t
	}
	return r, r.Validate()
}

func parseBound(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(core.DateLayout, s); err == nil {
		return t, nil
	}
	m, err := core.ParseMonthKey(s)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		return m.End(), nil
	}
	return m.Start(), nil
}

func (r Range) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, r.From.Format(core.DateLayout), r.To.Format(core.DateLayout))
	}
	return nil
}

// Calculate classifies txs with rules and evaluates the statement for every
// month present in the range. An override replaces its cell before any line
// that consumes it is evaluated; it never changes the lines it derives from.
func Calculate(txs []core.Transaction, rules []mapping.Rule, overrides Overrides, rng Range) (Statement, error) {
	if err := rng.Validate(); err != nil {
		return Statement{}, err
	}
	inRange := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.InRange(rng.From, rng.To) {
			inRange = append(inRange, tx)
		}
	}
	return evaluate(inRange, mapping.Classify(inRange, rules), overrides), nil
}

func evaluate(txs []core.Transaction, c mapping.Classification, overrides Overrides) Statement {
	months := core.Months(txs)
	stmt := Statement{
		Headers:      months,
		Rows:         make([]Row, len(lines)),
		Unclassified: len(c.Unclassified),
		cells:        make(map[int]map[core.MonthKey]decimal.Decimal, len(lines)),
	}
	for _, l := range lines {
		stmt.cells[l.Number] = make(map[core.MonthKey]decimal.Decimal, len(months))
	}

	for _, m := range months {
		for _, i := range evalOrder {
			l := lines[i]
			if v, ok := overrides.Get(strconv.Itoa(l.Number), m); ok {
				stmt.cells[l.Number][m] = decimal.NewFromFloat(v)
				continue
			}
			stmt.cells[l.Number][m] = compute(l, m, c, stmt.cells)
		}
	}

	for i, l := range lines {
		row := Row{
			Line:        l.Number,
			Description: l.Description,
			Values:      make(map[core.MonthKey]float64, len(months)),
			IsHeader:    l.Header,
			IsTotal:     l.Total,
			IsPercent:   l.Percent,
		}
		for _, m := range months {
			row.Values[m] = stmt.cells[l.Number][m].InexactFloat64()
			if _, ok := overrides.Get(strconv.Itoa(l.Number), m); ok {
				row.Overridden = append(row.Overridden, m)
			}
		}
		stmt.Rows[i] = row
	}

	unrouted := make(map[int]decimal.Decimal)
	for _, k := range c.Keys {
		if _, ok := RoutedTo(k.Line); !ok {
			unrouted[k.Line] = unrouted[k.Line].Add(c.Totals[k])
		}
	}
	if len(unrouted) > 0 {
		stmt.Unrouted = make(map[int]float64, len(unrouted))
		for code, v := range unrouted {
			stmt.Unrouted[code] = v.InexactFloat64()
		}
	}
	return stmt
}

func compute(l Line, m core.MonthKey, c mapping.Classification, cells map[int]map[core.MonthKey]decimal.Decimal) decimal.Decimal {
	switch l.formula {
	case leaf:
		total := decimal.Zero
		for _, code := range l.Codes {
			total = total.Add(c.Total(code, m))
		}
		return total
	case sum:
		total := decimal.Zero
		for _, t := range l.Terms {
			total = total.Add(cells[t][m])
		}
		return total
	case scaled:
		return cells[l.Terms[0]][m].Mul(l.Factor)
	case ratio:
		return Margin(cells[l.Terms[0]][m], cells[l.Terms[1]][m])
	}
	return decimal.Zero
}

// UnroutedCodes returns the unrouted account codes in ascending order.
func (s Statement) UnroutedCodes() []int {
	out := make([]int, 0, len(s.Unrouted))
	for code := range s.Unrouted {
		out = append(out, code)
	}
	sort.Ints(out)
	return out
}
