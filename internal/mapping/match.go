package mapping

import (
	"strings"

	"finctl/internal/core"
)

// Stage identifies which matcher selected a rule.
type Stage int

const (
	StageNone Stage = iota
	StageSpecific
	StageDescription
	StageGeneric
)

func (s Stage) String() string {
	switch s {
	case StageSpecific:
		return "specific"
	case StageDescription:
		return "description"
	case StageGeneric:
		return "generic"
	}
	return "none"
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Match is the winning rule for one transaction.
type Match struct {
	Index int   `json:"index"`
	Rule  Rule  `json:"rule"`
	Stage Stage `json:"stage"`
}

// compiled is a rule with its patterns lower-cased once.
type compiled struct {
	costCenter   string
	counterparty string
	generic      bool
	active       bool
}

// fields are the lower-cased transaction fields the matchers look at.
type fields struct {
	costCenter   string
	counterparty string
	description  string
}

// matcher reports whether rule c accepts transaction f at its stage.
type matcher struct {
	stage Stage
	match func(c compiled, f fields) bool
}

// matchers run in order; the first stage with any accepting rule wins, and
// within a stage the first-listed rule wins.
var matchers = []matcher{
	{StageSpecific, func(c compiled, f fields) bool {
		return !c.generic && costCenterMatches(c, f) && strings.Contains(f.counterparty, c.counterparty)
	}},
	{StageDescription, func(c compiled, f fields) bool {
		return !c.generic && costCenterMatches(c, f) && strings.Contains(f.description, c.counterparty)
	}},
	{StageGeneric, func(c compiled, f fields) bool {
		return c.generic && costCenterMatches(c, f)
	}},
}

func costCenterMatches(c compiled, f fields) bool {
	return c.costCenter == "" || strings.Contains(f.costCenter, c.costCenter)
}

// Table is an immutable, ordered rule list ready for matching.
type Table struct {
	rules    []Rule
	compiled []compiled
}

// NewTable copies rules and prepares them for matching.
func NewTable(rules []Rule) *Table {
	t := &Table{rules: Clone(rules), compiled: make([]compiled, len(rules))}
	for i, r := range t.rules {
		t.compiled[i] = compiled{
			costCenter:   normalize(r.CostCenter),
			counterparty: normalize(r.Counterparty),
			generic:      r.IsGeneric(),
			active:       r.Active,
		}
	}
	return t
}

// Rules returns a copy of the table's rules.
func (t *Table) Rules() []Rule { return Clone(t.rules) }

func (t *Table) Len() int { return len(t.rules) }

// Match selects the single rule for tx, or reports false when none applies.
func (t *Table) Match(tx core.Transaction) (Match, bool) {
	f := fields{
		costCenter:   normalize(tx.CostCenter),
		counterparty: normalize(tx.Counterparty),
		description:  normalize(tx.Description),
	}
	for _, m := range matchers {
		for i, c := range t.compiled {
			if !c.active {
				continue
			}
			if m.match(c, f) {
				return Match{Index: i, Rule: t.rules[i], Stage: m.stage}, true
			}
		}
	}
	return Match{Index: -1}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
