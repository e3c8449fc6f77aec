// Package mapping holds the ordered rule table that routes transactions to
// statement lines, and the classifier that applies it.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"finctl/internal/core"
)

var (
	ErrInvalidRule = errors.New("invalid mapping rule")
	ErrNoRules     = errors.New("no mapping rules")
)

// Rule associates a cost-center and counterparty pattern with a target
// account code. Patterns match case-insensitively as substrings of the
// transaction fields.
type Rule struct {
	Group        string    `json:"group" yaml:"group"`
	CostCenter   string    `json:"cost_center" yaml:"cost_center"`
	Counterparty string    `json:"counterparty" yaml:"counterparty"`
	Line         int       `json:"line" yaml:"line"`
	Kind         core.Kind `json:"kind" yaml:"kind"`
	Active       bool      `json:"active" yaml:"active"`
	Note         string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// genericSentinels mark a rule as the catch-all for its cost center.
var genericSentinels = map[string]struct{}{
	"":         {},
	"*":        {},
	"diversos": {},
	"various":  {},
	"generic":  {},
}

// IsGeneric reports whether the counterparty pattern is a catch-all.
func (r Rule) IsGeneric() bool {
	_, ok := genericSentinels[strings.ToLower(strings.TrimSpace(r.Counterparty))]
	return ok
}

func (r Rule) Validate() error {
	if r.Line <= 0 {
		return fmt.Errorf("%w: line must be positive, got %d", ErrInvalidRule, r.Line)
	}
	if err := r.Kind.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if strings.TrimSpace(r.CostCenter) == "" && strings.TrimSpace(r.Counterparty) == "" {
		return fmt.Errorf("%w: cost center or counterparty required", ErrInvalidRule)
	}
	return nil
}

// ValidateRules checks every rule and reports the first failure with its position.
func ValidateRules(rules []Rule) error {
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return nil
}

// Clone returns an independent copy of rules.
func Clone(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func rule(group, cc, cp string, line int, kind core.Kind, note string) Rule {
	return Rule{Group: group, CostCenter: cc, Counterparty: cp, Line: line, Kind: kind, Active: true, Note: note}
}

// DefaultRules returns the built-in mapping set. Specific suppliers are
// listed before the catch-all of their cost center.
func DefaultRules() []Rule {
	return []Rule{
		rule("Receita Google", "Receita Google", "GOOGLE BRASIL PAGAMENTOS LTDA", 25, core.Revenue, "Google Play net revenue"),
		rule("Receita Google", "Receita Google", "Diversos", 25, core.Revenue, "Google Play - other"),
		rule("Receita Apple", "Receita Apple", "App Store (Apple)", 33, core.Revenue, "App Store net revenue"),
		rule("Receita Apple", "Receita Apple", "Diversos", 33, core.Revenue, "App Store - other"),
		rule("Rendimentos", "Rendimentos de Aplicações", "CONTA SIMPLES", 42, core.Revenue, "CDI yield - Conta Simples"),
		rule("Rendimentos", "Rendimentos de Aplicações", "BANCO INTER", 42, core.Revenue, "Yield - Banco Inter"),
		rule("Rendimentos", "Rendimentos de Aplicações", "Diversos", 42, core.Revenue, "Investment income - other"),

		rule("COGS", "Web Services Expenses", "AWS", 43, core.Cost, "Amazon Web Services"),
		rule("COGS", "Web Services Expenses", "Cloudflare", 43, core.Cost, "Cloudflare"),
		rule("COGS", "Web Services Expenses", "Heroku", 43, core.Cost, "Heroku"),
		rule("COGS", "Web Services Expenses", "IAPHUB", 46, core.Cost, "In-app purchase hub"),
		rule("COGS", "Web Services Expenses", "MailGun", 43, core.Cost, "MailGun"),
		rule("COGS", "Web Services Expenses", "Diversos", 43, core.Cost, "Web services - other"),

		rule("SG&A", "Marketing & Growth Expenses", "MGA MARKETING LTDA", 56, core.Expense, "Marketing agency"),
		rule("SG&A", "Marketing & Growth Expenses", "GOOGLE ADS", 60, core.Expense, "Paid acquisition"),
		rule("SG&A", "Marketing & Growth Expenses", "Diversos", 56, core.Expense, "Marketing - other"),
		rule("SG&A", "Wages Expenses", "Diversos", 62, core.Expense, "Salaries and pro-labore"),
		rule("SG&A", "Tech Support & Services", "Adobe", 69, core.Expense, "Adobe Creative Cloud"),
		rule("SG&A", "Tech Support & Services", "Canva", 69, core.Expense, "Canva"),
		rule("SG&A", "Tech Support & Services", "ClickSign", 69, core.Expense, "ClickSign"),
		rule("SG&A", "Tech Support & Services", "COMPANYHERO SAO PAULO BRA", 69, core.Expense, "CompanyHero"),
		rule("SG&A", "Tech Support & Services", "Diversos", 69, core.Expense, "Tech support - other"),

		rule("Outras Despesas", "Legal & Accounting Expenses", "BHUB.AI", 70, core.Expense, "Outsourced finance"),
		rule("Outras Despesas", "Legal & Accounting Expenses", "WOLFF E SCRIPES ADVOGADOS", 70, core.Expense, "Legal fees"),
		rule("Outras Despesas", "Legal & Accounting Expenses", "Diversos", 70, core.Expense, "Legal and accounting - other"),
		rule("Outras Despesas", "Office Expenses", "GO OFFICES LATAM S/A", 71, core.Expense, "Rent"),
		rule("Outras Despesas", "Office Expenses", "Diversos", 71, core.Expense, "Office - other"),
		rule("Outras Despesas", "Travel", "Diversos", 72, core.Expense, "Travel"),
		rule("Outras Despesas", "Other Taxes", "IMPOSTOS/TRIBUTOS", 73, core.Expense, "Taxes"),
		rule("Outras Despesas", "Payroll Tax - Brazil", "IMPOSTOS/TRIBUTOS", 73, core.Expense, "Payroll taxes"),
	}
}
