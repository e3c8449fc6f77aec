package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Revenue Kind = "Revenue"
	Cost    Kind = "Cost"
	Expense Kind = "Expense"
)

type (
	// Kind tells whether a mapping targets revenue, direct cost or operating expense.
	Kind string

	// Transaction is a normalized export row. It is never mutated after normalization.
	Transaction struct {
		Row          int             `json:"row"`
		Date         time.Time       `json:"date"`
		Month        MonthKey        `json:"month"`
		Amount       decimal.Decimal `json:"amount"`
		CostCenter   string          `json:"cost_center"`
		Counterparty string          `json:"counterparty"`
		Description  string          `json:"description"`
		Category     string          `json:"category"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidKind   = errors.New("invalid kind")
	ErrEmptyDataset  = errors.New("dataset has no valid transactions")
	ErrNoData        = errors.New("no data loaded")
)

// ParseKind accepts the English names and the Portuguese labels used by the
// accounting exports (Receita, Custo, Despesa).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revenue", "receita", "income":
		return Revenue, nil
	case "cost", "custo", "cogs":
		return Cost, nil
	case "expense", "despesa", "opex":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Validate() error {
	switch k {
	case Revenue, Cost, Expense:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.Month != MonthOf(t.Date) {
		return fmt.Errorf("%w: %s does not match date %s", ErrInvalidMonth, t.Month, t.Date.Format(DateLayout))
	}
	return nil
}

// InRange reports whether the competence date falls inside [from, to].
// Zero bounds are open.
func (t Transaction) InRange(from, to time.Time) bool {
	if !from.IsZero() && t.Date.Before(from) {
		return false
	}
	if !to.IsZero() && t.Date.After(to) {
		return false
	}
	return true
}
