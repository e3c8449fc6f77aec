package core

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the canonical competence date format.
const DateLayout = "2006-01-02"

// MonthKey identifies a competence month as "YYYY-MM".
type MonthKey string

// MonthOf returns the month key for a date.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseMonthKey accepts "YYYY-MM" and "YYYY-MM-DD".
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) >= 10 {
		if t, err := time.Parse(DateLayout, s[:10]); err == nil {
			return MonthOf(t), nil
		}
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// Start returns the first instant of the month in UTC.
func (m MonthKey) Start() time.Time {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the last day of the month at midnight UTC.
func (m MonthKey) End() time.Time {
	s := m.Start()
	if s.IsZero() {
		return s
	}
	return s.AddDate(0, 1, -1)
}

// Add shifts the month key by n months.
func (m MonthKey) Add(n int) MonthKey {
	s := m.Start()
	if s.IsZero() {
		return m
	}
	return MonthOf(s.AddDate(0, n, 0))
}

func (m MonthKey) Valid() bool {
	return !m.Start().IsZero()
}

func (m MonthKey) String() string { return string(m) }

// SortMonths sorts month keys chronologically in place and returns them.
func SortMonths(ms []MonthKey) []MonthKey {
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	return ms
}

// Months returns the distinct months present in txs, sorted.
func Months(txs []Transaction) []MonthKey {
	seen := make(map[MonthKey]struct{}, 16)
	out := make([]MonthKey, 0, 16)
	for _, t := range txs {
		if _, ok := seen[t.Month]; ok {
			continue
		}
		seen[t.Month] = struct{}{}
		out = append(out, t.Month)
	}
	return SortMonths(out)
}
