package services

import (
	"context"
	"fmt"
	"log/slog"

	"finctl/internal/core"
	"finctl/internal/dashboard"
	"finctl/internal/pnl"
	"finctl/internal/storage"
)

// Report results are shared between concurrent callers asking for the same
// dataset version, so they must not be modified.

// Statement computes the statement for rng.
func (s *LedgerService) Statement(ctx context.Context, rng pnl.Range) (pnl.Statement, error) {
	if err := rng.Validate(); err != nil {
		return pnl.Statement{}, err
	}
	snap, err := s.loaded()
	if err != nil {
		return pnl.Statement{}, err
	}
	key := fmt.Sprintf("pnl:%d:%s:%s", snap.Metadata.Version, rng.From.Format(core.DateLayout), rng.To.Format(core.DateLayout))
	if stmt, ok := s.statements.Get(key); ok {
		return stmt, nil
	}
	v, err, shared := s.calls.Do(key, func() (any, error) {
		stmt, err := pnl.Calculate(snap.Transactions, snap.EffectiveRules(), snap.Overrides, rng)
		if err == nil {
			s.statements.Set(key, stmt)
		}
		return stmt, err
	})
	if err != nil {
		return pnl.Statement{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Statement computation shared", "version", snap.Metadata.Version)
	}
	return v.(pnl.Statement), nil
}

// Dashboard builds KPIs, series and cost structure over all months.
func (s *LedgerService) Dashboard(ctx context.Context) (dashboard.Dashboard, error) {
	stmt, err := s.Statement(ctx, pnl.Range{})
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	return dashboard.Build(stmt), nil
}

// Forecast projects monthsAhead months past the last loaded month.
func (s *LedgerService) Forecast(ctx context.Context, monthsAhead int) (dashboard.ForecastResult, error) {
	if monthsAhead < 1 || monthsAhead > dashboard.MaxHorizon {
		return dashboard.ForecastResult{}, fmt.Errorf("%w: got %d", dashboard.ErrInvalidHorizon, monthsAhead)
	}
	stmt, err := s.Statement(ctx, pnl.Range{})
	if err != nil {
		return dashboard.ForecastResult{}, err
	}
	return dashboard.Forecast(stmt, monthsAhead)
}

// Drilldown lists the transactions behind a leaf line or account code.
func (s *LedgerService) Drilldown(ctx context.Context, line int, month core.MonthKey) (pnl.Drilldown, error) {
	snap, err := s.loaded()
	if err != nil {
		return pnl.Drilldown{}, err
	}
	return pnl.LineTransactions(snap.Transactions, snap.EffectiveRules(), line, month)
}

// ValidationReport collects the statement identity checks and the
// dashboard consistency checks.
type ValidationReport struct {
	Valid        bool            `json:"valid"`
	Version      int64           `json:"version"`
	Months       int             `json:"months"`
	Unclassified int             `json:"unclassified"`
	Identities   []pnl.Violation `json:"identities"`
	Dashboard    []pnl.Violation `json:"dashboard"`
}

// Validate checks every statement identity and compares the dashboard
// against the statement it is built from.
func (s *LedgerService) Validate(ctx context.Context) (ValidationReport, error) {
	version := s.Snapshot().Metadata.Version
	stmt, err := s.Statement(ctx, pnl.Range{})
	if err != nil {
		return ValidationReport{}, err
	}
	r := ValidationReport{
		Version:      version,
		Months:       len(stmt.Headers),
		Unclassified: stmt.Unclassified,
		Identities:   pnl.CheckIdentities(stmt, ""),
		Dashboard:    dashboard.Validate(dashboard.Build(stmt), stmt),
	}
	if r.Identities == nil {
		r.Identities = []pnl.Violation{}
	}
	if r.Dashboard == nil {
		r.Dashboard = []pnl.Violation{}
	}
	r.Valid = len(r.Identities) == 0 && len(r.Dashboard) == 0
	if !r.Valid {
		slog.WarnContext(ctx, "Consistency check failed",
			"version", version,
			"identity_violations", len(r.Identities),
			"dashboard_violations", len(r.Dashboard))
	}
	return r, nil
}

func (s *LedgerService) loaded() (storage.Snapshot, error) {
	snap := s.Snapshot()
	if len(snap.Transactions) == 0 {
		return snap, core.ErrNoData
	}
	return snap, nil
}
