package storage

import (
	"context"
	"time"

	"finctl/internal/core"
	"finctl/internal/ingest"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
)

// Metadata describes the dataset currently held by a Store. Version grows by
// one on every accepted mutation.
type Metadata struct {
	Version      int64     `json:"version"`
	Source       string    `json:"source"`
	Encoding     string    `json:"encoding"`
	Rows         int       `json:"rows"`
	Accepted     int       `json:"accepted"`
	Dropped      int       `json:"dropped"`
	Zeroed       int       `json:"zeroed"`
	Reclassified int       `json:"reclassified"`
	CustomRules  bool      `json:"custom_rules"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WithReport copies the counters of a normalization run.
func (m Metadata) WithReport(source string, r ingest.Report) Metadata {
	m.Source = source
	m.Encoding = r.Encoding
	m.Rows = r.Rows
	m.Accepted = r.Accepted
	m.Dropped = len(r.Dropped)
	m.Zeroed = len(r.Zeroed)
	m.Reclassified = r.Reclassified
	return m
}

// Snapshot is everything needed to rebuild the statement. Rules is nil when
// the built-in defaults are in effect.
type Snapshot struct {
	Transactions []core.Transaction
	Rules        []mapping.Rule
	Overrides    pnl.Overrides
	Metadata     Metadata
}

// EffectiveRules returns a copy of the rules in force.
func (s Snapshot) EffectiveRules() []mapping.Rule {
	if s.Rules == nil {
		return mapping.DefaultRules()
	}
	return mapping.Clone(s.Rules)
}

// Store persists the dataset. Each Replace call swaps one part of the
// snapshot and its metadata atomically.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	ReplaceTransactions(ctx context.Context, txs []core.Transaction, meta Metadata) error
	ReplaceRules(ctx context.Context, rules []mapping.Rule, meta Metadata) error
	ReplaceOverrides(ctx context.Context, overrides pnl.Overrides, meta Metadata) error
	// ResetData drops the transactions and every override in one write.
	// Mapping rules are kept.
	ResetData(ctx context.Context, meta Metadata) error
	Close() error
}
