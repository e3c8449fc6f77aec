package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finctl/internal/amqp"
	"finctl/internal/cache"
	"finctl/internal/core"
	"finctl/internal/ingest"
	applog "finctl/internal/log"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
	"finctl/internal/storage"

	"golang.org/x/sync/singleflight"
)

var timeNow = time.Now

const (
	statementCacheSize = 64
	statementCacheTTL  = 10 * time.Minute
)

// Publisher announces dataset changes to other processes.
type Publisher interface {
	PublishDatasetChanged(ctx context.Context, kind amqp.ChangeKind, version int64) error
}

// LedgerService owns the process-wide dataset: transactions, mapping rules
// and overrides. Mutations are serialized, persisted, then published.
// Reads work on an immutable snapshot taken under the read lock.
type LedgerService struct {
	store     storage.Store
	publisher Publisher

	mu   sync.RWMutex
	snap storage.Snapshot

	calls      singleflight.Group
	statements *cache.LRU[pnl.Statement]
}

// NewLedgerService loads the persisted dataset. publisher may be nil.
func NewLedgerService(ctx context.Context, store storage.Store, publisher Publisher) (*LedgerService, error) {
	if store == nil {
		return nil, errors.New("ledger service requires a store")
	}
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	slog.InfoContext(ctx, "Dataset loaded",
		"version", snap.Metadata.Version,
		"transactions", len(snap.Transactions),
		"custom_rules", snap.Rules != nil,
		"overrides", snap.Overrides.Len())

	return &LedgerService{
		store:      store,
		publisher:  publisher,
		snap:       snap,
		statements: cache.NewLRU[pnl.Statement](statementCacheSize, statementCacheTTL),
	}, nil
}

// Snapshot returns the current dataset. Callers must treat it as read-only.
func (s *LedgerService) Snapshot() storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Rules returns the mapping rules in effect.
func (s *LedgerService) Rules() []mapping.Rule {
	return s.Snapshot().EffectiveRules()
}

// Status summarizes what is loaded.
type Status struct {
	HasData      bool             `json:"has_data"`
	Transactions int              `json:"transactions"`
	Months       []core.MonthKey  `json:"months"`
	Rules        int              `json:"rules"`
	CustomRules  bool             `json:"custom_rules"`
	Overrides    int              `json:"overrides"`
	Metadata     storage.Metadata `json:"metadata"`
	Cache        cache.Stats      `json:"cache"`
}

func (s *LedgerService) Status() Status {
	snap := s.Snapshot()
	return Status{
		HasData:      len(snap.Transactions) > 0,
		Transactions: len(snap.Transactions),
		Months:       core.Months(snap.Transactions),
		Rules:        len(snap.EffectiveRules()),
		CustomRules:  snap.Rules != nil,
		Overrides:    snap.Overrides.Len(),
		Metadata:     snap.Metadata,
		Cache:        s.statements.Stats(),
	}
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Version int64           `json:"version"`
	Months  []core.MonthKey `json:"months"`
	Report  ingest.Report   `json:"report"`
}

// Upload normalizes raw and replaces the transaction set with it. Mapping
// rules and overrides are kept. An export with no usable rows is rejected
// and leaves the current dataset untouched.
func (s *LedgerService) Upload(ctx context.Context, source string, raw []byte) (UploadResult, error) {
	txs, report, err := ingest.Normalize(raw)
	if err != nil {
		return UploadResult{}, err
	}
	if len(txs) == 0 {
		return UploadResult{Report: report}, fmt.Errorf("%w: %d rows read, %d dropped", core.ErrEmptyDataset, report.Rows, len(report.Dropped))
	}

	version, err := s.mutate(ctx, amqp.KindTransactions, func(next *storage.Snapshot) error {
		next.Transactions = txs
		next.Metadata = next.Metadata.WithReport(source, report)
		return s.store.ReplaceTransactions(ctx, txs, next.Metadata)
	})
	if err != nil {
		return UploadResult{}, err
	}

	applog.NewStructuredLogger(applog.FromContext(ctx).With("source", source)).
		LogUpload(ctx, version, report.Rows, report.Accepted, len(report.Dropped),
			len(report.Zeroed), report.Reclassified, report.Encoding)

	return UploadResult{Version: version, Months: core.Months(txs), Report: report}, nil
}

// ResetData drops the transactions and every override. Mapping rules stay.
func (s *LedgerService) ResetData(ctx context.Context) error {
	_, err := s.mutate(ctx, amqp.KindTransactions, func(next *storage.Snapshot) error {
		next.Transactions = nil
		next.Overrides = pnl.Overrides{}
		next.Metadata = next.Metadata.WithReport("", ingest.Report{})
		return s.store.ResetData(ctx, next.Metadata)
	})
	return err
}

// SetMappings replaces the whole rule table. Rules are validated first.
func (s *LedgerService) SetMappings(ctx context.Context, rules []mapping.Rule) error {
	if len(rules) == 0 {
		return mapping.ErrNoRules
	}
	if err := mapping.ValidateRules(rules); err != nil {
		return err
	}
	rules = mapping.Clone(rules)
	_, err := s.mutate(ctx, amqp.KindMappings, func(next *storage.Snapshot) error {
		next.Rules = rules
		next.Metadata.CustomRules = true
		return s.store.ReplaceRules(ctx, rules, next.Metadata)
	})
	return err
}

// ResetMappings restores the built-in rule table.
func (s *LedgerService) ResetMappings(ctx context.Context) error {
	_, err := s.mutate(ctx, amqp.KindMappings, func(next *storage.Snapshot) error {
		next.Rules = nil
		next.Metadata.CustomRules = false
		return s.store.ReplaceRules(ctx, nil, next.Metadata)
	})
	return err
}

// Overrides returns a copy of the override store.
func (s *LedgerService) Overrides() pnl.Overrides {
	return s.Snapshot().Overrides.Clone()
}

// SetOverride replaces the cell (line, month) with value.
func (s *LedgerService) SetOverride(ctx context.Context, line string, month core.MonthKey, value float64) error {
	line, err := pnl.ValidateOverride(line, month, value)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, amqp.KindOverrides, func(next *storage.Snapshot) error {
		o := next.Overrides.Clone()
		o.Set(line, month, value)
		next.Overrides = o
		return s.store.ReplaceOverrides(ctx, o, next.Metadata)
	})
	if err == nil {
		slog.InfoContext(ctx, "Override set", "line", line, "month", month, "value", value)
	}
	return err
}

// DeleteOverride removes one override. It reports false, without bumping the
// version, when there was nothing to remove.
func (s *LedgerService) DeleteOverride(ctx context.Context, line string, month core.MonthKey) (bool, error) {
	line, err := pnl.ValidateOverride(line, month, 0)
	if err != nil {
		return false, err
	}
	if _, ok := s.Snapshot().Overrides.Get(line, month); !ok {
		return false, nil
	}
	_, err = s.mutate(ctx, amqp.KindOverrides, func(next *storage.Snapshot) error {
		o := next.Overrides.Clone()
		o.Delete(line, month)
		next.Overrides = o
		return s.store.ReplaceOverrides(ctx, o, next.Metadata)
	})
	return err == nil, err
}

// ClearOverrides removes every override and returns how many there were.
func (s *LedgerService) ClearOverrides(ctx context.Context) (int, error) {
	var n int
	_, err := s.mutate(ctx, amqp.KindOverrides, func(next *storage.Snapshot) error {
		n = next.Overrides.Len()
		next.Overrides = pnl.Overrides{}
		return s.store.ReplaceOverrides(ctx, next.Overrides, next.Metadata)
	})
	return n, err
}

// mutate applies fn to a copy of the current snapshot under the write lock.
// The copy becomes current only when fn, which persists it, succeeds.
func (s *LedgerService) mutate(ctx context.Context, kind amqp.ChangeKind, fn func(next *storage.Snapshot) error) (int64, error) {
	s.mu.Lock()
	next := s.snap
	next.Metadata.Version++
	next.Metadata.UpdatedAt = timeNow().UTC()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Failed to persist dataset change",
			err, applog.ComponentLedger, applog.OpPersist, applog.LogFields{applog.FieldKind: string(kind)})
		return 0, fmt.Errorf("persist %s: %w", kind, err)
	}
	s.snap = next
	version := next.Metadata.Version
	s.mu.Unlock()
	s.statements.Purge()

	s.publish(ctx, kind, version)
	return version, nil
}

func (s *LedgerService) publish(ctx context.Context, kind amqp.ChangeKind, version int64) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change event", "kind", kind)
		return
	}
	if err := s.publisher.PublishDatasetChanged(ctx, kind, version); err != nil {
		// the change is already persisted
		slog.ErrorContext(ctx, "Failed to publish dataset change",
			"kind", kind, "version", version, "error", err)
	}
}

// Close closes the store and the publisher when it can be closed.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
