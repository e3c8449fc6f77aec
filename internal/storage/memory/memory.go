// Package memory is a process-local Store, optionally seeded from a data
// directory.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finctl/internal/core"
	"finctl/internal/ingest"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
	"finctl/internal/storage"
)

// Seed file names looked up by NewFromFiles.
const (
	SeedTransactions = "transactions.csv"
	SeedMappingsYAML = "mappings.yaml"
	SeedMappingsJSON = "mappings.json"
)

type Store struct {
	mu   sync.Mutex
	snap storage.Snapshot
}

var _ storage.Store = (*Store)(nil)

func New(snap storage.Snapshot) *Store {
	return &Store{snap: clone(snap)}
}

// NewFromFiles seeds the store from base. Missing files are skipped; files
// that fail to parse are logged and skipped.
func NewFromFiles(base string) *Store {
	var snap storage.Snapshot

	csvPath := filepath.Join(base, SeedTransactions)
	if raw, err := os.ReadFile(csvPath); err == nil {
		txs, report, err := ingest.Normalize(raw)
		if err != nil {
			slog.Warn("Skipping seed transactions", "file", csvPath, "error", err)
		} else {
			snap.Transactions = txs
			snap.Metadata = snap.Metadata.WithReport(SeedTransactions, report)
			snap.Metadata.Version = 1
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Cannot read seed transactions", "file", csvPath, "error", err)
	}

	for _, name := range []string{SeedMappingsYAML, SeedMappingsJSON} {
		path := filepath.Join(base, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rules, err := mapping.LoadFile(path)
		if err != nil {
			slog.Warn("Skipping seed mappings", "file", path, "error", err)
			continue
		}
		snap.Rules = rules
		snap.Metadata.CustomRules = true
		break
	}

	if snap.Metadata.Version > 0 || snap.Rules != nil {
		snap.Metadata.UpdatedAt = time.Now().UTC()
	}
	return New(snap)
}

func (s *Store) Load(_ context.Context) (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.snap), nil
}

func (s *Store) ReplaceTransactions(_ context.Context, txs []core.Transaction, meta storage.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Transactions = append([]core.Transaction(nil), txs...)
	s.setMeta(meta)
	return nil
}

// ReplaceRules stores a copy of rules; nil means the defaults are in effect.
func (s *Store) ReplaceRules(_ context.Context, rules []mapping.Rule, meta storage.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Rules = mapping.Clone(rules)
	meta.CustomRules = rules != nil
	s.setMeta(meta)
	return nil
}

func (s *Store) ReplaceOverrides(_ context.Context, overrides pnl.Overrides, meta storage.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Overrides = overrides.Clone()
	s.setMeta(meta)
	return nil
}

func (s *Store) ResetData(_ context.Context, meta storage.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Transactions = nil
	s.snap.Overrides = pnl.Overrides{}
	s.setMeta(meta)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) setMeta(meta storage.Metadata) {
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	s.snap.Metadata = meta
}

func clone(snap storage.Snapshot) storage.Snapshot {
	return storage.Snapshot{
		Transactions: append([]core.Transaction(nil), snap.Transactions...),
		Rules:        mapping.Clone(snap.Rules),
		Overrides:    snap.Overrides.Clone(),
		Metadata:     snap.Metadata,
	}
}
