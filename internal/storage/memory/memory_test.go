package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finctl/internal/core"
	"finctl/internal/mapping"
	"finctl/internal/pnl"
	"finctl/internal/storage"
)

const seedCSV = "Data;Valor;Centro de Custo;Fornecedor/Cliente;Descrição\n" +
	"15/01/2024;1.000,00;Receita Google;GOOGLE BRASIL PAGAMENTOS LTDA;Repasse\n" +
	"20/01/2024;-250,50;Wages Expenses;Diversos;Folha\n"

const seedYAML = `mappings:
  - group: Receita
    cost_center: Receita Google
    counterparty: GOOGLE
    line: 25
    kind: Revenue
    active: true
`

func TestNewFromFilesSeedsDataset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SeedTransactions), []byte(seedCSV), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, SeedMappingsYAML), []byte(seedYAML), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFromFiles(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Transactions) != 2 || snap.Metadata.Accepted != 2 || snap.Metadata.Version != 1 {
		t.Fatalf("unexpected seeded transactions: %+v", snap.Metadata)
	}
	if len(snap.Rules) != 1 || snap.Rules[0].Line != 25 || !snap.Metadata.CustomRules {
		t.Fatalf("unexpected seeded rules: %+v", snap.Rules)
	}
}

func TestNewFromFilesMissingDirectory(t *testing.T) {
	snap, err := NewFromFiles(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Transactions) != 0 || snap.Rules != nil || snap.Metadata.Version != 0 {
		t.Fatalf("expected empty store, got %+v", snap)
	}
}

func TestStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := New(storage.Snapshot{})

	rules := mapping.DefaultRules()
	if err := s.ReplaceRules(ctx, rules, storage.Metadata{Version: 1}); err != nil {
		t.Fatal(err)
	}
	rules[0].Line = 999

	o := pnl.NewOverrides(pnl.Override{Line: "13", Month: "2024-01", Value: 1})
	if err := s.ReplaceOverrides(ctx, o, storage.Metadata{Version: 2, CustomRules: true}); err != nil {
		t.Fatal(err)
	}
	o.Set("13", "2024-02", 2)

	snap, _ := s.Load(ctx)
	if snap.Rules[0].Line == 999 {
		t.Fatalf("store must copy rules on write")
	}
	if snap.Overrides.Len() != 1 || snap.Metadata.Version != 2 || snap.Metadata.UpdatedAt.IsZero() {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	snap.Overrides.Clear()
	again, _ := s.Load(ctx)
	if again.Overrides.Len() != 1 {
		t.Fatalf("store must copy on read")
	}

	if err := s.ReplaceRules(ctx, nil, again.Metadata); err != nil {
		t.Fatal(err)
	}
	if again, _ = s.Load(ctx); again.Rules != nil || again.Metadata.CustomRules {
		t.Fatalf("expected defaults after reset")
	}
}

func TestResetData(t *testing.T) {
	ctx := context.Background()
	s := New(storage.Snapshot{
		Transactions: []core.Transaction{{Row: 2}},
		Rules:        mapping.DefaultRules()[:1],
		Overrides:    pnl.NewOverrides(pnl.Override{Line: "9", Month: "2024-01", Value: 1}),
	})
	if err := s.ResetData(ctx, storage.Metadata{Version: 4, CustomRules: true}); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Load(ctx)
	if len(snap.Transactions) != 0 || snap.Overrides.Len() != 0 || len(snap.Rules) != 1 || snap.Metadata.Version != 4 {
		t.Fatalf("unexpected snapshot after reset: %+v", snap)
	}
}
