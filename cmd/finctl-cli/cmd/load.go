package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"finctl/internal/mapping"
	"finctl/internal/pnl"
	"finctl/internal/services"
	"finctl/internal/storage"
	"finctl/internal/storage/memory"
)

// loadLedger runs an export file through an in-memory ledger seeded with
// the --mappings and --overrides files.
func loadLedger(ctx context.Context, path string) (*services.LedgerService, services.UploadResult, error) {
	var snap storage.Snapshot
	if mappingsFile != "" {
		rules, err := mapping.LoadFile(mappingsFile)
		if err != nil {
			return nil, services.UploadResult{}, err
		}
		snap.Rules = rules
	}
	if overridesFile != "" {
		ov, err := readOverrides(overridesFile)
		if err != nil {
			return nil, services.UploadResult{}, err
		}
		snap.Overrides = ov
	}

	ledger, err := services.NewLedgerService(ctx, memory.New(snap), nil)
	if err != nil {
		return nil, services.UploadResult{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.UploadResult{}, fmt.Errorf("read export: %w", err)
	}
	res, err := ledger.Upload(ctx, filepath.Base(path), raw)
	if err != nil {
		return nil, res, err
	}
	return ledger, res, nil
}

func readOverrides(path string) (pnl.Overrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pnl.Overrides{}, fmt.Errorf("read overrides: %w", err)
	}
	var ov pnl.Overrides
	if err := json.Unmarshal(raw, &ov); err != nil {
		return pnl.Overrides{}, err
	}
	for _, e := range ov.Entries() {
		if _, err := pnl.ValidateOverride(e.Line, e.Month, e.Value); err != nil {
			return pnl.Overrides{}, fmt.Errorf("override %s/%s: %w", e.Line, e.Month, err)
		}
	}
	return ov, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
