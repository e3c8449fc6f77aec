package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finctl/internal/amqp"
	"finctl/internal/export"
	"finctl/internal/pnl"
	"finctl/internal/sheets"
	"finctl/internal/storage"
)

var timeNow = time.Now

// ReportWorker rebuilds the statement after every dataset change and hands
// it to each configured report writer.
type ReportWorker struct {
	store   storage.Store
	writers []sheets.ReportWriter

	mu          sync.Mutex
	lastVersion int64
}

func NewReportWorker(store storage.Store, writers ...sheets.ReportWriter) *ReportWorker {
	return &ReportWorker{store: store, writers: writers}
}

// HandleDatasetChanged processes a single change notification from AMQP.
// The message only signals that the store moved on; the data is reloaded.
func (w *ReportWorker) HandleDatasetChanged(ctx context.Context, msg *amqp.DatasetChangedMessage) error {
	slog.InfoContext(ctx, "Processing dataset change",
		"id", msg.ID,
		"kind", msg.Kind,
		"version", msg.Version)

	if _, err := w.Generate(ctx); err != nil {
		return fmt.Errorf("generate report for version %d: %w", msg.Version, err)
	}
	return nil
}

// StartupReport writes a report for whatever the store holds, covering
// changes made while the worker was down.
func (w *ReportWorker) StartupReport(ctx context.Context) error {
	written, err := w.Generate(ctx)
	if err != nil {
		return fmt.Errorf("startup report: %w", err)
	}
	if !written {
		slog.InfoContext(ctx, "No report needed on startup")
	}
	return nil
}

// Generate writes a report for the stored dataset. It reports false when the
// stored version was already written or holds no transactions.
func (w *ReportWorker) Generate(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap, err := w.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load dataset: %w", err)
	}
	version := snap.Metadata.Version
	if version <= w.lastVersion {
		slog.DebugContext(ctx, "Report already written for version", "version", version)
		return false, nil
	}
	if len(snap.Transactions) == 0 {
		slog.InfoContext(ctx, "Dataset has no transactions, skipping report", "version", version)
		w.lastVersion = version
		return false, nil
	}

	stmt, err := pnl.Calculate(snap.Transactions, snap.EffectiveRules(), snap.Overrides, pnl.Range{})
	if err != nil {
		return false, fmt.Errorf("calculate statement: %w", err)
	}
	rep := export.NewReport(version, stmt, timeNow())

	var errs []error
	for _, writer := range w.writers {
		ref, err := writer.WriteReport(ctx, rep)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to write report",
				"version", version,
				"writer", fmt.Sprintf("%T", writer),
				"error", err)
			errs = append(errs, err)
			continue
		}
		slog.InfoContext(ctx, "Report written",
			"version", version,
			"ref", ref,
			"months", len(stmt.Headers),
			"unclassified", stmt.Unclassified)
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}

	w.lastVersion = version
	return true, nil
}

// LastVersion returns the dataset version of the last report written.
func (w *ReportWorker) LastVersion() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastVersion
}
