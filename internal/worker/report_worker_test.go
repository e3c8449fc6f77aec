package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finctl/internal/amqp"
	"finctl/internal/core"
	"finctl/internal/export"
	"finctl/internal/pnl"
	"finctl/internal/services"
	sheetsmem "finctl/internal/sheets/memory"
	"finctl/internal/storage"
	"finctl/internal/storage/memory"
)

const upload = "Data;Valor;Centro de Custo;Fornecedor/Cliente\n" +
	"15/01/2024;1.000,00;Receita Google;GOOGLE BRASIL PAGAMENTOS LTDA\n" +
	"20/01/2024;-100,00;Web Services Expenses;AWS\n"

type failingWriter struct{ calls int }

func (w *failingWriter) WriteReport(context.Context, export.Report) (string, error) {
	w.calls++
	return "", errors.New("quota exceeded")
}

type brokenStore struct{ storage.Store }

func (brokenStore) Load(context.Context) (storage.Snapshot, error) {
	return storage.Snapshot{}, errors.New("database is locked")
}

func setup(t *testing.T) (*services.LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New(storage.Snapshot{})
	svc, err := services.NewLedgerService(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestHandleDatasetChangedWritesReport(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	res, err := svc.Upload(ctx, "upload.csv", []byte(upload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	sink := sheetsmem.New()
	dir := t.TempDir()
	w := NewReportWorker(store, sink, export.DirWriter{Dir: dir})

	msg := amqp.NewDatasetChangedMessage(amqp.KindTransactions, res.Version)
	if err := w.HandleDatasetChanged(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rep, ok := sink.Latest()
	if !ok || rep.Version != res.Version {
		t.Fatalf("expected report for version %d, got %+v", res.Version, rep)
	}
	if got := rep.Statement.Value(pnl.LineCOGS, "2024-01"); got != -100 {
		t.Fatalf("expected COGS -100, got %v", got)
	}
	if rep.Dashboard.KPIs.Month != "2024-01" {
		t.Fatalf("unexpected dashboard month: %s", rep.Dashboard.KPIs.Month)
	}
	if _, err := os.Stat(filepath.Join(dir, export.FileName(res.Version))); err != nil {
		t.Fatalf("expected workbook on disk: %v", err)
	}
	if w.LastVersion() != res.Version {
		t.Fatalf("expected last version %d, got %d", res.Version, w.LastVersion())
	}
}

func TestGenerateSkipsWrittenVersions(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	if _, err := svc.Upload(ctx, "upload.csv", []byte(upload)); err != nil {
		t.Fatal(err)
	}

	sink := sheetsmem.New()
	w := NewReportWorker(store, sink)

	for i := 0; i < 3; i++ {
		if _, err := w.Generate(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(sink.Reports()); n != 1 {
		t.Fatalf("expected one report for one version, got %d", n)
	}

	if err := svc.SetOverride(ctx, "16", core.MonthKey("2024-01"), 42); err != nil {
		t.Fatal(err)
	}
	written, err := w.Generate(ctx)
	if err != nil || !written {
		t.Fatalf("expected a new report after the override, got %v %v", written, err)
	}
	rep, _ := sink.Latest()
	if got := rep.Statement.Value(pnl.LineNetResult, "2024-01"); got != 42 {
		t.Fatalf("expected overridden net result, got %v", got)
	}
}

func TestGenerateEmptyDataset(t *testing.T) {
	_, store := setup(t)
	sink := sheetsmem.New()
	w := NewReportWorker(store, sink)

	if err := w.StartupReport(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if len(sink.Reports()) != 0 {
		t.Fatal("expected no report without transactions")
	}
}

func TestGenerateWriterFailureRetries(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	if _, err := svc.Upload(ctx, "upload.csv", []byte(upload)); err != nil {
		t.Fatal(err)
	}

	sink := sheetsmem.New()
	failing := &failingWriter{}
	w := NewReportWorker(store, sink, failing)

	msg := amqp.NewDatasetChangedMessage(amqp.KindTransactions, 1)
	if err := w.HandleDatasetChanged(ctx, msg); err == nil {
		t.Fatal("expected error when a writer fails")
	}
	if len(sink.Reports()) != 1 {
		t.Fatal("expected the healthy writer to still receive the report")
	}
	if w.LastVersion() != 0 {
		t.Fatal("failed version must not be marked as written")
	}

	if err := w.HandleDatasetChanged(ctx, msg); err == nil {
		t.Fatal("expected the redelivered message to retry")
	}
	if failing.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", failing.calls)
	}
}

func TestGenerateLoadFailure(t *testing.T) {
	w := NewReportWorker(brokenStore{}, sheetsmem.New())
	if _, err := w.Generate(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}
