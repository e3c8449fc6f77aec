package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finctl/internal/core"
	"finctl/internal/mapping"
	"finctl/internal/pnl"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; replacements run inside a single transaction.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("Opened SQLite store", "path", dbPath, "schema_version", schema)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reads the whole dataset back in insertion order.
func (r *SQLiteRepository) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	meta, err := r.queries.GetMetadata(ctx)
	if err != nil {
		return snap, fmt.Errorf("get metadata: %w", err)
	}
	snap.Metadata = fromMetadataRow(meta)

	txRows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return snap, fmt.Errorf("list transactions: %w", err)
	}
	snap.Transactions = make([]core.Transaction, 0, len(txRows))
	for _, row := range txRows {
		tx, err := fromTransactionRow(row)
		if err != nil {
			return snap, fmt.Errorf("transaction at position %d: %w", row.Position, err)
		}
		snap.Transactions = append(snap.Transactions, tx)
	}

	if snap.Metadata.CustomRules {
		ruleRows, err := r.queries.ListMappingRules(ctx)
		if err != nil {
			return snap, fmt.Errorf("list mapping rules: %w", err)
		}
		snap.Rules = make([]mapping.Rule, len(ruleRows))
		for i, row := range ruleRows {
			snap.Rules[i] = mapping.Rule{
				Group:        row.GroupName,
				CostCenter:   row.CostCenter,
				Counterparty: row.Counterparty,
				Line:         int(row.Line),
				Kind:         core.Kind(row.Kind),
				Active:       row.Active,
				Note:         row.Note,
			}
		}
	}

	overrideRows, err := r.queries.ListOverrides(ctx)
	if err != nil {
		return snap, fmt.Errorf("list overrides: %w", err)
	}
	for _, row := range overrideRows {
		snap.Overrides.Set(row.Line, core.MonthKey(row.Month), row.Value)
	}

	slog.DebugContext(ctx, "Dataset loaded from SQLite",
		"version", snap.Metadata.Version,
		"transactions", len(snap.Transactions),
		"rules", len(snap.Rules),
		"overrides", snap.Overrides.Len())

	return snap, nil
}

// ReplaceTransactions swaps the stored transactions for txs.
func (r *SQLiteRepository) ReplaceTransactions(ctx context.Context, txs []core.Transaction, meta Metadata) error {
	return r.inTx(ctx, meta, func(q *Queries) error {
		if err := q.DeleteTransactions(ctx); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		for i, tx := range txs {
			if err := q.InsertTransaction(ctx, toTransactionRow(i, tx)); err != nil {
				return fmt.Errorf("insert transaction %d: %w", i, err)
			}
		}
		return nil
	})
}

// ReplaceRules stores rules in order. A nil slice clears them so Load
// reports the defaults as in effect.
func (r *SQLiteRepository) ReplaceRules(ctx context.Context, rules []mapping.Rule, meta Metadata) error {
	meta.CustomRules = rules != nil
	return r.inTx(ctx, meta, func(q *Queries) error {
		if err := q.DeleteMappingRules(ctx); err != nil {
			return fmt.Errorf("delete mapping rules: %w", err)
		}
		for i, rule := range rules {
			err := q.InsertMappingRule(ctx, MappingRuleRow{
				Position:     int64(i),
				GroupName:    rule.Group,
				CostCenter:   rule.CostCenter,
				Counterparty: rule.Counterparty,
				Line:         int64(rule.Line),
				Kind:         string(rule.Kind),
				Active:       rule.Active,
				Note:         rule.Note,
			})
			if err != nil {
				return fmt.Errorf("insert mapping rule %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ReplaceOverrides(ctx context.Context, overrides pnl.Overrides, meta Metadata) error {
	return r.inTx(ctx, meta, func(q *Queries) error {
		if err := q.DeleteOverrides(ctx); err != nil {
			return fmt.Errorf("delete overrides: %w", err)
		}
		for _, o := range overrides.Entries() {
			err := q.UpsertOverride(ctx, OverrideRow{Line: o.Line, Month: string(o.Month), Value: o.Value})
			if err != nil {
				return fmt.Errorf("upsert override %s/%s: %w", o.Line, o.Month, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ResetData(ctx context.Context, meta Metadata) error {
	return r.inTx(ctx, meta, func(q *Queries) error {
		if err := q.DeleteOverrides(ctx); err != nil {
			return fmt.Errorf("delete overrides: %w", err)
		}
		if err := q.DeleteTransactions(ctx); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, meta Metadata, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := fn(q); err != nil {
		return err
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	if err := q.UpdateMetadata(ctx, toMetadataRow(meta)); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Dataset persisted to SQLite", "version", meta.Version)
	return nil
}

func toTransactionRow(position int, tx core.Transaction) TransactionRow {
	return TransactionRow{
		Position:     int64(position),
		SourceRow:    int64(tx.Row),
		Date:         tx.Date.Format(core.DateLayout),
		Month:        string(tx.Month),
		Amount:       tx.Amount.String(),
		CostCenter:   tx.CostCenter,
		Counterparty: tx.Counterparty,
		Description:  tx.Description,
		Category:     tx.Category,
	}
}

func fromTransactionRow(row TransactionRow) (core.Transaction, error) {
	date, err := time.Parse(core.DateLayout, row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrInvalidDate, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	return core.Transaction{
		Row:          int(row.SourceRow),
		Date:         date,
		Month:        core.MonthKey(row.Month),
		Amount:       amount,
		CostCenter:   row.CostCenter,
		Counterparty: row.Counterparty,
		Description:  row.Description,
		Category:     row.Category,
	}, nil
}

func toMetadataRow(m Metadata) DatasetMetadata {
	return DatasetMetadata{
		Version:      m.Version,
		Source:       m.Source,
		Encoding:     m.Encoding,
		RowsRead:     int64(m.Rows),
		Accepted:     int64(m.Accepted),
		Dropped:      int64(m.Dropped),
		Zeroed:       int64(m.Zeroed),
		Reclassified: int64(m.Reclassified),
		CustomRules:  m.CustomRules,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromMetadataRow(m DatasetMetadata) Metadata {
	return Metadata{
		Version:      m.Version,
		Source:       m.Source,
		Encoding:     m.Encoding,
		Rows:         int(m.RowsRead),
		Accepted:     int(m.Accepted),
		Dropped:      int(m.Dropped),
		Zeroed:       int(m.Zeroed),
		Reclassified: int(m.Reclassified),
		CustomRules:  m.CustomRules,
		UpdatedAt:    m.UpdatedAt,
	}
}
