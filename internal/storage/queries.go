package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type TransactionRow struct {
	Position     int64
	SourceRow    int64
	Date         string
	Month        string
	Amount       string
	CostCenter   string
	Counterparty string
	Description  string
	Category     string
}

type MappingRuleRow struct {
	Position     int64
	GroupName    string
	CostCenter   string
	Counterparty string
	Line         int64
	Kind         string
	Active       bool
	Note         string
}

type OverrideRow struct {
	Line  string
	Month string
	Value float64
}

type DatasetMetadata struct {
	Version      int64
	Source       string
	Encoding     string
	RowsRead     int64
	Accepted     int64
	Dropped      int64
	Zeroed       int64
	Reclassified int64
	CustomRules  bool
	UpdatedAt    time.Time
}

const deleteTransactions = `DELETE FROM transactions`

func (q *Queries) DeleteTransactions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteTransactions)
	return err
}

const insertTransaction = `INSERT INTO transactions (
    position, source_row, date, month, amount, cost_center, counterparty, description, category
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.Position,
		arg.SourceRow,
		arg.Date,
		arg.Month,
		arg.Amount,
		arg.CostCenter,
		arg.Counterparty,
		arg.Description,
		arg.Category,
	)
	return err
}

const listTransactions = `SELECT position, source_row, date, month, amount, cost_center, counterparty, description, category
FROM transactions
ORDER BY position`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(
			&i.Position,
			&i.SourceRow,
			&i.Date,
			&i.Month,
			&i.Amount,
			&i.CostCenter,
			&i.Counterparty,
			&i.Description,
			&i.Category,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMappingRules = `DELETE FROM mapping_rules`

func (q *Queries) DeleteMappingRules(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteMappingRules)
	return err
}

const insertMappingRule = `INSERT INTO mapping_rules (
    position, group_name, cost_center, counterparty, line, kind, active, note
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertMappingRule(ctx context.Context, arg MappingRuleRow) error {
	_, err := q.db.ExecContext(ctx, insertMappingRule,
		arg.Position,
		arg.GroupName,
		arg.CostCenter,
		arg.Counterparty,
		arg.Line,
		arg.Kind,
		arg.Active,
		arg.Note,
	)
	return err
}

const listMappingRules = `SELECT position, group_name, cost_center, counterparty, line, kind, active, note
FROM mapping_rules
ORDER BY position`

func (q *Queries) ListMappingRules(ctx context.Context) ([]MappingRuleRow, error) {
	rows, err := q.db.QueryContext(ctx, listMappingRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MappingRuleRow
	for rows.Next() {
		var i MappingRuleRow
		if err := rows.Scan(
			&i.Position,
			&i.GroupName,
			&i.CostCenter,
			&i.Counterparty,
			&i.Line,
			&i.Kind,
			&i.Active,
			&i.Note,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteOverrides = `DELETE FROM overrides`

func (q *Queries) DeleteOverrides(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteOverrides)
	return err
}

const upsertOverride = `INSERT INTO overrides (line, month, value) VALUES (?, ?, ?)
ON CONFLICT (line, month) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertOverride(ctx context.Context, arg OverrideRow) error {
	_, err := q.db.ExecContext(ctx, upsertOverride, arg.Line, arg.Month, arg.Value)
	return err
}

const listOverrides = `SELECT line, month, value FROM overrides ORDER BY line, month`

func (q *Queries) ListOverrides(ctx context.Context) ([]OverrideRow, error) {
	rows, err := q.db.QueryContext(ctx, listOverrides)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OverrideRow
	for rows.Next() {
		var i OverrideRow
		if err := rows.Scan(&i.Line, &i.Month, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMetadata = `SELECT version, source, encoding, rows_read, accepted, dropped, zeroed, reclassified, custom_rules, updated_at
FROM dataset_metadata
WHERE id = 1`

func (q *Queries) GetMetadata(ctx context.Context) (DatasetMetadata, error) {
	row := q.db.QueryRowContext(ctx, getMetadata)
	var i DatasetMetadata
	err := row.Scan(
		&i.Version,
		&i.Source,
		&i.Encoding,
		&i.RowsRead,
		&i.Accepted,
		&i.Dropped,
		&i.Zeroed,
		&i.Reclassified,
		&i.CustomRules,
		&i.UpdatedAt,
	)
	return i, err
}

const updateMetadata = `UPDATE dataset_metadata SET
    version = ?,
    source = ?,
    encoding = ?,
    rows_read = ?,
    accepted = ?,
    dropped = ?,
    zeroed = ?,
    reclassified = ?,
    custom_rules = ?,
    updated_at = ?
WHERE id = 1`

func (q *Queries) UpdateMetadata(ctx context.Context, arg DatasetMetadata) error {
	_, err := q.db.ExecContext(ctx, updateMetadata,
		arg.Version,
		arg.Source,
		arg.Encoding,
		arg.RowsRead,
		arg.Accepted,
		arg.Dropped,
		arg.Zeroed,
		arg.Reclassified,
		arg.CustomRules,
		arg.UpdatedAt,
	)
	return err
}
