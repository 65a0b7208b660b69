package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the relational transaction store behind the API.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create validates, normalizes and persists a transaction, returning the
// stored record with its assigned id.
func (r *SQLiteRepository) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (date, category, description, amount, type) VALUES (?, ?, ?, ?, ?)`,
		in.Date, in.Category, in.Description, in.Amount.String(), in.Type.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"date", in.Date.String(),
		"category", in.Category,
		"amount", in.Amount.String(),
		"type", in.Type.String())

	return in.WithID(id), nil
}

// List returns transactions matching the filter, ordered by date then id,
// paginated with skip/limit (default limit 100).
func (r *SQLiteRepository) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	where, args := filterClauses(f)

	limit := f.Limit
	if limit <= 0 {
		limit = core.DefaultLimit
	}
	skip := f.Skip
	if skip < 0 {
		skip = 0
	}

	q := `SELECT id, date, category, description, amount, type FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date, id LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Get returns a single transaction or core.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, description, amount, type FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// Update replaces every non-id field of an existing transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET date = ?, category = ?, description = ?, amount = ?, type = ? WHERE id = ?`,
		in.Date, in.Category, in.Description, in.Amount.String(), in.Type.String(), id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id)
	return in.WithID(id), nil
}

// Delete removes a transaction by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// BulkCreate persists a batch inside a single SQL transaction. The batch is
// all-or-nothing: one invalid input or failed insert rolls everything back.
func (r *SQLiteRepository) BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	normalized := make([]core.TransactionInput, len(inputs))
	for i, in := range inputs {
		in = in.Normalize()
		if err := in.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		normalized[i] = in
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (date, category, description, amount, type) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for i, in := range normalized {
		if _, err := stmt.ExecContext(ctx, in.Date, in.Category, in.Description, in.Amount.String(), in.Type.String()); err != nil {
			return 0, fmt.Errorf("insert transaction %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}

	slog.InfoContext(ctx, "Bulk created transactions", "count", len(normalized))
	return len(normalized), nil
}

// Summarize aggregates transactions inside the optional date bounds.
// An empty matching set reports zero totals with period "No data".
func (r *SQLiteRepository) Summarize(ctx context.Context, start, end *core.Date) (core.Summary, error) {
	where, args := filterClauses(core.Filter{StartDate: start, EndDate: end})

	q := `SELECT id, date, category, description, amount, type FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return core.Summary{}, fmt.Errorf("query summary transactions: %w", err)
	}
	defer rows.Close()

	items, err := scanTransactions(rows)
	if err != nil {
		return core.Summary{}, err
	}

	if len(items) == 0 {
		return core.Summary{Totals: core.Summarize(nil), Period: "No data"}, nil
	}
	return core.Summary{Totals: core.Summarize(items), Period: core.PeriodLabel(start, end)}, nil
}

func filterClauses(f core.Filter) ([]string, []any) {
	var where []string
	var args []any
	if f.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, *f.EndDate)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, strings.ToLower(f.Type.String()))
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	err := row.Scan(&t.ID, &t.Date, &t.Category, &t.Description, &t.Amount, &t.Type)
	return t, err
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return items, nil
}
