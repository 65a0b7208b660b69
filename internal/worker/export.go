// Package worker holds the background jobs run by fintrack-worker: keeping
// the CSV export current and pruning old local-store backups.
package worker

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
)

// TransactionLister is the slice of the store the exporter needs.
type TransactionLister interface {
	List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
}

// Exporter rewrites a full CSV snapshot of the transaction store. It runs
// nightly on the scheduler and again whenever a change event arrives.
type Exporter struct {
	store   TransactionLister
	dir     string
	timeout time.Duration
}

func NewExporter(store TransactionLister, dir string) *Exporter {
	return &Exporter{
		store:   store,
		dir:     dir,
		timeout: 30 * time.Second,
	}
}

func (e *Exporter) Name() string { return "csv-export" }

func (e *Exporter) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	return e.Export(ctx)
}

// Export fetches every transaction page by page and rewrites the export
// file atomically via a temp file rename.
func (e *Exporter) Export(ctx context.Context) error {
	var all []core.Transaction
	f := core.Filter{Limit: 500}
	for {
		page, err := e.store.List(ctx, f)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		all = append(all, page...)
		if len(page) < f.Limit {
			break
		}
		f.Skip += f.Limit
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, "transactions-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"id", "date", "category", "description", "amount", "type"}); err != nil {
		tmp.Close()
		return fmt.Errorf("write export header: %w", err)
	}
	for _, t := range all {
		record := []string{
			fmt.Sprintf("%d", t.ID),
			t.Date.String(),
			t.Category,
			t.Description,
			t.Amount.String(),
			t.Type.String(),
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}

	target := filepath.Join(e.dir, "transactions.csv")
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}

	slog.InfoContext(ctx, "Export refreshed", "path", target, "rows", len(all))
	return nil
}
