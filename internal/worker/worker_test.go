package worker

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func writeBackup(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

func TestPruneRemovesExpiredSnapshots(t *testing.T) {
	dir := t.TempDir()
	writeBackup(t, dir, "transactions-20240101-010000.json", 72*time.Hour)
	writeBackup(t, dir, "transactions-20240102-010000.json", 48*time.Hour)
	writeBackup(t, dir, "transactions-20240103-010000.json", time.Hour)

	p := NewPruner(dir, 24*time.Hour)
	removed, err := p.Prune()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d, want 2", removed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "transactions-20240103-010000.json" {
		t.Fatalf("surviving entries: %v", entries)
	}
}

func TestPruneAlwaysKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	// every snapshot is expired, the newest must still survive
	writeBackup(t, dir, "transactions-20240101-010000.json", 100*time.Hour)
	writeBackup(t, dir, "transactions-20240102-010000.json", 90*time.Hour)

	p := NewPruner(dir, time.Hour)
	removed, err := p.Prune()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "transactions-20240102-010000.json" {
		t.Fatalf("newest snapshot not kept: %v", entries)
	}
}

func TestPruneIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeBackup(t, dir, "notes.txt", 100*time.Hour)
	writeBackup(t, dir, "transactions-20240101-010000.json", time.Minute)

	p := NewPruner(dir, time.Hour)
	removed, err := p.Prune()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed %d, want 0", removed)
	}
}

func TestPruneMissingDir(t *testing.T) {
	p := NewPruner(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour)
	removed, err := p.Prune()
	if err != nil || removed != 0 {
		t.Fatalf("missing dir: removed=%d err=%v", removed, err)
	}
}

// pagedLister serves a fixed slice through List's skip/limit paging.
type pagedLister struct {
	items []core.Transaction
	calls int
}

func (l *pagedLister) List(_ context.Context, f core.Filter) ([]core.Transaction, error) {
	l.calls++
	return f.Page(l.items), nil
}

func TestExportWritesFullSnapshot(t *testing.T) {
	// more rows than one page so the exporter has to paginate
	items := make([]core.Transaction, 650)
	for i := range items {
		items[i] = core.Transaction{
			ID:          int64(i + 1),
			Date:        core.NewDate(2024, 1, 1),
			Category:    "Food",
			Description: "entry",
			Amount:      decimal.RequireFromString("1.50"),
			Type:        core.TypeExpense,
		}
	}

	lister := &pagedLister{items: items}
	dir := t.TempDir()
	e := NewExporter(lister, dir)

	if err := e.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if lister.calls < 2 {
		t.Fatalf("expected paged listing, got %d calls", lister.calls)
	}

	f, err := os.Open(filepath.Join(dir, "transactions.csv"))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != len(items)+1 {
		t.Fatalf("export has %d rows, want %d plus header", len(records)-1, len(items))
	}
	if records[0][0] != "id" || records[0][5] != "type" {
		t.Fatalf("header: %v", records[0])
	}
	if records[1][1] != "2024-01-01" || records[1][4] != "1.5" || records[1][5] != "expense" {
		t.Fatalf("first row: %v", records[1])
	}
}

func TestExportOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	lister := &pagedLister{items: []core.Transaction{{
		ID:          1,
		Date:        core.NewDate(2024, 1, 1),
		Category:    "Food",
		Description: "entry",
		Amount:      decimal.RequireFromString("1"),
		Type:        core.TypeExpense,
	}}}
	e := NewExporter(lister, dir)

	if err := e.Export(context.Background()); err != nil {
		t.Fatalf("first export: %v", err)
	}
	lister.items = nil
	if err := e.Export(context.Background()); err != nil {
		t.Fatalf("second export: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "transactions.csv"))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stale rows survived the rewrite: %v", records)
	}

	// temp files must not accumulate next to the export
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("leftover files in export dir: %v", entries)
	}
}
