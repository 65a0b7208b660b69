// Package localstore is the durable fallback used when the API server is
// unreachable: a JSON array of transactions on disk, snapshotted to a
// backup directory before every overwrite.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fintrack/internal/core"
)

const backupTimeLayout = "20060102-150405"

// Store reads and writes the whole record list on every operation. That is
// fine at personal-finance scale and keeps the file human-readable.
type Store struct {
	mu        sync.Mutex
	path      string
	backupDir string
}

func New(path, backupDir string) *Store {
	return &Store{path: path, backupDir: backupDir}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// BackupDir returns where pre-write snapshots are kept.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// load deserializes the full record list. A missing file is an empty list.
// Any other read failure degrades to an empty list and a log line.
func (s *Store) load(ctx context.Context) []core.Transaction {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.ErrorContext(ctx, "Failed to read local store, treating as empty",
				"path", s.path, "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var items []core.Transaction
	if err := json.Unmarshal(data, &items); err != nil {
		slog.ErrorContext(ctx, "Failed to decode local store, treating as empty",
			"path", s.path, "error", err)
		return nil
	}
	return items
}

// save snapshots the current file into the backup directory, then rewrites
// the store. A failed backup is logged and does not abort the write.
func (s *Store) save(ctx context.Context, items []core.Transaction) error {
	s.backup(ctx)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		slog.ErrorContext(ctx, "Failed to create local store directory",
			"path", s.path, "error", err)
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		slog.ErrorContext(ctx, "Failed to write local store",
			"path", s.path, "error", err)
		return fmt.Errorf("write local store: %w", err)
	}
	return nil
}

func (s *Store) backup(ctx context.Context) {
	current, err := os.ReadFile(s.path)
	if err != nil {
		// nothing to back up yet
		return
	}

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		slog.WarnContext(ctx, "Failed to create backup directory",
			"dir", s.backupDir, "error", err)
		return
	}

	name := fmt.Sprintf("transactions-%s.json", time.Now().Format(backupTimeLayout))
	backupPath := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(backupPath, current, 0644); err != nil {
		slog.WarnContext(ctx, "Failed to write backup, continuing",
			"path", backupPath, "error", err)
	}
}

// nextID assigns max(existing ids)+1 so ids stay unique after deletions.
func nextID(items []core.Transaction) int64 {
	var max int64
	for _, t := range items {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

// Create validates, normalizes and appends a record with a locally
// assigned id.
func (s *Store) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	t := in.WithID(nextID(items))
	items = append(items, t)

	if err := s.save(ctx, items); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved to local store",
		"id", t.ID, "category", t.Category, "amount", t.Amount.String())
	return t, nil
}

// List returns records matching the filter, paginated like the remote API.
func (s *Store) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.load(ctx) {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return f.Page(out), nil
}

// Get returns a record by id or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.load(ctx) {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

// Update replaces every non-id field of the matching record. The store is
// left untouched when no record matches.
func (s *Store) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	for i, t := range items {
		if t.ID != id {
			continue
		}
		items[i] = in.WithID(id)
		if err := s.save(ctx, items); err != nil {
			return core.Transaction{}, err
		}
		slog.InfoContext(ctx, "Transaction updated in local store", "id", id)
		return items[i], nil
	}
	return core.Transaction{}, core.ErrNotFound
}

// Delete removes the matching record, untouched store on a miss.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	for i, t := range items {
		if t.ID != id {
			continue
		}
		items = append(items[:i], items[i+1:]...)
		if err := s.save(ctx, items); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Transaction deleted from local store", "id", id)
		return nil
	}
	return core.ErrNotFound
}

// BulkCreate appends a batch with sequential local ids. The batch is
// validated up front so a malformed element stores nothing.
func (s *Store) BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	id := nextID(items)
	for _, in := range normalized {
		items = append(items, in.WithID(id))
		id++
	}

	if err := s.save(ctx, items); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Bulk created transactions in local store", "count", len(normalized))
	return len(normalized), nil
}

// Summarize aggregates records inside the optional date bounds, matching
// the remote boundary's "No data" behavior on an empty set.
func (s *Store) Summarize(ctx context.Context, start, end *core.Date) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := core.Filter{StartDate: start, EndDate: end}
	var matched []core.Transaction
	for _, t := range s.load(ctx) {
		if f.Matches(t) {
			matched = append(matched, t)
		}
	}

	if len(matched) == 0 {
		return core.Summary{Totals: core.Summarize(nil), Period: "No data"}, nil
	}
	return core.Summary{Totals: core.Summarize(matched), Period: core.PeriodLabel(start, end)}, nil
}

// All returns every record unfiltered. Used by manual sync.
func (s *Store) All(ctx context.Context) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Truncate empties the store after a snapshot backup. Used once a manual
// sync has pushed the records to the remote boundary.
func (s *Store) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, []core.Transaction{})
}
