package worker

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Pruner deletes local-store backup snapshots older than the retention
// window. The newest backup is always kept.
type Pruner struct {
	dir       string
	retention time.Duration
	now       func() time.Time
}

func NewPruner(dir string, retention time.Duration) *Pruner {
	return &Pruner{
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

func (p *Pruner) Name() string { return "backup-prune" }

func (p *Pruner) Run() error {
	n, err := p.Prune()
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Pruned old backups", "dir", p.dir, "removed", n)
	}
	return nil
}

// Prune removes expired snapshots and returns how many were deleted.
// A missing backup directory means there is nothing to do.
func (p *Pruner) Prune() (int, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := p.now().Add(-p.retention)
	var candidates []fs.DirEntry
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		candidates = append(candidates, entry)
	}

	removed := 0
	for i, entry := range candidates {
		// keep the most recent snapshot regardless of age
		if i == len(candidates)-1 {
			break
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove backup", "path", path, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}
