package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// ExchangeScope selects which repository areas an export or import moves.
type ExchangeScope uint8

const (
	ExchangeBackups ExchangeScope = 1 << iota
	ExchangeBundles
	ExchangeIndex

	ExchangeAll = ExchangeBackups | ExchangeBundles | ExchangeIndex
)

// ParseExchangeScope parses a comma-separated scope list, e.g.
// "backups,bundles,index".
func ParseExchangeScope(s string) (ExchangeScope, error) {
	var scope ExchangeScope
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "backups":
			scope |= ExchangeBackups
		case "bundles":
			scope |= ExchangeBundles
		case "index":
			scope |= ExchangeIndex
		case "all":
			scope |= ExchangeAll
		case "":
		default:
			return 0, fmt.Errorf("unknown exchange scope %q", part)
		}
	}
	if scope == 0 {
		return 0, fmt.Errorf("empty exchange scope")
	}
	return scope, nil
}

func (s ExchangeScope) String() string {
	var parts []string
	if s&ExchangeBackups != 0 {
		parts = append(parts, "backups")
	}
	if s&ExchangeBundles != 0 {
		parts = append(parts, "bundles")
	}
	if s&ExchangeIndex != 0 {
		parts = append(parts, "index")
	}
	return strings.Join(parts, ",")
}

// ExchangeStats counts the files an exchange touched.
type ExchangeStats struct {
	Copied  int
	Skipped int
}

// Export copies the selected areas into another initialized repository
// rooted at dstRoot. Files already present at the destination are
// skipped: bundles, segments and descriptors are immutable once written,
// so same name means same content.
func (r *Repository) Export(ctx context.Context, dstRoot string, scope ExchangeScope) (*ExchangeStats, error) {
	if _, err := readFormat(dstRoot); err != nil {
		return nil, fmt.Errorf("export destination: %w", err)
	}
	return r.exchange(ctx, r.root, dstRoot, scope, "export")
}

// Import copies the selected areas from another repository rooted at
// srcRoot into this one, then reloads the index so the new segments take
// effect without reopening.
func (r *Repository) Import(ctx context.Context, srcRoot string, scope ExchangeScope) (*ExchangeStats, error) {
	if _, err := readFormat(srcRoot); err != nil {
		return nil, fmt.Errorf("import source: %w", err)
	}
	stats, err := r.exchange(ctx, srcRoot, r.root, scope, "import")
	if err != nil {
		return nil, err
	}
	if scope&ExchangeIndex != 0 {
		entries, _, err := loadSegmentDir(r.indexDir())
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, err := r.idx.InsertIfAbsent(e.FP, e.Loc); err != nil {
				return nil, err
			}
		}
	}
	return stats, nil
}

func (r *Repository) exchange(ctx context.Context, srcRoot, dstRoot string, scope ExchangeScope, op string) (*ExchangeStats, error) {
	start := time.Now()
	stats := &ExchangeStats{}
	copyArea := func(dir string) error {
		return copyTree(ctx, filepath.Join(srcRoot, dir), filepath.Join(dstRoot, dir), stats)
	}
	if scope&ExchangeBundles != 0 {
		if err := copyArea(BundleDir); err != nil {
			return nil, err
		}
	}
	if scope&ExchangeIndex != 0 {
		if err := copyArea(IndexDir); err != nil {
			return nil, err
		}
	}
	// Descriptors last: a visible backup must never precede its data.
	if scope&ExchangeBackups != 0 {
		if err := copyArea(BackupDir); err != nil {
			return nil, err
		}
	}
	logger.Infof("%s [%s]: %d files copied, %d already present, took %v",
		op, scope, stats.Copied, stats.Skipped, time.Since(start))
	return stats, nil
}

// copyTree copies src recursively into dst, skipping files that already
// exist at the destination and temp leftovers at the source.
func copyTree(ctx context.Context, src, dst string, stats *ExchangeStats) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		if internal.Exists(target) {
			stats.Skipped++
			return nil
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		stats.Copied++
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
