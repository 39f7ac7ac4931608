package linter

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/ignore"
)

// PromptExt is the extension of files picked up by directory walks.
const PromptExt = ".md"

// IsPromptFile reports whether path names a prompt document.
func IsPromptFile(path string) bool {
	return filepath.Ext(path) == PromptExt
}

// Discover returns every prompt file below dir, sorted, minus those excluded
// by dir's .promptlintignore and the configured ignore globs. Subdirectories
// that cannot be read are logged and skipped; only a failure on dir itself
// is returned.
func (l *Linter) Discover(ctx context.Context, dir string) ([]string, error) {
	matcher, err := ignore.NewMatcher(dir, l.rules.Ignore)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && d != nil && d.IsDir() {
				l.logger.Warn(ctx, "skipping unreadable directory", zap.String("path", path), zap.Error(err))
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !IsPromptFile(path) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if matcher.Match(rel) {
			l.logger.Trace(ctx, "ignored", zap.String("path", path))
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

// ValidateDirectory validates every prompt file below dir.
func (l *Linter) ValidateDirectory(ctx context.Context, dir string) ([]*findings.Result, error) {
	files, err := l.Discover(ctx, dir)
	if err != nil {
		return nil, err
	}
	l.logger.Debug(ctx, "discovered prompt files", zap.String("dir", dir), zap.Int("count", len(files)))
	return l.ValidateFiles(ctx, files)
}

// ValidateFiles validates files concurrently, at most jobs at a time.
// Results are in the order of files. Validation stops early only when ctx
// is cancelled.
func (l *Linter) ValidateFiles(ctx context.Context, files []string) ([]*findings.Result, error) {
	results := make([]*findings.Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.jobs)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.ValidateFile(gctx, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
