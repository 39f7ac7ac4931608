// Package gitscope narrows a run to prompt files with uncommitted changes.
package gitscope

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptlint/internal/logging"
)

// ErrNotGitRepo is returned when path is not inside a git worktree.
var ErrNotGitRepo = errors.New("not a git repository")

// ChangedFiles returns the prompt files under path that are modified, added
// or untracked in the enclosing git worktree. Deleted files are skipped.
// Returned paths are path joined with the file's location relative to it,
// sorted. isPrompt filters candidate files; nil accepts everything.
func ChangedFiles(ctx context.Context, path string, isPrompt func(string) bool) ([]string, error) {
	logger := logging.FromContext(ctx)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, path)
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to inspect.
		return nil, fmt.Errorf("%w: %s: %v", ErrNotGitRepo, path, err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}

	root := wt.Filesystem.Root()
	var files []string
	for name, fs := range status {
		if fs.Worktree == git.Deleted || fs.Staging == git.Deleted {
			continue
		}
		if fs.Worktree == git.Unmodified && fs.Staging == git.Unmodified {
			continue
		}
		if isPrompt != nil && !isPrompt(name) {
			continue
		}

		rel, err := filepath.Rel(absPath, filepath.Join(root, filepath.FromSlash(name)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		files = append(files, filepath.Join(path, rel))
	}
	sort.Strings(files)

	logger.Debug(ctx, "changed prompt files",
		zap.String("worktree", root),
		zap.Int("count", len(files)))

	return files, nil
}
