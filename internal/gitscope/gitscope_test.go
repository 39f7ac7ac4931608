package gitscope

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/promptlint/internal/logging"
)

func isMarkdown(p string) bool { return filepath.Ext(p) == ".md" }

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupRepo creates a repository with committed files, then modifies some.
func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	write(t, filepath.Join(dir, "unchanged.md"), "same\n")
	write(t, filepath.Join(dir, "agents", "router.md"), "v1\n")
	write(t, filepath.Join(dir, "removed.md"), "bye\n")
	for _, f := range []string{"unchanged.md", "agents/router.md", "removed.md"} {
		_, err := wt.Add(f)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	write(t, filepath.Join(dir, "agents", "router.md"), "v2\n")
	write(t, filepath.Join(dir, "skills", "new.md"), "new\n")
	write(t, filepath.Join(dir, "notes.txt"), "not a prompt\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "removed.md")))

	return dir
}

func TestChangedFiles(t *testing.T) {
	dir := setupRepo(t)
	tl := logging.NewTestLogger()
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	files, err := ChangedFiles(ctx, dir, isMarkdown)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "agents", "router.md"),
		filepath.Join(dir, "skills", "new.md"),
	}, files)
	tl.AssertLogged(t, zapcore.DebugLevel, "changed prompt files")
}

func TestChangedFiles_Subdirectory(t *testing.T) {
	dir := setupRepo(t)

	files, err := ChangedFiles(context.Background(), filepath.Join(dir, "agents"), isMarkdown)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "agents", "router.md")}, files)
}

func TestChangedFiles_NoFilter(t *testing.T) {
	dir := setupRepo(t)

	files, err := ChangedFiles(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(dir, "notes.txt"))
}

func TestChangedFiles_Staged(t *testing.T) {
	dir := setupRepo(t)
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("skills/new.md")
	require.NoError(t, err)

	files, err := ChangedFiles(context.Background(), dir, isMarkdown)
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(dir, "skills", "new.md"))
}

func TestChangedFiles_NotARepo(t *testing.T) {
	_, err := ChangedFiles(context.Background(), t.TempDir(), isMarkdown)
	require.ErrorIs(t, err, ErrNotGitRepo)
}
