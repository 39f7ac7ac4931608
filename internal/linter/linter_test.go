package linter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/promptlint/internal/config"
	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/logging"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
	"github.com/fyrsmithlabs/promptlint/internal/tokens"
)

const header = "---\nname: test\ndescription: test prompt\n---\n"

const validPrompt = header + `<purpose>
Route requests.
</purpose>

<instructions>
1. ROUTE the request
2. REPORT the result
</instructions>
`

func newLinter(t *testing.T, mutate func(*config.Config), opts ...Option) *Linter {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	rs, err := rules.New(cfg)
	require.NoError(t, err)
	return New(rs, append([]Option{WithCounter(tokens.EstimateCounter)}, opts...)...)
}

func messages(fs []findings.Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Message
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestValidateContent_Valid(t *testing.T) {
	result := newLinter(t, nil).ValidateContent(context.Background(), "ok.md", validPrompt)

	assert.True(t, result.Passed(), "unexpected errors: %v", messages(result.Errors()))
	assert.Equal(t, "ok.md", result.Path)
	assert.Equal(t, tokens.Estimate(validPrompt), result.TokenCount)
}

func TestValidateContent_AmbiguousStep(t *testing.T) {
	content := header + "<purpose>\np\n</purpose>\n<instructions>1. maybe do this</instructions>\n"
	result := newLinter(t, nil).ValidateContent(context.Background(), "x.md", content)

	errs := result.Errors()
	require.Len(t, errs, 2, "errors: %v", messages(errs))
	assert.Equal(t, `Ambiguous language in <instructions>: "maybe"`, errs[0].Message)
	assert.Equal(t, 8, errs[0].Line)
	assert.True(t, strings.HasPrefix(errs[1].Message, "Instruction step must start with an action keyword. Found: 'maybe'"))
	assert.Equal(t, 8, errs[1].Line)
}

func TestValidateContent_SemanticDisabled(t *testing.T) {
	content := header + "<purpose>\np\n</purpose>\n<instructions>\n1. ROUTE it, maybe\n</instructions>\n"

	t.Run("option", func(t *testing.T) {
		result := newLinter(t, nil, WithoutSemantic()).ValidateContent(context.Background(), "x.md", content)
		assert.True(t, result.Passed())
	})

	t.Run("rules", func(t *testing.T) {
		l := newLinter(t, func(c *config.Config) { c.Validation.SemanticCheck = false })
		result := l.ValidateContent(context.Background(), "x.md", content)
		assert.True(t, result.Passed())
	})

	t.Run("enabled", func(t *testing.T) {
		result := newLinter(t, nil).ValidateContent(context.Background(), "x.md", content)
		assert.Len(t, result.Errors(), 1)
	})
}

func TestValidateContent_Directives(t *testing.T) {
	content := header + `<purpose>
p
</purpose>
<instructions>
1. ROUTE
</instructions>
<directives>
# routing
DEFAULT @generalist
DEFAULT
DELEGATE @reviewer WHEN review
</directives>
`
	result := newLinter(t, nil).ValidateContent(context.Background(), "x.md", content)

	errs := result.Errors()
	require.Len(t, errs, 1, "errors: %v", messages(errs))
	assert.Equal(t, `Invalid directive: Invalid DEFAULT syntax. Expected pattern: ^DEFAULT @[\w-]+$`, errs[0].Message)
	assert.Equal(t, 14, errs[0].Line)
}

func TestValidateContent_StepsNotEnforced(t *testing.T) {
	content := header + "<purpose>\np\n</purpose>\n<instructions>\n1. do something\n</instructions>\n"
	l := newLinter(t, func(c *config.Config) { c.Instructions.EnforceActions = false })

	assert.True(t, l.ValidateContent(context.Background(), "x.md", content).Passed())
}

func TestValidateContent_PathRules(t *testing.T) {
	withRules := func(c *config.Config) {
		c.FileRules = []config.FileRule{
			{Pattern: "agents/**/*.md", RequiredTags: []string{"routing"}},
			{Pattern: "**/commands/*.md", ForbiddenTags: []string{"instructions"}, SkipRequiredTags: true},
			{Pattern: "**/*.md", RequiredTags: []string{"context"}},
		}
	}
	l := newLinter(t, withRules)

	t.Run("required", func(t *testing.T) {
		result := l.ValidateContent(context.Background(), "agents/router.md", validPrompt)
		assert.Equal(t, []string{
			"File matching pattern 'agents/**/*.md' requires <routing> tag",
			"File matching pattern '**/*.md' requires <context> tag",
		}, messages(result.Errors()))
		for _, f := range result.Errors() {
			assert.Equal(t, 0, f.Line)
		}
	})

	t.Run("forbidden with skipped required sections", func(t *testing.T) {
		content := header + "<instructions>\n1. ROUTE\n</instructions>\n<context>\nc\n</context>\n"
		result := l.ValidateContent(context.Background(), "plugin/commands/run.md", content)

		errs := result.Errors()
		require.Len(t, errs, 1, "errors: %v", messages(errs))
		assert.Equal(t, "File matching pattern '**/commands/*.md' forbids <instructions> tag", errs[0].Message)
		assert.Equal(t, 5, errs[0].Line)
	})

	t.Run("no match", func(t *testing.T) {
		l := newLinter(t, func(c *config.Config) {
			c.FileRules = []config.FileRule{{Pattern: "agents/*.md", RequiredTags: []string{"routing"}}}
		})
		assert.True(t, l.ValidateContent(context.Background(), "skills/x.md", validPrompt).Passed())
	})
}

func TestValidateContent_SkipFrontmatter(t *testing.T) {
	l := newLinter(t, func(c *config.Config) {
		c.FileRules = []config.FileRule{{Pattern: "README.md", SkipFrontmatter: true, SkipRequiredTags: true}}
	})
	content := "# Readme\n\n<instructions>\n1. maybe read this\n</instructions>\n"

	result := l.ValidateContent(context.Background(), "README.md", content)

	// The ambiguity check is skipped, the step check is not.
	errs := result.Errors()
	require.Len(t, errs, 1, "errors: %v", messages(errs))
	assert.Contains(t, errs[0].Message, "Found: 'maybe'")
}

func TestValidateContent_ReferenceDocument(t *testing.T) {
	l := newLinter(t, func(c *config.Config) {
		c.FileRules = []config.FileRule{{Pattern: "**/*.md", RequiredTags: []string{"routing"}}}
	})
	content := "---\nname: ref\ndescription: shared notes\nreference: true\n---\n<instructions>\n1. maybe\n</instructions>\n"

	result := l.ValidateContent(context.Background(), "refs/notes.md", content)

	assert.Empty(t, result.Findings())
}

func TestValidateContent_LogsDocument(t *testing.T) {
	tl := logging.NewTestLogger()
	l := newLinter(t, nil, WithLogger(tl.Logger))

	l.ValidateContent(context.Background(), "agents/a.md", validPrompt)

	tl.AssertLogged(t, zapcore.DebugLevel, "document validated")
	tl.AssertDocument(t, "document validated", "agents/a.md")
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.md")
	writeFile(t, path, validPrompt)

	result := newLinter(t, nil).ValidateFile(context.Background(), path)
	assert.True(t, result.Passed())
	assert.Equal(t, path, result.Path)
}

func TestValidateFile_Unreadable(t *testing.T) {
	tl := logging.NewTestLogger()
	path := filepath.Join(t.TempDir(), "missing.md")

	result := newLinter(t, nil, WithLogger(tl.Logger)).ValidateFile(context.Background(), path)

	errs := result.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 0, errs[0].Line)
	assert.True(t, strings.HasPrefix(errs[0].Message, "Failed to read file: "))
	tl.AssertLogged(t, zapcore.WarnLevel, "failed to read document")
}

func TestValidatePath_NotFound(t *testing.T) {
	_, err := newLinter(t, nil).ValidatePath(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestValidatePath_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.md")
	writeFile(t, path, validPrompt)

	results, err := newLinter(t, nil).ValidatePath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed())
}

func TestValidatePath_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), validPrompt)
	writeFile(t, filepath.Join(dir, "a.md"), "no frontmatter\n")
	writeFile(t, filepath.Join(dir, "nested", "deep", "c.md"), validPrompt)
	writeFile(t, filepath.Join(dir, "drafts", "wip.md"), "broken")
	writeFile(t, filepath.Join(dir, "scratch", "tmp.md"), "broken")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a prompt")
	writeFile(t, filepath.Join(dir, ".promptlintignore"), "# skip work in progress\ndrafts/\n")

	l := newLinter(t, func(c *config.Config) { c.Ignore = []string{"scratch/**"} }, WithJobs(2))
	results, err := l.ValidatePath(context.Background(), dir)
	require.NoError(t, err)

	var paths []string
	for _, r := range results {
		rel, err := filepath.Rel(dir, r.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.md", "b.md", "nested/deep/c.md"}, paths)
	assert.False(t, results[0].Passed())
	assert.True(t, results[1].Passed())
	assert.True(t, results[2].Passed())
}

func TestDiscover_SkipsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), validPrompt)
	locked := filepath.Join(dir, "locked")
	writeFile(t, filepath.Join(locked, "b.md"), validPrompt)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	tl := logging.NewTestLogger()
	files, err := newLinter(t, nil, WithLogger(tl.Logger)).Discover(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.md")}, files)
	tl.AssertField(t, "skipping unreadable directory", "path", locked)
}

func TestDiscover_IgnoreFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), validPrompt)
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".promptlintignore"), 0o755))

	_, err := newLinter(t, nil).Discover(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".promptlintignore")
}

func TestValidateFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, validPrompt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLinter(t, nil).ValidateFiles(ctx, []string{path})
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateFiles_Empty(t *testing.T) {
	results, err := newLinter(t, nil).ValidateFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("estimate", func(t *testing.T) {
		c := NewCounter(ctx, config.EncodingEstimate, logging.NewNop())
		assert.Equal(t, 2, c.Count("12345678"))
	})

	t.Run("empty selects estimate", func(t *testing.T) {
		c := NewCounter(ctx, "", logging.NewNop())
		assert.Equal(t, 1, c.Count("abcd"))
	})

	t.Run("bpe encoding loads offline", func(t *testing.T) {
		tl := logging.NewTestLogger()
		c := NewCounter(ctx, config.EncodingCL100K, tl.Logger)

		require.IsType(t, &tokens.BPECounter{}, c)
		assert.Equal(t, 2, c.Count("hello world"))
		tl.AssertField(t, "tokenizer loaded", "encoding", config.EncodingCL100K)
		tl.AssertNotLogged(t, zapcore.WarnLevel, "tokenizer unavailable")
	})

	t.Run("unknown encoding falls back", func(t *testing.T) {
		tl := logging.NewTestLogger()
		c := NewCounter(ctx, "no_such_encoding", tl.Logger)

		assert.Equal(t, 1, c.Count("abcd"))
		tl.AssertLogged(t, zapcore.WarnLevel, "tokenizer unavailable")
		tl.AssertField(t, "tokenizer unavailable", "encoding", "no_such_encoding")
	})
}

func TestIsPromptFile(t *testing.T) {
	assert.True(t, IsPromptFile("a/b.md"))
	assert.False(t, IsPromptFile("a/b.markdown"))
	assert.False(t, IsPromptFile("a/b.MD"))
	assert.False(t, IsPromptFile("a/md"))
}
