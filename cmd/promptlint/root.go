package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptlint/internal/config"
	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/gitscope"
	"github.com/fyrsmithlabs/promptlint/internal/ignore"
	"github.com/fyrsmithlabs/promptlint/internal/linter"
	"github.com/fyrsmithlabs/promptlint/internal/logging"
	"github.com/fyrsmithlabs/promptlint/internal/report"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
	"github.com/fyrsmithlabs/promptlint/internal/watch"
)

// options holds the root command's flags.
type options struct {
	configPath string
	noSemantic bool
	verbose    bool
	format     string
	noColor    bool
	jobs       int
	changed    bool
	watch      bool
	tokenizer  string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "promptlint <path>",
		Short: "Validate prompt files against a rules file",
		Long: `promptlint validates structured prompt documents: a YAML frontmatter
block followed by labeled sections such as <purpose> and <instructions>.

It checks frontmatter fields, section structure and order, token budget,
ambiguous wording, routing directives and numbered instruction steps.

Examples:
  # Validate one file
  promptlint agents/router.md

  # Validate every .md file below a directory with custom rules
  promptlint prompts/ --config prompt-lang.config.yaml

  # Only files changed in the git worktree, as JSON
  promptlint . --changed --format json

  # Keep validating as files change
  promptlint prompts/ --watch

Exit codes: 0=success, 1=validation errors or incomplete run, 2=config error,
3=file not found`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to rules file (default: "+config.DefaultConfigFile+")")
	f.BoolVar(&opts.noSemantic, "no-semantic", false, "skip semantic validation (ambiguous language detection)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (show passing files)")
	f.StringVar(&opts.format, "format", string(report.FormatText), "output format: text or json")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.IntVar(&opts.jobs, "jobs", 0, "files validated concurrently (default: number of CPUs)")
	f.BoolVar(&opts.changed, "changed", false, "only validate files changed in the git worktree")
	f.BoolVar(&opts.watch, "watch", false, "re-validate files as they change")
	f.StringVar(&opts.tokenizer, "tokenizer", "", "token counting: estimate or cl100k_base (default from rules file)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	f.StringVar(&opts.logFormat, "log-format", logging.FormatConsole, "log format: console or json")

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func run(ctx context.Context, path string, opts *options, stdout, stderr io.Writer) error {
	logger, err := newLogger(opts, stderr)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	defer func() { _ = logger.Sync() }()
	ctx = logging.WithLogger(ctx, logger)

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	rs, err := loadRules(opts)
	if err != nil {
		return &exitError{code: exitConfigError, err: fmt.Errorf("loading config: %w", err)}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &exitError{code: exitFileNotFound, err: fmt.Errorf("path not found: %s", path)}
		}
		return &exitError{code: exitFileNotFound, err: err}
	}

	lintOpts := []linter.Option{linter.WithLogger(logger), linter.WithJobs(opts.jobs)}
	if opts.noSemantic {
		lintOpts = append(lintOpts, linter.WithoutSemantic())
	}
	l := linter.New(rs, lintOpts...)

	renderOpts := report.Options{Format: format, Verbose: opts.verbose, Color: !opts.noColor}

	results, err := collect(ctx, l, rs, path, opts)
	if err != nil {
		return runtimeError(err)
	}

	summary, err := report.Render(stdout, results, renderOpts)
	if err != nil {
		return runtimeError(fmt.Errorf("writing report: %w", err))
	}

	if opts.watch {
		if err := watchAndValidate(ctx, l, path, renderOpts, stdout); err != nil {
			return runtimeError(err)
		}
	}

	if !summary.OK() {
		return &exitError{code: exitValidationError}
	}
	return nil
}

// runtimeError reports a failure that stopped validation part way, such as
// an unreadable walk root or an interrupted run. Errors that already carry
// an exit code are kept.
func runtimeError(err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	return &exitError{code: exitValidationError, err: err}
}

// collect validates path, or only its changed files when --changed is set.
func collect(ctx context.Context, l *linter.Linter, rs *rules.RuleSet, path string, opts *options) ([]*findings.Result, error) {
	if !opts.changed {
		results, err := l.ValidatePath(ctx, path)
		if errors.Is(err, linter.ErrPathNotFound) {
			return nil, &exitError{code: exitFileNotFound, err: err}
		}
		return results, err
	}

	ctx = logging.WithMode(ctx, "changed")
	files, err := gitscope.ChangedFiles(ctx, path, linter.IsPromptFile)
	if err != nil {
		return nil, &exitError{code: exitConfigError, err: err}
	}

	files, err = dropIgnored(path, rs, files)
	if err != nil {
		return nil, &exitError{code: exitConfigError, err: err}
	}
	return l.ValidateFiles(ctx, files)
}

// dropIgnored applies the walk root's ignore rules to an explicit file list.
func dropIgnored(root string, rs *rules.RuleSet, files []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return files, nil
	}

	m, err := ignore.NewMatcher(root, rs.Ignore)
	if err != nil {
		return nil, err
	}

	kept := files[:0]
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil || !m.Match(rel) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func watchAndValidate(ctx context.Context, l *linter.Linter, path string, renderOpts report.Options, stdout io.Writer) error {
	ctx = logging.WithMode(ctx, "watch")
	logger := logging.FromContext(ctx)

	w, err := watch.New(path, linter.IsPromptFile)
	if err != nil {
		return err
	}
	defer w.Stop()

	logger.Info(ctx, "watching for changes", zap.String("path", path))
	return w.Run(ctx, func(ctx context.Context, changed string) {
		result := l.ValidateFile(ctx, changed)
		if _, err := report.Render(stdout, []*findings.Result{result}, renderOpts); err != nil {
			logger.Error(ctx, "writing report", zap.Error(err))
		}
	})
}

func newLogger(opts *options, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.LevelFromString(opts.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", opts.logLevel, err)
	}

	cfg := logging.NewDefaultConfig()
	cfg.Level = level
	cfg.Format = opts.logFormat
	return logging.NewLogger(cfg, stderr)
}

// loadRules loads the rules file, applies flag overrides and compiles it.
func loadRules(opts *options) (*rules.RuleSet, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.tokenizer != "" {
		cfg.Validation.Tokens.Encoding = opts.tokenizer
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return rules.New(cfg)
}
