// Package linter runs the full validation pipeline over prompt documents:
// structure, ambiguity, path rules, directives and instruction steps. It
// owns file I/O and directory walking; the checks themselves live in the
// parser, semantic and directives packages.
package linter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptlint/internal/config"
	"github.com/fyrsmithlabs/promptlint/internal/directives"
	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/logging"
	"github.com/fyrsmithlabs/promptlint/internal/parser"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
	"github.com/fyrsmithlabs/promptlint/internal/semantic"
	"github.com/fyrsmithlabs/promptlint/internal/tokens"
)

// ErrPathNotFound is returned when the path to validate does not exist.
var ErrPathNotFound = errors.New("path not found")

// Section names the pipeline inspects beyond the structural checks.
const (
	directivesSection   = "directives"
	instructionsSection = "instructions"
)

// Linter validates documents against one RuleSet.
// It is safe for concurrent use.
type Linter struct {
	rules    *rules.RuleSet
	parser   *parser.Parser
	counter  tokens.Counter
	logger   *logging.Logger
	jobs     int
	semantic bool
}

// Option configures a Linter.
type Option func(*Linter)

// WithLogger sets the logger used for I/O and progress messages.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Linter) { l.logger = logger }
}

// WithCounter overrides the token counter chosen from the rules.
func WithCounter(c tokens.Counter) Option {
	return func(l *Linter) { l.counter = c }
}

// WithJobs bounds how many documents are validated concurrently.
// Values below 1 select runtime.NumCPU().
func WithJobs(n int) Option {
	return func(l *Linter) { l.jobs = n }
}

// WithoutSemantic disables the ambiguity check regardless of the rules.
func WithoutSemantic() Option {
	return func(l *Linter) { l.semantic = false }
}

// New creates a Linter. Unless WithCounter is given, the token counter is
// selected from rs.Encoding by NewCounter.
func New(rs *rules.RuleSet, opts ...Option) *Linter {
	l := &Linter{
		rules:    rs,
		logger:   logging.NewNop(),
		semantic: rs.SemanticCheck,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.jobs < 1 {
		l.jobs = runtime.NumCPU()
	}
	if l.counter == nil {
		l.counter = NewCounter(context.Background(), rs.Encoding, l.logger)
	}
	l.parser = parser.New(rs, l.counter)
	return l
}

// NewCounter returns the token counter for encoding. Unknown or unloadable
// BPE encodings fall back to the character estimate with a warning.
func NewCounter(ctx context.Context, encoding string, logger *logging.Logger) tokens.Counter {
	if encoding == "" || encoding == config.EncodingEstimate {
		return tokens.EstimateCounter
	}

	counter, err := tokens.NewBPECounter(encoding)
	if err != nil {
		logger.Warn(ctx, "tokenizer unavailable, using character estimate",
			zap.String("encoding", encoding), zap.Error(err))
		return tokens.EstimateCounter
	}
	logger.Debug(ctx, "tokenizer loaded", zap.String("encoding", counter.Encoding()))
	return counter
}

// ValidateContent runs the pipeline over in-memory content. path is used for
// reporting and path-rule matching only.
func (l *Linter) ValidateContent(ctx context.Context, path, content string) *findings.Result {
	matched := l.rules.MatchPathRules(path)

	var opts []parser.Option
	skipFrontmatter := false
	if len(matched) > 0 {
		first := matched[0]
		if first.SkipFrontmatter {
			skipFrontmatter = true
			opts = append(opts, parser.SkipFrontmatter())
		}
		if first.SkipRequiredSections {
			opts = append(opts, parser.SkipRequiredSections())
		}
	}

	st, result := l.parser.Parse(parser.Document{Path: path, Content: content}, opts...)

	if l.semantic && !skipFrontmatter && !st.IsReference() {
		semantic.CheckAmbiguity(st, l.rules, result)
	}

	if !st.IsReference() {
		checkPathRules(st, matched, result)
		l.checkDirectives(st, result)
		l.checkSteps(st, result)
	}

	l.logger.Debug(logging.WithDocument(ctx, path), "document validated",
		zap.Int("errors", len(result.Errors())),
		zap.Int("warnings", len(result.Warnings())),
		zap.Int("tokens", result.TokenCount))

	return result
}

// ValidateFile reads and validates one file. A read failure becomes a single
// error finding rather than an error return.
func (l *Linter) ValidateFile(ctx context.Context, path string) *findings.Result {
	content, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn(logging.WithDocument(ctx, path), "failed to read document", zap.Error(err))
		result := findings.NewResult(path)
		result.AddErrorf(0, "Failed to read file: %v", err)
		return result
	}
	return l.ValidateContent(ctx, path, string(content))
}

// ValidatePath validates a single file or every prompt file below a
// directory. It returns ErrPathNotFound when path does not exist.
func (l *Linter) ValidatePath(ctx context.Context, path string) ([]*findings.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []*findings.Result{l.ValidateFile(ctx, path)}, nil
	}
	return l.ValidateDirectory(ctx, path)
}

// checkPathRules applies the required and forbidden sections of every
// matching path rule.
func checkPathRules(st *parser.Structure, matched []rules.PathRule, result *findings.Result) {
	for _, rule := range matched {
		for _, name := range rule.Required {
			if !st.HasSection(name) {
				result.AddErrorf(0, "File matching pattern '%s' requires <%s> tag", rule.Pattern, name)
			}
		}
		for _, name := range rule.Forbidden {
			if sec, ok := st.Section(name); ok {
				result.AddErrorf(sec.StartLine, "File matching pattern '%s' forbids <%s> tag", rule.Pattern, name)
			}
		}
	}
}

func (l *Linter) checkDirectives(st *parser.Structure, result *findings.Result) {
	sec, ok := st.Section(directivesSection)
	if !ok {
		return
	}
	for _, d := range directives.ParseDirectives(sec.Content) {
		if ok, msg := directives.ValidateDirective(d.Content, l.rules.Directives); !ok {
			result.AddError(sec.ContentLine+d.Line-1, "Invalid directive: "+msg)
		}
	}
}

func (l *Linter) checkSteps(st *parser.Structure, result *findings.Result) {
	sec, ok := st.Section(instructionsSection)
	if !ok {
		return
	}
	for _, step := range directives.ExtractSteps(sec.Content) {
		if ok, msg := directives.ValidateStep(step.Text, l.rules.Instructions); !ok {
			result.AddError(sec.ContentLine+step.Line-1, msg)
		}
	}
}
