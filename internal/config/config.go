// Package config provides rules-file loading for promptlint.
//
// A rules file is a YAML document describing which sections a prompt must
// carry, which frontmatter fields are required, the token budget, the
// ambiguous phrases to reject and the grammars of the embedded micro-syntaxes.
// Loading merges the embedded defaults, the rules file and PROMPTLINT_
// environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// Config holds the complete promptlint rules configuration.
type Config struct {
	Validation   ValidationConfig  `koanf:"validation"`
	Directives   DirectiveConfig   `koanf:"directives"`
	Instructions InstructionConfig `koanf:"instructions"`
	FileRules    []FileRule        `koanf:"file_rules"`
	Ignore       []string          `koanf:"ignore"`
}

// ValidationConfig holds the structural and semantic checks.
type ValidationConfig struct {
	Tokens            TokenConfig       `koanf:"tokens"`
	SemanticCheck     bool              `koanf:"semantic_check"`
	RequiredTags      []string          `koanf:"required_tags"`
	OptionalTags      []string          `koanf:"optional_tags"`
	AmbiguousPatterns []string          `koanf:"ambiguous_patterns"`
	Frontmatter       FrontmatterConfig `koanf:"frontmatter"`
	EnforceTagOrder   bool              `koanf:"enforce_tag_order"`
	TagOrder          []string          `koanf:"tag_order"`
}

// TokenConfig holds the token budget.
// FailAt is expected to be >= WarnAt; this is not enforced.
type TokenConfig struct {
	WarnAt   int    `koanf:"warn_at"`
	FailAt   int    `koanf:"fail_at"`
	Encoding string `koanf:"encoding"`
}

// FrontmatterConfig holds frontmatter field requirements.
type FrontmatterConfig struct {
	Required []string `koanf:"required"`
	Optional []string `koanf:"optional"`
}

// DirectiveConfig maps routing directive keywords to their line grammar.
type DirectiveConfig struct {
	Keywords []string          `koanf:"keywords"`
	Patterns map[string]string `koanf:"patterns"`
}

// InstructionConfig holds the action keywords numbered steps must start with.
type InstructionConfig struct {
	EnforceActions bool     `koanf:"enforce_actions"`
	ActionKeywords []string `koanf:"action_keywords"`
}

// FileRule adds section requirements for documents whose path matches Pattern.
type FileRule struct {
	Pattern          string   `koanf:"pattern"`
	RequiredTags     []string `koanf:"required_tags"`
	ForbiddenTags    []string `koanf:"forbidden_tags"`
	SkipFrontmatter  bool     `koanf:"skip_frontmatter"`
	SkipRequiredTags bool     `koanf:"skip_required_tags"`
}

// Validate checks the configuration for values no document could satisfy.
//
// Returns an error if:
//   - a token threshold is negative
//   - the token encoding is unknown
//   - a directive pattern does not compile
//   - a file rule has an empty or malformed glob
func (c *Config) Validate() error {
	if c.Validation.Tokens.WarnAt < 0 {
		return fmt.Errorf("validation.tokens.warn_at must be >= 0, got %d", c.Validation.Tokens.WarnAt)
	}
	if c.Validation.Tokens.FailAt < 0 {
		return fmt.Errorf("validation.tokens.fail_at must be >= 0, got %d", c.Validation.Tokens.FailAt)
	}
	switch c.Validation.Tokens.Encoding {
	case "", EncodingEstimate, EncodingCL100K:
	default:
		return fmt.Errorf("validation.tokens.encoding must be %q or %q, got %q",
			EncodingEstimate, EncodingCL100K, c.Validation.Tokens.Encoding)
	}

	for keyword, pattern := range c.Directives.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("directives.patterns.%s: %w", keyword, err)
		}
	}

	for i, rule := range c.FileRules {
		if rule.Pattern == "" {
			return fmt.Errorf("file_rules[%d]: pattern is required", i)
		}
		if !doublestar.ValidatePattern(rule.Pattern) {
			return fmt.Errorf("file_rules[%d]: invalid glob %q", i, rule.Pattern)
		}
	}

	for _, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("ignore: invalid glob %q", pattern)
		}
	}

	return nil
}

// Token encodings accepted by validation.tokens.encoding.
const (
	EncodingEstimate = "estimate"
	EncodingCL100K   = "cl100k_base"
)

var (
	// ErrConfigNotFound indicates an explicitly requested rules file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigTooLarge indicates the rules file exceeds maxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")
)
