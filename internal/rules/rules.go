// Package rules compiles a loaded configuration into the immutable RuleSet
// every validation step reads.
//
// A RuleSet is built once per run and shared read-only by every document,
// which makes concurrent validation of independent documents safe. Section
// names are lowercased at build time; all section comparisons are
// case-insensitive.
package rules

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fyrsmithlabs/promptlint/internal/config"
)

// ErrInvalidPattern indicates a directive grammar or ambiguous phrase that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid pattern")

// RuleSet is the compiled, read-only form of config.Config.
// Fields must not be modified after New returns.
type RuleSet struct {
	RequiredSections []string
	OptionalSections []string

	RequiredFields []string

	SemanticCheck bool
	Ambiguous     []Phrase

	WarnAt   int
	FailAt   int
	Encoding string

	EnforceOrder bool
	Order        []string

	Directives   DirectiveGrammar
	Instructions InstructionGrammar

	PathRules []PathRule
	Ignore    []string

	recognized map[string]bool
}

// Phrase is one ambiguous phrase with its word-boundary matcher.
type Phrase struct {
	Text    string
	Matcher *regexp.Regexp
}

// Grammar is the full-line pattern a directive keyword must satisfy.
type Grammar struct {
	Keyword string
	// Pattern is the pattern text as configured, reported verbatim.
	Pattern string
	Matcher *regexp.Regexp
}

// DirectiveGrammar holds the recognized directive keywords and their grammars.
type DirectiveGrammar struct {
	Keywords []string
	Patterns map[string]Grammar
}

// InstructionGrammar holds the action keywords numbered steps must start with.
type InstructionGrammar struct {
	EnforceActions bool
	ActionKeywords []string

	actions map[string]bool
}

// IsAction reports whether word is a configured action keyword (exact case).
func (g InstructionGrammar) IsAction(word string) bool {
	if g.actions != nil {
		return g.actions[word]
	}
	for _, k := range g.ActionKeywords {
		if k == word {
			return true
		}
	}
	return false
}

// NewInstructionGrammar builds an InstructionGrammar.
func NewInstructionGrammar(enforce bool, keywords []string) InstructionGrammar {
	actions := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		actions[k] = true
	}
	return InstructionGrammar{
		EnforceActions: enforce,
		ActionKeywords: append([]string(nil), keywords...),
		actions:        actions,
	}
}

// NewDirectiveGrammar compiles keyword patterns. Every pattern must match
// the entire directive line.
func NewDirectiveGrammar(keywords []string, patterns map[string]string) (DirectiveGrammar, error) {
	g := DirectiveGrammar{
		Keywords: append([]string(nil), keywords...),
		Patterns: make(map[string]Grammar, len(patterns)),
	}
	for keyword, pattern := range patterns {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return DirectiveGrammar{}, fmt.Errorf("%w: directive %s: %v", ErrInvalidPattern, keyword, err)
		}
		g.Patterns[keyword] = Grammar{Keyword: keyword, Pattern: pattern, Matcher: re}
	}
	return g, nil
}

// PathRule adds section requirements for documents whose path matches Pattern.
type PathRule struct {
	Pattern              string
	Required             []string
	Forbidden            []string
	SkipFrontmatter      bool
	SkipRequiredSections bool
}

// Matches reports whether the slash-separated form of p matches the rule's glob.
func (r PathRule) Matches(p string) bool {
	ok, err := doublestar.Match(r.Pattern, NormalizePath(p))
	return err == nil && ok
}

// NormalizePath converts p to the clean POSIX form path rules are matched against.
func NormalizePath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// New compiles cfg into a RuleSet.
func New(cfg *config.Config) (*RuleSet, error) {
	v := cfg.Validation

	rs := &RuleSet{
		RequiredSections: lowerAll(v.RequiredTags),
		OptionalSections: lowerAll(v.OptionalTags),
		RequiredFields:   append([]string(nil), v.Frontmatter.Required...),
		SemanticCheck:    v.SemanticCheck,
		WarnAt:           v.Tokens.WarnAt,
		FailAt:           v.Tokens.FailAt,
		Encoding:         v.Tokens.Encoding,
		EnforceOrder:     v.EnforceTagOrder,
		Order:            lowerAll(v.TagOrder),
		Instructions:     NewInstructionGrammar(cfg.Instructions.EnforceActions, cfg.Instructions.ActionKeywords),
		Ignore:           append([]string(nil), cfg.Ignore...),
	}

	rs.recognized = make(map[string]bool, len(rs.RequiredSections)+len(rs.OptionalSections))
	for _, name := range rs.RequiredSections {
		rs.recognized[name] = true
	}
	for _, name := range rs.OptionalSections {
		rs.recognized[name] = true
	}

	for _, text := range v.AmbiguousPatterns {
		phrase, err := NewPhrase(text)
		if err != nil {
			return nil, err
		}
		rs.Ambiguous = append(rs.Ambiguous, phrase)
	}

	directives, err := NewDirectiveGrammar(cfg.Directives.Keywords, cfg.Directives.Patterns)
	if err != nil {
		return nil, err
	}
	rs.Directives = directives

	for _, fr := range cfg.FileRules {
		if !doublestar.ValidatePattern(fr.Pattern) {
			return nil, fmt.Errorf("%w: file rule glob %q", ErrInvalidPattern, fr.Pattern)
		}
		rs.PathRules = append(rs.PathRules, PathRule{
			Pattern:              fr.Pattern,
			Required:             lowerAll(fr.RequiredTags),
			Forbidden:            lowerAll(fr.ForbiddenTags),
			SkipFrontmatter:      fr.SkipFrontmatter,
			SkipRequiredSections: fr.SkipRequiredTags,
		})
	}

	return rs, nil
}

// Word boundaries for phrase matching. RE2's \b only knows ASCII word
// characters, so letters and digits of any script are spelled out.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// NewPhrase builds a case-insensitive, word-boundary-anchored matcher for a
// literal phrase. Multi-word phrases match only as a contiguous sequence.
func NewPhrase(text string) (Phrase, error) {
	re, err := regexp.Compile(`(?i)` + wordStart + regexp.QuoteMeta(text) + wordEnd)
	if err != nil {
		return Phrase{}, fmt.Errorf("%w: ambiguous phrase %q: %v", ErrInvalidPattern, text, err)
	}
	return Phrase{Text: text, Matcher: re}, nil
}

// Recognized reports whether name (any case) is a required or optional section.
func (rs *RuleSet) Recognized(name string) bool {
	return rs.recognized[strings.ToLower(name)]
}

// InOrder reports whether name (any case) appears in the configured section order.
func (rs *RuleSet) InOrder(name string) bool {
	name = strings.ToLower(name)
	for _, o := range rs.Order {
		if o == name {
			return true
		}
	}
	return false
}

// MatchPathRules returns every path rule whose glob matches p, in configuration order.
func (rs *RuleSet) MatchPathRules(p string) []PathRule {
	var matched []PathRule
	for _, r := range rs.PathRules {
		if r.Matches(p) {
			matched = append(matched, r)
		}
	}
	return matched
}

func lowerAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
