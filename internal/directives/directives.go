// Package directives validates the two line grammars embedded in prompt
// sections: routing directives and numbered instruction steps.
package directives

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/promptlint/internal/rules"
)

// Keywords is the fixed set of words that mark a directive line.
var Keywords = []string{"DELEGATE", "DEFAULT", "CHAIN", "REQUIRE"}

// Directive is one routing line from a directives section.
type Directive struct {
	Keyword string
	// Content is the trimmed line.
	Content string
	// Line is 1-based within the trimmed section text.
	Line int
}

// ParseDirectives returns the directive lines of text in order. Blank lines,
// lines starting with '#' and lines not starting with a directive keyword are
// skipped.
func ParseDirectives(text string) []Directive {
	var out []Directive
	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, kw := range Keywords {
			if strings.HasPrefix(line, kw) {
				out = append(out, Directive{Keyword: kw, Content: line, Line: i + 1})
				break
			}
		}
	}
	return out
}

// ValidateDirective checks line against the grammar of its leading keyword.
// The keyword's pattern must match the whole trimmed line. On failure the
// returned message names the problem; it is empty when ok is true.
func ValidateDirective(line string, g rules.DirectiveGrammar) (ok bool, msg string) {
	line = strings.TrimSpace(line)

	keyword := ""
	if fields := strings.Fields(line); len(fields) > 0 {
		for _, kw := range g.Keywords {
			if fields[0] == kw {
				keyword = kw
				break
			}
		}
	}
	if keyword == "" {
		return false, "Unknown directive keyword. Expected one of: " + strings.Join(g.Keywords, ", ")
	}

	grammar, found := g.Patterns[keyword]
	if !found || grammar.Pattern == "" {
		return false, "No validation pattern found for directive type: " + keyword
	}

	if !grammar.Matcher.MatchString(line) {
		return false, fmt.Sprintf("Invalid %s syntax. Expected pattern: %s", keyword, grammar.Pattern)
	}
	return true, ""
}
