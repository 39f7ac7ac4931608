// Package ignore excludes prompt files from directory walks using
// gitignore-style .promptlintignore files and configured globs.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnoreFile is read from the root of every validated directory.
const DefaultIgnoreFile = ".promptlintignore"

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are returned when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// ParseProject reads all ignore files from root and returns combined
// exclude patterns. If no ignore files are found, returns fallback patterns.
func (p *Parser) ParseProject(root string) ([]string, error) {
	var patterns []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		path := filepath.Join(root, ignoreFile)
		filePatterns, err := p.parseFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
		foundAny = true
	}

	if !foundAny {
		return p.FallbackPatterns, nil
	}

	return deduplicate(patterns), nil
}

// parseFile reads a single gitignore-style file and returns patterns.
func (p *Parser) parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// parseLine parses a single line from an ignore file.
// Returns empty string for comments, blank lines and negations.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")

	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}

	// Negation is not supported.
	if strings.HasPrefix(line, "!") {
		return ""
	}

	return toGlobPattern(line)
}

// toGlobPattern converts a gitignore pattern to a doublestar pattern.
func toGlobPattern(pattern string) string {
	// Leading slash anchors to the root, which is where matching starts anyway.
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		pattern = pattern + "**"
	}

	// Patterns without a slash match at any depth.
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	// Plain names without an extension are taken to be directories.
	// Wildcard names such as draft* match files as written.
	last := pattern[strings.LastIndex(pattern, "/")+1:]
	if !strings.ContainsAny(last, ".*?[{") {
		pattern = pattern + "/**"
	}

	return pattern
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}

// Matcher decides whether a path below a walk root is excluded.
type Matcher struct {
	patterns []string
}

// NewMatcher combines the ignore files found in root with extra globs taken
// verbatim (for example the configured ignore list). Every pattern is
// validated.
func NewMatcher(root string, extra []string) (*Matcher, error) {
	fromFiles, err := NewParser([]string{DefaultIgnoreFile}, nil).ParseProject(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", DefaultIgnoreFile, err)
	}

	patterns := deduplicate(append(append([]string(nil), fromFiles...), extra...))
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Patterns returns the effective patterns in precedence order.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether rel, a path relative to the walk root, is excluded.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
