// Package parser performs the structural validation of prompt documents.
//
// A prompt document is a YAML frontmatter block followed by a body of
// labeled sections written as <name>...</name>. Parse decodes the
// frontmatter, materializes the well-formed sections and records every
// structural problem (missing or malformed frontmatter, unknown, unclosed,
// nested, mismatched or out-of-order sections, token budget) as a finding.
// Parse never fails: malformed input yields a partial Structure plus findings.
package parser

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
	"github.com/fyrsmithlabs/promptlint/internal/tokens"
)

// Document is the raw text of one prompt file and the path identifying it.
type Document struct {
	Path    string
	Content string
}

// Section is one matched <name>...</name> pair.
type Section struct {
	// Name is lowercased.
	Name string
	// Content is the inner text with surrounding whitespace trimmed.
	Content string
	// StartLine is the line of the opening marker.
	StartLine int
	// EndLine is the line of the closing marker.
	EndLine int
	// ContentLine is the line on which the trimmed Content begins.
	ContentLine int
}

// Structure is the parsed form of a document.
type Structure struct {
	Frontmatter Frontmatter
	// BodyStart is the number of lines consumed by the frontmatter block.
	BodyStart int
	// Sections are the matched sections in document order.
	Sections []Section
	Raw      string
}

// Section returns the first section named name (any case).
func (s *Structure) Section(name string) (Section, bool) {
	name = strings.ToLower(name)
	for _, sec := range s.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return Section{}, false
}

// HasSection reports whether a section named name (any case) was matched.
func (s *Structure) HasSection(name string) bool {
	_, ok := s.Section(name)
	return ok
}

// IsReference reports whether the document opted out of section validation.
func (s *Structure) IsReference() bool {
	return s.Frontmatter != nil && s.Frontmatter.IsReference()
}

// Parser validates document structure against a RuleSet.
// A Parser holds no per-document state and is safe for concurrent use.
type Parser struct {
	rules   *rules.RuleSet
	counter tokens.Counter
}

// New creates a Parser. A nil counter selects tokens.EstimateCounter.
func New(rs *rules.RuleSet, counter tokens.Counter) *Parser {
	if counter == nil {
		counter = tokens.EstimateCounter
	}
	return &Parser{rules: rs, counter: counter}
}

type parseOptions struct {
	skipFrontmatter      bool
	skipRequiredSections bool
}

// Option adjusts a single Parse call.
type Option func(*parseOptions)

// SkipFrontmatter accepts documents without a frontmatter block and skips
// the required-field check.
func SkipFrontmatter() Option {
	return func(o *parseOptions) { o.skipFrontmatter = true }
}

// SkipRequiredSections disables the missing-required-section check.
func SkipRequiredSections() Option {
	return func(o *parseOptions) { o.skipRequiredSections = true }
}

// Parse parses doc and validates its structure.
//
// Checks run in a fixed sequence because later ones read what earlier ones
// built: frontmatter, reference short-circuit, section extraction, nesting,
// required sections, section order, token budget.
func (p *Parser) Parse(doc Document, opts ...Option) (*Structure, *findings.Result) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	result := findings.NewResult(doc.Path)
	st := &Structure{Raw: doc.Content}
	lines := strings.Split(doc.Content, "\n")

	st.Frontmatter, st.BodyStart = parseFrontmatter(doc.Content, result, p.rules, o.skipFrontmatter)

	if st.IsReference() {
		result.TokenCount = p.counter.Count(doc.Content)
		return st, result
	}

	bodyLines := lines[st.BodyStart:]
	body := strings.Join(bodyLines, "\n")

	st.Sections = p.extractSections(body, bodyLines, st.BodyStart, result)
	p.checkNesting(bodyLines, st.BodyStart, result)
	if !o.skipRequiredSections {
		p.checkRequired(st, result)
	}
	p.checkOrder(st, result)

	result.TokenCount = p.counter.Count(doc.Content)
	p.checkTokenBudget(result)

	return st, result
}

// extractSections reports unrecognized, unclosed and extra closing markers
// per name, then materializes every matched open/close pair.
func (p *Parser) extractSections(body string, bodyLines []string, bodyStart int, result *findings.Result) []Section {
	opens := make(map[string][]int)
	closes := make(map[string][]int)
	var seen, openOrder, closeOrder []string
	firstSeen := make(map[string]bool)

	for i, line := range bodyLines {
		lineNum := bodyStart + i + 1
		for _, m := range scanMarkers(line) {
			if !firstSeen[m.name] {
				firstSeen[m.name] = true
				seen = append(seen, m.name)
			}
			if m.open {
				if _, ok := opens[m.name]; !ok {
					openOrder = append(openOrder, m.name)
				}
				opens[m.name] = append(opens[m.name], lineNum)
			} else {
				if _, ok := closes[m.name]; !ok {
					closeOrder = append(closeOrder, m.name)
				}
				closes[m.name] = append(closes[m.name], lineNum)
			}
		}
	}

	for _, name := range seen {
		if p.rules.Recognized(name) {
			continue
		}
		line := 0
		if ls := opens[name]; len(ls) > 0 {
			line = ls[0]
		} else if ls := closes[name]; len(ls) > 0 {
			line = ls[0]
		}
		result.AddErrorf(line, "Unrecognized tag: <%s>", name)
	}

	for _, name := range openOrder {
		openLines, closeCount := opens[name], len(closes[name])
		if len(openLines) > closeCount {
			for _, line := range openLines[closeCount:] {
				result.AddErrorf(line, "Unclosed tag: <%s>", name)
			}
		}
	}

	for _, name := range closeOrder {
		closeLines, openCount := closes[name], len(opens[name])
		if len(closeLines) > openCount {
			for _, line := range closeLines[openCount:] {
				result.AddErrorf(line, "Extra closing tag: </%s>", name)
			}
		}
	}

	return matchPairs(body, bodyStart)
}

// matchPairs scans body left to right for <name>...</name> pairs. Each
// opening marker pairs with the nearest following closing marker of the same
// name (any case); scanning resumes after that closing marker. An opening
// marker with no partner is skipped.
func matchPairs(body string, bodyStart int) []Section {
	openIdx := openTagRe.FindAllStringSubmatchIndex(body, -1)
	closeIdx := closeTagRe.FindAllStringSubmatchIndex(body, -1)
	lines := newLineIndex(body)

	var sections []Section
	pos := 0
	for _, o := range openIdx {
		if o[0] < pos {
			continue
		}
		name := strings.ToLower(body[o[2]:o[3]])

		first := sort.Search(len(closeIdx), func(i int) bool { return closeIdx[i][0] >= o[1] })
		for _, c := range closeIdx[first:] {
			if strings.ToLower(body[c[2]:c[3]]) != name {
				continue
			}

			inner := body[o[1]:c[0]]
			leading := inner[:len(inner)-len(strings.TrimLeftFunc(inner, isSpace))]
			startLine := lines.lineOf(o[0]) + bodyStart

			sections = append(sections, Section{
				Name:        name,
				Content:     strings.TrimSpace(inner),
				StartLine:   startLine,
				EndLine:     lines.lineOf(c[1]) + bodyStart,
				ContentLine: startLine + strings.Count(leading, "\n"),
			})
			pos = c[1]
			break
		}
	}
	return sections
}

// checkNesting walks recognized markers in document order keeping a stack
// of open sections. Opening a section while another is open is an error; a
// closing marker that does not match the innermost open section is an error
// and leaves the stack unchanged. A closing marker on an empty stack is
// left to the extra-closing-tag check.
func (p *Parser) checkNesting(bodyLines []string, bodyStart int, result *findings.Result) {
	type frame struct {
		name string
		line int
	}
	var stack []frame

	for i, line := range bodyLines {
		lineNum := bodyStart + i + 1
		for _, m := range scanMarkers(line) {
			if !p.rules.Recognized(m.name) {
				continue
			}
			if m.open {
				if len(stack) > 0 {
					outer := stack[len(stack)-1]
					result.AddErrorf(lineNum, "Nested tag detected: <%s> inside <%s> (opened at line %d)",
						m.name, outer.name, outer.line)
				}
				stack = append(stack, frame{name: m.name, line: lineNum})
				continue
			}

			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top.name == m.name {
				stack = stack[:len(stack)-1]
			} else {
				result.AddErrorf(lineNum, "Mismatched closing tag: expected </%s>, found </%s>", top.name, m.name)
			}
		}
	}
}

func (p *Parser) checkRequired(st *Structure, result *findings.Result) {
	for _, name := range p.rules.RequiredSections {
		if !st.HasSection(name) {
			result.AddErrorf(0, "Missing required tag: <%s>", name)
		}
	}
}

// checkOrder compares the document order of sections named in the
// configured order with that order restricted to the sections present.
// Only the first divergence is reported.
func (p *Parser) checkOrder(st *Structure, result *findings.Result) {
	if !p.rules.EnforceOrder || len(p.rules.Order) == 0 {
		return
	}

	present := make(map[string]bool, len(st.Sections))
	var actual []string
	for _, sec := range st.Sections {
		present[sec.Name] = true
		if p.rules.InOrder(sec.Name) {
			actual = append(actual, sec.Name)
		}
	}

	var expected []string
	for _, name := range p.rules.Order {
		if present[name] {
			expected = append(expected, name)
		}
	}

	for i, name := range actual {
		if i < len(expected) && name == expected[i] {
			continue
		}

		line := 0
		if sec, ok := st.Section(name); ok {
			line = sec.StartLine
		}
		if i < len(expected) {
			result.AddErrorf(line, "Tag <%s> is out of order: expected <%s> at this position", name, expected[i])
		} else {
			result.AddErrorf(line, "Tag <%s> is out of order", name)
		}
		return
	}
}

func (p *Parser) checkTokenBudget(result *findings.Result) {
	count := result.TokenCount
	switch {
	case count >= p.rules.FailAt:
		result.AddErrorf(0, "Token count (%d) exceeds fail threshold (%d)", count, p.rules.FailAt)
	case count >= p.rules.WarnAt:
		result.AddWarningf(0, "Token count (%d) exceeds warn threshold (%d)", count, p.rules.WarnAt)
	}
}
