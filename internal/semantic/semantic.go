// Package semantic flags hedging language in the instructions section of a
// prompt document.
package semantic

import (
	"strings"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/parser"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
)

// InstructionsSection is the only section inspected for ambiguity.
const InstructionsSection = "instructions"

// Match is one ambiguous phrase found on one line.
type Match struct {
	Phrase string
	// Line is the absolute document line.
	Line int
	// Context is the trimmed text of the line containing the phrase.
	Context string
}

// CheckAmbiguity scans the instructions section line by line and records one
// error per (line, phrase) hit. A document without an instructions section
// yields no matches.
func CheckAmbiguity(st *parser.Structure, rs *rules.RuleSet, result *findings.Result) []Match {
	sec, ok := st.Section(InstructionsSection)
	if !ok {
		return nil
	}

	var matches []Match
	for i, line := range strings.Split(sec.Content, "\n") {
		for _, phrase := range rs.Ambiguous {
			if !phrase.Matcher.MatchString(line) {
				continue
			}
			m := Match{
				Phrase:  phrase.Text,
				Line:    sec.ContentLine + i,
				Context: strings.TrimSpace(line),
			}
			matches = append(matches, m)
			result.AddErrorf(m.Line, "Ambiguous language in <instructions>: \"%s\"", m.Phrase)
		}
	}
	return matches
}
