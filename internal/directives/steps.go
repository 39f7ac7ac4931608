package directives

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/promptlint/internal/rules"
)

// stepRe matches a numbered step marker such as "3. ".
var stepRe = regexp.MustCompile(`^\d+\.\s+`)

// Step is one numbered line from an instructions section.
type Step struct {
	// Text is the trimmed line including its number.
	Text string
	// Line is 1-based within the trimmed section text.
	Line int
}

// ExtractSteps returns the numbered steps of text in document order.
func ExtractSteps(text string) []Step {
	var steps []Step
	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if stepRe.MatchString(line) {
			steps = append(steps, Step{Text: line, Line: i + 1})
		}
	}
	return steps
}

// ValidateStep requires a numbered step to begin with an action keyword.
// Lines that are not numbered steps, and every line when action enforcement
// is off, are valid.
func ValidateStep(line string, g rules.InstructionGrammar) (ok bool, msg string) {
	if !g.EnforceActions {
		return true, ""
	}

	line = strings.TrimSpace(line)
	loc := stepRe.FindStringIndex(line)
	if loc == nil {
		return true, ""
	}

	first := ""
	if fields := strings.Fields(line[loc[1]:]); len(fields) > 0 {
		first = fields[0]
	}
	if g.IsAction(first) {
		return true, ""
	}

	return false, fmt.Sprintf("Instruction step must start with an action keyword. Found: '%s', expected one of: %s",
		first, strings.Join(g.ActionKeywords, ", "))
}
