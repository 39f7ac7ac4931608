// Package findings holds the errors and warnings produced while validating
// one prompt document.
package findings

import "fmt"

// Severity classifies a Finding.
type Severity string

const (
	// SeverityError fails the document.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not fail the document.
	SeverityWarning Severity = "warning"
)

// Finding is a single reported problem.
// Line is 1-based; 0 means the finding applies to the whole document.
type Finding struct {
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// String renders the finding the way it is printed in reports.
func (f Finding) String() string {
	return fmt.Sprintf("  Line %d: %s", f.Line, f.Message)
}

// Result collects the findings for one document.
//
// Findings are append-only: nothing removes or reorders a finding once added.
// A Result is not safe for concurrent use; each document gets its own.
type Result struct {
	Path       string
	TokenCount int

	findings []Finding
}

// NewResult creates an empty result for the document at path.
func NewResult(path string) *Result {
	return &Result{Path: path}
}

// AddError records an error-severity finding.
func (r *Result) AddError(line int, message string) {
	r.add(line, message, SeverityError)
}

// AddErrorf records an error-severity finding with a formatted message.
func (r *Result) AddErrorf(line int, format string, args ...any) {
	r.add(line, fmt.Sprintf(format, args...), SeverityError)
}

// AddWarning records a warning-severity finding.
func (r *Result) AddWarning(line int, message string) {
	r.add(line, message, SeverityWarning)
}

// AddWarningf records a warning-severity finding with a formatted message.
func (r *Result) AddWarningf(line int, format string, args ...any) {
	r.add(line, fmt.Sprintf(format, args...), SeverityWarning)
}

func (r *Result) add(line int, message string, severity Severity) {
	if line < 0 {
		line = 0
	}
	r.findings = append(r.findings, Finding{Line: line, Message: message, Severity: severity})
}

// Findings returns every finding in the order it was added.
func (r *Result) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	return out
}

// Errors returns the error-severity findings in order.
func (r *Result) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity findings in order.
func (r *Result) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(severity Severity) []Finding {
	var out []Finding
	for _, f := range r.findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

// Passed reports whether the document produced no errors.
func (r *Result) Passed() bool {
	for _, f := range r.findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}
