// Package report renders validation results for humans (text) and tools (JSON).
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Options control rendering.
type Options struct {
	Format Format
	// Verbose lists passing documents in text output.
	Verbose bool
	// Color enables terminal styling in text output.
	Color bool
}

// Summary counts documents by outcome.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Total returns the number of documents.
func (s Summary) Total() int { return s.Passed + s.Failed }

// OK reports whether no document failed.
func (s Summary) OK() bool { return s.Failed == 0 }

// Summarize counts results by outcome.
func Summarize(results []*findings.Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// Render writes results to w in the selected format and returns the summary.
func Render(w io.Writer, results []*findings.Result, opts Options) (Summary, error) {
	switch opts.Format {
	case FormatJSON:
		return renderJSON(w, results)
	case FormatText, "":
		return renderText(w, results, opts)
	default:
		return Summary{}, fmt.Errorf("unknown format %q", opts.Format)
	}
}
