package report

import (
	"encoding/json"
	"io"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
)

type jsonReport struct {
	Results []jsonResult `json:"results"`
	Summary
}

type jsonResult struct {
	Path       string             `json:"path"`
	Passed     bool               `json:"passed"`
	TokenCount int                `json:"token_count"`
	Errors     []findings.Finding `json:"errors"`
	Warnings   []findings.Finding `json:"warnings"`
}

func renderJSON(w io.Writer, results []*findings.Result) (Summary, error) {
	out := jsonReport{
		Results: make([]jsonResult, 0, len(results)),
		Summary: Summarize(results),
	}
	for _, r := range results {
		out.Results = append(out.Results, jsonResult{
			Path:       r.Path,
			Passed:     r.Passed(),
			TokenCount: r.TokenCount,
			Errors:     nonNil(r.Errors()),
			Warnings:   nonNil(r.Warnings()),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return out.Summary, enc.Encode(out)
}

func nonNil(fs []findings.Finding) []findings.Finding {
	if fs == nil {
		return []findings.Finding{}
	}
	return fs
}
