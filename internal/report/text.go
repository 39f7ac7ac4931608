package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
)

const ruleWidth = 60

var (
	// Failing document header - bold red
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// Passing document header - bold green
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226"))

	// Separators and token counts
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// painter applies styles only when color is enabled.
type painter bool

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return style.Render(s)
}

func renderText(w io.Writer, results []*findings.Result, opts Options) (Summary, error) {
	bw := bufio.NewWriter(w)
	p := painter(opts.Color)

	summary := Summarize(results)
	for _, r := range results {
		if r.Passed() {
			if opts.Verbose {
				fmt.Fprintf(bw, "%s %s\n", p.paint(passStyle, "PASS:"), r.Path)
			}
			continue
		}
		writeFailure(bw, p, r)
	}

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, p.paint(dimStyle, strings.Repeat("=", ruleWidth)))
	if summary.OK() {
		fmt.Fprintf(bw, "All %d file(s) passed validation.\n", summary.Total())
	} else {
		fmt.Fprintf(bw, "Validation complete: %d passed, %d failed\n", summary.Passed, summary.Failed)
	}

	return summary, bw.Flush()
}

func writeFailure(w io.Writer, p painter, r *findings.Result) {
	errs, warns := r.Errors(), r.Warnings()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", p.paint(failStyle, "FAIL:"), r.Path)
	fmt.Fprintln(w, p.paint(dimStyle, strings.Repeat("-", ruleWidth)))

	if len(errs) > 0 {
		fmt.Fprintln(w, p.paint(errorLabelStyle, "ERRORS:"))
		for _, f := range errs {
			fmt.Fprintln(w, f.String())
		}
	}
	if len(warns) > 0 {
		fmt.Fprintln(w, p.paint(warningLabelStyle, "WARNINGS:"))
		for _, f := range warns {
			fmt.Fprintln(w, f.String())
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, p.paint(dimStyle, fmt.Sprintf("Token count: %d", r.TokenCount)))
	fmt.Fprintf(w, "Result: FAIL (%d errors, %d warnings)\n", len(errs), len(warns))
}
