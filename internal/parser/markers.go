package parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	// openTagRe matches an opening section marker such as <purpose>.
	openTagRe = regexp.MustCompile(`(?i)<([a-z][a-z0-9-]*)>`)
	// closeTagRe matches a closing section marker such as </purpose>.
	closeTagRe = regexp.MustCompile(`(?i)</([a-z][a-z0-9-]*)>`)
)

// marker is one opening or closing section marker on a line.
type marker struct {
	name   string
	column int
	open   bool
}

// scanMarkers returns the markers on line ordered by column, names lowercased.
func scanMarkers(line string) []marker {
	var markers []marker
	for _, m := range openTagRe.FindAllStringSubmatchIndex(line, -1) {
		markers = append(markers, marker{name: strings.ToLower(line[m[2]:m[3]]), column: m[0], open: true})
	}
	for _, m := range closeTagRe.FindAllStringSubmatchIndex(line, -1) {
		markers = append(markers, marker{name: strings.ToLower(line[m[2]:m[3]]), column: m[0]})
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].column < markers[j].column })
	return markers
}

// lineIndex maps byte offsets in a text to 1-based line numbers.
type lineIndex struct {
	newlines []int
}

func newLineIndex(text string) lineIndex {
	var nl []int
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			nl = append(nl, i)
		}
	}
	return lineIndex{newlines: nl}
}

// lineOf returns 1 + the number of newlines before offset.
func (l lineIndex) lineOf(offset int) int {
	return sort.SearchInts(l.newlines, offset) + 1
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
