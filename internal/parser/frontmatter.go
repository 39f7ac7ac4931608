package parser

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/promptlint/internal/findings"
	"github.com/fyrsmithlabs/promptlint/internal/rules"
)

// frontmatterRe matches the delimited header block including its closing
// delimiter line. Only horizontal whitespace may trail a delimiter, so a
// blank line after the block belongs to the body.
var frontmatterRe = regexp.MustCompile(`(?s)^---[ \t\r]*\n(.*?)\n---[ \t\r]*\n`)

// Kind identifies the dynamic type of a frontmatter value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMapping
	KindSequence
)

// Value is one frontmatter value: a YAML scalar, mapping or sequence.
type Value struct {
	raw any
}

// Kind returns the dynamic type of the value.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case int, int64, uint64, float64:
		return KindNumber
	case bool:
		return KindBool
	case map[string]any:
		return KindMapping
	case []any:
		return KindSequence
	default:
		return KindString
	}
}

// AsBool returns the value as a boolean; ok is false for any other kind.
func (v Value) AsBool() (b, ok bool) {
	b, ok = v.raw.(bool)
	return b, ok
}

// AsString returns the value as a string; ok is false for any other kind.
func (v Value) AsString() (s string, ok bool) {
	s, ok = v.raw.(string)
	return s, ok
}

// Frontmatter is the decoded key/value header of a document.
type Frontmatter map[string]any

// Has reports whether key is present, whatever its value.
func (f Frontmatter) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Get returns the value stored under key.
func (f Frontmatter) Get(key string) (Value, bool) {
	raw, ok := f[key]
	return Value{raw: raw}, ok
}

// IsReference reports whether the header declares `reference: true`.
// Only a YAML boolean true counts; absent or non-boolean values do not.
func (f Frontmatter) IsReference() bool {
	v, ok := f.Get("reference")
	if !ok {
		return false
	}
	b, ok := v.AsBool()
	return ok && b
}

// parseFrontmatter decodes the header block and checks required fields.
// It returns the frontmatter (nil when absent or invalid) and the number of
// lines the delimited block consumes, which is where the body starts.
// When lenient is set a missing or malformed block is not reported and
// required fields are not checked.
func parseFrontmatter(content string, result *findings.Result, rs *rules.RuleSet, lenient bool) (Frontmatter, int) {
	if !strings.HasPrefix(content, "---") {
		if !lenient {
			result.AddError(1, "Missing YAML frontmatter (file must start with '---')")
		}
		return nil, 0
	}

	match := frontmatterRe.FindStringSubmatch(content)
	if match == nil {
		if !lenient {
			result.AddError(1, "Malformed YAML frontmatter (missing closing '---')")
		}
		return nil, 0
	}

	endLine := strings.Count(match[0], "\n")

	var decoded any
	if err := yaml.Unmarshal([]byte(match[1]), &decoded); err != nil {
		result.AddErrorf(1, "Invalid YAML in frontmatter: %v", err)
		return nil, endLine
	}

	fm, ok := toFrontmatter(decoded)
	if !ok {
		result.AddError(1, "Frontmatter must be a YAML mapping")
		return nil, endLine
	}

	if !lenient {
		for _, field := range rs.RequiredFields {
			if !fm.Has(field) {
				result.AddErrorf(1, "Missing required frontmatter field: '%s'", field)
			}
		}
	}

	return fm, endLine
}

// toFrontmatter accepts any YAML mapping. Non-string keys are stringified.
func toFrontmatter(decoded any) (Frontmatter, bool) {
	switch m := decoded.(type) {
	case map[string]any:
		return Frontmatter(m), true
	case map[any]any:
		fm := make(Frontmatter, len(m))
		for k, v := range m {
			fm[fmt.Sprint(k)] = v
		}
		return fm, true
	default:
		return nil, false
	}
}
