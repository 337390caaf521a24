package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// abbrevRule expands one whole-word abbreviation
type abbrevRule struct {
	re   *regexp.Regexp
	full string
}

// AbbrevRules handles street abbreviation expansion
type AbbrevRules struct {
	rules []abbrevRule
}

// defaultAbbreviations are the UK street and building abbreviations
var defaultAbbreviations = [][2]string{
	{"RD", "ROAD"},
	{"ST", "STREET"},
	{"AVE", "AVENUE"},
	{"AV", "AVENUE"},
	{"GDNS", "GARDENS"},
	{"CT", "COURT"},
	{"DR", "DRIVE"},
	{"LN", "LANE"},
	{"PL", "PLACE"},
	{"SQ", "SQUARE"},
	{"CRES", "CRESCENT"},
	{"TER", "TERRACE"},
	{"CL", "CLOSE"},
	{"PK", "PARK"},
	{"GRN", "GREEN"},
	{"WY", "WAY"},
	{"BLVD", "BOULEVARD"},
	{"HWY", "HIGHWAY"},
	{"APT", "APARTMENT"},
	{"FLT", "FLAT"},
	{"BLDG", "BUILDING"},
	{"HSE", "HOUSE"},
	{"CTG", "COTTAGE"},
	{"FM", "FARM"},
	{"EST", "ESTATE"},
	{"INDL", "INDUSTRIAL"},
	{"CTR", "CENTRE"},
	{"NTH", "NORTH"},
	{"STH", "SOUTH"},
	{"WST", "WEST"},
}

// NewAbbrevRules compiles the default abbreviation table
func NewAbbrevRules() *AbbrevRules {
	rules := make([]abbrevRule, 0, len(defaultAbbreviations))
	for _, pair := range defaultAbbreviations {
		rules = append(rules, abbrevRule{
			re:   regexp.MustCompile(`\b` + pair[0] + `\b`),
			full: pair[1],
		})
	}
	return &AbbrevRules{rules: rules}
}

// Expand applies abbreviation rules to upper-case text
func (ar *AbbrevRules) Expand(text string) string {
	result := text
	for _, rule := range ar.rules {
		result = rule.re.ReplaceAllString(result, rule.full)
	}
	return result
}

// Clean upper-cases s, turns punctuation into spaces and collapses runs of
// whitespace
func Clean(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))

	b := strings.Builder{}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Canonical normalizes address field values before they are compared.
// Every field is cleaned; fields listed in ExpandFields also get their
// abbreviations expanded.
type Canonical struct {
	ExpandFields map[string]bool
	rules        *AbbrevRules
}

// NewCanonical returns a normalizer expanding abbreviations in the given
// fields
func NewCanonical(expandFields ...string) *Canonical {
	fields := make(map[string]bool, len(expandFields))
	for _, f := range expandFields {
		fields[f] = true
	}
	return &Canonical{ExpandFields: fields, rules: NewAbbrevRules()}
}

// Normalize returns the canonical form of one field value
func (c *Canonical) Normalize(field, value string) string {
	s := Clean(value)
	if c.ExpandFields[field] {
		s = c.rules.Expand(s)
	}
	return s
}
