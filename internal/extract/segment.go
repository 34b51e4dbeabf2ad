package extract

import (
	"regexp"
	"sort"
	"strings"
)

type categoryHeading struct {
	pattern   string
	canonical string
}

// categoryHeadings are the section titles of the report body, in the order
// they are tried on a line.
var categoryHeadings = []categoryHeading{
	{pattern: `BIOCHEMISTRY`, canonical: "BIOCHEMISTRY"},
	{pattern: `ENZYMOLOGY`, canonical: "ENZYMOLOGY"},
	{pattern: `SEROLOGY[ \t]*/[ \t]*IMMUNOLOGY`, canonical: "SEROLOGY / IMMUNOLOGY"},
	{pattern: `IMMUNOLOGY`, canonical: "IMMUNOLOGY"},
	{pattern: `HA?EMATOLOGY`, canonical: "HEMATOLOGY"},
	{pattern: `HEMOSTASIS`, canonical: "HEMOSTASIS"},
	{pattern: `URINE[ \t]+ANALYSIS`, canonical: "URINE ANALYSIS"},
	{pattern: `DRUG[ \t]+URINE`, canonical: "DRUG URINE"},
}

// strayTokens are column headings OCR tends to wedge between test names
var strayTokens = []string{"Reference Range", "Result", "Unit", "Test", "Flag"}

// qualitativeResults are the non-numeric result values
var qualitativeResults = []string{
	`NON[- ]?REACTIVE`, `REACTIVE`, `NEGATIVE`, `POSITIVE`, `TRACE`, `NORMAL`, `NIL`, `ABSENT`, `PRESENT`,
}

const numericResult = `[<>]?[ \t]?\d+(?:[.,]\d+)?`

// bareRange is a reference range printed without parentheses
const bareRange = `\d+(?:\.\d+)?[ \t]*-[ \t]*\d+(?:\.\d+)?`

// Section is a contiguous byte span [Start, End) of the text under one category heading
type Section struct {
	Category string
	Start    int
	End      int
}

// RawRow is one test row as captured from the body, before canonicalization
type RawRow struct {
	Category string
	Name     string
	Result   string
	Flag     string
	Unit     string
	Range    string
	Offset   int // byte offset of the row in the text
}

// Segmenter splits the report body into category sections and scans them for test rows
type Segmenter struct {
	headingRe *regexp.Regexp
	rowRe     *regexp.Regexp
	stray     map[string]bool
}

// NewSegmenter builds the heading and row patterns. The row pattern only
// accepts test names and units known to the table.
func NewSegmenter(table *Table) *Segmenter {
	groups := make([]string, 0, len(categoryHeadings))
	for _, h := range categoryHeadings {
		groups = append(groups, "("+h.pattern+")")
	}
	headingRe := regexp.MustCompile(`(?m)^[ \t]*(?:` + strings.Join(groups, "|") + `)[ \t]*:?[ \t]*$`)

	stray := make(map[string]bool)
	var strayAlts []string
	for _, t := range strayTokens {
		stray[strings.ToLower(t)] = true
		strayAlts = append(strayAlts, regexp.QuoteMeta(t))
	}
	for _, h := range categoryHeadings {
		stray[strings.ToLower(h.canonical)] = true
		strayAlts = append(strayAlts, h.pattern)
	}

	stray["haematology"] = true

	names := literalAlternation(table.Names())
	units := literalAlternation(table.Units())
	results := strings.Join(qualitativeResults, "|") + "|" + numericResult

	rowRe := regexp.MustCompile(`(?im)^[ \t]*` +
		`(` + names + `(?:[ \t]*\n[ \t]*(?:(?:` + strings.Join(strayAlts, "|") + `)[ \t]*\n[ \t]*)*` + names + `)*)` +
		`[ \t.]*:?[ \t]*` +
		`(` + results + `)?[ \t]*` +
		`((?-i:[HL]))?[ \t]*` +
		`(` + units + `)?[ \t]*` +
		`(\([^)\n]*\)|` + bareRange + `)?[ \t]*` +
		`((?-i:[HL]))?` +
		`(?:[ \t]+([^\n]*?))?[ \t]*$`)

	return &Segmenter{headingRe: headingRe, rowRe: rowRe, stray: stray}
}

// Sections returns the category sections of text in document order. They
// partition [start of first heading, len(text)); text before the first
// heading belongs to no section.
func (s *Segmenter) Sections(text string) []Section {
	matches := s.headingRe.FindAllStringSubmatchIndex(text, -1)
	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Category: headingCategory(m),
			Start:    m[0],
			End:      end,
		})
	}
	return sections
}

// headingCategory returns the canonical name of the heading group that matched
func headingCategory(m []int) string {
	for i, h := range categoryHeadings {
		if m[2+2*i] >= 0 {
			return h.canonical
		}
	}
	return ""
}

// Rows scans every section for test rows. A row whose name spans several
// lines yields one RawRow per test name, stray column labels dropped. Text
// after the captured columns (a comment, an unknown unit) is ignored.
func (s *Segmenter) Rows(text string, sections []Section) []RawRow {
	var rows []RawRow
	for _, sec := range sections {
		body := text[sec.Start:sec.End]
		for _, m := range s.rowRe.FindAllStringSubmatchIndex(body, -1) {
			group := func(n int) string {
				if m[2*n] < 0 {
					return ""
				}
				return strings.TrimSpace(body[m[2*n]:m[2*n+1]])
			}

			flag := group(3)
			if flag == "" {
				flag = group(6)
			}
			rng := group(5)
			if rng != "" && !strings.HasPrefix(rng, "(") {
				rng = "(" + rng + ")"
			}
			// trailing text is tolerated after captured values, never after a bare name
			if group(7) != "" && group(2) == "" && group(4) == "" && rng == "" {
				continue
			}

			for _, name := range s.splitNames(group(1)) {
				rows = append(rows, RawRow{
					Category: sec.Category,
					Name:     name,
					Result:   group(2),
					Flag:     flag,
					Unit:     group(4),
					Range:    rng,
					Offset:   sec.Start + m[0],
				})
			}
		}
	}
	return rows
}

func (s *Segmenter) splitNames(captured string) []string {
	var names []string
	for _, part := range strings.Split(captured, "\n") {
		part = strings.TrimSpace(part)
		if part == "" || s.stray[strings.ToLower(collapseSpaces(part))] {
			continue
		}
		names = append(names, part)
	}
	return names
}

// literalAlternation quotes items and orders them longest first, so a longer
// name is preferred over its prefix.
func literalAlternation(items []string) string {
	sorted := append([]string(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	quoted := make([]string, 0, len(sorted))
	for _, it := range sorted {
		if it == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(it))
	}
	return `(?:` + strings.Join(quoted, "|") + `)`
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
