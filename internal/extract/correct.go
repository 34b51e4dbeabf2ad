package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// knownTechnicians are the validating technicians printed on the report
// footer, matched directly when no validation label was paired.
var knownTechnicians = []string{
	"ហុក ម៉េងឆាយ",
	"SREYNEANG - B.Sc",
	"ផាន ឡាទី",
}

// correctionOrder is the order fields are visited by the correction pass
var correctionOrder = []Field{
	FieldName, FieldPatientID, FieldAge, FieldGender, FieldPhone,
	FieldLabID, FieldRequestedBy, FieldRequestedDate, FieldCollectedDate, FieldAnalysisDate, FieldValidatedBy,
}

const (
	// colon required, optionally on the next line
	labelColon = `(?:[ \t]*\n)?[ \t]*:[ \t]*`
	// colon optional, optionally on the next line
	labelColonOpt = `[ \t]*(?:\n[ \t]*)?:?[ \t]*`
	dateTimeGroup = `(\d{2}/\d{2}/\d{4}[ \t]+\d{2}:\d{2})`
)

// rangeNoteRe matches what follows "Male" in a reference range note such as "Male: 13-17"
var rangeNoteRe = regexp.MustCompile(`^[ \t]*[:=]?[ \t]*[<>(]?[ \t]*\d`)

// Corrector is the pattern-based fallback pass for fields the structural
// pass left unresolved. It only ever fills absent fields; the one exception
// is a name found under a date label, which is moved to the name field.
type Corrector struct {
	vocab       *Vocabulary
	phones      *PhoneFilter
	patterns    map[Field]*regexp.Regexp
	genderLabel *regexp.Regexp
}

// NewCorrector compiles one pattern per logical field
func NewCorrector(vocab *Vocabulary, phones *PhoneFilter) *Corrector {
	label := func(f Field) string {
		return labelAlternation(vocab.Group(f))
	}

	return &Corrector{
		vocab:       vocab,
		phones:      phones,
		genderLabel: regexp.MustCompile(label(FieldGender) + labelColonOpt + `((?i:female|male))\b`),
		patterns: map[Field]*regexp.Regexp{
			FieldName:          regexp.MustCompile(label(FieldName) + `(?:` + labelColon + `|[ \t]+)([\p{L}\p{M}][\p{L}\p{M} .'-]*)`),
			FieldPatientID:     regexp.MustCompile(`\b(PT\d+)`),
			FieldAge:           regexp.MustCompile(`:[ \t]*(\d{1,3}[ \t]*Y(?:[ \t]*,?[ \t]*\d{1,2}[ \t]*M)?(?:[ \t]*,?[ \t]*\d{1,2}[ \t]*D)?)`),
			FieldGender:        regexp.MustCompile(`(?i)\b(male|female)\b`),
			FieldPhone:         regexp.MustCompile(`(?:` + label(FieldPhone) + `[ \t]*:?|:)[ \t]*(0\d{8,9})\b`),
			FieldLabID:         regexp.MustCompile(`\b(LT\d+)`),
			FieldRequestedBy:   regexp.MustCompile(label(FieldRequestedBy) + labelColon + `([^\n]+)`),
			FieldRequestedDate: regexp.MustCompile(label(FieldRequestedDate) + labelColonOpt + dateTimeGroup),
			FieldCollectedDate: regexp.MustCompile(label(FieldCollectedDate) + labelColonOpt + dateTimeGroup),
			FieldAnalysisDate:  regexp.MustCompile(label(FieldAnalysisDate) + labelColonOpt + dateTimeGroup),
			FieldValidatedBy:   regexp.MustCompile(technicianPattern(knownTechnicians)),
		},
	}
}

// Correct returns a corrected copy of fm and the fields that could not be
// recovered. fm itself is not modified. Running Correct on its own output
// changes nothing.
func (c *Corrector) Correct(fm FieldMap, lines []Line) (FieldMap, []string) {
	out := fm.Clone()
	text := JoinLines(lines)
	var failed []string

	if !c.vocab.Group(FieldName).Present(out) {
		relocateMisplacedName(out, c.vocab, lines)
	}

	for _, f := range correctionOrder {
		group := c.vocab.Group(f)
		if group.Present(out) {
			continue
		}
		value, ok := c.recover(f, text)
		if !ok {
			failed = append(failed, string(f))
			continue
		}
		out[group.Primary()] = value
	}

	return out, failed
}

// recover runs the field's pattern over the whole text
func (c *Corrector) recover(f Field, text string) (string, bool) {
	re := c.patterns[f]
	if re == nil {
		return "", false
	}

	switch f {
	case FieldPhone:
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !c.phones.IsHospital(m[1]) {
				return m[1], true
			}
		}
		return "", false

	case FieldName:
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return c.cleanName(m[1])

	case FieldGender:
		if m := c.genderLabel.FindStringSubmatch(text); m != nil {
			return titleCase(m[1]), true
		}
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if rangeNoteRe.MatchString(text[loc[1]:]) {
				continue
			}
			return titleCase(text[loc[2]:loc[3]]), true
		}
		return "", false

	case FieldRequestedBy:
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		value := m[1]
		if idx := c.vocab.IndexLabel(value); idx > 0 {
			value = value[:idx]
		}
		value = strings.TrimSpace(value)
		return value, value != ""

	default:
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		value := strings.TrimSpace(m[1])
		return value, value != ""
	}
}

// cleanName cuts a captured letter run at the next label and trims punctuation
func (c *Corrector) cleanName(raw string) (string, bool) {
	if _, _, isLabel := c.vocab.CutLabel(raw); isLabel {
		return "", false
	}
	if idx := c.vocab.IndexLabel(raw); idx > 0 {
		raw = raw[:idx]
	}
	name := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '-' || r == '\''
	})
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return "", false
	}
	return name, true
}

// labelAlternation builds a non-capturing alternation of literal labels
func labelAlternation(group AliasGroup) string {
	quoted := make([]string, 0, len(group))
	for _, alias := range group {
		quoted = append(quoted, regexp.QuoteMeta(alias))
	}
	return `(?:` + strings.Join(quoted, "|") + `)`
}

// technicianPattern matches any known technician name with flexible spacing
func technicianPattern(names []string) string {
	alts := make([]string, 0, len(names))
	for _, name := range names {
		parts := strings.Fields(norm.NFC.String(name))
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alts = append(alts, strings.Join(parts, `\s*`))
	}
	return `(` + strings.Join(alts, "|") + `)`
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
