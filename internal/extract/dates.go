package extract

import (
	"regexp"
	"strings"
)

var (
	dateTimeRe      = regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}`)
	misplacedNameRe = regexp.MustCompile(`^[A-Z][A-Z\s]+$`)
)

// dateFields are the header fields holding a "dd/mm/yyyy hh:mm" timestamp, in
// the order they are printed on the report.
var dateFields = []Field{FieldRequestedDate, FieldCollectedDate, FieldAnalysisDate}

// dateContext is the lower-case keyword that marks a line as belonging to a date field
var dateContext = map[Field]string{
	FieldRequestedDate: "request",
	FieldCollectedDate: "collect",
	FieldAnalysisDate:  "analysis",
}

type datedLine struct {
	date    string
	context string
}

// findDateForField recovers the timestamp of a date field from the whole
// text: a date on a line naming the field wins, otherwise dates are assigned
// by their print order (requested, collected, analysis).
func findDateForField(f Field, lines []Line) string {
	var all []datedLine
	for _, l := range lines {
		for _, d := range dateTimeRe.FindAllString(l.Text, -1) {
			all = append(all, datedLine{date: d, context: strings.ToLower(l.Text)})
		}
	}

	keyword := dateContext[f]
	for _, d := range all {
		if keyword != "" && strings.Contains(d.context, keyword) {
			return d.date
		}
	}

	if len(all) == 0 {
		return ""
	}
	switch f {
	case FieldRequestedDate:
		return all[0].date
	case FieldCollectedDate:
		if len(all) > 1 {
			return all[1].date
		}
	case FieldAnalysisDate:
		if len(all) > 2 {
			return all[2].date
		}
		return all[len(all)-1].date
	}
	return ""
}

// looksLikeName matches the all-caps patient names the structural pass
// sometimes attaches to a neighbouring date label.
func looksLikeName(value string) bool {
	return misplacedNameRe.MatchString(value) &&
		!strings.ContainsAny(value, "0123456789") &&
		!strings.Contains(value, "Dr.")
}

// relocateMisplacedName moves a name found under a date label into the name
// field. The date label then gets a date recovered from context, or is deleted
// when none can be found.
func relocateMisplacedName(fm FieldMap, vocab *Vocabulary, lines []Line) bool {
	nameKey := vocab.Group(FieldName).Primary()
	for _, f := range dateFields {
		for _, alias := range vocab.Group(f) {
			value, ok := fm[alias]
			if !ok || !looksLikeName(value) {
				continue
			}
			fm[nameKey] = strings.TrimSpace(value)
			if d := findDateForField(f, lines); d != "" {
				fm[alias] = d
			} else {
				delete(fm, alias)
			}
			return true
		}
	}
	return false
}
