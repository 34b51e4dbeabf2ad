package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Field is a logical record field, independent of how its label is spelled in the OCR text
type Field string

const (
	FieldName      Field = "name"
	FieldPatientID Field = "patientId"
	FieldAge       Field = "age"
	FieldGender    Field = "gender"
	FieldPhone     Field = "phone"

	FieldLabID         Field = "labId"
	FieldRequestedBy   Field = "requestedBy"
	FieldRequestedDate Field = "requestedDate"
	FieldCollectedDate Field = "collectedDate"
	FieldAnalysisDate  Field = "analysisDate"
	FieldValidatedBy   Field = "validatedBy"
)

// PatientFields and LabFields list the logical fields in output order
var (
	PatientFields = []Field{FieldName, FieldPatientID, FieldAge, FieldGender, FieldPhone}
	LabFields     = []Field{FieldLabID, FieldRequestedBy, FieldRequestedDate, FieldCollectedDate, FieldAnalysisDate, FieldValidatedBy}
)

// AliasGroup is an ordered list of raw label spellings for one logical field.
// Earlier entries win when several are present.
type AliasGroup []string

// Resolve returns the value of the first alias that has an entry in fm
func (g AliasGroup) Resolve(fm FieldMap) (string, bool) {
	for _, alias := range g {
		if v, ok := fm[alias]; ok {
			return v, true
		}
	}
	return "", false
}

// Present reports whether any alias of the group has an entry in fm
func (g AliasGroup) Present(fm FieldMap) bool {
	_, ok := g.Resolve(fm)
	return ok
}

// Primary is the alias used as the key when a value is written by correction
func (g AliasGroup) Primary() string {
	if len(g) == 0 {
		return ""
	}
	return g[0]
}

// The report template prints Khmer/English bilingual labels; OCR renders the
// Khmer half in several code point sequences, so each field carries every
// spelling seen in the wild. Plain English spellings come last.
var defaultAliasGroups = map[Field]AliasGroup{
	FieldName:      {"ឈោ្មះ/Name", "in:/Name", "nin:/Name", "Name"},
	FieldPatientID: {"Patient ID"},
	FieldAge:       {"အာဿြ/Age", "អាយុ/Age", "Age"},
	FieldGender:    {"ភេទ/Gender", "ភេទ/Sex", "Gender", "Sex"},
	FieldPhone:     {"ទូរស័ព្ទ/Phone", "លេខទូរស័ព្ទ", "î₪çîñḥ", "Phone"},

	FieldLabID:         {"Lab ID"},
	FieldRequestedBy:   {"Requested By"},
	FieldRequestedDate: {"Requested Date"},
	FieldCollectedDate: {"Collected Date"},
	FieldAnalysisDate:  {"Analysis Date"},
	FieldValidatedBy:   {"Lab Technician", "Validated By", "validatedBy"},
}

// reportTitleMarker opens the body of the report on every page
const reportTitleMarker = "LABORATORY REPORT"

// Vocabulary is the read-only label knowledge shared by all pipeline stages.
// It is safe for concurrent use.
type Vocabulary struct {
	groups  map[Field]AliasGroup
	labels  map[string]Field
	ordered []string // all labels, longest first
	markers []string // upper-case section markers closing the header
}

// NewVocabulary builds a vocabulary from alias groups; labels are NFC-normalized
// so they compare equal to preprocessed lines.
func NewVocabulary(groups map[Field]AliasGroup, markers []string) *Vocabulary {
	v := &Vocabulary{
		groups: make(map[Field]AliasGroup, len(groups)),
		labels: make(map[string]Field),
	}

	for field, group := range groups {
		normalized := make(AliasGroup, 0, len(group))
		for _, alias := range group {
			alias = norm.NFC.String(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			normalized = append(normalized, alias)
			if _, exists := v.labels[alias]; !exists {
				v.labels[alias] = field
				v.ordered = append(v.ordered, alias)
			}
		}
		v.groups[field] = normalized
	}

	sort.SliceStable(v.ordered, func(i, j int) bool {
		if len(v.ordered[i]) != len(v.ordered[j]) {
			return len(v.ordered[i]) > len(v.ordered[j])
		}
		return v.ordered[i] < v.ordered[j]
	})

	for _, m := range markers {
		v.markers = append(v.markers, strings.ToUpper(m))
	}

	return v
}

var defaultVocabulary = NewVocabulary(defaultAliasGroups, defaultHeaderMarkers())

// DefaultVocabulary returns the shared vocabulary of the supported report template
func DefaultVocabulary() *Vocabulary {
	return defaultVocabulary
}

// Group returns the alias group of a logical field
func (v *Vocabulary) Group(f Field) AliasGroup {
	return v.groups[f]
}

// IsLabel reports whether text is exactly a known label
func (v *Vocabulary) IsLabel(text string) bool {
	_, ok := v.labels[text]
	return ok
}

// FieldOf returns the logical field a raw label belongs to
func (v *Vocabulary) FieldOf(label string) (Field, bool) {
	f, ok := v.labels[label]
	return f, ok
}

// ContainsLabel reports whether any known label occurs in text
func (v *Vocabulary) ContainsLabel(text string) bool {
	for _, label := range v.ordered {
		if strings.Contains(text, label) {
			return true
		}
	}
	return false
}

// IsMarker reports whether the line opens the report body
func (v *Vocabulary) IsMarker(text string) bool {
	upper := strings.ToUpper(text)
	for _, m := range v.markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// CutLabel returns the longest known label that prefixes text and the rest of the text
func (v *Vocabulary) CutLabel(text string) (label, rest string, ok bool) {
	for _, l := range v.ordered {
		if strings.HasPrefix(text, l) {
			return l, text[len(l):], true
		}
	}
	return "", text, false
}

// IndexLabel returns the byte offset of the earliest known label that starts a
// word inside text (never offset 0), or -1.
func (v *Vocabulary) IndexLabel(text string) int {
	best := -1
	for _, l := range v.ordered {
		from := 0
		for from < len(text) {
			idx := strings.Index(text[from:], l)
			if idx < 0 {
				break
			}
			idx += from
			if idx > 0 && wordStart(text, idx) && wordEnd(text, idx+len(l)) {
				if best < 0 || idx < best {
					best = idx
				}
				break
			}
			from = idx + 1
		}
	}
	return best
}

func wordStart(text string, idx int) bool {
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

func wordEnd(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !unicode.IsLetter(r) && !unicode.IsMark(r)
}

func defaultHeaderMarkers() []string {
	markers := []string{reportTitleMarker}
	for _, h := range categoryHeadings {
		markers = append(markers, h.canonical)
	}
	return markers
}
