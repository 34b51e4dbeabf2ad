package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FieldMap maps a raw label, exactly as it appeared in the OCR text, to its value
type FieldMap map[string]string

// Clone returns an independent copy
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// setOnce records a value unless the label already has one
func (m FieldMap) setOnce(label, value string) bool {
	if _, exists := m[label]; exists {
		return false
	}
	m[label] = value
	return true
}

// scatteredLookahead is how many unconsumed lines a key line may look ahead for its value
const scatteredLookahead = 3

// PhoneFilter recognizes the hospital's own contact numbers
type PhoneFilter struct {
	literals []string
	digits   []string
}

// NewPhoneFilter creates a filter for the given hospital numbers
func NewPhoneFilter(numbers []string) *PhoneFilter {
	f := &PhoneFilter{}
	for _, n := range numbers {
		n = norm.NFC.String(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		f.literals = append(f.literals, n)
		if d := digitsOnly(n); d != "" {
			f.digits = append(f.digits, d)
		}
	}
	return f
}

// IsHospital reports whether value contains one of the hospital numbers,
// with or without the letterhead spacing.
func (f *PhoneFilter) IsHospital(value string) bool {
	for _, l := range f.literals {
		if strings.Contains(value, l) {
			return true
		}
	}
	d := digitsOnly(value)
	if d == "" {
		return false
	}
	for _, h := range f.digits {
		if strings.Contains(d, h) {
			return true
		}
	}
	return false
}

// Numbers returns the configured literal numbers
func (f *PhoneFilter) Numbers() []string {
	return append([]string(nil), f.literals...)
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// PairExtractor discovers label/value pairs inside the header window
type PairExtractor struct {
	vocab  *Vocabulary
	phones *PhoneFilter
}

// NewPairExtractor creates a pair extractor
func NewPairExtractor(vocab *Vocabulary, phones *PhoneFilter) *PairExtractor {
	return &PairExtractor{vocab: vocab, phones: phones}
}

type scanState int

const (
	stateScan scanState = iota // looking for a key line or an inline pair
	stateSeek                  // a bare key line was seen, looking ahead for its ":value" line
)

// pairScan is the state of one pass over the header window
type pairScan struct {
	state    scanState
	cursor   int // next line to examine in stateScan
	key      string
	keyLine  int
	probe    int // next line to examine in stateSeek
	budget   int // unconsumed lines left to examine in stateSeek
	consumed map[int]bool
}

// Extract returns the pairs found in lines[w.Start:w.End]. Both the inline
// form ("Label: value") and the scattered form (a bare label line followed,
// within a few lines, by a ":value" line) are recognized.
func (e *PairExtractor) Extract(lines []Line, w HeaderWindow) FieldMap {
	fm := make(FieldMap)
	s := &pairScan{
		state:    stateScan,
		cursor:   w.Start,
		consumed: make(map[int]bool),
	}

	for s.cursor < w.End {
		switch s.state {
		case stateScan:
			i := s.cursor
			text := lines[i].Text
			switch {
			case s.consumed[i], strings.HasPrefix(text, ":"):
				s.cursor++
			case e.vocab.IsLabel(text):
				s.state = stateSeek
				s.key, s.keyLine = text, i
				s.probe, s.budget = i+1, scatteredLookahead
			default:
				if e.inline(fm, text) {
					s.consumed[i] = true
				}
				s.cursor++
			}

		case stateSeek:
			if s.probe >= w.End || s.budget == 0 {
				s.resume()
				continue
			}
			j := s.probe
			if s.consumed[j] {
				s.probe++
				continue
			}
			text := lines[j].Text
			switch {
			case strings.HasPrefix(text, ":"):
				s.consumed[j] = true
				value := strings.TrimSpace(text[1:])
				if value != "" && e.accept(s.key, value) && fm.setOnce(s.key, value) {
					s.consumed[s.keyLine] = true
				}
				s.resume()
			case e.vocab.IsLabel(text):
				s.resume()
			default:
				s.budget--
				s.probe++
			}
		}
	}

	return fm
}

// resume returns to scanning right after the key line
func (s *pairScan) resume() {
	s.state = stateScan
	s.cursor = s.keyLine + 1
}

// inline records every "label: value" pair on a single line. A value running
// into another known label is cut there and the remainder parsed as the next pair.
func (e *PairExtractor) inline(fm FieldMap, text string) bool {
	found := false
	for text != "" {
		key, value, ok := e.splitInline(text)
		if !ok {
			break
		}
		text = ""
		if idx := e.vocab.IndexLabel(value); idx > 0 {
			value, text = strings.TrimSpace(value[:idx]), value[idx:]
		}
		value = strings.TrimFunc(value, isValueTrim)
		if key == "" || value == "" || !e.accept(key, value) {
			continue
		}
		if fm.setOnce(key, value) {
			found = true
		}
	}
	return found
}

// splitInline splits at the first colon, or at the colon following a known
// label when the label itself contains one (e.g. "in:/Name").
func (e *PairExtractor) splitInline(text string) (key, value string, ok bool) {
	if label, rest, found := e.vocab.CutLabel(text); found {
		rest = strings.TrimSpace(rest)
		if strings.HasPrefix(rest, ":") {
			return label, strings.TrimSpace(rest[1:]), true
		}
	}

	idx := strings.Index(text, ":")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:]), true
}

// accept rejects letterhead phone numbers recorded under a phone label
func (e *PairExtractor) accept(key, value string) bool {
	if f, ok := e.vocab.FieldOf(key); ok && f == FieldPhone {
		return !e.phones.IsHospital(value)
	}
	return true
}

func isValueTrim(r rune) bool {
	return unicode.IsSpace(r) || r == ':'
}
