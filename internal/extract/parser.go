package extract

import (
	"time"

	"github.com/ppiankov/labtext/internal/model"
)

// Parser turns OCR text of one lab report into a structured record. The
// pipeline is synchronous and holds no per-call state, so a Parser can be
// shared between goroutines.
type Parser struct {
	vocab     *Vocabulary
	phones    *PhoneFilter
	prep      *Preprocessor
	pairs     *PairExtractor
	corrector *Corrector
	segmenter *Segmenter
	canon     *Canonicalizer
}

// Option configures a Parser
type Option func(*parserOptions)

type parserOptions struct {
	phones []string
	table  *Table
	vocab  *Vocabulary
}

// WithHospitalPhones replaces the letterhead contact numbers treated as noise
func WithHospitalPhones(numbers []string) Option {
	return func(o *parserOptions) {
		o.phones = numbers
	}
}

// WithTable replaces the built-in test default table
func WithTable(t *Table) Option {
	return func(o *parserOptions) {
		o.table = t
	}
}

// WithVocabulary replaces the built-in label vocabulary
func WithVocabulary(v *Vocabulary) Option {
	return func(o *parserOptions) {
		o.vocab = v
	}
}

// NewParser creates a parser for the supported report template
func NewParser(opts ...Option) *Parser {
	o := parserOptions{
		phones: model.DefaultHospitalPhones,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == nil {
		o.table = DefaultTable()
	}
	if o.vocab == nil {
		o.vocab = DefaultVocabulary()
	}

	phones := NewPhoneFilter(o.phones)
	return &Parser{
		vocab:     o.vocab,
		phones:    phones,
		prep:      NewPreprocessor(o.phones),
		pairs:     NewPairExtractor(o.vocab, phones),
		corrector: NewCorrector(o.vocab, phones),
		segmenter: NewSegmenter(o.table),
		canon:     NewCanonicalizer(o.table),
	}
}

// Analysis exposes every intermediate stage of one parse
type Analysis struct {
	Lines     []Line
	Window    HeaderWindow
	Pairs     FieldMap
	Corrected FieldMap
	Failed    []string
	Sections  []Section
	Rows      []RawRow
	Results   []model.TestResult
}

// Analyze runs all stages over text. It never fails: malformed input
// degrades to empty fields and rows.
func (p *Parser) Analyze(text string) *Analysis {
	a := &Analysis{}
	a.Lines = p.prep.Lines(text)
	a.Window = LocateHeader(a.Lines, p.vocab)
	a.Pairs = p.pairs.Extract(a.Lines, a.Window)
	a.Corrected, a.Failed = p.corrector.Correct(a.Pairs, a.Lines)

	body := JoinLines(a.Lines)
	a.Sections = p.segmenter.Sections(body)
	a.Rows = p.segmenter.Rows(body, a.Sections)
	a.Results = p.canon.Canonicalize(a.Rows)
	return a
}

// Parse builds the record for text. Unrecovered fields are nil and listed in
// Debug.FailedPatterns.
func (p *Parser) Parse(text string) *model.ParseResult {
	start := time.Now()
	a := p.Analyze(text)
	patient, lab := BuildRecord(a.Corrected, p.vocab)

	failed := a.Failed
	if failed == nil {
		failed = []string{}
	}

	return &model.ParseResult{
		PatientInfo:    patient,
		LabInfo:        lab,
		TestResults:    a.Results,
		ProcessingTime: time.Since(start).Seconds(),
		Success:        true,
		Debug:          &model.Debug{FailedPatterns: failed},
	}
}

// Vocabulary returns the label vocabulary in use
func (p *Parser) Vocabulary() *Vocabulary {
	return p.vocab
}
