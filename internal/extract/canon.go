package extract

import (
	"sort"
	"strings"

	"github.com/ppiankov/labtext/internal/model"
)

// unitSpellings maps the unit tokens seen in reports to their canonical form
var unitSpellings = map[string]string{
	"mg/dL":   "mg/dL",
	"g/dL":    "g/dL",
	"g/L":     "g/L",
	"mg/L":    "mg/L",
	"mmol/L":  "mmol/L",
	"µmol/L":  "µmol/L",
	"umol/L":  "µmol/L",
	"U/L":     "U/L",
	"IU/L":    "U/L",
	"mIU/mL":  "mIU/mL",
	"µIU/mL":  "µIU/mL",
	"uIU/mL":  "µIU/mL",
	"ng/dL":   "ng/dL",
	"ng/mL":   "ng/mL",
	"10^3/uL": "10^3/uL",
	"10^3/µL": "10^3/uL",
	"10^6/uL": "10^6/uL",
	"10^6/µL": "10^6/uL",
	"fL":      "fL",
	"pg":      "pg",
	"%":       "%",
	"sec":     "sec",
	"s":       "sec",
	"mm/h":    "mm/h",
	"mm/hr":   "mm/h",
}

var canonicalUnits = func() map[string]string {
	m := make(map[string]string, len(unitSpellings))
	for spelling, canonical := range unitSpellings {
		m[strings.ToLower(spelling)] = canonical
	}
	return m
}()

// qualitativeSpellings folds OCR variants of qualitative results
var qualitativeSpellings = map[string]string{
	"NONREACTIVE":  "NON-REACTIVE",
	"NON REACTIVE": "NON-REACTIVE",
}

// Canonicalizer turns raw rows into test results using the default table
type Canonicalizer struct {
	table *Table
}

// NewCanonicalizer creates a canonicalizer backed by table
func NewCanonicalizer(table *Table) *Canonicalizer {
	return &Canonicalizer{table: table}
}

// Canonicalize resolves names within the row's category and fills empty unit, range and result from the
// table. Captured values always win over defaults. The output is sorted by
// (category, test name).
func (c *Canonicalizer) Canonicalize(rows []RawRow) []model.TestResult {
	results := make([]model.TestResult, 0, len(rows))
	for _, row := range rows {
		tr := model.TestResult{
			Category:       row.Category,
			TestName:       collapseSpaces(row.Name),
			Result:         canonicalResult(row.Result),
			Flag:           row.Flag,
			Unit:           canonicalUnit(row.Unit),
			ReferenceRange: normalizeRange(row.Range),
		}

		if def, ok := c.table.LookupIn(row.Category, row.Name); ok {
			tr.TestName = def.Name
			if tr.Unit == "" {
				tr.Unit = canonicalUnit(def.Unit)
			}
			if tr.ReferenceRange == "" {
				tr.ReferenceRange = normalizeRange(def.Range)
			}
			if tr.Result == "" {
				tr.Result = def.Result
			}
		}

		results = append(results, tr)
	}

	SortResults(results)
	return results
}

// SortResults orders results by (category, test name), keeping input order for ties
func SortResults(results []model.TestResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Category != results[j].Category {
			return results[i].Category < results[j].Category
		}
		return results[i].TestName < results[j].TestName
	})
}

func canonicalUnit(u string) string {
	u = strings.TrimSpace(u)
	if c, ok := canonicalUnits[strings.ToLower(u)]; ok {
		return c
	}
	return u
}

func canonicalResult(r string) string {
	r = collapseSpaces(r)
	if r == "" || strings.ContainsAny(r, "0123456789") {
		return strings.ReplaceAll(r, " ", "")
	}
	r = strings.ToUpper(r)
	if c, ok := qualitativeSpellings[r]; ok {
		return c
	}
	return r
}

// rangeKeep is the set of characters a reference range keeps; '$' is the
// delimiter some report pages print between the bounds.
const rangeKeep = "0123456789 .,-:<>()$"

// normalizeRange reduces a reference range to its numeric skeleton. Ranges
// without digits are returned trimmed but otherwise untouched.
func normalizeRange(r string) string {
	if i := strings.Index(r, "\n"); i >= 0 {
		r = r[:i]
	}
	if i := strings.Index(r, "  "); i >= 0 {
		r = r[:i]
	}
	if !strings.ContainsAny(r, "0123456789") {
		return strings.TrimSpace(r)
	}

	r = strings.Map(func(c rune) rune {
		if strings.ContainsRune(rangeKeep, c) {
			return c
		}
		return -1
	}, r)
	r = collapseSpaces(r)
	r = strings.ReplaceAll(r, "( ", "(")
	r = strings.ReplaceAll(r, " )", ")")
	return strings.TrimSpace(r)
}
