package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labtext/internal/model"
)

func TestCanonicalizer_DefaultFill(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{{Category: "BIOCHEMISTRY", Name: "Creatinine, serum"}})

	require.Len(t, results, 1)
	assert.Equal(t, model.TestResult{
		Category:       "BIOCHEMISTRY",
		TestName:       "Creatinine",
		Result:         "0.9",
		Unit:           "mg/dL",
		ReferenceRange: "(0.9 - 1.1)",
	}, results[0])
}

func TestCanonicalizer_CapturedValuesWin(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{{
		Category: "BIOCHEMISTRY",
		Name:     "creatinine serum",
		Result:   "1.4",
		Flag:     "H",
		Unit:     "MG/DL",
		Range:    "(0.7 - 1.2 mg)",
	}})

	require.Len(t, results, 1)
	assert.Equal(t, "Creatinine", results[0].TestName)
	assert.Equal(t, "1.4", results[0].Result)
	assert.Equal(t, "H", results[0].Flag)
	assert.Equal(t, "mg/dL", results[0].Unit)
	assert.Equal(t, "(0.7 - 1.2)", results[0].ReferenceRange)
}

func TestCanonicalizer_QualitativeResults(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{
		{Category: "SEROLOGY / IMMUNOLOGY", Name: "HIV", Result: "non reactive"},
		{Category: "DRUG URINE", Name: "THC"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "Marijuana", results[0].TestName)
	assert.Equal(t, "NEGATIVE", results[0].Result)
	assert.Equal(t, "HIV 1/2", results[1].TestName)
	assert.Equal(t, "NON-REACTIVE", results[1].Result)
}

func TestCanonicalizer_UrineRowsUseUrineDefaults(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{
		{Category: "URINE ANALYSIS", Name: "Glucose", Result: "NEGATIVE"},
		{Category: "URINE ANALYSIS", Name: "Protein", Result: "NEGATIVE"},
		{Category: "BIOCHEMISTRY", Name: "Glucose", Result: "95"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, model.TestResult{Category: "BIOCHEMISTRY", TestName: "Glucose", Result: "95", Unit: "mg/dL", ReferenceRange: "(70 - 110)"}, results[0])
	assert.Equal(t, model.TestResult{Category: "URINE ANALYSIS", TestName: "Urine Glucose", Result: "NEGATIVE"}, results[1])
	assert.Equal(t, model.TestResult{Category: "URINE ANALYSIS", TestName: "Urine Protein", Result: "NEGATIVE"}, results[2])
}

func TestCanonicalizer_UnknownNameKept(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{{Category: "HEMATOLOGY", Name: "Reticulocytes  count", Result: "1.2"}})

	require.Len(t, results, 1)
	assert.Equal(t, "Reticulocytes count", results[0].TestName)
	assert.Empty(t, results[0].Unit)
}

func TestCanonicalizer_SortedByCategoryThenName(t *testing.T) {
	c := NewCanonicalizer(DefaultTable())

	results := c.Canonicalize([]RawRow{
		{Category: "HEMATOLOGY", Name: "WBC", Result: "6"},
		{Category: "BIOCHEMISTRY", Name: "Urea", Result: "30"},
		{Category: "HEMATOLOGY", Name: "Hemoglobin", Result: "13"},
		{Category: "BIOCHEMISTRY", Name: "Glucose", Result: "95"},
		{Category: "DRUG URINE", Name: "Morphine"},
	})

	require.Len(t, results, 5)
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		ordered := prev.Category < cur.Category ||
			(prev.Category == cur.Category && prev.TestName <= cur.TestName)
		assert.True(t, ordered, "%v before %v", prev, cur)
	}
	assert.Equal(t, "Glucose", results[0].TestName)
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(0.9 - 1.1)", "(0.9 - 1.1)"},
		{" ( 70 - 110 mg/dL ) ", "(70 - 110)"},
		{"(< 200)", "(< 200)"},
		{"(4.0 - 10.0)\nnoise", "(4.0 - 10.0)"},
		{"(3.5 - 5.0)   page 2", "(3.5 - 5.0)"},
		{"M: 0.7-1.2", ": 0.7-1.2"},
		{"(10$20)", "(10$20)"},
		{"NEGATIVE", "NEGATIVE"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRange(tt.in), "input %q", tt.in)
	}
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(`
tests:
  - name: Glucose
    aliases: ["FBS", "Glucose, fasting"]
    unit: mg/dL
  - name: Urea
`))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	def, ok := table.Lookup("glucose   FASTING")
	require.True(t, ok)
	assert.Equal(t, "Glucose", def.Name)
	assert.Equal(t, "mg/dL", def.Unit)

	_, ok = table.Lookup("Creatinine")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"Glucose", "FBS", "Glucose, fasting", "Urea"}, table.Names())
	assert.Contains(t, table.Units(), "mg/dL")
}

func TestTable_LookupInCategory(t *testing.T) {
	table, err := ParseTable([]byte(`
tests:
  - name: Glucose
    unit: mg/dL
  - name: Urine Glucose
    category: urine  analysis
    aliases: [Glucose]
`))
	require.NoError(t, err)

	def, ok := table.LookupIn("URINE ANALYSIS", "glucose")
	require.True(t, ok)
	assert.Equal(t, "Urine Glucose", def.Name)

	def, ok = table.LookupIn("BIOCHEMISTRY", "glucose")
	require.True(t, ok)
	assert.Equal(t, "Glucose", def.Name)

	def, ok = table.Lookup("Glucose")
	require.True(t, ok)
	assert.Equal(t, "Glucose", def.Name)

	def, ok = table.LookupIn("BIOCHEMISTRY", "Urine Glucose")
	require.True(t, ok)
	assert.Equal(t, "Urine Glucose", def.Name)

	_, err = ParseTable([]byte(`
tests:
  - name: Urine Glucose
    category: URINE ANALYSIS
  - name: Sugar
    category: URINE ANALYSIS
    aliases: [urine glucose]
`))
	assert.Error(t, err)
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable([]byte(`tests: []`))
	assert.Error(t, err)

	_, err = ParseTable([]byte(`tests: [{name: ""}]`))
	assert.Error(t, err)

	_, err = ParseTable([]byte(`
tests:
  - name: Glucose
  - name: Sugar
    aliases: [glucose]
`))
	assert.Error(t, err)

	_, err = ParseTable([]byte(`tests: {`))
	assert.Error(t, err)
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	require.Greater(t, table.Len(), 40)

	for _, name := range []string{"Creatinine", "WBC", "Morphine", "HBsAg", "Prothrombin Time", "Specific Gravity"} {
		_, ok := table.Lookup(name)
		assert.True(t, ok, "missing %s", name)
	}
}
