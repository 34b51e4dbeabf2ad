package model

// ParseResult is the structured record produced for one lab report document.
// Every info field is always serialized; a field that could not be recovered
// is written as null so consumers can tell "not found" from "not attempted".
type ParseResult struct {
	ID         string `json:"id,omitempty"`         // Document identifier (stable within a batch run)
	SourceFile string `json:"sourceFile,omitempty"` // Input path, empty for raw text input

	PatientInfo PatientInfo  `json:"patientInfo"`
	LabInfo     LabInfo      `json:"labInfo"`
	TestResults []TestResult `json:"testResults"` // Sorted by (category, testName)

	ProcessingTime float64 `json:"processingTime"` // Seconds, end-to-end for this document
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`

	Debug *Debug `json:"debug,omitempty"`
}

// PatientInfo holds patient demographics resolved from the report header
type PatientInfo struct {
	Name      *string `json:"name"`
	PatientID *string `json:"patientId"`
	Age       *string `json:"age"`
	Gender    *string `json:"gender"`
	Phone     *string `json:"phone"`
}

// LabInfo holds lab metadata resolved from the report header
type LabInfo struct {
	LabID         *string `json:"labId"`
	RequestedBy   *string `json:"requestedBy"`
	RequestedDate *string `json:"requestedDate"`
	CollectedDate *string `json:"collectedDate"`
	AnalysisDate  *string `json:"analysisDate"`
	ValidatedBy   *string `json:"validatedBy"`
}

// TestResult is one canonicalized row of a result table
type TestResult struct {
	Category       string `json:"category"`       // Canonical category, e.g. "BIOCHEMISTRY"
	TestName       string `json:"testName"`       // Canonical test name
	Result         string `json:"result"`         // Numeric string or qualitative value (NEGATIVE, POSITIVE, ...)
	Flag           string `json:"flag"`           // "H", "L" or empty
	Unit           string `json:"unit"`           // May be empty
	ReferenceRange string `json:"referenceRange"` // Textual, may be empty
}

// Debug carries per-document diagnostics that are not part of the record proper
type Debug struct {
	FailedPatterns []string `json:"failedPatterns"` // Logical fields the correction pass could not recover
}

// FailedResult builds a failed record for a document-level error
func FailedResult(id, sourceFile string, err error) *ParseResult {
	msg := "unknown processing error"
	if err != nil {
		msg = err.Error()
	}
	return &ParseResult{
		ID:          id,
		SourceFile:  sourceFile,
		TestResults: []TestResult{},
		Success:     false,
		Error:       msg,
		Debug:       &Debug{FailedPatterns: []string{}},
	}
}
