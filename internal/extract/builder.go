package extract

import "github.com/ppiankov/labtext/internal/model"

// BuildRecord resolves every logical field through its alias group. Fields
// with no entry stay nil.
func BuildRecord(fm FieldMap, vocab *Vocabulary) (model.PatientInfo, model.LabInfo) {
	get := func(f Field) *string {
		v, ok := vocab.Group(f).Resolve(fm)
		if !ok {
			return nil
		}
		return &v
	}

	patient := model.PatientInfo{
		Name:      get(FieldName),
		PatientID: get(FieldPatientID),
		Age:       get(FieldAge),
		Gender:    get(FieldGender),
		Phone:     get(FieldPhone),
	}
	lab := model.LabInfo{
		LabID:         get(FieldLabID),
		RequestedBy:   get(FieldRequestedBy),
		RequestedDate: get(FieldRequestedDate),
		CollectedDate: get(FieldCollectedDate),
		AnalysisDate:  get(FieldAnalysisDate),
		ValidatedBy:   get(FieldValidatedBy),
	}
	return patient, lab
}
