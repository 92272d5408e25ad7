package careplan

import (
	"strconv"
	"strings"

	"github.com/sells-group/careplan-cli/internal/model"
)

// PatientRecordText renders the stored patient, diagnosis and medication data
// as the evidence text that statements are attributed against.
func PatientRecordText(p model.Patient, o model.Order) string {
	var b strings.Builder
	b.WriteString("PATIENT INFORMATION:\n")
	b.WriteString("Name: " + p.FullName() + "\n")
	b.WriteString("MRN: " + p.MRN + "\n")
	b.WriteString("Date of Birth: " + orDefault(p.DateOfBirth, "Not specified") + "\n")
	b.WriteString("Sex: " + orDefault(p.Sex, "Not specified") + "\n")
	weight := "Not specified"
	if p.WeightKg != nil && *p.WeightKg != 0 {
		weight = strconv.FormatFloat(*p.WeightKg, 'f', -1, 64) + " kg"
	}
	b.WriteString("Weight: " + weight + "\n")
	b.WriteString("Allergies: " + orDefault(p.Allergies, "None reported") + "\n")
	b.WriteString("\nDIAGNOSIS INFORMATION:\n")
	b.WriteString("Primary Diagnosis: " + o.PrimaryDiagnosis + "\n")
	b.WriteString("Additional Diagnoses: " + orDefault(strings.Join(o.AdditionalDiagnoses, ", "), "None") + "\n")
	b.WriteString("\nMEDICATION INFORMATION:\n")
	b.WriteString("Current Medication: " + o.MedicationName + "\n")
	b.WriteString("Medication History: " + orDefault(strings.Join(o.MedicationHistory, ", "), "None"))
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
