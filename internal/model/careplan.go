package model

import "time"

// Provider is a prescribing provider identified by NPI.
type Provider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NPI       string    `json:"npi"`
	CreatedAt time.Time `json:"created_at"`
}

// Patient is a patient identified by a 6-digit MRN.
type Patient struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	MRN         string    `json:"mrn"`
	ProviderID  string    `json:"provider_id,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Sex         string    `json:"sex,omitempty"`
	WeightKg    *float64  `json:"weight_kg,omitempty"`
	Allergies   string    `json:"allergies,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FullName returns "First Last".
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Order is a medication order for a patient.
type Order struct {
	ID                  string    `json:"id"`
	PatientID           string    `json:"patient_id"`
	MedicationName      string    `json:"medication_name"`
	PrimaryDiagnosis    string    `json:"primary_diagnosis"`
	AdditionalDiagnoses []string  `json:"additional_diagnoses"`
	MedicationHistory   []string  `json:"medication_history"`
	CreatedAt           time.Time `json:"created_at"`
}

// CarePlan is a stored care plan with its optional source attribution.
type CarePlan struct {
	ID          string             `json:"id"`
	OrderID     string             `json:"order_id"`
	PlanText    string             `json:"plan_text"`
	GeneratedBy string             `json:"generated_by"`
	GeneratedAt time.Time          `json:"generated_at"`
	Version     int                `json:"version"`
	IsFinal     bool               `json:"is_final"`
	Attribution *SourceAttribution `json:"attribution,omitempty"`
}

// CarePlanDetail is a care plan joined with the order, patient and provider
// it was generated for.
type CarePlanDetail struct {
	CarePlan CarePlan `json:"care_plan"`
	Order    Order    `json:"order"`
	Patient  Patient  `json:"patient"`
	Provider Provider `json:"provider"`
}

// CarePlanRecord is a single row of the care-plan report listing.
type CarePlanRecord struct {
	ID          string `json:"id"`
	PatientName string `json:"patientName"`
	MRN         string `json:"mrn"`
	Provider    string `json:"provider"`
	Medication  string `json:"medication"`
	Date        string `json:"date"`
}

// GeneratedCarePlan is returned to the caller after a care plan is created.
type GeneratedCarePlan struct {
	ID           string    `json:"id"`
	PatientName  string    `json:"patientName"`
	MRN          string    `json:"mrn"`
	ProviderName string    `json:"providerName"`
	Medication   string    `json:"medication"`
	CarePlanText string    `json:"carePlanText"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// AuditEvent is an append-only audit log entry.
type AuditEvent struct {
	EventType   string `json:"event_type"`
	EntityID    string `json:"entity_id"`
	EntityType  string `json:"entity_type"`
	Description string `json:"description,omitempty"`
}

// Stats summarizes stored care plans and their attribution state.
type Stats struct {
	CarePlans  int `json:"care_plans"`
	Attributed int `json:"attributed"`
	Fallback   int `json:"fallback"`
}
