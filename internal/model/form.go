package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PatientInfo is the patient block of the intake form.
type PatientInfo struct {
	FirstName   string   `json:"firstName" validate:"required"`
	LastName    string   `json:"lastName" validate:"required"`
	MRN         string   `json:"mrn" validate:"required,len=6,numeric"`
	DateOfBirth string   `json:"dateOfBirth,omitempty"`
	Sex         string   `json:"sex,omitempty"`
	WeightKg    *float64 `json:"weightKg,omitempty" validate:"omitempty,gt=0"`
	Allergies   string   `json:"allergies,omitempty"`
}

// ProviderInfo is the provider block of the intake form.
type ProviderInfo struct {
	ProviderName string `json:"providerName" validate:"required"`
	ProviderNPI  string `json:"providerNPI" validate:"required,len=10,numeric"`
}

// DiagnosisInfo is the diagnosis and medication block of the intake form.
type DiagnosisInfo struct {
	PrimaryDiagnosis    string   `json:"primaryDiagnosis" validate:"required"`
	AdditionalDiagnoses []string `json:"additionalDiagnoses"`
	MedicationName      string   `json:"medicationName" validate:"required"`
	MedicationHistory   []string `json:"medicationHistory"`
}

// PatientRecords holds free-text records pasted by the user.
type PatientRecords struct {
	PatientRecords string `json:"patientRecords,omitempty"`
}

// CarePlanForm is the complete intake form submitted to create a care plan.
type CarePlanForm struct {
	Patient   PatientInfo    `json:"patient"`
	Provider  ProviderInfo   `json:"provider"`
	Diagnosis DiagnosisInfo  `json:"diagnosis"`
	Records   PatientRecords `json:"records"`
}

var validate = validator.New()

// Validate checks the form's field constraints and returns a single error
// listing every violation.
func (f *CarePlanForm) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return &ValidationError{Messages: msgs}
}

// ValidationError lists intake form constraint violations.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Namespace())
	case "len":
		return fmt.Sprintf("%s must be exactly %s digits", e.Namespace(), e.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain only numbers", e.Namespace())
	default:
		return fmt.Sprintf("%s failed rule %q", e.Namespace(), e.Tag())
	}
}
