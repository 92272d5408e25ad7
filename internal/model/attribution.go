package model

import "time"

// AttributionType categorizes the evidence backing a care-plan statement.
type AttributionType string

const (
	AttributionPatientData       AttributionType = "patient_data"
	AttributionClinicalReasoning AttributionType = "clinical_reasoning"
	AttributionStandardPractice  AttributionType = "standard_practice"
	AttributionMixed             AttributionType = "mixed"
)

// DefaultAttributionType is assigned to statements the model left untyped.
const DefaultAttributionType = AttributionClinicalReasoning

// Valid reports whether t is one of the known attribution types.
func (t AttributionType) Valid() bool {
	switch t {
	case AttributionPatientData, AttributionClinicalReasoning, AttributionStandardPractice, AttributionMixed:
		return true
	default:
		return false
	}
}

// SourceAttribution maps every statement of a generated care plan to the
// evidence that supports it.
type SourceAttribution struct {
	Sections    []AttributionSection `json:"sections" yaml:"sections"`
	GeneratedAt time.Time            `json:"generated_at" yaml:"generated_at"`
	ModelUsed   string               `json:"model_used" yaml:"model_used"`
}

// AttributionSection groups statements under a care-plan heading. Names are
// not unique: chunked generation may emit the same heading more than once.
type AttributionSection struct {
	Section    string                 `json:"section" yaml:"section"`
	Statements []AttributionStatement `json:"statements" yaml:"statements"`
}

// AttributionStatement is a single care-plan sentence and its sources.
type AttributionStatement struct {
	Statement       string          `json:"statement" yaml:"statement"`
	Sources         []string        `json:"sources" yaml:"sources"`
	AttributionType AttributionType `json:"attribution_type" yaml:"attribution_type"`
}

// StatementCount returns the total number of statements across all sections.
func (a *SourceAttribution) StatementCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, s := range a.Sections {
		n += len(s.Statements)
	}
	return n
}

// Fallback document contents, used when the model output cannot be recovered.
const (
	FallbackSection   = "Attribution Analysis Unavailable"
	FallbackStatement = "Source attribution could not be generated due to technical issues"
	FallbackSource    = "LLM response was incomplete or malformed - manual review recommended"
)

// IsFallback reports whether a is the placeholder document produced when
// attribution could not be generated.
func (a *SourceAttribution) IsFallback() bool {
	return a != nil && len(a.Sections) == 1 && a.Sections[0].Section == FallbackSection
}
