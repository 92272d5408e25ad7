package careplan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/careplan-cli/internal/model"
)

// Drafter produces the free-text care plan for an intake form.
type Drafter interface {
	Name() string
	Draft(ctx context.Context, form *model.CarePlanForm) (string, error)
}

// TemplateDrafter renders a fixed recommendation template from the form.
type TemplateDrafter struct {
	Now func() time.Time
}

// Name implements Drafter.
func (TemplateDrafter) Name() string { return "template" }

var upper = cases.Upper(language.English)

// Draft implements Drafter.
func (d TemplateDrafter) Draft(_ context.Context, form *model.CarePlanForm) (string, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	p, dx := form.Patient, form.Diagnosis
	additional := ""
	if len(dx.AdditionalDiagnoses) > 0 {
		additional = "ADDITIONAL DIAGNOSES: " + strings.Join(dx.AdditionalDiagnoses, ", ")
	}
	history := ""
	if len(dx.MedicationHistory) > 0 {
		history = "MEDICATION HISTORY: " + strings.Join(dx.MedicationHistory, ", ")
	}

	return fmt.Sprintf(planTemplate,
		upper.String(p.FirstName), upper.String(p.LastName),
		p.MRN,
		form.Provider.ProviderName, form.Provider.ProviderNPI,
		now().Format("1/2/2006"),
		dx.PrimaryDiagnosis,
		additional,
		dx.MedicationName,
		history,
		dx.MedicationName,
	), nil
}

const planTemplate = `CARE PLAN FOR %s %s
Medical Record Number: %s
Provider: %s (NPI: %s)
Date Generated: %s

PRIMARY DIAGNOSIS: %s
%s

MEDICATION: %s
%s

CARE PLAN RECOMMENDATIONS:

1. MEDICATION MANAGEMENT
   - Monitor patient adherence to %s
   - Assess for drug interactions and side effects
   - Adjust dosage as needed based on patient response

2. PATIENT EDUCATION
   - Provide comprehensive medication counseling
   - Review proper administration techniques
   - Discuss potential side effects and when to contact provider

3. MONITORING PARAMETERS
   - Regular follow-up appointments every 3 months
   - Laboratory monitoring as indicated
   - Assessment of therapeutic response

4. LIFESTYLE MODIFICATIONS
   - Dietary counseling as appropriate
   - Exercise recommendations
   - Smoking cessation if applicable

5. CARE COORDINATION
   - Coordinate with primary care provider
   - Ensure appropriate referrals as needed
   - Maintain communication with patient's care team

FOLLOW-UP PLAN:
- Next appointment scheduled for 3 months
- Patient to contact pharmacy with any questions
- Provider to review care plan effectiveness

This care plan was generated using AI-assisted clinical decision support and should be reviewed by the healthcare provider before implementation.`
