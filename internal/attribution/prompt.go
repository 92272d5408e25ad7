package attribution

import "strings"

// SystemPromptVersion identifies the revision of SystemPrompt. Bump it when
// the prompt text changes.
const SystemPromptVersion = "2"

// SystemPrompt instructs the model to map every care plan statement to its
// supporting evidence and to answer with JSON only.
const SystemPrompt = `Analyze the care plan and map each statement to its supporting evidence. Return ONLY valid JSON:

{
  "sections": [
    {
      "section": "Section Name",
      "statements": [
        {
          "statement": "Exact text",
          "sources": ["Patient Record: [data]", "Clinical Reasoning: [explanation]", "Standard Practice: [guideline]"],
          "attribution_type": "patient_data|clinical_reasoning|standard_practice|mixed"
        }
      ]
    }
  ]
}

Map ALL statements. Categorize support type. Be concise.`

const promptInstruction = "Analyze each statement. Map to patient data, clinical reasoning, or standard practice. Return JSON."

// BuildUserPrompt embeds a care plan segment and the patient record verbatim
// under fixed headers, followed by the mapping instruction.
func BuildUserPrompt(carePlanText, patientRecordText string) string {
	var b strings.Builder
	b.Grow(len(carePlanText) + len(patientRecordText) + 128)
	b.WriteString("CARE PLAN:\n")
	b.WriteString(carePlanText)
	b.WriteString("\n\nPATIENT DATA:\n")
	b.WriteString(patientRecordText)
	b.WriteString("\n\n")
	b.WriteString(promptInstruction)
	return b.String()
}
