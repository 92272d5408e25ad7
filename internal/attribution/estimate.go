package attribution

import "unicode/utf8"

// charsPerToken is the calibrated ratio for clinical prose.
const charsPerToken = 3.5

// EstimateTokens approximates the number of LLM tokens in text as
// ceil(runes / 3.5). It only drives the single-call versus chunked routing.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	// ceil(n/3.5) == ceil(2n/7)
	return (2*n + 6) / 7
}
