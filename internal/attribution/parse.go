package attribution

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/internal/llm"
	"github.com/sells-group/careplan-cli/internal/model"
)

// ParseResponse extracts the attribution sections from raw model output. It
// tolerates markdown fences, prose around the JSON object and truncated
// output, then validates the result against the document shape. Missing
// sources become an empty list and a missing attribution_type becomes
// clinical_reasoning. Values of the wrong type are rejected.
func ParseResponse(raw string) ([]model.AttributionSection, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, llm.ErrEmptyGeneration
	}

	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	candidate, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var tree any
	if err := json.Unmarshal([]byte(candidate), &tree); err != nil {
		return nil, eris.Wrapf(ErrParseFailure, "unmarshal: %v", err)
	}

	return projectDocument(tree)
}

// extractJSON returns the first complete JSON value starting at the first
// "{" of text. Trailing prose is discarded. Output that ends mid-value is
// repaired; any other syntax error is a parse failure.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", eris.Wrap(ErrParseFailure, "no JSON object in response")
	}

	var raw json.RawMessage
	err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", eris.Wrapf(ErrParseFailure, "decode: %v", err)
	}

	if fixed, ok := RepairJSON(text[start:]); ok {
		return fixed, nil
	}
	return "", eris.Wrap(ErrParseFailure, "truncated response could not be repaired")
}

func projectDocument(tree any) ([]model.AttributionSection, error) {
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, eris.Wrap(ErrInvalidShape, "top-level value is not an object")
	}
	raw, ok := obj["sections"]
	if !ok {
		return nil, eris.Wrap(ErrInvalidShape, "missing sections array")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, eris.Wrap(ErrInvalidShape, "sections is not an array")
	}

	sections := make([]model.AttributionSection, 0, len(items))
	for i, item := range items {
		sec, err := projectSection(item)
		if err != nil {
			return nil, eris.Wrapf(err, "sections[%d]", i)
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func projectSection(v any) (model.AttributionSection, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.AttributionSection{}, eris.Wrap(ErrInvalidShape, "section is not an object")
	}
	name, ok := obj["section"].(string)
	if !ok {
		return model.AttributionSection{}, eris.Wrap(ErrInvalidShape, "section name is not a string")
	}

	sec := model.AttributionSection{Section: name, Statements: []model.AttributionStatement{}}

	raw, present := obj["statements"]
	if !present || raw == nil {
		return sec, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return model.AttributionSection{}, eris.Wrap(ErrInvalidShape, "statements is not an array")
	}
	for i, item := range items {
		st, err := projectStatement(item)
		if err != nil {
			return model.AttributionSection{}, eris.Wrapf(err, "statements[%d]", i)
		}
		sec.Statements = append(sec.Statements, st)
	}
	return sec, nil
}

func projectStatement(v any) (model.AttributionStatement, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.AttributionStatement{}, eris.Wrap(ErrInvalidShape, "statement is not an object")
	}
	text, ok := obj["statement"].(string)
	if !ok {
		return model.AttributionStatement{}, eris.Wrap(ErrInvalidShape, "statement text is not a string")
	}

	st := model.AttributionStatement{
		Statement:       text,
		Sources:         []string{},
		AttributionType: model.DefaultAttributionType,
	}

	if raw, present := obj["sources"]; present && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return model.AttributionStatement{}, eris.Wrap(ErrInvalidShape, "sources is not an array")
		}
		for i, item := range items {
			src, ok := item.(string)
			if !ok {
				return model.AttributionStatement{}, eris.Wrapf(ErrInvalidShape, "sources[%d] is not a string", i)
			}
			st.Sources = append(st.Sources, src)
		}
	}

	if raw, present := obj["attribution_type"]; present && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return model.AttributionStatement{}, eris.Wrap(ErrInvalidShape, "attribution_type is not a string")
		}
		if s != "" {
			t := model.AttributionType(s)
			if !t.Valid() {
				return model.AttributionStatement{}, eris.Wrapf(ErrInvalidShape, "unknown attribution_type %q", s)
			}
			st.AttributionType = t
		}
	}

	return st, nil
}
