package reasoning

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/kg"
)

// Uncertainty levels reported in StructuredAnswer
const (
	UncertaintyLow    = "low"
	UncertaintyMedium = "medium"
	UncertaintyHigh   = "high"
)

// PlaceholderExplanation is used when a compliance reply cannot be decoded
const PlaceholderExplanation = "The model response could not be parsed; no decision is available."

// ComplianceDecision is the model's verdict on one transaction
type ComplianceDecision struct {
	IsCompliant   *bool  `json:"is_compliant" yaml:"is_compliant"`
	Explanation   string `json:"explanation" yaml:"explanation"`
	LowConfidence bool   `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
}

// StructuredAnswer is the general QA reply shape
type StructuredAnswer struct {
	Answer            string   `json:"answer" yaml:"answer"`
	Reasoning         string   `json:"reasoning" yaml:"reasoning"`
	UsedFacts         []string `json:"used_facts" yaml:"used_facts"`
	InsufficientFacts bool     `json:"insufficient_facts" yaml:"insufficient_facts"`
	Uncertainty       string   `json:"uncertainty" yaml:"uncertainty"`
	LowConfidence     bool     `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
}

// ParseComplianceDecision decodes a compliance reply. On failure it returns
// the placeholder decision together with the decode error; the decision is
// never nil.
func ParseComplianceDecision(content string) (*ComplianceDecision, error) {
	var wire struct {
		IsCompliant json.RawMessage `json:"is_compliant"`
		Explanation string          `json:"explanation"`
	}
	if err := extractJSON(content, &wire); err != nil {
		return &ComplianceDecision{Explanation: PlaceholderExplanation, LowConfidence: true}, err
	}

	return &ComplianceDecision{
		IsCompliant: decodeLabel(wire.IsCompliant),
		Explanation: strings.TrimSpace(wire.Explanation),
	}, nil
}

// decodeLabel accepts a JSON boolean or a boolean-looking string. Anything
// else, null included, is no label.
func decodeLabel(raw json.RawMessage) *bool {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if c, ok := kg.ParseCompliance(s); ok {
			return c.Bool()
		}
	}
	return nil
}

// ParseStructuredAnswer decodes a QA reply. On failure the placeholder keeps
// the raw text as its answer and reports high uncertainty.
func ParseStructuredAnswer(content string) (*StructuredAnswer, error) {
	var answer StructuredAnswer
	if err := extractJSON(content, &answer); err != nil {
		return &StructuredAnswer{
			Answer:            strings.TrimSpace(content),
			Reasoning:         "The model response could not be parsed as JSON.",
			UsedFacts:         []string{},
			InsufficientFacts: true,
			Uncertainty:       UncertaintyHigh,
			LowConfidence:     true,
		}, err
	}

	answer.LowConfidence = false
	if answer.UsedFacts == nil {
		answer.UsedFacts = []string{}
	}
	switch u := strings.ToLower(strings.TrimSpace(answer.Uncertainty)); u {
	case UncertaintyLow, UncertaintyMedium, UncertaintyHigh:
		answer.Uncertainty = u
	default:
		answer.Uncertainty = UncertaintyMedium
	}
	return &answer, nil
}

// extractJSON decodes the first JSON object in content into v. Markdown code
// fences and prose around the object are ignored.
func extractJSON(content string, v interface{}) error {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if s == "" {
		return errors.NewMalformedInputError("empty response")
	}

	var lastErr error
	for i := strings.IndexByte(s, '{'); i >= 0; {
		dec := json.NewDecoder(bytes.NewReader([]byte(s[i:])))
		if lastErr = dec.Decode(v); lastErr == nil {
			return nil
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}

	if lastErr == nil {
		return errors.NewMalformedInputError("no JSON object in response")
	}
	return errors.Wrap(errors.Mark(lastErr, errors.ErrMalformedInput), "decode JSON response")
}
