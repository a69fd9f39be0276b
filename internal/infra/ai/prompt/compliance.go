package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// SystemPrompt gives strict directions and the finding schema.
func SystemPrompt() string {
	return `You are a chartered building-compliance engineer reviewing construction documents against building regulations. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object with a "findings" array.
- One finding per requirement you assessed. requirement_id is a short stable identifier such as "B1-escape-width".
- is_compliant is true only when the document clearly demonstrates compliance.
- confidence is a number between 0.0 and 1.0 describing how certain you are of is_compliant.
- evidence quotes or references the document. When a requirement concerns a measurable quantity, set value and unit (for example 1100 and "mm").
- Do not invent content the document does not contain; missing information is an issue, not evidence.

Schema (example with empty values):
{
  "findings": [
    {
      "requirement_id": "<string>",
      "requirement_title": "<string>",
      "is_compliant": true,
      "confidence": 0.0,
      "evidence": "<string>",
      "evidence_pointers": ["<section or page>"],
      "value": 0,
      "unit": "<string>",
      "issues": ["<string>"],
      "recommendations": ["<string>"]
    }
  ]
}`
}

// UserPrompt builds the per-analyzer message around the document text.
func UserPrompt(req domain.AnalyzerRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %s revision %d.\n", req.DocumentID, req.Revision)
	if len(req.Disciplines) > 0 {
		tags := make([]string, len(req.Disciplines))
		for i, d := range req.Disciplines {
			tags[i] = string(d)
		}
		fmt.Fprintf(&b, "Assess only these disciplines: %s.\n", strings.Join(tags, ", "))
	}
	if len(req.Regulations) > 0 {
		fmt.Fprintf(&b, "Regulations in scope:\n- %s\n", strings.Join(req.Regulations, "\n- "))
	}
	if req.Instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", req.Instructions)
	}
	m := req.Metadata
	if m.HeightMeters > 0 || m.Storeys > 0 || m.OccupancyType != "" {
		fmt.Fprintf(&b, "Building: height %.1f m, %d storeys, occupancy %q.\n", m.HeightMeters, m.Storeys, m.OccupancyType)
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(req.Text)
	b.WriteString("\n\nRespond with the JSON per schema.")
	return b.String()
}

// Request assembles the completion request for one analyzer.
func Request(model string, req domain.AnalyzerRequest) ai.CompletionRequest {
	return ai.CompletionRequest{Model: model, System: SystemPrompt(), User: UserPrompt(req)}
}

type findingsEnvelope struct {
	Findings []domain.RawFinding `json:"findings"`
}

// ParseFindings decodes a completion into raw findings. It accepts the schema object, a bare array,
// and output wrapped in markdown code fences.
func ParseFindings(completion string) ([]domain.RawFinding, error) {
	text := stripFences(strings.TrimSpace(completion))
	if text == "" {
		return nil, ai.ErrEmptyCompletion
	}
	if strings.HasPrefix(text, "[") {
		var raws []domain.RawFinding
		if err := json.Unmarshal([]byte(text), &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
		}
		return raws, nil
	}
	var env findingsEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	if env.Findings == nil {
		return nil, fmt.Errorf("%w: no findings array", domain.ErrMalformedOutput)
	}
	return env.Findings, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
