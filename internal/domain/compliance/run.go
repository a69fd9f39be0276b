package compliance

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AnalyzerRequest is what one analyzer receives.
type AnalyzerRequest struct {
	DocumentID   string
	Revision     int
	TenantID     string
	Text         string
	Metadata     BuildingMetadata
	Disciplines  []Discipline
	Regulations  []string
	Instructions string
}

// RawFinding is a finding as returned by an analyzer, before validation.
// Pointer fields distinguish "missing" from zero values.
type RawFinding struct {
	RequirementID    string   `json:"requirement_id"`
	RequirementTitle string   `json:"requirement_title"`
	IsCompliant      *bool    `json:"is_compliant"`
	Confidence       *float64 `json:"confidence"`
	Evidence         string   `json:"evidence"`
	EvidencePointers []string `json:"evidence_pointers,omitempty"`
	Value            *float64 `json:"value,omitempty"`
	Unit             string   `json:"unit,omitempty"`
	Issues           []string `json:"issues"`
	Recommendations  []string `json:"recommendations"`
}

// NewRequest builds the per-analyzer request slice for doc.
func NewRequest(doc Document, d AnalyzerDescriptor, classified DisciplineSet) AnalyzerRequest {
	text := doc.Text
	if d.MaxInputChars > 0 && len(text) > d.MaxInputChars {
		cut := d.MaxInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	var tags []Discipline
	for _, t := range d.Disciplines {
		if classified.Has(t) {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, d.Disciplines...)
	}
	return AnalyzerRequest{
		DocumentID:   doc.ID,
		Revision:     doc.Revision,
		TenantID:     doc.TenantID,
		Text:         text,
		Metadata:     doc.Metadata,
		Disciplines:  tags,
		Regulations:  d.Regulations,
		Instructions: d.Instructions,
	}
}

// ToFindings validates an analyzer's whole result set. Any invalid entry rejects all of it.
func ToFindings(d AnalyzerDescriptor, raws []RawFinding) ([]Finding, error) {
	out := make([]Finding, 0, len(raws))
	for i, r := range raws {
		id := strings.TrimSpace(r.RequirementID)
		if id == "" {
			return nil, fmt.Errorf("%w: finding %d has no requirement_id", ErrMalformedOutput, i)
		}
		if r.IsCompliant == nil {
			return nil, fmt.Errorf("%w: finding %s has no is_compliant", ErrMalformedOutput, id)
		}
		if r.Confidence == nil {
			return nil, fmt.Errorf("%w: finding %s has no confidence", ErrMalformedOutput, id)
		}
		if !ValidConfidence(*r.Confidence) {
			return nil, fmt.Errorf("%w: finding %s confidence %v outside [0,1]", ErrMalformedOutput, id, *r.Confidence)
		}
		out = append(out, Finding{
			RequirementID:    id,
			RequirementTitle: r.RequirementTitle,
			AnalyzerID:       d.ID,
			Discipline:       d.Primary(),
			IsCompliant:      *r.IsCompliant,
			Confidence:       *r.Confidence,
			Evidence: Evidence{
				Text:     r.Evidence,
				Pointers: r.EvidencePointers,
				Value:    r.Value,
				Unit:     r.Unit,
			},
			Issues:          r.Issues,
			Recommendations: r.Recommendations,
		})
	}
	return out, nil
}
