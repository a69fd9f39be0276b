package compliance

import (
	"encoding/json"
	"sort"
	"time"
)

// Discipline is a building-engineering domain tag (fire_safety, structural, ...).
type Discipline string

// DisciplineGeneral is the fallback tag used when classification matches nothing.
const DisciplineGeneral Discipline = "general"

// DisciplineSet is the set of disciplines produced for one document revision.
type DisciplineSet map[Discipline]struct{}

// NewDisciplineSet builds a set from tags, dropping empty ones.
func NewDisciplineSet(tags ...Discipline) DisciplineSet {
	s := make(DisciplineSet, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

func (s DisciplineSet) Has(d Discipline) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the tags in lexical order.
func (s DisciplineSet) Sorted() []Discipline {
	out := make([]Discipline, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s DisciplineSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *DisciplineSet) UnmarshalJSON(b []byte) error {
	var tags []Discipline
	if err := json.Unmarshal(b, &tags); err != nil {
		return err
	}
	*s = NewDisciplineSet(tags...)
	return nil
}

// BuildingMetadata is the structured metadata sent along with the extracted text.
type BuildingMetadata struct {
	HeightMeters  float64        `json:"height_meters,omitempty"`
	Storeys       int            `json:"storeys,omitempty"`
	OccupancyType string         `json:"occupancy_type,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Document is an immutable snapshot of one document revision.
type Document struct {
	ID       string           `json:"document_id"`
	Revision int              `json:"revision"`
	TenantID string           `json:"tenant_id,omitempty"`
	Text     string           `json:"text"`
	Metadata BuildingMetadata `json:"metadata"`
}

// Evidence backs a Finding. Value is the concrete numeric quantity when the analyzer states one.
type Evidence struct {
	Text     string   `json:"text,omitempty"`
	Pointers []string `json:"pointers,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Unit     string   `json:"unit,omitempty"`
}

// Finding is one compliance judgement for one requirement from one analyzer.
type Finding struct {
	RequirementID    string     `json:"requirement_id"`
	RequirementTitle string     `json:"requirement_title,omitempty"`
	AnalyzerID       string     `json:"analyzer_id"`
	Discipline       Discipline `json:"discipline"`
	IsCompliant      bool       `json:"is_compliant"`
	Confidence       float64    `json:"confidence"`
	Evidence         Evidence   `json:"evidence"`
	Issues           []string   `json:"issues,omitempty"`
	Recommendations  []string   `json:"recommendations,omitempty"`
}

// Key identifies a finding inside one report.
func (f Finding) Key() FindingKey {
	return FindingKey{RequirementID: f.RequirementID, AnalyzerID: f.AnalyzerID}
}

// Status is derived, never stored.
func (f Finding) Status() Status {
	return StatusOf(f.IsCompliant, f.Confidence)
}

func (f Finding) MarshalJSON() ([]byte, error) {
	type finding Finding
	st := f.Status()
	return json.Marshal(struct {
		finding
		Status         Status   `json:"status"`
		Priority       Priority `json:"priority"`
		RequiresReview bool     `json:"requires_review"`
	}{
		finding:        finding(f),
		Status:         st,
		Priority:       PriorityOf(f.IsCompliant, f.Confidence),
		RequiresReview: st != StatusGreen,
	})
}

// FindingKey is the (requirement, analyzer) identity of a Finding.
type FindingKey struct {
	RequirementID string `json:"requirement_id"`
	AnalyzerID    string `json:"analyzer_id"`
}

func (k FindingKey) Less(o FindingKey) bool {
	if k.RequirementID != o.RequirementID {
		return k.RequirementID < o.RequirementID
	}
	return k.AnalyzerID < o.AnalyzerID
}

func (k FindingKey) String() string { return k.RequirementID + "@" + k.AnalyzerID }

// Severity of a Conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is a contradiction between two findings from different analyzers.
// A is always the finding on the rule's a-side.
type Conflict struct {
	RuleID      string     `json:"rule_id"`
	A           FindingKey `json:"a"`
	B           FindingKey `json:"b"`
	ValueA      float64    `json:"value_a"`
	ValueB      float64    `json:"value_b"`
	Operator    string     `json:"operator"`
	Severity    Severity   `json:"severity"`
	Status      Status     `json:"status"`
	Description string     `json:"description"`
}

// ExecState is the terminal state of one analyzer invocation.
type ExecState string

const (
	ExecCompleted ExecState = "completed"
	ExecTimedOut  ExecState = "timed_out"
	ExecFailed    ExecState = "failed"
)

// AnalyzerExecution records how one routed analyzer ended.
type AnalyzerExecution struct {
	AnalyzerID   string    `json:"analyzer_id"`
	Mandatory    bool      `json:"mandatory"`
	State        ExecState `json:"state"`
	Code         EventCode `json:"code,omitempty"`
	Error        string    `json:"error,omitempty"`
	FindingCount int       `json:"finding_count"`
	DurationMS   int64     `json:"duration_ms"`
}

// Diagnostic is a document-level non-fatal condition.
type Diagnostic struct {
	Code       EventCode `json:"code"`
	AnalyzerID string    `json:"analyzer_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Message    string    `json:"message"`
}

// DisciplineFindings groups findings of one discipline.
type DisciplineFindings struct {
	Discipline Discipline `json:"discipline"`
	Status     Status     `json:"status"`
	Findings   []Finding  `json:"findings"`
}

// Statistics summarises the scored findings.
type Statistics struct {
	Total          int     `json:"total"`
	Green          int     `json:"green"`
	Amber          int     `json:"amber"`
	Red            int     `json:"red"`
	ComplianceRate float64 `json:"compliance_rate"`
	RequiresReview int     `json:"requires_review"`
	Conflicts      int     `json:"conflicts"`
}

// ClassificationSummary is the audit trail of the classifier decision.
type ClassificationSummary struct {
	Disciplines   DisciplineSet           `json:"disciplines"`
	Matches       map[Discipline][]string `json:"matches,omitempty"`
	Regulations   []string                `json:"regulations,omitempty"`
	DocumentType  string                  `json:"document_type,omitempty"`
	Confidence    float64                 `json:"confidence"`
	LowConfidence bool                    `json:"low_confidence"`
}

// ComplianceReport is the terminal artifact of a pipeline run. It is never patched after creation.
type ComplianceReport struct {
	ID                string                `json:"id"`
	TenantID          string                `json:"tenant_id,omitempty"`
	DocumentID        string                `json:"document_id"`
	Revision          int                   `json:"revision"`
	Version           int                   `json:"version"`
	RegistryVersion   string                `json:"registry_version,omitempty"`
	OverallStatus     Status                `json:"overall_status"`
	Reason            ReasonCode            `json:"reason"`
	OverallConfidence float64               `json:"overall_confidence"`
	Incomplete        bool                  `json:"incomplete"`
	Classification    ClassificationSummary `json:"classification"`
	Findings          []DisciplineFindings  `json:"findings"`
	Conflicts         []Conflict            `json:"conflicts"`
	Execution         []AnalyzerExecution   `json:"execution"`
	Diagnostics       []Diagnostic          `json:"diagnostics,omitempty"`
	Statistics        Statistics            `json:"statistics"`
	CreatedAt         time.Time             `json:"created_at"`
}

// AllFindings returns the flat finding collection ordered by (requirement, analyzer).
func (r *ComplianceReport) AllFindings() []Finding {
	var out []Finding
	for _, g := range r.Findings {
		out = append(out, g.Findings...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}
