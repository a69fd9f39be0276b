package compliance

import "errors"

var (
	// ErrInvalidDocument is returned when the request carries no usable document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrMalformedOutput marks an analyzer response that fails validation.
	ErrMalformedOutput = errors.New("malformed analyzer output")
	// ErrReportNotFound is returned by repositories for unknown reports.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportExists is returned when a report version was already persisted.
	ErrReportExists = errors.New("report version already exists")
	// ErrInvalidRegistry is returned when the analyzer registry cannot be used.
	ErrInvalidRegistry = errors.New("invalid analyzer registry")
	// ErrInvalidRules is returned when the conflict rule table cannot be used.
	ErrInvalidRules = errors.New("invalid conflict rules")
)

// EventCode names a non-fatal pipeline condition.
type EventCode string

const (
	EventClassificationLowConfidence EventCode = "ClassificationLowConfidence"
	EventAnalyzerTimeout             EventCode = "AnalyzerTimeout"
	EventAnalyzerFailure             EventCode = "AnalyzerFailure"
	EventDuplicateFindingDiscarded   EventCode = "DuplicateFindingDiscarded"
	EventConflictCheckSkipped        EventCode = "ConflictCheckSkipped"
	EventNoFindings                  EventCode = "NoFindings"
)
