package compliance

import "math"

// Status is the traffic-light outcome of a finding or a whole report.
type Status string

const (
	StatusGreen Status = "green"
	StatusAmber Status = "amber"
	StatusRed   Status = "red"
)

// Scoring thresholds.
const (
	GreenThreshold = 0.85
	AmberThreshold = 0.70
)

// StatusOf is the single scoring rule for a finding:
//
//	compliant,     confidence >= 0.85 -> green
//	compliant,     confidence <  0.85 -> amber
//	non-compliant, confidence <  0.70 -> amber
//	non-compliant, confidence >= 0.70 -> red
func StatusOf(isCompliant bool, confidence float64) Status {
	if isCompliant {
		if confidence >= GreenThreshold {
			return StatusGreen
		}
		return StatusAmber
	}
	if confidence >= AmberThreshold {
		return StatusRed
	}
	return StatusAmber
}

// Rank orders statuses green < amber < red.
func (s Status) Rank() int {
	switch s {
	case StatusGreen:
		return 0
	case StatusAmber:
		return 1
	case StatusRed:
		return 2
	default:
		return -1
	}
}

// Worse returns the worse of two statuses.
func Worse(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// SeverityFor maps a status to the conflict severity scale.
func SeverityFor(s Status) Severity {
	switch s {
	case StatusRed:
		return SeverityHigh
	case StatusAmber:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Priority tells a reviewer how urgently a finding needs attention.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityOf derives review priority from the same inputs as StatusOf.
func PriorityOf(isCompliant bool, confidence float64) Priority {
	switch StatusOf(isCompliant, confidence) {
	case StatusRed:
		if confidence >= GreenThreshold {
			return PriorityCritical
		}
		return PriorityHigh
	case StatusAmber:
		if !isCompliant {
			return PriorityHigh
		}
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ReasonCode explains the overall status of a report.
type ReasonCode string

const (
	ReasonNoFindings    ReasonCode = "no_findings"
	ReasonRedFindings   ReasonCode = "red_findings"
	ReasonAmberFindings ReasonCode = "amber_findings"
	ReasonAllGreen      ReasonCode = "all_green"
)

// ValidConfidence reports whether c is a usable confidence value.
func ValidConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}
