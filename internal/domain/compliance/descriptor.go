package compliance

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultAnalyzerTimeout applies when a descriptor declares none.
const DefaultAnalyzerTimeout = 30 * time.Second

// AnalyzerDescriptor describes one registered domain analyzer. Immutable after load.
type AnalyzerDescriptor struct {
	ID            string        `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"name,omitempty"`
	Disciplines   []Discipline  `yaml:"disciplines" json:"disciplines"`
	Regulations   []string      `yaml:"regulations" json:"regulations,omitempty"`
	Target        string        `yaml:"target" json:"target"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	Mandatory     bool          `yaml:"mandatory" json:"mandatory"`
	Instructions  string        `yaml:"instructions" json:"instructions,omitempty"`
	MaxInputChars int           `yaml:"maxInputChars" json:"max_input_chars,omitempty"`
}

// Primary is the discipline findings of this analyzer are grouped under.
func (d AnalyzerDescriptor) Primary() Discipline {
	if len(d.Disciplines) == 0 {
		return DisciplineGeneral
	}
	return d.Disciplines[0]
}

// Covers reports whether any of the analyzer's disciplines is in set.
func (d AnalyzerDescriptor) Covers(set DisciplineSet) bool {
	for _, t := range d.Disciplines {
		if set.Has(t) {
			return true
		}
	}
	return false
}

// EffectiveTimeout falls back to def (or DefaultAnalyzerTimeout) when unset.
func (d AnalyzerDescriptor) EffectiveTimeout(def time.Duration) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	if def > 0 {
		return def
	}
	return DefaultAnalyzerTimeout
}

// Validate checks a single descriptor.
func (d AnalyzerDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: analyzer id is required", ErrInvalidRegistry)
	}
	if len(d.Disciplines) == 0 {
		return fmt.Errorf("%w: analyzer %s has no disciplines", ErrInvalidRegistry, d.ID)
	}
	for _, t := range d.Disciplines {
		if t == "" {
			return fmt.Errorf("%w: analyzer %s has an empty discipline", ErrInvalidRegistry, d.ID)
		}
	}
	if d.Timeout < 0 {
		return fmt.Errorf("%w: analyzer %s has a negative timeout", ErrInvalidRegistry, d.ID)
	}
	if _, err := ParseTarget(d.Target); err != nil {
		return fmt.Errorf("%w: analyzer %s: %v", ErrInvalidRegistry, d.ID, err)
	}
	return nil
}

// Target is a parsed invocation target.
type Target struct {
	Scheme string // openai | vertex | http | https
	Model  string // for completion targets
	URL    string // for remote targets
}

// ParseTarget accepts "openai:<model>", "vertex:<model>" and http(s) URLs.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("target is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	switch u.Scheme {
	case "openai", "vertex":
		model := u.Opaque
		if model == "" {
			return Target{}, fmt.Errorf("target %q names no model", raw)
		}
		return Target{Scheme: u.Scheme, Model: model}, nil
	case "http", "https":
		if u.Host == "" {
			return Target{}, fmt.Errorf("target %q has no host", raw)
		}
		return Target{Scheme: u.Scheme, URL: raw}, nil
	default:
		return Target{}, fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}
}
