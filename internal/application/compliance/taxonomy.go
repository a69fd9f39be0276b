package compliance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// TaxonomyEntry lists the features that select one discipline.
type TaxonomyEntry struct {
	Discipline      domain.Discipline `yaml:"discipline"`
	Keywords        []string          `yaml:"keywords"`
	OccupancyTypes  []string          `yaml:"occupancyTypes"`
	MinHeightMeters float64           `yaml:"minHeightMeters"`
	Regulations     []string          `yaml:"regulations"`
}

// Taxonomy is the discipline keyword catalogue used by KeywordClassifier.
type Taxonomy struct {
	Version string          `yaml:"version"`
	Entries []TaxonomyEntry `yaml:"disciplines"`
	// RegulationMentions maps a lowercase phrase found in text to a regulation label.
	RegulationMentions map[string]string `yaml:"regulationMentions"`
}

// LoadTaxonomy reads a YAML taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no disciplines", path)
	}
	for _, e := range t.Entries {
		if e.Discipline == "" {
			return nil, fmt.Errorf("taxonomy %s has an entry without discipline", path)
		}
	}
	return &t, nil
}

// DefaultTaxonomy covers the thirteen building disciplines with UK Building Regulations mapping.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		Version: "builtin-1",
		Entries: []TaxonomyEntry{
			{
				Discipline:  "structural",
				Keywords:    []string{"structural", "foundation", "beam", "column", "slab", "eurocode", "steel frame", "concrete"},
				Regulations: []string{"Part A - Structure"},
			},
			{
				Discipline:      "fire_safety",
				Keywords:        []string{"fire", "smoke", "sprinkler", "fire alarm", "fire rating", "means of escape", "compartmentation"},
				MinHeightMeters: 18,
				Regulations:     []string{"Part B - Fire Safety"},
			},
			{
				Discipline:  "building_envelope",
				Keywords:    []string{"thermal", "insulation", "u-value", "glazing", "window", "external wall", "roof", "weatherproofing"},
				Regulations: []string{"Part C - Site Preparation", "Part L - Conservation of Fuel and Power"},
			},
			{
				Discipline:  "mechanical_services",
				Keywords:    []string{"hvac", "ventilation", "heating", "cooling", "plumbing", "drainage", "water supply", "air handling"},
				Regulations: []string{"Part F - Ventilation", "Part G - Sanitation", "Part H - Drainage", "Part J - Combustion"},
			},
			{
				Discipline:  "electrical_services",
				Keywords:    []string{"electrical", "power", "lighting", "distribution board", "cable", "circuit", "bs 7671", "wiring"},
				Regulations: []string{"Part P - Electrical Safety"},
			},
			{
				Discipline:     "accessibility",
				Keywords:       []string{"accessibility", "disabled access", "part m", "wheelchair", "accessible", "inclusive design"},
				OccupancyTypes: []string{"assembly", "healthcare", "education"},
				Regulations:    []string{"Part M - Access"},
			},
			{
				Discipline:  "environmental_sustainability",
				Keywords:    []string{"energy efficiency", "breeam", "leed", "sustainability", "carbon", "renewable", "solar", "environmental"},
				Regulations: []string{"Part L - Conservation of Fuel and Power"},
			},
			{
				Discipline:  "health_safety",
				Keywords:    []string{"health and safety", "cdm", "construction phase plan", "risk assessment", "method statement"},
				Regulations: []string{"CDM Regulations 2015"},
			},
			{
				Discipline: "quality_assurance",
				Keywords:   []string{"testing", "commissioning", "inspection", "certificate", "test report", "compliance certificate"},
			},
			{
				Discipline: "legal_contracts",
				Keywords:   []string{"contract", "jct", "nec", "warranty", "guarantee", "agreement", "tender"},
			},
			{
				Discipline: "specialist_systems",
				Keywords:   []string{"lift", "elevator", "escalator", "bms", "building management", "access control", "cctv"},
			},
			{
				Discipline: "external_works",
				Keywords:   []string{"drainage", "landscaping", "paving", "roads", "highways", "suds", "attenuation"},
			},
			{
				Discipline:  "finishes_interiors",
				Keywords:    []string{"finishes", "flooring", "ceiling", "partition", "acoustic", "interior", "joinery"},
				Regulations: []string{"Part E - Resistance to Sound", "Part B - Fire Safety (Linings)"},
			},
		},
		RegulationMentions: map[string]string{
			"part a": "Part A - Structure",
			"part b": "Part B - Fire Safety",
			"part c": "Part C - Site Preparation",
			"part e": "Part E - Resistance to Sound",
			"part f": "Part F - Ventilation",
			"part g": "Part G - Sanitation",
			"part h": "Part H - Drainage",
			"part j": "Part J - Combustion",
			"part l": "Part L - Conservation of Fuel and Power",
			"part m": "Part M - Access",
			"part p": "Part P - Electrical Safety",
		},
	}
}
