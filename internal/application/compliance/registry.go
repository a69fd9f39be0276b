package compliance

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

type registryFile struct {
	Version   string                      `yaml:"version"`
	Analyzers []domain.AnalyzerDescriptor `yaml:"analyzers"`
}

// Snapshot is an immutable view of the analyzer registry.
type Snapshot struct {
	Version   string
	analyzers []domain.AnalyzerDescriptor
	byID      map[string]domain.AnalyzerDescriptor
}

// NewSnapshot validates descriptors and freezes them sorted by id.
func NewSnapshot(version string, descriptors []domain.AnalyzerDescriptor) (*Snapshot, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: no analyzers configured", domain.ErrInvalidRegistry)
	}
	byID := make(map[string]domain.AnalyzerDescriptor, len(descriptors))
	sorted := make([]domain.AnalyzerDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate analyzer id %s", domain.ErrInvalidRegistry, d.ID)
		}
		byID[d.ID] = d
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Snapshot{Version: version, analyzers: sorted, byID: byID}, nil
}

// ParseRegistry decodes a YAML registry artifact.
func ParseRegistry(data []byte) (*Snapshot, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRegistry, err)
	}
	return NewSnapshot(f.Version, f.Analyzers)
}

// All returns the descriptors ordered by id.
func (s *Snapshot) All() []domain.AnalyzerDescriptor {
	out := make([]domain.AnalyzerDescriptor, len(s.analyzers))
	copy(out, s.analyzers)
	return out
}

func (s *Snapshot) Get(id string) (domain.AnalyzerDescriptor, bool) {
	d, ok := s.byID[id]
	return d, ok
}

func (s *Snapshot) Len() int { return len(s.analyzers) }

// Registry holds the current snapshot. Readers never lock; reloads swap the pointer.
type Registry struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// NewRegistry wraps an already built snapshot.
func NewRegistry(s *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(s)
	return r
}

// LoadRegistry reads the registry file at path. Errors here are fatal at startup.
func LoadRegistry(path string) (*Registry, error) {
	s, err := readRegistry(path)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(s)
	r.path = path
	return r, nil
}

func readRegistry(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRegistry, err)
	}
	return ParseRegistry(data)
}

// Snapshot returns the snapshot in effect right now.
func (r *Registry) Snapshot() *Snapshot { return r.current.Load() }

// Path is the file the registry was loaded from, if any.
func (r *Registry) Path() string { return r.path }

// Reload re-reads the backing file. On error the previous snapshot stays in place.
func (r *Registry) Reload() error {
	if r.path == "" {
		return fmt.Errorf("%w: registry has no backing file", domain.ErrInvalidRegistry)
	}
	s, err := readRegistry(r.path)
	if err != nil {
		return err
	}
	r.current.Store(s)
	return nil
}
