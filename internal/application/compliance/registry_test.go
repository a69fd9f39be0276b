package compliance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

const registryYAML = `
version: "2026-01"
analyzers:
  - id: structural
    disciplines: [structural]
    target: "openai:gpt-4o-mini"
    timeout: 45s
    mandatory: true
  - id: fire
    disciplines: [fire_safety]
    regulations: ["Part B - Fire Safety"]
    target: "vertex:gemini-1.5-pro"
    maxInputChars: 12000
  - id: general
    disciplines: [general]
    target: "https://analyzers.internal/general"
`

func TestParseRegistry(t *testing.T) {
	s, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)
	assert.Equal(t, "2026-01", s.Version)
	assert.Equal(t, 3, s.Len())

	ids := []string{}
	for _, d := range s.All() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"fire", "general", "structural"}, ids)

	st, ok := s.Get("structural")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, st.Timeout)
	assert.True(t, st.Mandatory)

	fire, _ := s.Get("fire")
	assert.Equal(t, 12000, fire.MaxInputChars)
}

func TestParseRegistry_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":        `analyzers: []`,
		"duplicate id": "analyzers:\n  - {id: a, disciplines: [x], target: 'openai:m'}\n  - {id: a, disciplines: [y], target: 'openai:m'}\n",
		"no target":    "analyzers:\n  - {id: a, disciplines: [x]}\n",
		"bad scheme":   "analyzers:\n  - {id: a, disciplines: [x], target: 'ftp://host/a'}\n",
		"not yaml":     "analyzers: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(body))
			assert.ErrorIs(t, err, domain.ErrInvalidRegistry)
		})
	}
}

func TestRegistry_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	before := reg.Snapshot()

	require.NoError(t, os.WriteFile(path, []byte("analyzers: ["), 0o644))
	assert.Error(t, reg.Reload())
	assert.Same(t, before, reg.Snapshot())

	updated := "version: v2\nanalyzers:\n  - {id: only, disciplines: [general], target: 'openai:m'}\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, reg.Reload())
	assert.Equal(t, "v2", reg.Snapshot().Version)
	assert.Equal(t, 1, reg.Snapshot().Len())

	// the old snapshot is immutable and still usable by in-flight runs
	assert.Equal(t, 3, before.Len())
}

func TestRegistry_ReloadWithoutFile(t *testing.T) {
	reg := NewRegistry(snapshotOf(t, desc("a", false, 0, "general")))
	assert.ErrorIs(t, reg.Reload(), domain.ErrInvalidRegistry)
}
