package compliance

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// Operators accepted in rule files.
const (
	OpLT  = "lt"
	OpLTE = "lte"
	OpGT  = "gt"
	OpGTE = "gte"
	OpEQ  = "eq"
	OpNE  = "ne"
)

// eqTolerance absorbs float noise from parsed evidence text.
const eqTolerance = 1e-9

// RuleSide selects the findings a rule applies to.
type RuleSide struct {
	Requirement string            `yaml:"requirement"`
	Discipline  domain.Discipline `yaml:"discipline,omitempty"`
}

func (s RuleSide) matches(f domain.Finding) bool {
	if f.RequirementID != s.Requirement {
		return false
	}
	return s.Discipline == "" || s.Discipline == f.Discipline
}

// Rule says value(A) <Operator> value(B) must hold; a violation is a conflict.
type Rule struct {
	ID          string   `yaml:"id"`
	A           RuleSide `yaml:"a"`
	B           RuleSide `yaml:"b"`
	Operator    string   `yaml:"operator"`
	Unit        string   `yaml:"unit,omitempty"`
	Description string   `yaml:"description"`
}

func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule without id", domain.ErrInvalidRules)
	}
	if r.A.Requirement == "" || r.B.Requirement == "" {
		return fmt.Errorf("%w: rule %s needs both requirements", domain.ErrInvalidRules, r.ID)
	}
	switch r.Operator {
	case OpLT, OpLTE, OpGT, OpGTE, OpEQ, OpNE:
	default:
		return fmt.Errorf("%w: rule %s has unknown operator %q", domain.ErrInvalidRules, r.ID, r.Operator)
	}
	return nil
}

// Holds reports whether the constraint is satisfied for the two values.
func (r Rule) Holds(a, b float64) bool {
	switch r.Operator {
	case OpLT:
		return a < b
	case OpLTE:
		return a <= b || math.Abs(a-b) <= eqTolerance
	case OpGT:
		return a > b
	case OpGTE:
		return a >= b || math.Abs(a-b) <= eqTolerance
	case OpEQ:
		return math.Abs(a-b) <= eqTolerance
	case OpNE:
		return math.Abs(a-b) > eqTolerance
	}
	return true
}

type pairKey struct{ lo, hi string }

func normPair(x, y string) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{lo: x, hi: y}
}

// RuleTable is an immutable, indexed set of rules.
type RuleTable struct {
	Version string
	rules   []Rule
	index   map[pairKey][]Rule
}

type rulesFile struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// NewRuleTable validates rules and indexes them by normalized requirement pair. An empty table is valid.
func NewRuleTable(version string, rules []Rule) (*RuleTable, error) {
	t := &RuleTable{Version: version, index: make(map[pairKey][]Rule)}
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %s", domain.ErrInvalidRules, r.ID)
		}
		seen[r.ID] = struct{}{}
		t.rules = append(t.rules, r)
		k := normPair(r.A.Requirement, r.B.Requirement)
		t.index[k] = append(t.index[k], r)
	}
	sort.Slice(t.rules, func(i, j int) bool { return t.rules[i].ID < t.rules[j].ID })
	for k := range t.index {
		rs := t.index[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	}
	return t, nil
}

// ParseRules decodes a YAML rule file.
func ParseRules(data []byte) (*RuleTable, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRules, err)
	}
	return NewRuleTable(f.Version, f.Rules)
}

func (t *RuleTable) Len() int { return len(t.rules) }

// Rules returns the rules ordered by id.
func (t *RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// UnreachableSides lists rule sides that pin a discipline no analyzer in s reports under.
// Findings carry their analyzer's primary discipline, so such a side can never match.
func (t *RuleTable) UnreachableSides(s *Snapshot) []string {
	primaries := map[domain.Discipline]bool{}
	for _, d := range s.All() {
		primaries[d.Primary()] = true
	}
	var out []string
	for _, r := range t.rules {
		for _, side := range []struct {
			name string
			RuleSide
		}{{"a", r.A}, {"b", r.B}} {
			if side.Discipline != "" && !primaries[side.Discipline] {
				out = append(out, fmt.Sprintf("rule %s side %s: no analyzer reports discipline %s", r.ID, side.name, side.Discipline))
			}
		}
	}
	return out
}

// Lookup returns the rules for a requirement pair, in either order.
func (t *RuleTable) Lookup(reqA, reqB string) []Rule {
	return t.index[normPair(reqA, reqB)]
}

// Rules holds the rule table in effect, swapped whole on reload.
type Rules struct {
	path    string
	current atomic.Pointer[RuleTable]
}

func NewRules(t *RuleTable) *Rules {
	r := &Rules{}
	r.current.Store(t)
	return r
}

// LoadRules reads the rule file at path.
func LoadRules(path string) (*Rules, error) {
	t, err := readRules(path)
	if err != nil {
		return nil, err
	}
	r := NewRules(t)
	r.path = path
	return r, nil
}

func readRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRules, err)
	}
	return ParseRules(data)
}

func (r *Rules) Table() *RuleTable { return r.current.Load() }

func (r *Rules) Path() string { return r.path }

// Reload re-reads the backing file; the old table stays when it fails.
func (r *Rules) Reload() error {
	if r.path == "" {
		return fmt.Errorf("%w: rules have no backing file", domain.ErrInvalidRules)
	}
	t, err := readRules(r.path)
	if err != nil {
		return err
	}
	r.current.Store(t)
	return nil
}

// Detect checks every unordered pair of findings from different analyzers against the table.
// Conflicts are oriented by the rule and sorted by (rule, a, b).
func Detect(findings []domain.Finding, table *RuleTable, logger *zap.Logger) ([]domain.Conflict, []domain.Diagnostic) {
	if table == nil || table.Len() == 0 || len(findings) < 2 {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var conflicts []domain.Conflict
	var diags []domain.Diagnostic
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			fi, fj := findings[i], findings[j]
			if fi.AnalyzerID == fj.AnalyzerID {
				continue
			}
			for _, rule := range table.Lookup(fi.RequirementID, fj.RequirementID) {
				a, b, ok := orient(rule, fi, fj)
				if !ok {
					continue
				}
				va, okA := a.Evidence.NumericValue(rule.Unit)
				vb, okB := b.Evidence.NumericValue(rule.Unit)
				if !okA || !okB {
					subject := fmt.Sprintf("%s:%s|%s", rule.ID, a.Key(), b.Key())
					logger.Info("conflict check skipped, value missing",
						zap.String("event", string(domain.EventConflictCheckSkipped)),
						zap.String("rule", rule.ID),
						zap.String("a", a.Key().String()),
						zap.String("b", b.Key().String()),
						zap.Bool("a_has_value", okA),
						zap.Bool("b_has_value", okB))
					diags = append(diags, domain.Diagnostic{
						Code:    domain.EventConflictCheckSkipped,
						Subject: subject,
						Message: "numeric value missing on one side",
					})
					continue
				}
				if rule.Holds(va, vb) {
					continue
				}
				conflicts = append(conflicts, newConflict(rule, a, b, va, vb))
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		ci, cj := conflicts[i], conflicts[j]
		if ci.RuleID != cj.RuleID {
			return ci.RuleID < cj.RuleID
		}
		if ci.A != cj.A {
			return ci.A.Less(cj.A)
		}
		return ci.B.Less(cj.B)
	})
	sort.Slice(diags, func(i, j int) bool { return diags[i].Subject < diags[j].Subject })
	return conflicts, diags
}

// orient places the a-side finding first. When both orientations fit, the smaller key goes first.
func orient(rule Rule, x, y domain.Finding) (domain.Finding, domain.Finding, bool) {
	xy := rule.A.matches(x) && rule.B.matches(y)
	yx := rule.A.matches(y) && rule.B.matches(x)
	switch {
	case xy && yx:
		if y.Key().Less(x.Key()) {
			return y, x, true
		}
		return x, y, true
	case xy:
		return x, y, true
	case yx:
		return y, x, true
	}
	return domain.Finding{}, domain.Finding{}, false
}

func newConflict(rule Rule, a, b domain.Finding, va, vb float64) domain.Conflict {
	worst := domain.Worse(a.Status(), b.Status())
	desc := rule.Description
	if desc == "" {
		desc = fmt.Sprintf("%s %g%s must be %s %s %g%s", a.RequirementID, va, rule.Unit, rule.Operator, b.RequirementID, vb, rule.Unit)
	}
	return domain.Conflict{
		RuleID:      rule.ID,
		A:           a.Key(),
		B:           b.Key(),
		ValueA:      va,
		ValueB:      vb,
		Operator:    rule.Operator,
		Severity:    domain.SeverityFor(worst),
		Status:      domain.Worse(worst, domain.StatusAmber),
		Description: desc,
	}
}
