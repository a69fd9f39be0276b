package compliance

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	unitPatternsMu sync.Mutex
	unitPatterns   = map[string]*regexp.Regexp{}
)

// unitPattern matches "<number> <unit>" with an optional space, e.g. "1050 mm", "1,050 mm" or "2.5kN/m²".
// The number must not continue a longer digit run, so "1,05 mm" is not read as 5.
func unitPattern(unit string) *regexp.Regexp {
	key := strings.ToLower(unit)
	unitPatternsMu.Lock()
	defer unitPatternsMu.Unlock()
	if rx, ok := unitPatterns[key]; ok {
		return rx
	}
	rx := regexp.MustCompile(`(?i)(?:^|[^\d,.])(-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*` +
		regexp.QuoteMeta(unit) + `(?:$|[^\pL])`)
	unitPatterns[key] = rx
	return rx
}

// NumericValue returns the concrete quantity carried by the evidence.
// An explicit Value wins; otherwise the first "<number> <unit>" in the text is used when unit is known.
func (e Evidence) NumericValue(unit string) (float64, bool) {
	if e.Value != nil {
		if unit == "" || e.Unit == "" || strings.EqualFold(e.Unit, unit) {
			return *e.Value, true
		}
	}
	if unit == "" || e.Text == "" {
		return 0, false
	}
	m := unitPattern(unit).FindStringSubmatch(e.Text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
