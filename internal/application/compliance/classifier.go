package compliance

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// shortTextChars is the length under which classification confidence is low.
const shortTextChars = 100

type compiledKeyword struct {
	word string
	rx   *regexp.Regexp
}

type compiledEntry struct {
	TaxonomyEntry
	keywords []compiledKeyword
}

// KeywordClassifier is the heuristic classification strategy. It is safe for concurrent use.
type KeywordClassifier struct {
	entries  []compiledEntry
	mentions []string
	labels   map[string]string
	logger   *zap.Logger
}

var _ domain.Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier compiles the taxonomy; nil means DefaultTaxonomy.
func NewKeywordClassifier(t *Taxonomy, logger *zap.Logger) *KeywordClassifier {
	if t == nil {
		t = DefaultTaxonomy()
	}
	c := &KeywordClassifier{
		labels: make(map[string]string, len(t.RegulationMentions)),
		logger: logging.OrNop(logger).Named("classifier"),
	}
	for _, e := range t.Entries {
		ce := compiledEntry{TaxonomyEntry: e}
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			ce.keywords = append(ce.keywords, compiledKeyword{
				word: kw,
				rx:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
			})
		}
		c.entries = append(c.entries, ce)
	}
	for phrase, label := range t.RegulationMentions {
		p := strings.ToLower(phrase)
		c.mentions = append(c.mentions, p)
		c.labels[p] = label
	}
	sort.Strings(c.mentions)
	return c
}

// Classify matches keywords and metadata features. It never returns an empty set.
func (c *KeywordClassifier) Classify(ctx context.Context, doc domain.Document) (domain.Classification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	log := c.logger.With(zap.String("document_id", doc.ID), zap.Int("revision", doc.Revision))

	text := strings.TrimSpace(doc.Text)
	if text == "" {
		log.Warn("empty document text, using fallback discipline",
			zap.String("event", string(domain.EventClassificationLowConfidence)))
		return fallback(), nil
	}

	lower := strings.ToLower(text)
	set := domain.NewDisciplineSet()
	matches := make(map[domain.Discipline][]string)
	regs := make(map[string]struct{})

	for _, e := range c.entries {
		var features []string
		for _, kw := range e.keywords {
			if !strings.Contains(lower, kw.word) {
				continue
			}
			if kw.rx.MatchString(text) {
				features = append(features, "keyword:"+kw.word)
			}
		}
		if occ := strings.ToLower(doc.Metadata.OccupancyType); occ != "" {
			for _, o := range e.OccupancyTypes {
				if strings.EqualFold(o, occ) {
					features = append(features, "occupancy:"+occ)
				}
			}
		}
		if e.MinHeightMeters > 0 && doc.Metadata.HeightMeters >= e.MinHeightMeters {
			features = append(features, fmt.Sprintf("height>=%gm", e.MinHeightMeters))
		}
		if len(features) == 0 {
			continue
		}
		set[e.Discipline] = struct{}{}
		matches[e.Discipline] = append(matches[e.Discipline], features...)
		for _, r := range e.Regulations {
			regs[r] = struct{}{}
		}
	}

	for _, p := range c.mentions {
		if strings.Contains(lower, p) {
			regs[c.labels[p]] = struct{}{}
		}
	}

	if len(set) == 0 {
		log.Warn("no discipline matched, using fallback discipline",
			zap.String("event", string(domain.EventClassificationLowConfidence)),
			zap.Int("text_length", len(text)))
		out := fallback()
		out.DocumentType = documentType(lower, doc.Metadata.Filename)
		out.Regulations = sortedKeys(regs)
		return out, nil
	}

	out := domain.Classification{
		Disciplines:  set,
		Matches:      matches,
		Regulations:  sortedKeys(regs),
		DocumentType: documentType(lower, doc.Metadata.Filename),
		Confidence:   confidenceFor(len(text), len(set)),
	}
	out.LowConfidence = out.Confidence < 0.5

	fields := []zap.Field{
		zap.Strings("disciplines", disciplineStrings(set.Sorted())),
		zap.String("document_type", out.DocumentType),
		zap.Float64("confidence", out.Confidence),
	}
	for _, d := range set.Sorted() {
		fields = append(fields, zap.Strings("matched."+string(d), matches[d]))
	}
	if out.LowConfidence {
		log.Warn("document classified with low confidence",
			append(fields, zap.String("event", string(domain.EventClassificationLowConfidence)))...)
	} else {
		log.Info("document classified", fields...)
	}
	return out, nil
}

func fallback() domain.Classification {
	return domain.Classification{
		Disciplines:   domain.NewDisciplineSet(domain.DisciplineGeneral),
		Matches:       map[domain.Discipline][]string{},
		DocumentType:  "report",
		Confidence:    0.4,
		LowConfidence: true,
	}
}

func confidenceFor(textLen, disciplines int) float64 {
	switch {
	case textLen < shortTextChars:
		return 0.3
	case disciplines >= 2:
		return 0.85
	default:
		return 0.75
	}
}

// documentType is a best-effort label; it only feeds the audit trail and prompts.
func documentType(lower, filename string) string {
	fn := strings.ToLower(filename)
	switch {
	case containsAny(lower, "scale 1:", "drawing no", "rev.", "north point"),
		strings.Contains(fn, "drg") && containsAny(fn, ".dwg", ".dxf", ".pdf"):
		return "drawing"
	case containsAny(lower, "fire safety strategy", "fire engineering"):
		return "fire_strategy"
	case containsAny(lower, "calculation", "load case", "ultimate limit state"):
		return "calculation"
	case containsAny(lower, "specification", "clause"):
		return "specification"
	case containsAny(lower, "certificate", "certified that"):
		return "certificate"
	case strings.Contains(lower, "schedule") && containsAny(lower, "door", "window", "finish"):
		return "schedule"
	default:
		return "report"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func disciplineStrings(ds []domain.Discipline) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
