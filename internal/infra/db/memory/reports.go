// Package memory holds in-process repositories used by the CLI, tests and the "memory" database driver.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

type docKey struct{ tenant, document string }

type storedReport struct {
	body        []byte
	summary     domain.ReportSummary
	createdNano int64
}

// ReportRepository keeps reports as encoded JSON so callers never share mutable state with the store.
type ReportRepository struct {
	mu       sync.Mutex
	reports  map[docKey]map[int]storedReport
	reserved map[docKey]int
}

var _ domain.ReportRepository = (*ReportRepository)(nil)

func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		reports:  make(map[docKey]map[int]storedReport),
		reserved: make(map[docKey]int),
	}
}

// NextVersion reserves the next version number for a document.
func (r *ReportRepository) NextVersion(_ context.Context, tenant, documentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := docKey{tenant, documentID}
	next := r.reserved[k] + 1
	for v := range r.reports[k] {
		if v >= next {
			next = v + 1
		}
	}
	r.reserved[k] = next
	return next, nil
}

// Save inserts a report; an existing (tenant, document, version) is never overwritten.
func (r *ReportRepository) Save(_ context.Context, rep *domain.ComplianceReport, artifactURL string) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := docKey{rep.TenantID, rep.DocumentID}
	versions, ok := r.reports[k]
	if !ok {
		versions = make(map[int]storedReport)
		r.reports[k] = versions
	}
	if _, exists := versions[rep.Version]; exists {
		return domain.ErrReportExists
	}
	versions[rep.Version] = storedReport{
		body:        body,
		createdNano: rep.CreatedAt.UnixNano(),
		summary: domain.ReportSummary{
			ID:                rep.ID,
			DocumentID:        rep.DocumentID,
			Revision:          rep.Revision,
			Version:           rep.Version,
			OverallStatus:     rep.OverallStatus,
			OverallConfidence: rep.OverallConfidence,
			Incomplete:        rep.Incomplete,
			ArtifactURL:       artifactURL,
		},
	}
	if rep.Version > r.reserved[k] {
		r.reserved[k] = rep.Version
	}
	return nil
}

func (r *ReportRepository) Get(_ context.Context, tenant, documentID string, version int) (*domain.ComplianceReport, error) {
	r.mu.Lock()
	s, ok := r.reports[docKey{tenant, documentID}][version]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return decode(s.body)
}

// Latest returns the highest stored version of a document.
func (r *ReportRepository) Latest(_ context.Context, tenant, documentID string) (*domain.ComplianceReport, error) {
	r.mu.Lock()
	versions := r.reports[docKey{tenant, documentID}]
	best, found := 0, false
	for v := range versions {
		if !found || v > best {
			best, found = v, true
		}
	}
	var body []byte
	if found {
		body = versions[best].body
	}
	r.mu.Unlock()
	if !found {
		return nil, domain.ErrReportNotFound
	}
	return decode(body)
}

// Paginate lists a tenant's reports, newest first.
func (r *ReportRepository) Paginate(_ context.Context, tenant string, page, pageSize int) (*domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.Lock()
	var all []storedReport
	for k, versions := range r.reports {
		if k.tenant != tenant {
			continue
		}
		for _, s := range versions {
			all = append(all, s)
		}
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].createdNano != all[j].createdNano {
			return all[i].createdNano > all[j].createdNano
		}
		if all[i].summary.DocumentID != all[j].summary.DocumentID {
			return all[i].summary.DocumentID < all[j].summary.DocumentID
		}
		return all[i].summary.Version > all[j].summary.Version
	})

	total := len(all)
	res := &domain.PaginatedResult{
		Data:       []domain.ReportSummary{},
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(total),
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return res, nil
	}
	end := min(start+pageSize, total)
	for _, s := range all[start:end] {
		res.Data = append(res.Data, s.summary)
	}
	return res, nil
}

func decode(body []byte) (*domain.ComplianceReport, error) {
	var out domain.ComplianceReport
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
