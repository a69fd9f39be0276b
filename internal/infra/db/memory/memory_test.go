package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
)

func report(doc string, version int, at time.Time) *domain.ComplianceReport {
	return &domain.ComplianceReport{
		ID:            doc + "-id",
		TenantID:      "acme",
		DocumentID:    doc,
		Version:       version,
		OverallStatus: domain.StatusAmber,
		Findings: []domain.DisciplineFindings{{
			Discipline: "fire_safety",
			Status:     domain.StatusGreen,
			Findings: []domain.Finding{{
				RequirementID: "B1", AnalyzerID: "fire", Discipline: "fire_safety",
				IsCompliant: true, Confidence: 0.9,
			}},
		}},
		CreatedAt: at,
	}
}

func TestReportRepository_SaveIsInsertOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()

	v, err := repo.NextVersion(ctx, "acme", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, repo.Save(ctx, report("doc-1", v, time.Now()), "s3://a"))
	err = repo.Save(ctx, report("doc-1", v, time.Now()), "s3://b")
	assert.ErrorIs(t, err, domain.ErrReportExists)

	v2, err := repo.NextVersion(ctx, "acme", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, v2)
}

func TestReportRepository_GetLatestAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, report("doc-1", 1, now), ""))
	require.NoError(t, repo.Save(ctx, report("doc-1", 2, now.Add(time.Minute)), ""))

	got, err := repo.Get(ctx, "acme", "doc-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.AllFindings(), 1)
	assert.Equal(t, 0.9, got.AllFindings()[0].Confidence)

	latest, err := repo.Latest(ctx, "acme", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	_, err = repo.Get(ctx, "other", "doc-1", 1)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
	_, err = repo.Latest(ctx, "acme", "missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestReportRepository_Paginate(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Save(ctx, report("doc", i, base.Add(time.Duration(i)*time.Minute)), ""))
	}

	page, err := repo.Paginate(ctx, "acme", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, 5, page.Data[0].Version)

	last, err := repo.Paginate(ctx, "acme", 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Data, 1)
	assert.Equal(t, 1, last.Data[0].Version)

	empty, err := repo.Paginate(ctx, "acme", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
}

func TestDeliveryLedger_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewDeliveryLedger()
	key := delivery.Key{TenantID: "acme", DocumentID: "doc-1", ReportVersion: 1}

	rec, err := l.Claim(ctx, &delivery.Record{Key: key, ReportID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, rec.Status)
	assert.Equal(t, 1, rec.Attempts)

	require.NoError(t, l.MarkFailed(ctx, key, "boom"))
	rec, err = l.Claim(ctx, &delivery.Record{Key: key, ReportID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusFailed, rec.Status)
	assert.Equal(t, 2, rec.Attempts)

	require.NoError(t, l.MarkDelivered(ctx, key))
	rec, err = l.Claim(ctx, &delivery.Record{Key: key, ReportID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, rec.Status)
	assert.Equal(t, 2, rec.Attempts, "claims on a delivered key are not counted")

	// a late failure must not downgrade a delivered key
	require.NoError(t, l.MarkFailed(ctx, key, "late"))
	got, err := l.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, got.Status)

	assert.ErrorIs(t, l.MarkDelivered(ctx, delivery.Key{DocumentID: "x"}), delivery.ErrRecordNotFound)
}

func TestDeliveryLedger_TenantsDoNotShareKeys(t *testing.T) {
	ctx := context.Background()
	l := NewDeliveryLedger()
	acme := delivery.Key{TenantID: "acme", DocumentID: "doc-1", ReportVersion: 1}
	globex := delivery.Key{TenantID: "globex", DocumentID: "doc-1", ReportVersion: 1}

	_, err := l.Claim(ctx, &delivery.Record{Key: acme, ReportID: "r1"})
	require.NoError(t, err)
	require.NoError(t, l.MarkDelivered(ctx, acme))

	rec, err := l.Claim(ctx, &delivery.Record{Key: globex, ReportID: "r2"})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, rec.Status)
	assert.Equal(t, "r2", rec.ReportID)
	assert.NotEqual(t, acme.String(), globex.String())
}

func TestAuditRepository_ListByDocument(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"AnalyzerTimeout", "NoFindings", "AnalyzerFailure"} {
		require.NoError(t, repo.Save(ctx, &audit.Event{
			TenantID: "acme", DocumentID: "doc-1", Code: code, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Save(ctx, &audit.Event{TenantID: "acme", DocumentID: "doc-2", Code: "NoFindings"}))

	events, err := repo.ListByDocument(ctx, "acme", "doc-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AnalyzerFailure", events[0].Code)
	assert.Equal(t, "NoFindings", events[1].Code)
}
