package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-compliance/internal/application"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// ErrNoDeliveryTarget is returned by Deliver when no collaborator is configured.
var ErrNoDeliveryTarget = errors.New("no delivery target configured")

// Publisher persists finished reports and delivers them downstream.
// Artifacts, Audit and Target are optional.
type Publisher struct {
	Reports   domain.ReportRepository
	Artifacts domain.ArtifactStore
	Audit     audit.Repository
	Ledger    delivery.Ledger
	Target    domain.DeliveryTarget
	Clock     application.Clock
	Logger    *zap.Logger
	Metrics   *Metrics
}

func (p *Publisher) logger() *zap.Logger { return logging.OrNop(p.Logger).Named("publisher") }

func (p *Publisher) now() application.Clock {
	if p.Clock == nil {
		return application.SystemClock{}
	}
	return p.Clock
}

// ArtifactKey is the object key of a report archive.
func ArtifactKey(r *domain.ComplianceReport) string {
	tenant := r.TenantID
	if tenant == "" {
		tenant = "default"
	}
	return fmt.Sprintf("%s/reports/%s/v%d.json", tenant, r.DocumentID, r.Version)
}

// Persist archives the report, saves it (insert-only) and records its diagnostics in the audit log.
// Only the repository save is fatal; a failed archive leaves the artifact url empty.
func (p *Publisher) Persist(ctx context.Context, r *domain.ComplianceReport) (string, error) {
	log := p.logger().With(
		zap.String("report_id", r.ID),
		zap.String("document_id", r.DocumentID),
		zap.Int("version", r.Version),
	)

	url := ""
	if p.Artifacts != nil {
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode report: %w", err)
		}
		url, err = p.Artifacts.Put(ctx, ArtifactKey(r), body, "application/json")
		if err != nil {
			log.Warn("report archive failed", zap.Error(err))
			url = ""
		}
	}

	if err := p.Reports.Save(ctx, r, url); err != nil {
		return "", fmt.Errorf("save report %s v%d: %w", r.DocumentID, r.Version, err)
	}
	log.Info("report persisted",
		zap.String("overall_status", string(r.OverallStatus)),
		zap.Bool("incomplete", r.Incomplete),
		zap.String("artifact_url", url))

	p.writeAudit(ctx, log, r)
	return url, nil
}

func (p *Publisher) writeAudit(ctx context.Context, log *zap.Logger, r *domain.ComplianceReport) {
	if p.Audit == nil {
		return
	}
	var events []*audit.Event
	base := audit.Event{
		TenantID:      r.TenantID,
		DocumentID:    r.DocumentID,
		Revision:      r.Revision,
		ReportVersion: r.Version,
		CreatedAt:     r.CreatedAt,
	}
	if r.Classification.LowConfidence {
		e := base
		e.Code = string(domain.EventClassificationLowConfidence)
		e.Message = fmt.Sprintf("classification confidence %.2f", r.Classification.Confidence)
		if b, err := json.Marshal(r.Classification); err == nil {
			e.DetailsJSON = string(b)
		}
		events = append(events, &e)
	}
	for _, ex := range r.Execution {
		if ex.Code == "" {
			continue
		}
		e := base
		e.Code = string(ex.Code)
		e.AnalyzerID = ex.AnalyzerID
		e.Message = ex.Error
		if b, err := json.Marshal(ex); err == nil {
			e.DetailsJSON = string(b)
		}
		events = append(events, &e)
	}
	for _, d := range r.Diagnostics {
		if d.Code == domain.EventClassificationLowConfidence {
			continue
		}
		e := base
		e.Code = string(d.Code)
		e.AnalyzerID = d.AnalyzerID
		e.Message = d.Message
		if d.Subject != "" {
			e.Message = d.Subject + ": " + d.Message
		}
		events = append(events, &e)
	}
	for _, e := range events {
		if err := p.Audit.Save(ctx, e); err != nil {
			// audit log best effort aja, report sudah tersimpan
			log.Warn("audit event not saved", zap.String("code", e.Code), zap.Error(err))
		}
	}
}

// Deliver pushes r to the document-management system at most once per (tenant, document, version).
// It returns true when this call performed the delivery.
func (p *Publisher) Deliver(ctx context.Context, r *domain.ComplianceReport) (bool, error) {
	if p.Target == nil {
		return false, ErrNoDeliveryTarget
	}
	key := delivery.Key{TenantID: r.TenantID, DocumentID: r.DocumentID, ReportVersion: r.Version}
	log := p.logger().With(zap.String("delivery_key", key.String()), zap.String("report_id", r.ID))

	rec, err := p.Ledger.Claim(ctx, &delivery.Record{
		Key:       key,
		ReportID:  r.ID,
		Status:    delivery.StatusPending,
		UpdatedAt: p.now().Now(),
	})
	if err != nil {
		return false, fmt.Errorf("claim delivery %s: %w", key, err)
	}
	if rec.Status == delivery.StatusDelivered {
		log.Info("report already delivered, skipping", zap.Time("delivered_at", rec.DeliveredAt))
		p.Metrics.observeDelivery("skipped")
		return false, nil
	}

	if err := p.Target.Deliver(ctx, key.String(), r.Outbound()); err != nil {
		if mErr := p.Ledger.MarkFailed(ctx, key, err.Error()); mErr != nil {
			log.Error("mark delivery failed", zap.Error(mErr))
		}
		p.Metrics.observeDelivery("failed")
		log.Warn("report delivery failed", zap.Int("attempts", rec.Attempts), zap.Error(err))
		return false, fmt.Errorf("deliver %s: %w", key, err)
	}
	if err := p.Ledger.MarkDelivered(ctx, key); err != nil {
		return true, fmt.Errorf("mark delivered %s: %w", key, err)
	}
	p.Metrics.observeDelivery("delivered")
	log.Info("report delivered", zap.Int("attempts", rec.Attempts))
	return true, nil
}
