package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-compliance/internal/application"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// Service implements the analysis use-cases. It is safe for concurrent use.
type Service struct {
	Classifier domain.Classifier
	Registry   *Registry
	Rules      *Rules
	Invoker    *Invoker
	Reports    domain.ReportRepository
	Publisher  *Publisher
	Clock      application.Clock
	Logger     *zap.Logger
	Metrics    *Metrics
}

//
// ==== USE CASES ====
//

// AnalyzeCommand untuk trigger analisa satu revisi dokumen
type AnalyzeCommand struct {
	TenantID string
	Document domain.Document
}

// Result is what a submitted run resolves to.
type Result struct {
	Report      *domain.ComplianceReport
	ArtifactURL string
	Err         error
}

// Submit starts a run and returns a future that yields exactly one Result.
func (s *Service) Submit(ctx context.Context, cmd AnalyzeCommand) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		r, url, err := s.run(ctx, cmd)
		out <- Result{Report: r, ArtifactURL: url, Err: err}
	}()
	return out
}

// Run is the synchronous form of Submit.
func (s *Service) Run(ctx context.Context, cmd AnalyzeCommand) (*domain.ComplianceReport, error) {
	res := <-s.Submit(ctx, cmd)
	return res.Report, res.Err
}

func (s *Service) logger() *zap.Logger { return logging.OrNop(s.Logger).Named("pipeline") }

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) run(ctx context.Context, cmd AnalyzeCommand) (*domain.ComplianceReport, string, error) {
	doc := cmd.Document
	if doc.ID == "" || doc.Revision < 0 {
		return nil, "", fmt.Errorf("%w: document id is required and revision must not be negative", domain.ErrInvalidDocument)
	}
	if cmd.TenantID != "" {
		doc.TenantID = cmd.TenantID
	}
	runID := uuid.NewString()
	log := s.logger().With(
		zap.String("run_id", runID),
		zap.String("tenant", doc.TenantID),
		zap.String("document_id", doc.ID),
		zap.Int("revision", doc.Revision),
	)
	started := time.Now()
	var diags []domain.Diagnostic

	// 1. classify
	cls, err := s.Classifier.Classify(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		log.Warn("classifier failed, using fallback discipline", zap.Error(err))
		cls = fallback()
	}
	if cls.LowConfidence {
		diags = append(diags, domain.Diagnostic{
			Code:    domain.EventClassificationLowConfidence,
			Message: fmt.Sprintf("classified as %v with confidence %.2f", disciplineStrings(cls.Disciplines.Sorted()), cls.Confidence),
		})
	}

	// 2. route against one registry snapshot
	snap := s.Registry.Snapshot()
	registryVersion := ""
	if snap != nil {
		registryVersion = snap.Version
	}
	plan := Route(cls.Disciplines, snap)
	log.Info("analyzers routed",
		zap.Strings("analyzers", plan.IDs()),
		zap.Bool("fallback", plan.Fallback),
		zap.String("registry_version", registryVersion))

	// 3. version
	version, err := s.Reports.NextVersion(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return nil, "", fmt.Errorf("allocate report version: %w", err)
	}

	// 4. invoke, 5. aggregate, 6. detect
	outcomes := s.Invoker.Invoke(ctx, doc, cls.Disciplines, plan)
	findings, aggDiags := Aggregate(outcomes, log)
	diags = append(diags, aggDiags...)

	var table *RuleTable
	if s.Rules != nil {
		table = s.Rules.Table()
	}
	conflicts, detDiags := Detect(findings, table, log)
	diags = append(diags, detDiags...)

	// 7. score
	score := ScoreReport(findings, conflicts)
	if len(findings) == 0 {
		log.Warn("no findings produced", zap.String("event", string(domain.EventNoFindings)))
		diags = append(diags, domain.Diagnostic{
			Code:    domain.EventNoFindings,
			Message: fmt.Sprintf("%d analyzers routed, none produced findings", len(plan.Analyzers)),
		})
	}

	// 8. assemble
	report := &domain.ComplianceReport{
		ID:                uuid.NewString(),
		TenantID:          doc.TenantID,
		DocumentID:        doc.ID,
		Revision:          doc.Revision,
		Version:           version,
		RegistryVersion:   registryVersion,
		OverallStatus:     score.Status,
		Reason:            score.Reason,
		OverallConfidence: score.Confidence,
		Classification:    cls.Summary(),
		Findings:          score.Groups,
		Conflicts:         conflicts,
		Diagnostics:       diags,
		Statistics:        score.Statistics,
		CreatedAt:         s.clock().Now(),
	}
	if report.Findings == nil {
		report.Findings = []domain.DisciplineFindings{}
	}
	if report.Conflicts == nil {
		report.Conflicts = []domain.Conflict{}
	}
	report.Execution = make([]domain.AnalyzerExecution, 0, len(outcomes))
	for _, o := range outcomes {
		ex := o.Execution()
		report.Execution = append(report.Execution, ex)
		if ex.Mandatory && ex.State != domain.ExecCompleted {
			report.Incomplete = true
		}
	}

	// 9. persist; a caller that went away must not lose a finished report
	url, err := s.Publisher.Persist(context.WithoutCancel(ctx), report)
	if err != nil {
		return nil, "", err
	}

	s.Metrics.observeRun(report.OverallStatus)
	s.Metrics.observeConflicts(len(conflicts))
	log.Info("pipeline run finished",
		zap.String("report_id", report.ID),
		zap.Int("version", report.Version),
		zap.String("overall_status", string(report.OverallStatus)),
		zap.String("reason", string(report.Reason)),
		zap.Bool("incomplete", report.Incomplete),
		zap.Int("findings", len(findings)),
		zap.Int("conflicts", len(conflicts)),
		zap.Duration("duration", time.Since(started)))
	return report, url, nil
}

// Deliver loads a stored report and delivers it idempotently.
func (s *Service) Deliver(ctx context.Context, tenant, documentID string, version int) (bool, error) {
	r, err := s.Reports.Get(ctx, tenant, documentID, version)
	if err != nil {
		return false, err
	}
	return s.Publisher.Deliver(ctx, r)
}

// DeliverAsync runs Deliver in the background with its own timeout; failures stay in the ledger.
func (s *Service) DeliverAsync(r *domain.ComplianceReport, timeout time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Publisher.Deliver(ctx, r); err != nil && !errors.Is(err, ErrNoDeliveryTarget) {
			s.logger().Warn("background delivery failed",
				zap.String("report_id", r.ID), zap.Error(err))
		}
	}()
}

func (s *Service) Report(ctx context.Context, tenant, documentID string, version int) (*domain.ComplianceReport, error) {
	return s.Reports.Get(ctx, tenant, documentID, version)
}

func (s *Service) LatestReport(ctx context.Context, tenant, documentID string) (*domain.ComplianceReport, error) {
	return s.Reports.Latest(ctx, tenant, documentID)
}

// ListReports returns one page of report summaries for a tenant.
func (s *Service) ListReports(ctx context.Context, tenant string, page, pageSize int) (*domain.PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.Reports.Paginate(ctx, tenant, page, pageSize)
}

// Events returns the audit trail of a document, newest first.
func (s *Service) Events(ctx context.Context, tenant, documentID string, limit int) ([]*audit.Event, error) {
	if s.Publisher == nil || s.Publisher.Audit == nil {
		return []*audit.Event{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Publisher.Audit.ListByDocument(ctx, tenant, documentID, limit)
}
