package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// DefaultGlobalTimeout bounds a whole fan-out when none is configured.
const DefaultGlobalTimeout = 120 * time.Second

// InvokerConfig holds the invoker deadlines.
type InvokerConfig struct {
	DefaultTimeout time.Duration // per analyzer, when the descriptor declares none
	GlobalTimeout  time.Duration // whole fan-out
	MaxParallel    int           // 0 means one goroutine per analyzer with no cap
}

// Outcome is the result of one analyzer invocation.
type Outcome struct {
	Analyzer domain.AnalyzerDescriptor
	State    domain.ExecState
	Findings []domain.Finding
	Err      error
	Duration time.Duration
}

// Execution converts the outcome into its report entry.
func (o Outcome) Execution() domain.AnalyzerExecution {
	e := domain.AnalyzerExecution{
		AnalyzerID:   o.Analyzer.ID,
		Mandatory:    o.Analyzer.Mandatory,
		State:        o.State,
		FindingCount: len(o.Findings),
		DurationMS:   o.Duration.Milliseconds(),
	}
	switch o.State {
	case domain.ExecTimedOut:
		e.Code = domain.EventAnalyzerTimeout
	case domain.ExecFailed:
		e.Code = domain.EventAnalyzerFailure
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return e
}

// Invoker fans a document out to the planned analyzers.
type Invoker struct {
	client  domain.AnalyzerClient
	cfg     InvokerConfig
	logger  *zap.Logger
	metrics *Metrics
}

func NewInvoker(client domain.AnalyzerClient, cfg InvokerConfig, logger *zap.Logger, metrics *Metrics) *Invoker {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = domain.DefaultAnalyzerTimeout
	}
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = DefaultGlobalTimeout
	}
	return &Invoker{
		client:  client,
		cfg:     cfg,
		logger:  logging.OrNop(logger).Named("invoker"),
		metrics: metrics,
	}
}

// Invoke runs every analyzer of plan concurrently and returns one Outcome per analyzer, in plan order.
// It never fails as a whole: failures and timeouts are reported per analyzer.
func (inv *Invoker) Invoke(ctx context.Context, doc domain.Document, classified domain.DisciplineSet, plan Plan) []Outcome {
	outcomes := make([]Outcome, len(plan.Analyzers))
	if len(plan.Analyzers) == 0 {
		return outcomes
	}

	gctx, cancel := context.WithTimeout(ctx, inv.cfg.GlobalTimeout)
	defer cancel()

	var g errgroup.Group
	if inv.cfg.MaxParallel > 0 {
		g.SetLimit(inv.cfg.MaxParallel)
	}
	for i, d := range plan.Analyzers {
		g.Go(func() error {
			// each goroutine owns outcomes[i]
			outcomes[i] = inv.invokeOne(gctx, doc, classified, d)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

type analyzerReply struct {
	raws []domain.RawFinding
	err  error
}

func (inv *Invoker) invokeOne(gctx context.Context, doc domain.Document, classified domain.DisciplineSet, d domain.AnalyzerDescriptor) Outcome {
	start := time.Now()
	out := Outcome{Analyzer: d}
	log := inv.logger.With(
		zap.String("document_id", doc.ID),
		zap.Int("revision", doc.Revision),
		zap.String("analyzer", d.ID),
		zap.Bool("mandatory", d.Mandatory),
	)

	if err := gctx.Err(); err != nil {
		return inv.finish(log, out, start, stateForContext(err), fmt.Errorf("not started: %w", err))
	}

	timeout := d.EffectiveTimeout(inv.cfg.DefaultTimeout)
	actx, cancel := context.WithTimeout(gctx, timeout)
	defer cancel()

	replies := make(chan analyzerReply, 1)
	req := domain.NewRequest(doc, d, classified)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- analyzerReply{err: fmt.Errorf("analyzer panicked: %v", r)}
			}
		}()
		raws, err := inv.client.Analyze(actx, d, req)
		replies <- analyzerReply{raws: raws, err: err}
	}()

	rep, ok := awaitReply(actx, replies)
	if !ok {
		err := actx.Err()
		go discardLate(log, replies)
		if gctx.Err() != nil {
			return inv.finish(log, out, start, stateForContext(err), fmt.Errorf("pipeline deadline reached: %w", err))
		}
		return inv.finish(log, out, start, stateForContext(err), fmt.Errorf("no response within %s: %w", timeout, err))
	}
	if rep.err != nil {
		if errors.Is(rep.err, context.DeadlineExceeded) {
			return inv.finish(log, out, start, domain.ExecTimedOut, rep.err)
		}
		return inv.finish(log, out, start, domain.ExecFailed, rep.err)
	}
	findings, err := domain.ToFindings(d, rep.raws)
	if err != nil {
		return inv.finish(log, out, start, domain.ExecFailed, err)
	}
	out.Findings = findings
	return inv.finish(log, out, start, domain.ExecCompleted, nil)
}

// awaitReply waits for the analyzer or its deadline. A reply already sitting in the channel
// when the deadline fires still counts; ok is false only when nothing arrived in time.
func awaitReply(ctx context.Context, replies <-chan analyzerReply) (analyzerReply, bool) {
	select {
	case rep := <-replies:
		return rep, true
	case <-ctx.Done():
		select {
		case rep := <-replies:
			return rep, true
		default:
			return analyzerReply{}, false
		}
	}
}

// discardLate drains a reply that arrives after its slot was closed, so the result never reaches the report.
func discardLate(log *zap.Logger, replies <-chan analyzerReply) {
	rep := <-replies
	log.Debug("late analyzer result discarded", zap.Int("raw_findings", len(rep.raws)), zap.Error(rep.err))
}

func stateForContext(err error) domain.ExecState {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ExecTimedOut
	}
	return domain.ExecFailed
}

func (inv *Invoker) finish(log *zap.Logger, out Outcome, start time.Time, state domain.ExecState, err error) Outcome {
	out.State = state
	out.Err = err
	out.Duration = time.Since(start)
	if state != domain.ExecCompleted {
		out.Findings = nil
	}
	inv.metrics.observeInvocation(out.Analyzer.ID, state, out.Duration)

	switch state {
	case domain.ExecCompleted:
		log.Info("analyzer completed", zap.Int("findings", len(out.Findings)), zap.Duration("duration", out.Duration))
	case domain.ExecTimedOut:
		log.Warn("analyzer timed out", zap.String("event", string(domain.EventAnalyzerTimeout)),
			zap.Duration("duration", out.Duration), zap.Error(err))
	default:
		log.Warn("analyzer failed", zap.String("event", string(domain.EventAnalyzerFailure)),
			zap.Duration("duration", out.Duration), zap.Error(err))
	}
	return out
}
