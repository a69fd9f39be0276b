package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
	domai "github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
	"github.com/bryanwahyu/automaton-compliance/internal/middleware"
)

// Options carries the optional collaborators of the router. Zero values disable the feature.
type Options struct {
	Logger          *zap.Logger
	APIKeys         map[string]string
	RateLimiter     *middleware.RateLimiter
	HTTPMetrics     *middleware.HTTPMetrics
	Gatherer        prometheus.Gatherer
	HealthCheckers  map[string]middleware.HealthChecker
	AllowedOrigins  []string
	DeliveryTimeout time.Duration
}

type Router struct {
	svc  *appcompliance.Service
	opts Options
	log  *zap.Logger
}

func NewRouter(svc *appcompliance.Service, opts Options) http.Handler {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}
	r := &Router{svc: svc, opts: opts, log: logging.OrNop(opts.Logger).Named("api")}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	mux.Use(middleware.Logging(r.log))
	if opts.HTTPMetrics != nil {
		mux.Use(opts.HTTPMetrics.Middleware)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	if opts.Gatherer != nil {
		mux.Handle("/metrics", middleware.MetricsHandler(opts.Gatherer))
	}

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		if len(opts.APIKeys) > 0 {
			rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		}
		rt.Use(middleware.RequireTenantMatch)
		if opts.RateLimiter != nil {
			rt.Use(middleware.RateLimit(opts.RateLimiter))
		}

		rt.Post("/documents/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/documents/{document}/reports/latest", r.wrap(r.handleLatest))
		rt.Get("/documents/{document}/reports/{version}", r.wrap(r.handleGet))
		rt.Post("/documents/{document}/reports/{version}/deliver", r.wrap(r.handleDeliver))
		rt.Get("/documents/{document}/events", r.wrap(r.handleEvents))
		rt.Get("/reports", r.wrap(r.handleList))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks input errors raised by the handlers themselves.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequest
		switch {
		case errors.As(err, &br), errors.Is(err, domain.ErrInvalidDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrReportNotFound), errors.Is(err, delivery.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "ai quota exceeded")
		case errors.Is(err, appcompliance.ErrNoDeliveryTarget):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			r.log.Error("handler failed", zap.String("path", req.URL.Path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type analyzeBody struct {
	DocumentID string                  `json:"document_id"`
	Revision   int                     `json:"revision"`
	Text       string                  `json:"text"`
	Metadata   domain.BuildingMetadata `json:"metadata"`
	Async      bool                    `json:"async"`
}

// POST /v1/{tenant}/documents/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body analyzeBody
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, middleware.MaxDocumentTextBytes+64<<10))
	if err := dec.Decode(&body); err != nil {
		return badRequest{"invalid JSON body: " + err.Error()}
	}
	if err := middleware.ValidateAnalyzeRequest(body.DocumentID, body.Revision, body.Text); err != nil {
		return badRequest{err.Error()}
	}
	body.Metadata.OccupancyType = middleware.SanitizeString(body.Metadata.OccupancyType)
	body.Metadata.Filename = middleware.SanitizeString(body.Metadata.Filename)

	cmd := appcompliance.AnalyzeCommand{
		TenantID: tenant,
		Document: domain.Document{
			ID:       body.DocumentID,
			Revision: body.Revision,
			TenantID: tenant,
			Text:     body.Text,
			Metadata: body.Metadata,
		},
	}

	if body.Async {
		// jalan di background, request sudah selesai duluan
		res := r.svc.Submit(context.WithoutCancel(req.Context()), cmd)
		go func() {
			out := <-res
			if out.Err != nil {
				r.log.Error("background analysis failed",
					zap.String("tenant", tenant), zap.String("document_id", body.DocumentID), zap.Error(out.Err))
				return
			}
			r.svc.DeliverAsync(out.Report, r.opts.DeliveryTimeout)
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":      "queued",
			"tenant":      tenant,
			"document_id": body.DocumentID,
			"revision":    body.Revision,
			"queuedAt":    time.Now().UTC(),
		})
		return nil
	}

	report, err := r.svc.Run(req.Context(), cmd)
	if err != nil {
		return err
	}
	r.svc.DeliverAsync(report, r.opts.DeliveryTimeout)
	writeJSON(w, http.StatusOK, report)
	return nil
}

// GET /v1/{tenant}/documents/{document}/reports/latest
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	report, err := r.svc.LatestReport(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "document"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

// GET /v1/{tenant}/documents/{document}/reports/{version}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	version, err := versionParam(req)
	if err != nil {
		return err
	}
	report, err := r.svc.Report(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "document"), version)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

// POST /v1/{tenant}/documents/{document}/reports/{version}/deliver
func (r *Router) handleDeliver(w http.ResponseWriter, req *http.Request) error {
	version, err := versionParam(req)
	if err != nil {
		return err
	}
	document := chi.URLParam(req, "document")
	sent, err := r.svc.Deliver(req.Context(), chi.URLParam(req, "tenant"), document, version)
	if err != nil {
		return err
	}
	status := "already_delivered"
	if sent {
		status = "delivered"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    document,
		"report_version": version,
		"status":         status,
	})
	return nil
}

// GET /v1/{tenant}/documents/{document}/events?limit=
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	events, err := r.svc.Events(req.Context(), chi.URLParam(req, "tenant"), chi.URLParam(req, "document"), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, events)
	return nil
}

// GET /v1/{tenant}/reports?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.ListReports(req.Context(), chi.URLParam(req, "tenant"), page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func versionParam(req *http.Request) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(req, "version"))
	if err != nil || v < 1 {
		return 0, badRequest{"version must be a positive integer"}
	}
	return v, nil
}
