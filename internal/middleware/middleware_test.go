package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetTenantFromContext(r.Context())))
})

func tenantRouter(keys map[string]string) http.Handler {
	mux := chi.NewRouter()
	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		if keys != nil {
			rt.Use(APIKeyAuth(keys))
		}
		rt.Use(RequireTenantMatch)
		rt.Get("/ping", ok)
	})
	return mux
}

func TestAPIKeyAuth(t *testing.T) {
	h := tenantRouter(map[string]string{"acme": "k-acme", "globex": "k-globex"})

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/v1/acme/ping", "", http.StatusUnauthorized},
		{"unknown key", "/v1/acme/ping", "Bearer nope", http.StatusUnauthorized},
		{"other tenant's key", "/v1/acme/ping", "Bearer k-globex", http.StatusForbidden},
		{"bearer", "/v1/acme/ping", "Bearer k-acme", http.StatusOK},
		{"bare key", "/v1/globex/ping", "k-globex", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireTenantMatch_RejectsBadTenant(t *testing.T) {
	rec := httptest.NewRecorder()
	tenantRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/bad%20tenant/ping", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("acme"))
	assert.True(t, rl.Allow("acme"))
	assert.False(t, rl.Allow("acme"))
	assert.True(t, rl.Allow("globex"), "tenants have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("acme"))

	now = now.Add(11 * time.Minute)
	assert.Equal(t, 2, rl.Sweep())
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.5, 1)
	h := RateLimit(rl)(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestValidateAnalyzeRequest(t *testing.T) {
	assert.NoError(t, ValidateAnalyzeRequest("DOC-2024:A.1_rev", 0, "floor plan"))
	assert.Error(t, ValidateAnalyzeRequest("", 0, "x"))
	assert.Error(t, ValidateAnalyzeRequest("../etc", 0, "x"))
	assert.Error(t, ValidateAnalyzeRequest("doc", -1, "x"))
	assert.Error(t, ValidateAnalyzeRequest("doc", 1, "   "))
	assert.Error(t, ValidateAnalyzeRequest("doc", 1, strings.Repeat("a", MaxDocumentTextBytes+1)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "ab\ncd", SanitizeString(" a\x00b\x07\ncd "))
}

func TestValidateLimit(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 5, ValidateLimit(5))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": CheckFunc(func(context.Context) error { return nil }),
		"minio":    CheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"minio":{"status":"unhealthy","message":"bucket missing"}`)
	assert.Contains(t, rec.Body.String(), `"database":{"status":"healthy"}`)
}

func TestLogging_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mux := chi.NewRouter()
	mux.Use(Logging(zap.New(core)))
	mux.Get("/boom", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "x", http.StatusInternalServerError) })
	mux.Get("/fine", func(w http.ResponseWriter, r *http.Request) {})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fine", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, int64(500), entries[0].ContextMap()["status"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	mux := chi.NewRouter()
	mux.Use(m.Middleware)
	mux.Get("/v1/{tenant}/reports", func(w http.ResponseWriter, r *http.Request) {})
	mux.Handle("/metrics", MetricsHandler(reg))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/acme/reports", nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `compliance_http_requests_total{code="200",method="GET",route="/v1/{tenant}/reports"} 1`)
	assert.NotContains(t, body, "/v1/acme/reports")
}
