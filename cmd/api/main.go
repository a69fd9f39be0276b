package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-compliance/internal/application"
	appai "github.com/bryanwahyu/automaton-compliance/internal/application/ai"
	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/config"
	domai "github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/remote"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/vertex"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/automaton-compliance/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/automaton-compliance/internal/infra/db/postgres"
	webhook "github.com/bryanwahyu/automaton-compliance/internal/infra/delivery"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/httpclient"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/automaton-compliance/internal/infra/storage"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
	"github.com/bryanwahyu/automaton-compliance/internal/middleware"
)

type stores struct {
	db      *sql.DB
	reports domain.ReportRepository
	ledger  delivery.Ledger
	audit   audit.Repository
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &stores{db: db, reports: mysqlp.NewReportRepository(db), ledger: mysqlp.NewDeliveryLedger(db), audit: mysqlp.NewAuditRepository(db)}, nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &stores{db: db, reports: pgp.NewReportRepository(db), ledger: pgp.NewDeliveryLedger(db), audit: pgp.NewAuditRepository(db)}, nil
	default:
		return &stores{reports: memory.NewReportRepository(), ledger: memory.NewDeliveryLedger(), audit: memory.NewAuditRepository()}, nil
	}
}

func toHTTP(c config.HTTPClientCfg) httpclient.Config {
	return httpclient.Config{
		Timeout:          c.Timeout,
		RetryCount:       c.RetryCount,
		RetryWaitTime:    c.RetryWaitTime,
		RetryMaxWaitTime: c.RetryMaxWaitTime,
		Debug:            c.Debug,
	}
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := appcompliance.NewMetrics(reg)

	// database
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	checkers := map[string]middleware.HealthChecker{}
	if st.db != nil {
		defer st.db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: st.db}
	}
	logger.Info("database ready", zap.String("driver", cfg.Database.Driver))

	// minio, optional
	var artifacts domain.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init failed", zap.Error(err))
		}
		artifacts = store
		checkers["minio"] = middleware.CheckFunc(store.Ping)
	}

	// analyzer backends; a nil backend makes its targets fail per analyzer
	var oa, vx domai.Client
	if cfg.OpenAI.APIKey != "" {
		oa = openai.NewClientWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}
	if cfg.Vertex.ProjectID != "" {
		vc, err := vertex.NewClient(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Location, "", cfg.Vertex.CredentialsFile)
		if err != nil {
			logger.Fatal("vertex init failed", zap.Error(err))
		}
		defer vc.Close()
		vx = vc
	}
	rc := remote.NewClient(httpclient.New(toHTTP(cfg.Remote.HTTP), logger.Named("remote")), cfg.Remote.Token)
	dispatcher := appai.NewService(oa, vx, rc)

	// tables
	registry, err := appcompliance.LoadRegistry(cfg.Pipeline.RegistryPath)
	if err != nil {
		logger.Fatal("analyzer registry", zap.Error(err))
	}
	rules, err := appcompliance.LoadRules(cfg.Pipeline.RulesPath)
	if err != nil {
		logger.Fatal("conflict rules", zap.Error(err))
	}
	taxonomy := appcompliance.DefaultTaxonomy()
	if cfg.Pipeline.TaxonomyPath != "" {
		if taxonomy, err = appcompliance.LoadTaxonomy(cfg.Pipeline.TaxonomyPath); err != nil {
			logger.Fatal("taxonomy", zap.Error(err))
		}
	}
	logger.Info("tables loaded",
		zap.String("registry_version", registry.Snapshot().Version),
		zap.Int("analyzers", registry.Snapshot().Len()),
		zap.Int("rules", rules.Table().Len()))
	for _, d := range rules.Table().UnreachableSides(registry.Snapshot()) {
		logger.Warn("conflict rule can never fire", zap.String("detail", d))
	}

	if cfg.Pipeline.Watch {
		w, err := appcompliance.NewWatcher(cfg.Pipeline.ReloadDebounce, logger, metrics,
			appcompliance.WatchTarget{Name: "registry", Table: registry},
			appcompliance.WatchTarget{Name: "rules", Table: rules},
		)
		if err != nil {
			logger.Fatal("watcher init failed", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("watcher start failed", zap.Error(err))
		}
		defer w.Stop()
	}

	// delivery, optional
	var target domain.DeliveryTarget
	if cfg.Delivery.URL != "" {
		target = webhook.NewWebhook(httpclient.New(toHTTP(cfg.Delivery.HTTP), logger.Named("delivery")), cfg.Delivery.URL, cfg.Delivery.Token)
	}

	clock := application.SystemClock{}
	svc := &appcompliance.Service{
		Classifier: appcompliance.NewKeywordClassifier(taxonomy, logger),
		Registry:   registry,
		Rules:      rules,
		Invoker: appcompliance.NewInvoker(dispatcher, appcompliance.InvokerConfig{
			DefaultTimeout: cfg.Pipeline.DefaultTimeout,
			GlobalTimeout:  cfg.Pipeline.GlobalTimeout,
			MaxParallel:    cfg.Pipeline.MaxParallel,
		}, logger, metrics),
		Reports: st.reports,
		Publisher: &appcompliance.Publisher{
			Reports:   st.reports,
			Artifacts: artifacts,
			Audit:     st.audit,
			Ledger:    st.ledger,
			Target:    target,
			Clock:     clock,
			Logger:    logger,
			Metrics:   metrics,
		},
		Clock:   clock,
		Logger:  logger,
		Metrics: metrics,
	}

	opts := httpserver.Options{
		Logger:          logger,
		APIKeys:         cfg.Auth.APIKeys,
		HTTPMetrics:     middleware.NewHTTPMetrics(reg),
		Gatherer:        reg,
		HealthCheckers:  checkers,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		DeliveryTimeout: cfg.Delivery.Timeout,
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go rl.RunSweeper(5*time.Minute, ctx.Done())
		opts.RateLimiter = rl
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
