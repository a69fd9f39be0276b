package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	appai "github.com/bryanwahyu/automaton-compliance/internal/application/ai"
	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
	domai "github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/remote"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/vertex"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/db/memory"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/httpclient"
)

type analyzeOptions struct {
	File          string
	MetadataFile  string
	DocumentID    string
	Revision      int
	Tenant        string
	GlobalTimeout time.Duration
	MaxParallel   int
	RemoteToken   string
	VertexProject string
	VertexRegion  string
}

func newAnalyzeCmd(flags *tableFlags) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze --file doc.txt [--metadata meta.json]",
		Short: "Run the full pipeline on a local document and print the report.",
		Long: `Runs classification, analyzer fan-out, aggregation, conflict detection and scoring with
in-memory storage. OpenAI targets read OPENAI_API_KEY; vertex targets need --vertex-project.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.File == "" {
				return fmt.Errorf("'file' flag must be specified")
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), flags, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.File, "file", "f", "", "extracted document text")
	f.StringVar(&opts.MetadataFile, "metadata", "", "building metadata JSON")
	f.StringVar(&opts.DocumentID, "document-id", "", "document id (defaults to the file path)")
	f.IntVar(&opts.Revision, "revision", 1, "document revision")
	f.StringVar(&opts.Tenant, "tenant", "local", "tenant id")
	f.DurationVar(&opts.GlobalTimeout, "timeout", appcompliance.DefaultGlobalTimeout, "global pipeline deadline")
	f.IntVar(&opts.MaxParallel, "max-parallel", 0, "analyzer concurrency limit (0 = unlimited)")
	f.StringVar(&opts.RemoteToken, "remote-token", os.Getenv("REMOTE_ANALYZER_TOKEN"), "bearer token for http(s) analyzers")
	f.StringVar(&opts.VertexProject, "vertex-project", "", "GCP project for vertex targets")
	f.StringVar(&opts.VertexRegion, "vertex-region", "us-central1", "GCP region for vertex targets")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, flags *tableFlags, opts *analyzeOptions) error {
	logger, err := flags.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	doc, err := readDocument(opts.File, opts.MetadataFile, opts.DocumentID, opts.Revision)
	if err != nil {
		return err
	}
	registry, err := appcompliance.LoadRegistry(flags.RegistryPath)
	if err != nil {
		return err
	}
	rules, err := appcompliance.LoadRules(flags.RulesPath)
	if err != nil {
		return err
	}
	taxonomy, err := flags.taxonomy()
	if err != nil {
		return err
	}

	var oa, vx domai.Client
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		oa = openai.NewClient(key, "")
	}
	if opts.VertexProject != "" {
		vc, err := vertex.NewClient(ctx, opts.VertexProject, opts.VertexRegion, "", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if err != nil {
			return err
		}
		defer vc.Close()
		vx = vc
	}
	rc := remote.NewClient(httpclient.New(httpclient.DefaultConfig(), logger), opts.RemoteToken)

	reports := memory.NewReportRepository()
	svc := &appcompliance.Service{
		Classifier: appcompliance.NewKeywordClassifier(taxonomy, logger),
		Registry:   registry,
		Rules:      rules,
		Invoker: appcompliance.NewInvoker(appai.NewService(oa, vx, rc), appcompliance.InvokerConfig{
			GlobalTimeout: opts.GlobalTimeout,
			MaxParallel:   opts.MaxParallel,
		}, logger, nil),
		Reports: reports,
		Publisher: &appcompliance.Publisher{
			Reports: reports,
			Audit:   memory.NewAuditRepository(),
			Ledger:  memory.NewDeliveryLedger(),
			Logger:  logger,
		},
		Logger: logger,
	}
	report, err := svc.Run(ctx, appcompliance.AnalyzeCommand{TenantID: opts.Tenant, Document: doc})
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}
