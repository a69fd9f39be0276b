package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcompliance "github.com/bryanwahyu/automaton-compliance/internal/application/compliance"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// tableFlags are the paths shared by every subcommand.
type tableFlags struct {
	RegistryPath string
	RulesPath    string
	TaxonomyPath string
	LogLevel     string
}

func newRootCmd() *cobra.Command {
	flags := &tableFlags{}
	root := &cobra.Command{
		Use:                   "compliancectl [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Run and inspect building compliance analysis locally.",
		Long: `compliancectl runs the compliance pipeline against a local document with in-memory storage,
shows how a document is classified, and validates the registry, taxonomy and conflict rule files.`,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&flags.RegistryPath, "registry", "configs/analyzers.yaml", "analyzer registry file")
	pf.StringVar(&flags.RulesPath, "rules", "configs/conflict_rules.yaml", "conflict rule file")
	pf.StringVar(&flags.TaxonomyPath, "taxonomy", "", "discipline taxonomy file (builtin when empty)")
	pf.StringVar(&flags.LogLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(newAnalyzeCmd(flags), newClassifyCmd(flags), newValidateCmd(flags))
	return root
}

func (f *tableFlags) logger() (*zap.Logger, error) {
	return logging.New(logging.Config{Level: f.LogLevel, Format: "console"})
}

func (f *tableFlags) taxonomy() (*appcompliance.Taxonomy, error) {
	if f.TaxonomyPath == "" {
		return appcompliance.DefaultTaxonomy(), nil
	}
	return appcompliance.LoadTaxonomy(f.TaxonomyPath)
}

// readDocument loads text and optional metadata JSON into a Document.
func readDocument(file, metadataFile, id string, revision int) (domain.Document, error) {
	text, err := os.ReadFile(file)
	if err != nil {
		return domain.Document{}, err
	}
	if id == "" {
		id = file
	}
	doc := domain.Document{ID: id, Revision: revision, Text: string(text)}
	if metadataFile != "" {
		raw, err := os.ReadFile(metadataFile)
		if err != nil {
			return domain.Document{}, err
		}
		if err := json.Unmarshal(raw, &doc.Metadata); err != nil {
			return domain.Document{}, fmt.Errorf("decode metadata %s: %w", metadataFile, err)
		}
	}
	if doc.Metadata.Filename == "" {
		doc.Metadata.Filename = file
	}
	return doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
